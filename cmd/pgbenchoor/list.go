package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ethpandaops/pgbenchoor/pkg/spec"
	"github.com/spf13/cobra"
)

var listPatterns []string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the benchmark specs that would run",
	Long:  `Discover and parse the benchmark specs matching the include patterns and print their phases.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringArrayVar(&listPatterns, "benchmark", nil,
		"Benchmark name pattern to include (can be repeated)")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("benchmark") {
		cfg.Benchmark.Include = listPatterns
	}

	specs, err := spec.NewLoader(log, cfg.Benchmark.BenchmarksDir, cfg.Benchmark.SpecExtension).
		Load(cfg.Benchmark.Include)
	if err != nil {
		return fmt.Errorf("loading benchmark specs: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "NAME\tGENERATE\tPREPARE\tBENCHMARK\tEXECUTIONS\tFILE")

	for _, s := range specs {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			s.Name,
			phaseSize(s.GenerateData),
			phaseSize(s.Prepare),
			phaseSize(s.Benchmark),
			s.Executions(),
			s.Source,
		)
	}

	return w.Flush()
}

func phaseSize(p *spec.Phase) int {
	if p == nil {
		return 0
	}

	return len(p.Steps)
}
