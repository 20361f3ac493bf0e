package reporter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
)

// Console aggregates results by experiment, run and query and prints them as
// a table on Finish.
type Console struct {
	log logrus.FieldLogger
	out io.Writer
	set *resultSet
}

// Ensure interface compliance.
var (
	_ Reporter   = (*Console)(nil)
	_ RunLabeler = (*Console)(nil)
)

// NewConsole creates a console reporter writing to out.
func NewConsole(log logrus.FieldLogger, out io.Writer) *Console {
	return &Console{
		log: log.WithField("component", "console-reporter"),
		out: out,
		set: newResultSet(),
	}
}

// AddResult implements Reporter.
func (c *Console) AddResult(experiment string, run, query int, value float64) {
	c.log.WithFields(logrus.Fields{
		"experiment": experiment,
		"run":        run,
		"query":      query,
		"value":      value,
	}).Debug("Got result")

	c.set.add(Result{Experiment: experiment, Run: run, Query: query, Value: value})
}

// LabelRun implements RunLabeler.
func (c *Console) LabelRun(run int, label string) {
	c.set.labels[run] = label
}

// Finish implements Reporter.
func (c *Console) Finish() error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "\n=== Benchmark Results (%d measurements) ===\n\n", c.set.results)

	if c.set.results == 0 {
		fmt.Fprintln(tw, "No results were reported.")

		return tw.Flush()
	}

	header := []string{"Experiment", "Run", "Target", "Query", "Latency (ms)"}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	for _, name := range c.set.order {
		for _, r := range c.set.byName[name] {
			fmt.Fprintln(tw, strings.Join([]string{
				r.Experiment,
				fmt.Sprintf("%d", r.Run),
				c.set.label(r.Run),
				fmt.Sprintf("%d", r.Query),
				fmt.Sprintf("%.3f", r.Value),
			}, "\t"))
		}
	}

	fmt.Fprintln(tw)

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing results table: %w", err)
	}

	return nil
}
