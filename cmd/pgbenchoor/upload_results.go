package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/ethpandaops/pgbenchoor/pkg/reporter"
	"github.com/ethpandaops/pgbenchoor/pkg/upload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	uploadMethod    string
	uploadResultDir string
	uploadForce     bool
)

var uploadResultsCmd = &cobra.Command{
	Use:   "upload-results",
	Short: "Upload benchmark results to remote storage",
	Long: `Upload local run directories to S3-compatible storage using the config file
settings and merge the local index into the remote one. Runs already present
remotely are skipped unless --force is set.`,
	RunE: runUploadResults,
}

func init() {
	rootCmd.AddCommand(uploadResultsCmd)
	uploadResultsCmd.Flags().StringVar(&uploadMethod, "method", "s3",
		"Upload method (currently only \"s3\")")
	uploadResultsCmd.Flags().StringVar(&uploadResultDir, "result-dir", "",
		"Upload only this run directory instead of every local run")
	uploadResultsCmd.Flags().BoolVar(&uploadForce, "force", false,
		"Upload runs that already exist remotely")
}

func runUploadResults(cmd *cobra.Command, args []string) error {
	if uploadMethod != "s3" {
		return fmt.Errorf("unsupported method %q (only \"s3\" is supported)", uploadMethod)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s3Cfg := &cfg.Benchmark.ResultsUpload.S3
	if !s3Cfg.Enabled {
		return fmt.Errorf("S3 upload is not configured or not enabled in config")
	}

	if err := s3Cfg.Validate(); err != nil {
		return fmt.Errorf("validating S3 config: %w", err)
	}

	uploader, err := upload.NewS3Uploader(log, s3Cfg)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	ctx := cmd.Context()

	dirs, err := localRunDirs(cfg.Benchmark.ResultsDir, uploadResultDir)
	if err != nil {
		return err
	}

	var remote []string
	if !uploadForce {
		remote, err = uploader.RemoteRuns(ctx)
		if err != nil {
			return fmt.Errorf("listing remote runs: %w", err)
		}
	}

	uploaded := 0

	for _, dir := range dirs {
		if slices.Contains(remote, filepath.Base(dir)) {
			log.WithField("dir", dir).Debug("Run already uploaded, skipping")

			continue
		}

		log.WithField("dir", dir).Info("Uploading results")

		if err := uploader.Upload(ctx, dir); err != nil {
			return fmt.Errorf("uploading %s: %w", dir, err)
		}

		uploaded++
	}

	index, err := reporter.GenerateIndex(cfg.Benchmark.ResultsDir)
	if err != nil {
		return fmt.Errorf("generating index: %w", err)
	}

	if err := uploader.UploadIndex(ctx, index); err != nil {
		return fmt.Errorf("uploading index: %w", err)
	}

	log.WithFields(logrus.Fields{
		"uploaded": uploaded,
		"skipped":  len(dirs) - uploaded,
	}).Info("Upload completed successfully")

	return nil
}

// localRunDirs returns only if set, otherwise every run directory below
// resultsDir/runs.
func localRunDirs(resultsDir, only string) ([]string, error) {
	if only != "" {
		info, err := os.Stat(only)
		if err != nil {
			return nil, fmt.Errorf("checking result dir: %w", err)
		}

		if !info.IsDir() {
			return nil, fmt.Errorf("result dir %s is not a directory", only)
		}

		return []string{only}, nil
	}

	runsDir := filepath.Join(resultsDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", runsDir, err)
	}

	dirs := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(runsDir, entry.Name()))
		}
	}

	return dirs, nil
}
