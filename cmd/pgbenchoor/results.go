package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethpandaops/pgbenchoor/pkg/config"
	"github.com/ethpandaops/pgbenchoor/pkg/reporter"
	"github.com/ethpandaops/pgbenchoor/pkg/sysinfo"
	"github.com/ethpandaops/pgbenchoor/pkg/upload"
)

// runResults bundles the configured reporters of one run with the optional
// results uploader.
type runResults struct {
	resultsDir string
	reporters  reporter.Multi
	json       *reporter.JSON
	store      *reporter.Store
	uploader   upload.Uploader
}

func newResults(ctx context.Context, cfg *config.Config, mode string) (*runResults, error) {
	meta := reporter.NewRunMeta(mode, sysinfo.Collect(ctx, log))

	r := &runResults{resultsDir: cfg.Benchmark.ResultsDir}

	for _, name := range cfg.Benchmark.Reporters {
		switch name {
		case config.ReporterConsole:
			r.reporters = append(r.reporters, reporter.NewConsole(log, os.Stdout))
		case config.ReporterJSON:
			r.json = reporter.NewJSON(log, cfg.Benchmark.ResultsDir, meta)
			r.reporters = append(r.reporters, r.json)
		case config.ReporterStore:
			r.store = reporter.NewStore(log, &cfg.Benchmark.Store, meta)
			if err := r.store.Start(ctx); err != nil {
				return nil, fmt.Errorf("starting result store: %w", err)
			}

			r.reporters = append(r.reporters, r.store)
		}
	}

	if s3Cfg := &cfg.Benchmark.ResultsUpload.S3; s3Cfg.Enabled {
		uploader, err := upload.NewS3Uploader(log, s3Cfg)
		if err != nil {
			r.Close()

			return nil, fmt.Errorf("creating S3 uploader: %w", err)
		}

		if err := uploader.Preflight(ctx); err != nil {
			r.Close()

			return nil, fmt.Errorf("S3 upload preflight check failed: %w", err)
		}

		log.Info("S3 upload preflight check passed")

		r.uploader = uploader
	}

	return r, nil
}

// Reporter returns the fan-out reporter of all configured reporters.
func (r *runResults) Reporter() reporter.Reporter {
	return r.reporters
}

// Upload sends the finished run directory and the merged index to S3.
func (r *runResults) Upload(ctx context.Context) error {
	if r.uploader == nil || r.json == nil {
		return nil
	}

	runDir := r.json.RunDir()

	log.WithField("dir", runDir).Info("Uploading results")

	if err := r.uploader.Upload(ctx, runDir); err != nil {
		return fmt.Errorf("uploading results: %w", err)
	}

	index, err := reporter.GenerateIndex(r.resultsDir)
	if err != nil {
		return fmt.Errorf("generating index: %w", err)
	}

	if err := r.uploader.UploadIndex(ctx, index); err != nil {
		return fmt.Errorf("uploading index: %w", err)
	}

	return nil
}

// Close releases the result store when the run did not finish.
func (r *runResults) Close() {
	if r.store == nil {
		return
	}

	if err := r.store.Stop(); err != nil {
		log.WithError(err).Warn("Failed to close result store")
	}
}
