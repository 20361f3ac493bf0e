package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethpandaops/pgbenchoor/pkg/target"
	"github.com/sirupsen/logrus"
)

// RepoDirName is the clone directory below the work directory.
const RepoDirName = "repository"

// SpecRunner runs the loaded specs against one target and finalizes results.
type SpecRunner interface {
	RunSpecs(ctx context.Context, run int, tgt *target.Target) error
	LabelRun(run int, label string)
	Finish() error
}

// PipelineConfig configures the build-compare pipeline.
type PipelineConfig struct {
	Repository string
	// Database is created on every provisioned instance.
	Database string
	// User connects to the provisioned instances.
	User string
	// WorkDir holds the clone and the per-commit data directories.
	WorkDir string
}

// Pipeline builds two commits one after the other and benchmarks each one
// on a freshly initialized local instance.
type Pipeline struct {
	log   logrus.FieldLogger
	cfg   *PipelineConfig
	tools Toolchain
	specs SpecRunner
}

// NewPipeline creates a build-compare pipeline.
func NewPipeline(log logrus.FieldLogger, cfg *PipelineConfig, tools Toolchain, specs SpecRunner) *Pipeline {
	return &Pipeline{
		log:   log.WithField("component", "build-pipeline"),
		cfg:   cfg,
		tools: tools,
		specs: specs,
	}
}

// Run clones the repository once, benchmarks from as run 0 and to as run 1
// and finalizes the results. Any failure aborts the whole comparison.
func (p *Pipeline) Run(ctx context.Context, from, to string) error {
	p.log.WithFields(logrus.Fields{
		"repository": p.cfg.Repository,
		"from":       from,
		"to":         to,
	}).Info("Comparing commits")

	repoDir := filepath.Join(p.cfg.WorkDir, RepoDirName)

	if err := p.tools.Clone(ctx, p.cfg.Repository, repoDir); err != nil {
		return err
	}

	for run, commit := range []string{from, to} {
		p.specs.LabelRun(run, commit)

		if err := p.runCommit(ctx, run, commit, repoDir); err != nil {
			return fmt.Errorf("commit %s: %w", commit, err)
		}
	}

	p.log.Info("All benchmarks are executed")

	return p.specs.Finish()
}

func (p *Pipeline) runCommit(ctx context.Context, run int, commit, repoDir string) (err error) {
	log := p.log.WithField("commit", commit)

	if err := p.tools.Checkout(ctx, repoDir, commit); err != nil {
		return err
	}

	if err := p.tools.Build(ctx, repoDir); err != nil {
		return err
	}

	dataDir, err := os.MkdirTemp(p.cfg.WorkDir, "pgdata-*")
	if err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	defer func() {
		if rmErr := os.RemoveAll(dataDir); rmErr != nil {
			log.WithError(rmErr).Warn("Failed to remove data directory")
		}
	}()

	if err := p.tools.InitInstance(ctx, dataDir); err != nil {
		return err
	}

	if err := p.tools.Start(ctx, dataDir); err != nil {
		return err
	}

	// The instance is stopped on every path once it was started.
	defer func() {
		stopErr := p.tools.Stop(context.WithoutCancel(ctx), dataDir)
		if stopErr == nil {
			return
		}

		if err == nil {
			err = stopErr

			return
		}

		log.WithError(stopErr).Error("Failed to stop instance")
	}()

	if err := p.tools.CreateDatabase(ctx, p.cfg.Database); err != nil {
		return err
	}

	log.Info("Executing benchmarks for commit")

	return p.specs.RunSpecs(ctx, run, target.Local(p.cfg.User, p.cfg.Database))
}
