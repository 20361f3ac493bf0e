package executor

import (
	"context"
	"fmt"

	"github.com/ethpandaops/pgbenchoor/pkg/spec"
	"github.com/ethpandaops/pgbenchoor/pkg/target"
	"github.com/sirupsen/logrus"
)

// LoadGenerator runs steps repeatedly through an external tool and returns
// one latency per reported statement.
type LoadGenerator interface {
	Run(
		ctx context.Context,
		tgt *target.Target,
		steps []spec.Step,
		executions int,
		workDir string,
	) ([]float64, error)
}

// PhaseRunner executes the three phases of a spec against a target.
type PhaseRunner struct {
	log     logrus.FieldLogger
	direct  DirectExecutor
	loadgen LoadGenerator
	workDir string
}

// NewPhaseRunner creates a phase runner writing scratch files below workDir.
func NewPhaseRunner(
	log logrus.FieldLogger,
	direct DirectExecutor,
	loadgen LoadGenerator,
	workDir string,
) *PhaseRunner {
	return &PhaseRunner{
		log:     log.WithField("component", "phase-runner"),
		direct:  direct,
		loadgen: loadgen,
		workDir: workDir,
	}
}

// GenerateData runs the generate-data steps once through the load generator.
func (p *PhaseRunner) GenerateData(ctx context.Context, s *spec.Spec, tgt *target.Target) error {
	log := p.log.WithFields(logrus.Fields{
		"spec":   s.Name,
		"target": tgt.Redacted(),
	})
	log.WithField("work_dir", p.workDir).Info("Generating data for benchmark")

	if !s.GenerateData.HasSteps() {
		log.Debug("No data generation steps are specified")

		return nil
	}

	if _, err := p.loadgen.Run(ctx, tgt, s.GenerateData.Steps, 1, p.workDir); err != nil {
		return fmt.Errorf("generating data for %q: %w", s.Name, err)
	}

	return nil
}

// Prepare runs the prepare-benchmark steps directly in one transaction.
func (p *PhaseRunner) Prepare(ctx context.Context, s *spec.Spec, tgt *target.Target) error {
	if !s.Prepare.HasSteps() {
		p.log.WithField("spec", s.Name).Debug("No preparation steps are specified")

		return nil
	}

	if err := p.direct.Execute(ctx, tgt, s.Prepare.Steps, p.workDir); err != nil {
		return fmt.Errorf("preparing %q: %w", s.Name, err)
	}

	return nil
}

// Benchmark runs the measured steps and returns their latencies. The bool is
// false when the spec has no benchmark steps and was skipped.
func (p *PhaseRunner) Benchmark(ctx context.Context, s *spec.Spec, tgt *target.Target) ([]float64, bool, error) {
	if !s.Runnable() {
		p.log.WithField("spec", s.Name).Warn("No benchmark steps are found in benchmark")

		return nil, false, nil
	}

	latencies, err := p.loadgen.Run(ctx, tgt, s.Benchmark.Steps, s.Executions(), p.workDir)
	if err != nil {
		return nil, false, fmt.Errorf("benchmarking %q: %w", s.Name, err)
	}

	return latencies, true, nil
}
