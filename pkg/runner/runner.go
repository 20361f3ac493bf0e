package runner

import (
	"context"
	"fmt"

	"github.com/ethpandaops/pgbenchoor/pkg/reporter"
	"github.com/ethpandaops/pgbenchoor/pkg/spec"
	"github.com/ethpandaops/pgbenchoor/pkg/target"
	"github.com/sirupsen/logrus"
)

// Phases runs the phases of a single spec against a target.
type Phases interface {
	GenerateData(ctx context.Context, s *spec.Spec, tgt *target.Target) error
	Prepare(ctx context.Context, s *spec.Spec, tgt *target.Target) error
	Benchmark(ctx context.Context, s *spec.Spec, tgt *target.Target) ([]float64, bool, error)
}

// Context carries everything one top-level run needs. WorkDir is owned by a
// Scope for the duration of the run.
type Context struct {
	WorkDir  string
	Specs    []*spec.Spec
	Reporter reporter.Reporter
	Phases   Phases
	Pauser   Pauser
}

// Orchestrator runs every spec against every target in order.
type Orchestrator struct {
	log logrus.FieldLogger
	rc  *Context
}

// NewOrchestrator creates an orchestrator for the given run context.
func NewOrchestrator(log logrus.FieldLogger, rc *Context) *Orchestrator {
	return &Orchestrator{
		log: log.WithField("component", "orchestrator"),
		rc:  rc,
	}
}

// RunConnections benchmarks the targets described by descriptors. Data is
// generated once on the first target. The reporter is finished once after
// the last target.
func (o *Orchestrator) RunConnections(ctx context.Context, descriptors []string) error {
	resolved, err := target.Resolve(descriptors)
	if err != nil {
		return err
	}

	return o.RunResolved(ctx, resolved)
}

// RunResolved benchmarks an already resolved target list.
func (o *Orchestrator) RunResolved(ctx context.Context, resolved []target.Resolved) error {
	if len(resolved) == 0 {
		return &target.ConfigurationError{Reason: "no connection targets given"}
	}

	if len(o.rc.Specs) == 0 {
		o.log.Warn("No benchmark specs loaded, nothing will be measured")
	}

	for i, r := range resolved {
		o.LabelRun(i, r.Target.Redacted())
	}

	first := resolved[0].Target
	for _, s := range o.rc.Specs {
		if err := o.rc.Phases.GenerateData(ctx, s, first); err != nil {
			return err
		}
	}

	for i, r := range resolved {
		if r.Pause {
			o.log.WithField("target", r.Target.Redacted()).Info("Reusing previous connection")

			if err := o.rc.Pauser.Pause(ctx); err != nil {
				return fmt.Errorf("pausing before target %d: %w", i, err)
			}
		}

		o.log.WithField("target", r.Target.Redacted()).Info("Processing benchmarks on connection")

		if err := o.RunSpecs(ctx, i, r.Target); err != nil {
			return err
		}
	}

	o.log.Info("All benchmarks are executed")

	return o.Finish()
}

// RunSpecs runs the prepare and benchmark phases of every spec against tgt
// and reports the latencies under run.
func (o *Orchestrator) RunSpecs(ctx context.Context, run int, tgt *target.Target) error {
	for _, s := range o.rc.Specs {
		log := o.log.WithFields(logrus.Fields{
			"spec": s.Name,
			"run":  run,
		})
		log.Info("Executing benchmark")

		if err := o.rc.Phases.Prepare(ctx, s, tgt); err != nil {
			return err
		}

		latencies, ran, err := o.rc.Phases.Benchmark(ctx, s, tgt)
		if err != nil {
			return err
		}

		if !ran {
			continue
		}

		for query, value := range latencies {
			o.rc.Reporter.AddResult(s.Name, run, query, value)
		}

		log.WithField("statements", len(latencies)).Debug("Benchmark finished")
	}

	return nil
}

// LabelRun names a run on reporters that support labels.
func (o *Orchestrator) LabelRun(run int, label string) {
	if l, ok := o.rc.Reporter.(reporter.RunLabeler); ok {
		l.LabelRun(run, label)
	}
}

// Finish finalizes the reporter.
func (o *Orchestrator) Finish() error {
	if err := o.rc.Reporter.Finish(); err != nil {
		return fmt.Errorf("finishing results: %w", err)
	}

	return nil
}
