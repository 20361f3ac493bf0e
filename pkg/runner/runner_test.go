package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/ethpandaops/pgbenchoor/pkg/executor"
	"github.com/ethpandaops/pgbenchoor/pkg/pgbench"
	"github.com/ethpandaops/pgbenchoor/pkg/process"
	"github.com/ethpandaops/pgbenchoor/pkg/reporter"
	"github.com/ethpandaops/pgbenchoor/pkg/spec"
	"github.com/ethpandaops/pgbenchoor/pkg/target"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopDirect struct {
	targets []string
}

func (n *noopDirect) Execute(_ context.Context, tgt *target.Target, _ []spec.Step, _ string) error {
	n.targets = append(n.targets, tgt.Raw)

	return nil
}

type countingPauser struct {
	pauses int
	err    error
}

func (c *countingPauser) Pause(context.Context) error {
	c.pauses++

	return c.err
}

func intPtr(v int) *int { return &v }

func report(latencies ...float64) string {
	var sb strings.Builder

	sb.WriteString("pgbench (16.2)\nstatement latencies in milliseconds and failures:\n")

	for i, l := range latencies {
		fmt.Fprintf(&sb, "  %.3f  0  statement %d\n", l, i)
	}

	return sb.String()
}

type harness struct {
	runner   *process.FakeRunner
	direct   *noopDirect
	reporter *reporter.Memory
	pauser   *countingPauser
	orch     *Orchestrator
}

func newHarness(t *testing.T, specs []*spec.Spec, handler func(*process.Command) (*process.Result, error)) *harness {
	t.Helper()

	log, _ := test.NewNullLogger()
	workDir := t.TempDir()

	fake := &process.FakeRunner{Handler: handler}
	gen := pgbench.NewGenerator(log, &pgbench.Config{}, fake)
	require.NoError(t, gen.Start(context.Background()))

	h := &harness{
		runner:   fake,
		direct:   &noopDirect{},
		reporter: reporter.NewMemory(),
		pauser:   &countingPauser{},
	}

	h.orch = NewOrchestrator(log, &Context{
		WorkDir:  workDir,
		Specs:    specs,
		Reporter: h.reporter,
		Phases:   executor.NewPhaseRunner(log, h.direct, gen, workDir),
		Pauser:   h.pauser,
	})

	return h
}

func TestRunConnections_TwoConnections(t *testing.T) {
	specs := []*spec.Spec{{
		Name: "s1",
		Benchmark: &spec.Phase{
			Executions: intPtr(3),
			Steps:      []spec.Step{{Name: "q", Run: "SELECT 1;"}},
		},
	}}

	calls := 0
	h := newHarness(t, specs, func(*process.Command) (*process.Result, error) {
		calls++

		return &process.Result{Stdout: []byte(report(float64(calls) + 0.5))}, nil
	})

	err := h.orch.RunConnections(context.Background(), []string{
		"pgsql://a@host1/db",
		"pgsql://b@host2/db",
	})
	require.NoError(t, err)

	pgbenchCalls := h.runner.CallsTo("pgbench")
	require.Len(t, pgbenchCalls, 2)

	for i, c := range pgbenchCalls {
		idx := slices.Index(c.Args, "-t")
		require.GreaterOrEqual(t, idx, 0)
		assert.Equal(t, "3", c.Args[idx+1], "call %d", i)
	}

	assert.Contains(t, pgbenchCalls[0].Args, "host1")
	assert.Contains(t, pgbenchCalls[1].Args, "host2")

	assert.Equal(t, []reporter.Result{
		{Experiment: "s1", Run: 0, Query: 0, Value: 1.5},
		{Experiment: "s1", Run: 1, Query: 0, Value: 2.5},
	}, h.reporter.Results())
	assert.Equal(t, 1, h.reporter.FinishCount())
	assert.Equal(t, "pgsql://a@host1/db", h.reporter.Label(0))
	assert.Equal(t, "pgsql://b@host2/db", h.reporter.Label(1))
	assert.Zero(t, h.pauser.pauses)
}

func TestRunConnections_GenerateDataOnFirstTargetOnly(t *testing.T) {
	specs := []*spec.Spec{{
		Name: "s1",
		GenerateData: &spec.Phase{Steps: []spec.Step{
			{Name: "gen", Run: "INSERT INTO t VALUES (1);"},
		}},
		Prepare: &spec.Phase{Steps: []spec.Step{
			{Name: "prep", Run: "ANALYZE;"},
		}},
		Benchmark: &spec.Phase{Steps: []spec.Step{{Name: "q", Run: "SELECT 1;"}}},
	}}

	h := newHarness(t, specs, func(*process.Command) (*process.Result, error) {
		return &process.Result{Stdout: []byte(report(1))}, nil
	})

	require.NoError(t, h.orch.RunConnections(context.Background(), []string{
		"pgsql://a@host1/db",
		"pgsql://b@host2/db",
	}))

	calls := h.runner.CallsTo("pgbench")
	require.Len(t, calls, 3)

	// Data generation runs once with a single execution on the first target.
	assert.Contains(t, calls[0].Args, "host1")
	assert.Equal(t, "1", calls[0].Args[slices.Index(calls[0].Args, "-t")+1])
	assert.Equal(t, "5", calls[1].Args[slices.Index(calls[1].Args, "-t")+1])

	assert.Equal(t, []string{"pgsql://a@host1/db", "pgsql://b@host2/db"}, h.direct.targets)
}

func TestRunConnections_ReuseAndPause(t *testing.T) {
	specs := []*spec.Spec{{
		Name:      "s1",
		Benchmark: &spec.Phase{Steps: []spec.Step{{Name: "q", Run: "SELECT 1;"}}},
	}}

	h := newHarness(t, specs, func(*process.Command) (*process.Result, error) {
		return &process.Result{Stdout: []byte(report(1))}, nil
	})

	require.NoError(t, h.orch.RunConnections(context.Background(), []string{
		"pgsql://a@host1/db",
		target.ReuseDirective,
	}))

	calls := h.runner.CallsTo("pgbench")
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Args, "host1")
	assert.Equal(t, 1, h.pauser.pauses)
	assert.Equal(t, "pgsql://a@host1/db", h.reporter.Label(1))
}

func TestRunConnections_ReuseFirstIsConfigurationError(t *testing.T) {
	specs := []*spec.Spec{{
		Name:      "s1",
		Benchmark: &spec.Phase{Steps: []spec.Step{{Name: "q", Run: "SELECT 1;"}}},
	}}

	h := newHarness(t, specs, nil)

	err := h.orch.RunConnections(context.Background(), []string{
		target.ReuseDirective,
		"pgsql://a@host1/db",
	})
	require.Error(t, err)

	var cfgErr *target.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	assert.Empty(t, h.runner.Calls())
	assert.Empty(t, h.direct.targets)
	assert.Zero(t, h.reporter.FinishCount())
	assert.Zero(t, h.pauser.pauses)
}

func TestRunConnections_SkipsSpecWithoutBenchmark(t *testing.T) {
	specs := []*spec.Spec{
		{Name: "empty"},
		{Name: "s2", Benchmark: &spec.Phase{Steps: []spec.Step{{Name: "q", Run: "SELECT 1;"}}}},
	}

	h := newHarness(t, specs, func(*process.Command) (*process.Result, error) {
		return &process.Result{Stdout: []byte(report(4, 5))}, nil
	})

	require.NoError(t, h.orch.RunConnections(context.Background(), []string{
		"pgsql://a@host1/db",
		"pgsql://b@host2/db",
	}))

	results := h.reporter.Results()
	require.Len(t, results, 4)

	for _, r := range results {
		assert.Equal(t, "s2", r.Experiment)
	}

	assert.Equal(t, 1, results[1].Query)
	assert.Equal(t, 1, h.reporter.FinishCount())
}

func TestRunConnections_LoadGeneratorFailureIsFatal(t *testing.T) {
	specs := []*spec.Spec{
		{Name: "s1", Benchmark: &spec.Phase{Steps: []spec.Step{{Name: "q", Run: "SELECT 1;"}}}},
		{Name: "s2", Benchmark: &spec.Phase{Steps: []spec.Step{{Name: "q", Run: "SELECT 2;"}}}},
	}

	h := newHarness(t, specs, func(*process.Command) (*process.Result, error) {
		return &process.Result{ExitCode: 2, Stderr: []byte("connection refused")}, nil
	})

	err := h.orch.RunConnections(context.Background(), []string{
		"pgsql://a@host1/db",
		"pgsql://b@host2/db",
	})
	require.Error(t, err)

	var lgErr *pgbench.LoadGeneratorError
	require.ErrorAs(t, err, &lgErr)

	assert.Len(t, h.runner.Calls(), 1)
	assert.Empty(t, h.reporter.Results())
	assert.Zero(t, h.reporter.FinishCount())
}

func TestRunConnections_PauseError(t *testing.T) {
	specs := []*spec.Spec{{
		Name:      "s1",
		Benchmark: &spec.Phase{Steps: []spec.Step{{Name: "q", Run: "SELECT 1;"}}},
	}}

	h := newHarness(t, specs, func(*process.Command) (*process.Result, error) {
		return &process.Result{Stdout: []byte(report(1))}, nil
	})
	h.pauser.err = errors.New("input closed")

	err := h.orch.RunConnections(context.Background(), []string{
		"pgsql://a@host1/db",
		target.ReuseDirective,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pausing before target 1")
	assert.Zero(t, h.reporter.FinishCount())
}

func TestRunConnections_NoSpecs(t *testing.T) {
	h := newHarness(t, nil, nil)

	require.NoError(t, h.orch.RunConnections(context.Background(), []string{
		"pgsql://a@host1/db",
		"pgsql://b@host2/db",
	}))

	assert.Empty(t, h.runner.Calls())
	assert.Equal(t, 1, h.reporter.FinishCount())
}

func TestRunSpecs_ScriptsWrittenToWorkDir(t *testing.T) {
	specs := []*spec.Spec{{
		Name: "s1",
		Benchmark: &spec.Phase{Steps: []spec.Step{
			{Name: "copy", Run: "COPY t TO '%%WORK_DIR%%/out.csv';"},
		}},
	}}

	var script string

	h := newHarness(t, specs, func(c *process.Command) (*process.Result, error) {
		script = c.Args[slices.Index(c.Args, "-f")+1]

		return &process.Result{Stdout: []byte(report(1))}, nil
	})

	tgt, err := target.Parse("pgsql://a@host1/db")
	require.NoError(t, err)

	require.NoError(t, h.orch.RunSpecs(context.Background(), 0, tgt))

	assert.True(t, strings.HasPrefix(script, h.orch.rc.WorkDir))

	content, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Equal(t, "COPY t TO '"+h.orch.rc.WorkDir+"/out.csv';\n", string(content))
	assert.Zero(t, h.reporter.FinishCount())
}

func TestRunResolved_EmptyTargetList(t *testing.T) {
	h := newHarness(t, nil, nil)

	err := h.orch.RunResolved(context.Background(), nil)

	var cfgErr *target.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, h.reporter.FinishCount())
}
