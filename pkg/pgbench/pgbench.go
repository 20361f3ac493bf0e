package pgbench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ethpandaops/pgbenchoor/pkg/process"
	"github.com/ethpandaops/pgbenchoor/pkg/spec"
	"github.com/ethpandaops/pgbenchoor/pkg/target"
	"github.com/sirupsen/logrus"
)

// DefaultBinary is the load generator executable looked up on PATH.
const DefaultBinary = "pgbench"

// LoadGeneratorError reports a pgbench run that exited unsuccessfully.
type LoadGeneratorError struct {
	Target   string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *LoadGeneratorError) Error() string {
	return fmt.Sprintf("pgbench against %s exited with status %d: %s",
		e.Target, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Config for the load generator.
type Config struct {
	// Binary is the executable name or path. Defaults to DefaultBinary.
	Binary string
	// Output receives the tool's output while it runs, if set.
	Output io.Writer
}

// Generator runs step lists through pgbench and returns per-statement latencies.
type Generator struct {
	log    logrus.FieldLogger
	cfg    *Config
	runner process.Runner
	binary string
}

// NewGenerator creates a generator. Start must be called before Run.
func NewGenerator(log logrus.FieldLogger, cfg *Config, runner process.Runner) *Generator {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}

	return &Generator{
		log:    log.WithField("component", "pgbench"),
		cfg:    cfg,
		runner: runner,
	}
}

// Start resolves the pgbench executable so a missing binary fails before
// any benchmark work begins.
func (g *Generator) Start(_ context.Context) error {
	path, err := g.runner.LookPath(g.cfg.Binary)
	if err != nil {
		return fmt.Errorf("resolving load generator: %w", err)
	}

	g.binary = path
	g.log.WithField("binary", path).Debug("Using pgbench binary")

	return nil
}

// BuildArgs returns the pgbench arguments for running script executions times
// against tgt. The password is never part of the arguments.
func BuildArgs(tgt *target.Target, executions int, script string) []string {
	args := []string{
		// Per-statement latencies.
		"-r",
		// The default pgbench tables do not exist, skip their vacuum.
		"--no-vacuum",
		"-t", strconv.Itoa(executions),
	}

	if tgt.User != "" {
		args = append(args, "-U", tgt.User)
	}

	if tgt.Host != "" {
		args = append(args, "-h", tgt.Host)
	}

	if tgt.Port != 0 {
		args = append(args, "-p", strconv.Itoa(tgt.Port))
	}

	return append(args, "-f", script, tgt.Database)
}

// Run writes the substituted steps into one script below workDir, runs it
// executions times and returns the parsed statement latencies.
func (g *Generator) Run(
	ctx context.Context,
	tgt *target.Target,
	steps []spec.Step,
	executions int,
	workDir string,
) ([]float64, error) {
	if g.binary == "" {
		return nil, fmt.Errorf("pgbench generator not started")
	}

	script, err := writeScript(steps, workDir)
	if err != nil {
		return nil, err
	}

	cmd := &process.Command{
		Name:   g.binary,
		Args:   BuildArgs(tgt, executions, script),
		Stdin:  tgt.Password,
		Output: g.cfg.Output,
	}

	log := g.log.WithFields(logrus.Fields{
		"target":     tgt.Redacted(),
		"script":     script,
		"executions": executions,
	})
	log.WithField("command", cmd.String()).Debug("Executing pgbench")

	result, err := g.runner.Run(ctx, cmd)
	if err != nil {
		var exitErr *process.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running pgbench: %w", err)
		}

		log.WithField("exit_code", exitErr.ExitCode).Error("pgbench returned non-zero exit code")
		log.Errorf("Stdout %s", strings.TrimSpace(string(exitErr.Stdout)))
		log.Errorf("Stderr %s", strings.TrimSpace(string(exitErr.Stderr)))

		return nil, &LoadGeneratorError{
			Target:   tgt.Redacted(),
			ExitCode: exitErr.ExitCode,
			Stdout:   string(exitErr.Stdout),
			Stderr:   string(exitErr.Stderr),
		}
	}

	report := strings.TrimSpace(string(result.Stdout))
	log.WithField("report", report).Debug("pgbench finished")

	return ParseReport(report)
}

// writeScript stores the step script in a fresh file inside workDir.
func writeScript(steps []spec.Step, workDir string) (string, error) {
	f, err := os.CreateTemp(workDir, "script-*.sql")
	if err != nil {
		return "", fmt.Errorf("creating pgbench script: %w", err)
	}

	if _, err := f.WriteString(spec.Script(steps, workDir)); err != nil {
		_ = f.Close()

		return "", fmt.Errorf("writing pgbench script: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing pgbench script: %w", err)
	}

	return f.Name(), nil
}
