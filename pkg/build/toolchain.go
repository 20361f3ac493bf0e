package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ethpandaops/pgbenchoor/pkg/process"
	"github.com/sirupsen/logrus"
)

// Toolchain clones, builds and provisions the system under test. Every
// operation blocks until done and fails as a whole.
type Toolchain interface {
	Clone(ctx context.Context, url, dest string) error
	Checkout(ctx context.Context, repoDir, commit string) error
	Build(ctx context.Context, repoDir string) error
	InitInstance(ctx context.Context, dataDir string) error
	Start(ctx context.Context, dataDir string) error
	Stop(ctx context.Context, dataDir string) error
	CreateDatabase(ctx context.Context, name string) error
}

// ToolchainConfig configures the process-backed toolchain.
type ToolchainConfig struct {
	// PGSource is the PostgreSQL source tree the extension builds against.
	PGSource string
	// PGPath is the PostgreSQL installation; binaries live in PGPath/bin.
	PGPath string
	// WorkDir is the working directory of commands not tied to the repository.
	WorkDir string
	// Output receives tool output while it runs, if set.
	Output io.Writer
}

// BootstrapArgs returns the fixed configuration passed to ./bootstrap.
func BootstrapArgs(pgSource, pgPath string) []string {
	return []string{
		"-DCMAKE_BUILD_TYPE=Debug",
		"-DPG_SOURCE_DIR=" + pgSource,
		"-DPG_PATH=" + pgPath,
		"-DREQUIRE_ALL_TESTS=ON",
		"-DLINTER_STRICT=ON",
		"-DASSERTIONS=ON",
		"-DCMAKE_EXPORT_COMPILE_COMMANDS=YES",
		"-DSEND_TELEMETRY_DEFAULT=NO",
	}
}

// ProcessToolchain implements Toolchain with git, make and the PostgreSQL
// binaries of PGPath.
type ProcessToolchain struct {
	log     logrus.FieldLogger
	cfg     *ToolchainConfig
	runner  process.Runner
	gitBin  string
	makeBin string
}

// Ensure interface compliance.
var _ Toolchain = (*ProcessToolchain)(nil)

// NewToolchain creates a toolchain. Resolve must be called before use.
func NewToolchain(log logrus.FieldLogger, cfg *ToolchainConfig, runner process.Runner) *ProcessToolchain {
	return &ProcessToolchain{
		log:    log.WithField("component", "toolchain"),
		cfg:    cfg,
		runner: runner,
	}
}

// Resolve locates git and make on the search path.
func (t *ProcessToolchain) Resolve() error {
	git, err := t.runner.LookPath("git")
	if err != nil {
		return fmt.Errorf("resolving git: %w", err)
	}

	mk, err := t.runner.LookPath("make")
	if err != nil {
		return fmt.Errorf("resolving make: %w", err)
	}

	t.gitBin = git
	t.makeBin = mk

	return nil
}

func (t *ProcessToolchain) pgBinary(name string) string {
	return filepath.Join(t.cfg.PGPath, "bin", name)
}

// Clone implements Toolchain.
func (t *ProcessToolchain) Clone(ctx context.Context, url, dest string) error {
	t.log.WithField("repository", url).Info("Cloning repository")

	return t.run(ctx, "clone", &process.Command{
		Name: t.gitBin,
		Args: []string{"clone", url, filepath.Base(dest)},
		Dir:  filepath.Dir(dest),
	})
}

// Checkout implements Toolchain.
func (t *ProcessToolchain) Checkout(ctx context.Context, repoDir, commit string) error {
	t.log.WithField("commit", commit).Info("Checking out commit")

	return t.run(ctx, "checkout", &process.Command{
		Name: t.gitBin,
		Args: []string{"checkout", commit},
		Dir:  repoDir,
	})
}

// Build implements Toolchain. Previous build output is always replaced.
func (t *ProcessToolchain) Build(ctx context.Context, repoDir string) error {
	t.log.WithField("repo_dir", repoDir).Info("Building")

	if err := t.run(ctx, "bootstrap", &process.Command{
		Name: "./bootstrap",
		Args: BootstrapArgs(t.cfg.PGSource, t.cfg.PGPath),
		Dir:  repoDir,
		Env:  []string{"BUILD_FORCE_REMOVE=true"},
	}); err != nil {
		return err
	}

	return t.run(ctx, "make", &process.Command{
		Name: t.makeBin,
		Dir:  filepath.Join(repoDir, "build"),
	})
}

// InitInstance implements Toolchain.
func (t *ProcessToolchain) InitInstance(ctx context.Context, dataDir string) error {
	return t.run(ctx, "initdb", &process.Command{
		Name: t.pgBinary("initdb"),
		Args: []string{"-D", dataDir},
		Dir:  t.cfg.WorkDir,
	})
}

// Start implements Toolchain.
func (t *ProcessToolchain) Start(ctx context.Context, dataDir string) error {
	t.log.WithField("data_dir", dataDir).Info("Starting instance")

	return t.pgCtl(ctx, dataDir, "start")
}

// Stop implements Toolchain.
func (t *ProcessToolchain) Stop(ctx context.Context, dataDir string) error {
	t.log.WithField("data_dir", dataDir).Info("Stopping instance")

	return t.pgCtl(ctx, dataDir, "stop")
}

func (t *ProcessToolchain) pgCtl(ctx context.Context, dataDir, action string) error {
	return t.run(ctx, "pg_ctl "+action, &process.Command{
		Name: t.pgBinary("pg_ctl"),
		Args: []string{"-D", dataDir, "-l", filepath.Join(dataDir, "log"), action},
		Dir:  t.cfg.WorkDir,
	})
}

// CreateDatabase implements Toolchain.
func (t *ProcessToolchain) CreateDatabase(ctx context.Context, name string) error {
	return t.run(ctx, "createdb", &process.Command{
		Name: t.pgBinary("createdb"),
		Args: []string{name},
		Dir:  t.cfg.WorkDir,
	})
}

func (t *ProcessToolchain) run(ctx context.Context, step string, cmd *process.Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("%s: toolchain not resolved", step)
	}

	cmd.Output = t.cfg.Output

	_, err := t.runner.Run(ctx, cmd)
	if err == nil {
		return nil
	}

	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		log := t.log.WithFields(logrus.Fields{
			"step":      step,
			"exit_code": exitErr.ExitCode,
		})
		log.Error("Command failed")

		if stderr := strings.TrimSpace(string(exitErr.Stderr)); stderr != "" {
			log.Errorf("Stderr %s", stderr)
		}
	}

	return fmt.Errorf("%s: %w", step, err)
}
