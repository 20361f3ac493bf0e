package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner starts external processes and waits for them to exit.
type Runner interface {
	// Run executes cmd and blocks until it exits. A non-zero exit status is
	// returned as *ExitError; the result is populated in both cases.
	Run(ctx context.Context, cmd *Command) (*Result, error)

	// LookPath resolves an executable on the search path.
	LookPath(name string) (string, error)
}

// Command describes a single process invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// Stdin is written to the process once at start.
	Stdin string
	// Output additionally receives stdout and stderr while the process runs.
	Output io.Writer
}

// String renders the command line for logs. Stdin is never included.
func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// ExitError is returned when a process exits with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
}

// NewRunner creates a Runner backed by os/exec.
func NewRunner(log logrus.FieldLogger) Runner {
	return &execRunner{
		log: log.WithField("component", "process"),
	}
}

type execRunner struct {
	log logrus.FieldLogger
}

// Ensure interface compliance.
var _ Runner = (*execRunner)(nil)

// Run implements Runner.
func (r *execRunner) Run(ctx context.Context, c *Command) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	// The process always gets a stdin pipe so tools prompting for input see
	// EOF instead of blocking on the terminal.
	cmd.Stdin = strings.NewReader(c.Stdin)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if c.Output != nil {
		cmd.Stdout = io.MultiWriter(&stdout, c.Output)
		cmd.Stderr = io.MultiWriter(&stderr, c.Output)
	}

	r.log.WithFields(logrus.Fields{
		"command": c.String(),
		"dir":     c.Dir,
	}).Debug("Running command")

	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, &ExitError{
				Command:  c.Name,
				ExitCode: exitErr.ExitCode(),
				Stdout:   result.Stdout,
				Stderr:   result.Stderr,
			}
		}

		return result, fmt.Errorf("running %s: %w", c.Name, err)
	}

	return result, nil
}

// LookPath implements Runner.
func (r *execRunner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locating %s: %w", name, err)
	}

	return path, nil
}
