package process

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeRunner is a Runner double that records invocations and replies with
// scripted results instead of spawning processes.
type FakeRunner struct {
	mu    sync.Mutex
	calls []Command
	// Handler, when set, produces the result for each invocation.
	Handler func(cmd *Command) (*Result, error)
	// Paths maps executable names to LookPath results. Unknown names resolve
	// to "/usr/bin/<name>".
	Paths map[string]string
	// Missing lists executables LookPath reports as not found.
	Missing map[string]bool
}

// Ensure interface compliance.
var _ Runner = (*FakeRunner)(nil)

// Run implements Runner.
func (f *FakeRunner) Run(_ context.Context, cmd *Command) (*Result, error) {
	f.mu.Lock()
	c := *cmd
	c.Args = append([]string(nil), cmd.Args...)
	c.Env = append([]string(nil), cmd.Env...)
	f.calls = append(f.calls, c)
	handler := f.Handler
	f.mu.Unlock()

	if handler == nil {
		return &Result{}, nil
	}

	result, err := handler(&c)
	if result == nil {
		result = &Result{}
	}

	if err == nil && result.ExitCode != 0 {
		err = &ExitError{
			Command:  c.Name,
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
		}
	}

	return result, err
}

// LookPath implements Runner.
func (f *FakeRunner) LookPath(name string) (string, error) {
	if f.Missing[name] {
		return "", fmt.Errorf("locating %s: executable file not found in $PATH", name)
	}

	if path, ok := f.Paths[name]; ok {
		return path, nil
	}

	return "/usr/bin/" + name, nil
}

// Calls returns a copy of all recorded invocations in order.
func (f *FakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Command(nil), f.calls...)
}

// CommandLines renders every recorded invocation as "name arg1 arg2 ...".
func (f *FakeRunner) CommandLines() []string {
	calls := f.Calls()
	lines := make([]string, 0, len(calls))

	for i := range calls {
		lines = append(lines, calls[i].String())
	}

	return lines
}

// CallsTo returns the invocations whose command name ends with suffix.
func (f *FakeRunner) CallsTo(suffix string) []Command {
	var matched []Command

	for _, c := range f.Calls() {
		if strings.HasSuffix(c.Name, suffix) {
			matched = append(matched, c)
		}
	}

	return matched
}
