package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// PausePrompt is shown before waiting for the operator.
const PausePrompt = "Reusing connection, please make the needed adjustments and press enter..."

// Pauser blocks until an operator confirms that the run may continue.
type Pauser interface {
	Pause(ctx context.Context) error
}

// StdinPauser prints PausePrompt and waits for a line on its reader.
type StdinPauser struct {
	in  *bufio.Reader
	out io.Writer
}

// Ensure interface compliance.
var _ Pauser = (*StdinPauser)(nil)

// NewStdinPauser creates a pauser reading confirmations from in.
func NewStdinPauser(in io.Reader, out io.Writer) *StdinPauser {
	return &StdinPauser{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Pause waits without timeout for a newline. Only cancellation of ctx or a
// closed reader ends the wait early.
func (p *StdinPauser) Pause(ctx context.Context) error {
	fmt.Fprintln(p.out, PausePrompt)

	done := make(chan error, 1)

	go func() {
		_, err := p.in.ReadString('\n')
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("waiting for confirmation: input closed")
		}

		if err != nil {
			return fmt.Errorf("waiting for confirmation: %w", err)
		}

		return nil
	}
}
