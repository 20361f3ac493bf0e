package process

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// PrefixWriter writes complete lines to the underlying writer, each prefixed
// with a fixed tag. It is safe for concurrent use by the stdout and stderr
// copiers of a single process.
type PrefixWriter struct {
	mu     sync.Mutex
	prefix string
	writer io.Writer
	buf    []byte
}

// NewPrefixWriter returns a writer tagging lines with "[tag] ".
func NewPrefixWriter(tag string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{
		prefix: fmt.Sprintf("[%s] ", tag),
		writer: w,
	}
}

// Write implements io.Writer. Partial lines are buffered until a newline or Flush.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)

	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx == -1 {
			break
		}

		line := w.buf[:idx+1]
		w.buf = w.buf[idx+1:]

		if _, err := fmt.Fprintf(w.writer, "%s%s", w.prefix, line); err != nil {
			return len(p), err
		}
	}

	return len(p), nil
}

// Flush writes a trailing partial line, if any.
func (w *PrefixWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) == 0 {
		return nil
	}

	_, err := fmt.Fprintf(w.writer, "%s%s\n", w.prefix, w.buf)
	w.buf = nil

	return err
}
