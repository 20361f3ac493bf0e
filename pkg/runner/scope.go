package runner

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Scope owns a temporary directory for one top-level run. Close removes it
// and is safe to call more than once.
type Scope struct {
	Dir string

	log    logrus.FieldLogger
	closed bool
}

// NewScope creates a fresh temporary directory named with prefix.
func NewScope(log logrus.FieldLogger, prefix string) (*Scope, error) {
	dir, err := os.MkdirTemp("", prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}

	log = log.WithField("component", "scope")
	log.WithField("dir", dir).Debug("Created work directory")

	return &Scope{Dir: dir, log: log}, nil
}

// Close removes the directory and everything in it.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("removing work directory %s: %w", s.Dir, err)
	}

	s.log.WithField("dir", s.Dir).Debug("Removed work directory")

	return nil
}
