package spec

import (
	"errors"
	"fmt"
)

// ErrNoSpecs is returned by Find when no file matches the include patterns.
// Callers treat it as an empty spec set rather than a failure.
var ErrNoSpecs = errors.New("no benchmark specs found")

// ParseError reports a benchmark file that could not be turned into a Spec.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing spec %s: %s: %v", e.Path, e.Reason, e.Err)
	}

	return fmt.Sprintf("parsing spec %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
