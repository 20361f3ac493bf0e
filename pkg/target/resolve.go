package target

import "fmt"

// ConfigurationError reports an invalid run configuration detected before
// any benchmark work starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// Resolved is a target list entry after reuse directives were replaced.
type Resolved struct {
	Target *Target
	// Pause is set for entries that came from the reuse directive.
	Pause bool
}

// Resolve parses every descriptor and replaces reuse directives with the
// previously resolved target. The whole list is validated before returning.
func Resolve(descriptors []string) ([]Resolved, error) {
	if len(descriptors) == 0 {
		return nil, configErrorf("no connection targets given")
	}

	resolved := make([]Resolved, 0, len(descriptors))

	for i, descriptor := range descriptors {
		if descriptor == ReuseDirective {
			if i == 0 {
				return nil, configErrorf("%s can not be used as the first connection URL", ReuseDirective)
			}

			resolved = append(resolved, Resolved{
				Target: resolved[i-1].Target,
				Pause:  true,
			})

			continue
		}

		t, err := Parse(descriptor)
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}

		resolved = append(resolved, Resolved{Target: t})
	}

	return resolved, nil
}
