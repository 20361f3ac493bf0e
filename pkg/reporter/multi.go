package reporter

import "errors"

// Multi fans results out to several reporters.
type Multi []Reporter

// Ensure interface compliance.
var (
	_ Reporter   = Multi(nil)
	_ RunLabeler = Multi(nil)
)

// AddResult implements Reporter.
func (m Multi) AddResult(experiment string, run, query int, value float64) {
	for _, r := range m {
		r.AddResult(experiment, run, query, value)
	}
}

// LabelRun forwards the label to every reporter that supports labels.
func (m Multi) LabelRun(run int, label string) {
	for _, r := range m {
		if l, ok := r.(RunLabeler); ok {
			l.LabelRun(run, label)
		}
	}
}

// Finish finishes every reporter, even when an earlier one fails.
func (m Multi) Finish() error {
	var errs []error

	for _, r := range m {
		if err := r.Finish(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
