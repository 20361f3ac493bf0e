package reporter

import "sync"

// Memory records everything it receives. It is used by tests and by callers
// that post-process results themselves.
type Memory struct {
	mu       sync.Mutex
	results  []Result
	labels   map[int]string
	finished int
}

// Ensure interface compliance.
var (
	_ Reporter   = (*Memory)(nil)
	_ RunLabeler = (*Memory)(nil)
)

// NewMemory creates an empty in-memory reporter.
func NewMemory() *Memory {
	return &Memory{labels: make(map[int]string, 2)}
}

// AddResult implements Reporter.
func (m *Memory) AddResult(experiment string, run, query int, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, Result{
		Experiment: experiment,
		Run:        run,
		Query:      query,
		Value:      value,
	})
}

// LabelRun implements RunLabeler.
func (m *Memory) LabelRun(run int, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.labels[run] = label
}

// Finish implements Reporter.
func (m *Memory) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.finished++

	return nil
}

// Results returns a copy of the recorded results in arrival order.
func (m *Memory) Results() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Result, len(m.results))
	copy(out, m.results)

	return out
}

// Label returns the label recorded for run.
func (m *Memory) Label(run int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.labels[run]
}

// FinishCount returns how often Finish was called.
func (m *Memory) FinishCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.finished
}
