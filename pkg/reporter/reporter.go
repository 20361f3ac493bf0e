// Package reporter collects benchmark latencies and publishes them once a
// run completes.
package reporter

import (
	"time"

	"github.com/ethpandaops/pgbenchoor/pkg/sysinfo"
	"github.com/google/uuid"
)

// Reporter receives one measurement per benchmarked statement. Finish is
// called exactly once after every target has been processed.
type Reporter interface {
	AddResult(experiment string, run, query int, value float64)
	Finish() error
}

// RunLabeler is implemented by reporters that can name a run, such as the
// redacted target or commit it measured.
type RunLabeler interface {
	LabelRun(run int, label string)
}

// Result is a single measurement.
type Result struct {
	Experiment string  `json:"experiment"`
	Run        int     `json:"run"`
	Query      int     `json:"query"`
	Value      float64 `json:"value"`
}

// resultSet keeps results ordered by experiment arrival, then run and query.
type resultSet struct {
	order   []string
	byName  map[string][]Result
	labels  map[int]string
	results int
}

func newResultSet() *resultSet {
	return &resultSet{
		byName: make(map[string][]Result, 8),
		labels: make(map[int]string, 2),
	}
}

func (s *resultSet) add(r Result) {
	if _, ok := s.byName[r.Experiment]; !ok {
		s.order = append(s.order, r.Experiment)
	}

	s.byName[r.Experiment] = append(s.byName[r.Experiment], r)
	s.results++
}

func (s *resultSet) label(run int) string {
	return s.labels[run]
}

// Run modes recorded in run metadata.
const (
	ModeConnections = "connections"
	ModeCommits     = "commits"
)

// RunMeta identifies one top-level benchmark run across reporters.
type RunMeta struct {
	ID        string
	Mode      string
	StartedAt time.Time
	System    *sysinfo.Info
}

// NewRunMeta creates metadata with a fresh run id.
func NewRunMeta(mode string, system *sysinfo.Info) RunMeta {
	return RunMeta{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
		System:    system,
	}
}

func (m RunMeta) hostname() string {
	if m.System == nil {
		return ""
	}

	return m.System.Hostname
}
