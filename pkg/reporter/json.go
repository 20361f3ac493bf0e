package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethpandaops/pgbenchoor/pkg/sysinfo"
	"github.com/sirupsen/logrus"
)

// ResultsFile is the name of the per-run results document.
const ResultsFile = "results.json"

// RunDocument is the content of results.json.
type RunDocument struct {
	RunID       string              `json:"run_id"`
	Mode        string              `json:"mode"`
	Timestamp   int64               `json:"timestamp"`
	FinishedAt  int64               `json:"finished_at"`
	System      *sysinfo.Info       `json:"system,omitempty"`
	Runs        []RunLabel          `json:"runs"`
	Experiments []*ExperimentResult `json:"experiments"`
}

// RunLabel names a run ordinal.
type RunLabel struct {
	Run   int    `json:"run"`
	Label string `json:"label,omitempty"`
}

// ExperimentResult holds the latencies of one experiment per run.
type ExperimentResult struct {
	Name string          `json:"name"`
	Runs []*RunLatencies `json:"runs"`
}

// RunLatencies holds the latencies of one spec execution in query order;
// the query index is the position in LatenciesMs.
type RunLatencies struct {
	Run         int       `json:"run"`
	LatenciesMs []float64 `json:"latencies_ms"`
}

// JSON writes every result of a run into <results_dir>/runs/<run>/results.json
// and refreshes the runs index.
type JSON struct {
	log        logrus.FieldLogger
	resultsDir string
	meta       RunMeta
	set        *resultSet
	now        func() time.Time
}

// Ensure interface compliance.
var (
	_ Reporter   = (*JSON)(nil)
	_ RunLabeler = (*JSON)(nil)
)

// NewJSON creates a JSON reporter writing below resultsDir.
func NewJSON(log logrus.FieldLogger, resultsDir string, meta RunMeta) *JSON {
	return &JSON{
		log:        log.WithField("component", "json-reporter"),
		resultsDir: resultsDir,
		meta:       meta,
		set:        newResultSet(),
		now:        time.Now,
	}
}

// RunDir returns the directory results.json is written to.
func (j *JSON) RunDir() string {
	id := j.meta.ID
	if len(id) > 8 {
		id = id[:8]
	}

	name := fmt.Sprintf("%s_%s", j.meta.StartedAt.Format("20060102-150405"), id)

	return filepath.Join(j.resultsDir, "runs", name)
}

// AddResult implements Reporter.
func (j *JSON) AddResult(experiment string, run, query int, value float64) {
	j.set.add(Result{Experiment: experiment, Run: run, Query: query, Value: value})
}

// LabelRun implements RunLabeler.
func (j *JSON) LabelRun(run int, label string) {
	j.set.labels[run] = label
}

// Finish implements Reporter.
func (j *JSON) Finish() error {
	runDir := j.RunDir()

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	data, err := json.MarshalIndent(j.document(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}

	resultsPath := filepath.Join(runDir, ResultsFile)
	if err := os.WriteFile(resultsPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", ResultsFile, err)
	}

	index, err := GenerateIndex(j.resultsDir)
	if err != nil {
		return fmt.Errorf("generating index: %w", err)
	}

	if err := WriteIndex(j.resultsDir, index); err != nil {
		return err
	}

	j.log.WithFields(logrus.Fields{
		"path":    resultsPath,
		"results": j.set.results,
	}).Info("Results written")

	return nil
}

func (j *JSON) document() *RunDocument {
	doc := &RunDocument{
		RunID:       j.meta.ID,
		Mode:        j.meta.Mode,
		Timestamp:   j.meta.StartedAt.Unix(),
		FinishedAt:  j.now().Unix(),
		System:      j.meta.System,
		Runs:        make([]RunLabel, 0, len(j.set.labels)),
		Experiments: make([]*ExperimentResult, 0, len(j.set.order)),
	}

	seenRuns := make(map[int]struct{}, len(j.set.labels))
	addRun := func(run int) {
		if _, ok := seenRuns[run]; ok {
			return
		}

		seenRuns[run] = struct{}{}
		doc.Runs = append(doc.Runs, RunLabel{Run: run, Label: j.set.label(run)})
	}

	for _, name := range j.set.order {
		exp := &ExperimentResult{Name: name}

		var current *RunLatencies

		for _, r := range j.set.byName[name] {
			addRun(r.Run)

			// Specs sharing a name get one entry each, split where the query index restarts.
			if current == nil || current.Run != r.Run || r.Query < len(current.LatenciesMs) {
				current = &RunLatencies{Run: r.Run}
				exp.Runs = append(exp.Runs, current)
			}

			current.LatenciesMs = append(current.LatenciesMs, r.Value)
		}

		doc.Experiments = append(doc.Experiments, exp)
	}

	// Labeled runs without results still show up.
	for run := range j.set.labels {
		addRun(run)
	}

	sortRunLabels(doc.Runs)

	return doc
}
