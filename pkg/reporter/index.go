package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// IndexFile is the name of the runs index below <results_dir>/runs.
const IndexFile = "index.json"

// Index contains the aggregated index of all benchmark runs.
type Index struct {
	Generated int64         `json:"generated"`
	Entries   []*IndexEntry `json:"entries"`
}

// IndexEntry contains summary information for a single benchmark run.
type IndexEntry struct {
	RunID        string     `json:"run_id"`
	Directory    string     `json:"directory"`
	Mode         string     `json:"mode"`
	Timestamp    int64      `json:"timestamp"`
	Hostname     string     `json:"hostname,omitempty"`
	Runs         []RunLabel `json:"runs"`
	Experiments  []string   `json:"experiments"`
	Measurements int        `json:"measurements"`
}

// GenerateIndex scans the results directory and builds an index from all runs.
func GenerateIndex(resultsDir string) (*Index, error) {
	runsDir := filepath.Join(resultsDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{
				Generated: time.Now().Unix(),
				Entries:   make([]*IndexEntry, 0),
			}, nil
		}

		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	indexEntries := make([]*IndexEntry, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		indexEntry, err := buildIndexEntry(filepath.Join(runsDir, entry.Name()), entry.Name())
		if err != nil {
			// Skip runs that can't be parsed (incomplete or corrupted).
			continue
		}

		indexEntries = append(indexEntries, indexEntry)
	}

	// Sort entries by timestamp, newest first.
	sort.SliceStable(indexEntries, func(i, j int) bool {
		return indexEntries[i].Timestamp > indexEntries[j].Timestamp
	})

	return &Index{
		Generated: time.Now().Unix(),
		Entries:   indexEntries,
	}, nil
}

func buildIndexEntry(runDir, name string) (*IndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(runDir, ResultsFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ResultsFile, err)
	}

	var doc RunDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ResultsFile, err)
	}

	entry := &IndexEntry{
		RunID:       doc.RunID,
		Directory:   name,
		Mode:        doc.Mode,
		Timestamp:   doc.Timestamp,
		Runs:        doc.Runs,
		Experiments: make([]string, 0, len(doc.Experiments)),
	}

	if doc.System != nil {
		entry.Hostname = doc.System.Hostname
	}

	for _, exp := range doc.Experiments {
		entry.Experiments = append(entry.Experiments, exp.Name)

		for _, run := range exp.Runs {
			entry.Measurements += len(run.LatenciesMs)
		}
	}

	return entry, nil
}

// WriteIndex writes the index to index.json in the runs subdirectory.
func WriteIndex(resultsDir string, index *Index) error {
	indexPath := filepath.Join(resultsDir, "runs", IndexFile)

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}

	if err := os.WriteFile(indexPath, data, 0644); err != nil {
		return fmt.Errorf("writing index.json: %w", err)
	}

	return nil
}

func sortRunLabels(runs []RunLabel) {
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Run < runs[j].Run
	})
}
