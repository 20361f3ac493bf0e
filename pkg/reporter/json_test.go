package reporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethpandaops/pgbenchoor/pkg/sysinfo"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readDocument(t *testing.T, path string) *RunDocument {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc RunDocument
	require.NoError(t, json.Unmarshal(data, &doc))

	return &doc
}

func TestJSON_Finish(t *testing.T) {
	log, _ := test.NewNullLogger()
	dir := t.TempDir()

	meta := RunMeta{
		ID:        "0b7f3c2e-1111-2222-3333-444455556666",
		Mode:      ModeConnections,
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		System:    &sysinfo.Info{Hostname: "bench-1", OS: "linux", Arch: "amd64"},
	}

	j := NewJSON(log, dir, meta)
	j.LabelRun(0, "pgsql://a@host1/db")
	j.LabelRun(1, "pgsql://b@host2/db")
	j.AddResult("s1", 0, 0, 1.5)
	j.AddResult("s1", 0, 1, 2.5)
	j.AddResult("s1", 1, 0, 1.0)
	j.AddResult("s1", 1, 1, 2.0)
	j.AddResult("s2", 0, 0, 9.0)

	require.NoError(t, j.Finish())

	assert.Equal(t, filepath.Join(dir, "runs", "20260301-120000_0b7f3c2e"), j.RunDir())

	doc := readDocument(t, filepath.Join(j.RunDir(), ResultsFile))
	assert.Equal(t, meta.ID, doc.RunID)
	assert.Equal(t, ModeConnections, doc.Mode)
	assert.Equal(t, meta.StartedAt.Unix(), doc.Timestamp)
	require.NotNil(t, doc.System)
	assert.Equal(t, "bench-1", doc.System.Hostname)

	assert.Equal(t, []RunLabel{
		{Run: 0, Label: "pgsql://a@host1/db"},
		{Run: 1, Label: "pgsql://b@host2/db"},
	}, doc.Runs)

	require.Len(t, doc.Experiments, 2)
	assert.Equal(t, "s1", doc.Experiments[0].Name)
	require.Len(t, doc.Experiments[0].Runs, 2)
	assert.Equal(t, []float64{1.5, 2.5}, doc.Experiments[0].Runs[0].LatenciesMs)
	assert.Equal(t, []float64{1.0, 2.0}, doc.Experiments[0].Runs[1].LatenciesMs)
	assert.Equal(t, "s2", doc.Experiments[1].Name)
	assert.Equal(t, []float64{9.0}, doc.Experiments[1].Runs[0].LatenciesMs)

	index, err := GenerateIndex(dir)
	require.NoError(t, err)
	require.Len(t, index.Entries, 1)

	entry := index.Entries[0]
	assert.Equal(t, meta.ID, entry.RunID)
	assert.Equal(t, "20260301-120000_0b7f3c2e", entry.Directory)
	assert.Equal(t, "bench-1", entry.Hostname)
	assert.Equal(t, []string{"s1", "s2"}, entry.Experiments)
	assert.Equal(t, 5, entry.Measurements)

	_, err = os.Stat(filepath.Join(dir, "runs", IndexFile))
	require.NoError(t, err)
}

func TestGenerateIndex(t *testing.T) {
	t.Run("missing runs directory", func(t *testing.T) {
		index, err := GenerateIndex(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, index.Entries)
	})

	t.Run("newest first and corrupt runs skipped", func(t *testing.T) {
		log, _ := test.NewNullLogger()
		dir := t.TempDir()

		older := NewJSON(log, dir, RunMeta{
			ID:        "aaaaaaaa-0000-0000-0000-000000000000",
			Mode:      ModeCommits,
			StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		older.AddResult("s1", 0, 0, 1)
		require.NoError(t, older.Finish())

		newer := NewJSON(log, dir, RunMeta{
			ID:        "bbbbbbbb-0000-0000-0000-000000000000",
			Mode:      ModeConnections,
			StartedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		})
		newer.AddResult("s1", 0, 0, 1)
		require.NoError(t, newer.Finish())

		corrupt := filepath.Join(dir, "runs", "corrupt")
		require.NoError(t, os.MkdirAll(corrupt, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(corrupt, ResultsFile), []byte("{"), 0644))

		index, err := GenerateIndex(dir)
		require.NoError(t, err)
		require.Len(t, index.Entries, 2)
		assert.Equal(t, "bbbbbbbb-0000-0000-0000-000000000000", index.Entries[0].RunID)
		assert.Equal(t, "aaaaaaaa-0000-0000-0000-000000000000", index.Entries[1].RunID)
	})
}

func TestJSON_DuplicateExperimentNames(t *testing.T) {
	log, _ := test.NewNullLogger()

	j := NewJSON(log, t.TempDir(), NewRunMeta(ModeConnections, nil))
	j.AddResult("dup", 0, 0, 1)
	j.AddResult("dup", 0, 1, 2)
	j.AddResult("dup", 0, 0, 3)
	j.AddResult("dup", 1, 0, 4)

	doc := j.document()
	require.Len(t, doc.Experiments, 1)

	runs := doc.Experiments[0].Runs
	require.Len(t, runs, 3)

	assert.Equal(t, 0, runs[0].Run)
	assert.Equal(t, []float64{1, 2}, runs[0].LatenciesMs)
	assert.Equal(t, 0, runs[1].Run)
	assert.Equal(t, []float64{3}, runs[1].LatenciesMs)
	assert.Equal(t, 1, runs[2].Run)
	assert.Equal(t, []float64{4}, runs[2].LatenciesMs)
}
