package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/ethpandaops/pgbenchoor/pkg/config"
	"github.com/ethpandaops/pgbenchoor/pkg/reporter"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrefix(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		baseName string
		want     string
	}{
		{
			name:     "default prefix",
			prefix:   "",
			baseName: "20260301-120000_0b7f3c2e",
			want:     "results/runs/20260301-120000_0b7f3c2e",
		},
		{
			name:     "custom prefix",
			prefix:   "my-project/benchmarks",
			baseName: "20260301-120000_0b7f3c2e",
			want:     "my-project/benchmarks/runs/20260301-120000_0b7f3c2e",
		},
		{
			name:     "trailing slash stripped",
			prefix:   "my-prefix/",
			baseName: "run123",
			want:     "my-prefix/runs/run123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &s3Uploader{
				cfg: &config.S3UploadConfig{Prefix: tt.prefix},
			}
			assert.Equal(t, tt.want, u.resolvePrefix(tt.baseName))
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantPrefix string
	}{
		{name: "json file", path: "results/results.json", wantPrefix: "application/json"},
		{name: "no extension", path: "results/Makefile", wantPrefix: "application/octet-stream"},
		{name: "txt file", path: "results/notes.txt", wantPrefix: "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, detectContentType(tt.path), tt.wantPrefix)
		})
	}
}

func TestMergeIndex(t *testing.T) {
	remote := &reporter.Index{Entries: []*reporter.IndexEntry{
		{RunID: "a", Timestamp: 100, Measurements: 1},
		{RunID: "b", Timestamp: 200, Measurements: 1},
	}}
	local := &reporter.Index{Entries: []*reporter.IndexEntry{
		{RunID: "b", Timestamp: 200, Measurements: 9},
		{RunID: "c", Timestamp: 300},
	}}

	merged := MergeIndex(remote, local)
	require.Len(t, merged.Entries, 3)

	assert.Equal(t, "c", merged.Entries[0].RunID)
	assert.Equal(t, "b", merged.Entries[1].RunID)
	assert.Equal(t, 9, merged.Entries[1].Measurements)
	assert.Equal(t, "a", merged.Entries[2].RunID)
	assert.NotZero(t, merged.Generated)
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "extra.txt"), []byte("x"), 0644))

	files, err := collectFiles(dir)
	require.NoError(t, err)

	sort.Strings(files)
	assert.Equal(t, []string{filepath.Join("nested", "extra.txt"), "results.json"}, files)

	_, err = collectFiles(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

// fakeS3 is a minimal path-style S3 endpoint keeping objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	if bucket != f.bucket {
		http.Error(w, "unknown bucket", http.StatusNotFound)

		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		f.objects[key] = data
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		f.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key></Error>`, key)

			return
		}

		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
		_, _ = w.Write(data)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	seen := map[string]bool{}

	var prefixes []string

	for key := range f.objects {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}

		dir, _, found := strings.Cut(rest, "/")
		if !found || seen[dir] {
			continue
		}

		seen[dir] = true
		prefixes = append(prefixes, prefix+dir+"/")
	}

	sort.Strings(prefixes)

	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&sb, "<Name>%s</Name><Prefix>%s</Prefix><Delimiter>/</Delimiter>", f.bucket, prefix)
	fmt.Fprintf(&sb, "<KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>", len(prefixes))

	for _, p := range prefixes {
		fmt.Fprintf(&sb, "<CommonPrefixes><Prefix>%s</Prefix></CommonPrefixes>", p)
	}

	sb.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, sb.String())
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func newTestUploader(t *testing.T) (Uploader, *fakeS3) {
	t.Helper()

	fake := &fakeS3{bucket: "test-bucket", objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	log, _ := test.NewNullLogger()

	uploader, err := NewS3Uploader(log, &config.S3UploadConfig{
		Enabled:         true,
		EndpointURL:     srv.URL,
		Region:          "us-east-1",
		Bucket:          "test-bucket",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
		Parallelism:     2,
	})
	require.NoError(t, err)

	return uploader, fake
}

func TestS3Uploader_Upload(t *testing.T) {
	uploader, fake := newTestUploader(t)
	ctx := context.Background()

	runDir := filepath.Join(t.TempDir(), "20260301-120000_0b7f3c2e")
	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "extra"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "results.json"), []byte(`{"run_id":"x"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "extra", "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "extra", "b.txt"), []byte("b"), 0644))

	require.NoError(t, uploader.Preflight(ctx))
	require.NoError(t, uploader.Upload(ctx, runDir))

	assert.Equal(t, []string{
		".pgbenchoor-write-test",
		"results/runs/20260301-120000_0b7f3c2e/extra/a.txt",
		"results/runs/20260301-120000_0b7f3c2e/extra/b.txt",
		"results/runs/20260301-120000_0b7f3c2e/results.json",
	}, fake.keys())

	runs, err := uploader.RemoteRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260301-120000_0b7f3c2e"}, runs)
}

func TestS3Uploader_UploadIndex(t *testing.T) {
	uploader, fake := newTestUploader(t)
	ctx := context.Background()

	// No remote index yet.
	require.NoError(t, uploader.UploadIndex(ctx, &reporter.Index{Entries: []*reporter.IndexEntry{
		{RunID: "first", Timestamp: 100},
	}}))

	require.NoError(t, uploader.UploadIndex(ctx, &reporter.Index{Entries: []*reporter.IndexEntry{
		{RunID: "second", Timestamp: 200},
	}}))

	var stored reporter.Index
	require.NoError(t, json.Unmarshal(fake.objects["results/runs/index.json"], &stored))
	require.Len(t, stored.Entries, 2)
	assert.Equal(t, "second", stored.Entries[0].RunID)
	assert.Equal(t, "first", stored.Entries[1].RunID)
}

func TestNewS3Uploader_RequiresBucket(t *testing.T) {
	log, _ := test.NewNullLogger()

	_, err := NewS3Uploader(log, &config.S3UploadConfig{})
	require.Error(t, err)
}
