package upload

import (
	"context"

	"github.com/ethpandaops/pgbenchoor/pkg/reporter"
)

// Uploader uploads local result directories to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// Upload uploads all files in localDir. The directory basename is
	// used as a sub-prefix under the configured remote prefix.
	Upload(ctx context.Context, localDir string) error

	// RemoteRuns lists the run directories already present remotely.
	RemoteRuns(ctx context.Context) ([]string, error)

	// UploadIndex merges index into the remote runs index and writes it back.
	UploadIndex(ctx context.Context, index *reporter.Index) error
}
