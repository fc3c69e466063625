// Package upload copies orchestrator logs and benchmark reports to remote
// storage.
package upload

import "context"

// Key prefixes under the configured remote prefix.
const (
	CategoryTestRuns  = "test-runs"
	CategoryBenchRuns = "bench-runs"
	CategoryManual    = "uploads"
)

// Uploader uploads a local result directory to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable
	// by writing a small marker object.
	Preflight(ctx context.Context) error

	// Upload uploads every regular file below localDir to
	// prefix/category/name and returns the key prefix used.
	Upload(ctx context.Context, localDir, category, name string) (string, error)
}
