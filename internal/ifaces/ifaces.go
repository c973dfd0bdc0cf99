// Package ifaces declares the small interfaces components depend on instead
// of concrete types, so the query cache/router (and everything built on top
// of it) can be exercised in tests against fakes. This mirrors the teacher
// repo's own internal/interfaces package, which exists for exactly the same
// reason: decoupling the parser/manager layers from concrete readers.
package ifaces

import (
	"context"

	"github.com/halsted/mftsearch/internal/mftypes"
)

// QueryHandle is the subset of *query.Index the cache/router needs.
type QueryHandle interface {
	Search(query string, limit int) ([]mftypes.FileID, error)
	NeedsReload() bool
	Version() uint64
	Close() error
}

// PathReaderHandle is the subset of *pathreader.Reader the cache/router
// needs.
type PathReaderHandle interface {
	Get(id mftypes.FileID) (string, error)
	GetMany(ids []mftypes.FileID) map[mftypes.FileID]string
	Close() error
}

// Opener constructs a QueryHandle/PathReaderHandle pair for one volume
// letter. Production code is backed by query.Open/pathreader.Open; tests can
// substitute a fake.
type Opener interface {
	Open(letter byte) (QueryHandle, PathReaderHandle, error)
}

// Clock abstracts time so cache-expiration strategies (should they be added
// later, per spec's open design note) are testable without sleeping.
type Clock interface {
	Now() int64
}

// Engine is the core API surface exposed to external collaborators (the
// launcher UI, plugins, and any other process embedding this module).
// Callers must only reach the index through this interface; they must never
// read or mutate artifact files directly, so that version-driven reloads are
// honored.
type Engine interface {
	Search(ctx context.Context, query string, limit int) ([]mftypes.SearchHit, error)
	Warmup(drives []byte)
	RebuildAll(ctx context.Context, background bool) error
	StartMonitoring(ctx context.Context, drive byte) error
	StartMerger(ctx context.Context, drive byte) error
}
