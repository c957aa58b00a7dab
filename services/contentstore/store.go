// Package contentstore talks to a versioned file store keyed by path.
//
// Every backend hands out an opaque revision token with each read and
// expects the same token back on the next write to that path. A write
// without a token is a create and fails if the file already exists; a
// write with a stale token fails with ErrConflict. Callers must fetch a
// fresh token before every write; nothing here caches revisions.
package contentstore

import (
	"context"
)

// File is a stored file together with the revision it was read at
type File struct {
	Path     string
	Content  []byte
	Revision string
}

// WriteRequest describes a create-or-update of a single path.
// An empty Revision means "create"; otherwise the write only succeeds
// if the stored revision still equals Revision.
type WriteRequest struct {
	Path     string
	Content  []byte
	Message  string
	Revision string
}

// Store is the contract every backend implements
type Store interface {
	// Name identifies the backend in logs
	Name() string

	// Provision creates the backing repository or bucket if it does not
	// exist yet. Calling it against an existing store is not an error.
	Provision(ctx context.Context) error

	// Exists returns the current revision of path. A missing file is
	// reported as found == false with a nil error.
	Exists(ctx context.Context, path string) (revision string, found bool, err error)

	// Read returns the content and revision of path, or an error
	// matching ErrNotFound.
	Read(ctx context.Context, path string) (*File, error)

	// Write creates or conditionally updates path and returns the new revision
	Write(ctx context.Context, req WriteRequest) (string, error)

	// Location returns a human-viewable reference for path
	Location(path string) string
}
