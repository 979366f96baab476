// Package blobstore provides content-addressed byte storage. Blobs are
// keyed by the BLAKE3 digest of their bytes; the digest is computed
// during ingestion so a stored blob can never diverge from its hash.
package blobstore

import (
	"context"
	"errors"
	"io"

	"blobdrop/internal/ticket"
)

// ErrNotFound indicates the requested hash has no local content.
var ErrNotFound = errors.New("blob not found")

// PutResult describes one persisted blob payload.
type PutResult struct {
	Hash string
	Size int64
}

// ReaderAtCloser is a random-access view over one stored blob. Each
// caller gets an independent handle, so concurrent overlapping reads
// against the same hash are safe.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// ContentStore is the capability surface the transfer pipeline needs
// from its underlying blob engine.
type ContentStore interface {
	// Put streams bytes in, computes the content hash, and stores the
	// blob under it. Identical bytes dedupe to the same hash.
	Put(ctx context.Context, r io.Reader) (PutResult, error)

	// Open returns a sequential reader over the full blob.
	Open(ctx context.Context, hash string) (io.ReadCloser, error)

	// OpenRange returns a random-access handle and the blob size.
	OpenRange(ctx context.Context, hash string) (ReaderAtCloser, int64, error)

	// Size reports the stored byte length for a hash.
	Size(ctx context.Context, hash string) (int64, error)

	// Contains reports whether the hash is locally present.
	Contains(ctx context.Context, hash string) bool

	// EnsureLocal makes the content named by the ticket locally
	// readable, fetching from the ticket's remote hints if needed.
	// This may block on network I/O.
	EnsureLocal(ctx context.Context, t ticket.Ticket) error

	// Delete removes a blob. Missing blobs are ignored.
	Delete(ctx context.Context, hash string) error
}
