package blobstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"blobdrop/internal/ticket"
)

const casAlgorithmPrefix = "blake3"

// LocalCAS stores blob bytes in a local content-addressed tree, sharded
// by digest prefix. Writes stage into a tmp directory and rename into
// place, so a partially ingested blob is never visible under its hash.
type LocalCAS struct {
	root string
}

// NewLocalCAS creates a local CAS rooted at root.
func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local cas root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs}, nil
}

// Put streams bytes, computes BLAKE3, and stores content by digest.
func (c *LocalCAS) Put(ctx context.Context, r io.Reader) (PutResult, error) {
	var zero PutResult
	if c == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(filepath.Join(c.root, "tmp"), "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	h := blake3.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		cleanup()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, err
	}

	digest := hex.EncodeToString(h.Sum(nil))
	dst := c.pathFromDigest(digest)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		cleanup()
		return zero, err
	}

	if _, err := os.Stat(dst); err == nil {
		_ = os.Remove(tmpPath)
		return PutResult{Hash: digest, Size: n}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		cleanup()
		return zero, err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		// A concurrent Put of the same bytes may have won the rename.
		if _, statErr := os.Stat(dst); statErr == nil {
			_ = os.Remove(tmpPath)
			return PutResult{Hash: digest, Size: n}, nil
		}
		cleanup()
		return zero, err
	}

	return PutResult{Hash: digest, Size: n}, nil
}

// PutPath ingests a file from disk.
func (c *LocalCAS) PutPath(ctx context.Context, path string) (PutResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return PutResult{}, err
	}
	defer f.Close()
	return c.Put(ctx, f)
}

// Open returns a sequential reader over the blob for hash.
func (c *LocalCAS) Open(ctx context.Context, hash string) (io.ReadCloser, error) {
	path, err := c.lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// OpenRange returns an independent random-access handle plus the blob
// size. Callers may hold many handles against the same hash at once.
func (c *LocalCAS) OpenRange(ctx context.Context, hash string) (ReaderAtCloser, int64, error) {
	path, err := c.lookup(ctx, hash)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Size reports the stored byte length for hash.
func (c *LocalCAS) Size(ctx context.Context, hash string) (int64, error) {
	path, err := c.lookup(ctx, hash)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Contains reports whether hash is locally present.
func (c *LocalCAS) Contains(ctx context.Context, hash string) bool {
	path, err := c.lookup(ctx, hash)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// EnsureLocal on a bare local CAS succeeds only for content already
// present; remote fetch is layered on by FetchingStore.
func (c *LocalCAS) EnsureLocal(ctx context.Context, t ticket.Ticket) error {
	if c.Contains(ctx, t.Hash) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, t.Hash)
}

// Delete removes a blob object. Missing files are ignored.
func (c *LocalCAS) Delete(ctx context.Context, hash string) error {
	path, err := c.lookup(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (c *LocalCAS) lookup(ctx context.Context, hash string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) < 4 {
		return "", fmt.Errorf("invalid blob hash %q", hash)
	}
	for _, r := range hash {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("invalid blob hash %q", hash)
		}
	}
	path := c.pathFromDigest(hash)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return path, nil
}

func (c *LocalCAS) pathFromDigest(digest string) string {
	return filepath.Join(c.root, casAlgorithmPrefix, digest[0:2], digest[2:4], digest)
}
