package stream

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"blobdrop/internal/blobstore"
)

const (
	// Preview byte limits. Caller-supplied limits are clamped into
	// this window regardless of input.
	PreviewMinBytes = 1 * 1024
	PreviewMaxBytes = 2 * 1024 * 1024
)

// textExtensions mark filenames treated as text even when the mime
// type does not say so (e.g. .md often arrives as octet-stream).
var textExtensions = map[string]struct{}{
	".md": {}, ".markdown": {}, ".txt": {}, ".log": {},
	".json": {}, ".js": {}, ".ts": {}, ".css": {}, ".csv": {},
	".xml": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {},
	".html": {}, ".htm": {}, ".sh": {},
	".go": {}, ".py": {}, ".rs": {}, ".c": {}, ".h": {},
}

// Preview is a bounded sample of the beginning of a blob.
type Preview struct {
	Bytes    []byte
	MimeType string
	IsText   bool
}

// ExtractPreview reads at most limit bytes from offset 0 of the blob
// and classifies the content as text or binary. Binary previews are
// expected to be transported base64-encoded by the caller.
func ExtractPreview(ctx context.Context, store blobstore.ContentStore, hash, name, mimeType string, limit int64) (*Preview, error) {
	if limit < PreviewMinBytes {
		limit = PreviewMinBytes
	}
	if limit > PreviewMaxBytes {
		limit = PreviewMaxBytes
	}

	r, err := OpenRange(ctx, store, hash, &ByteRange{Start: 0, End: limit - 1})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data := make([]byte, 0, r.Length())
	for {
		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}

	return &Preview{
		Bytes:    data,
		MimeType: mimeType,
		IsText:   IsTextContent(mimeType, name),
	}, nil
}

// IsTextContent classifies by mime prefix first, filename extension
// second. Anything else is binary: arbitrary bytes are not valid text
// under any fixed encoding.
func IsTextContent(mimeType, name string) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "text/") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	_, ok := textExtensions[ext]
	return ok
}
