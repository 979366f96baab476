package models

import (
	"fmt"
	"strings"
	"time"
)

// Compression identifies the transport encoding of stored blob bytes.
type Compression string

const (
	CompressionGzip Compression = "gzip"
	CompressionNone Compression = "none"
)

var validCompressions = map[Compression]struct{}{
	CompressionGzip: {},
	CompressionNone: {},
}

// ParseCompression parses a compression tag, defaulting empty to none.
func ParseCompression(raw string) (Compression, error) {
	value := Compression(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return CompressionNone, nil
	}
	if _, ok := validCompressions[value]; !ok {
		return "", fmt.Errorf("invalid compression tag: %s", value)
	}
	return value, nil
}

// BlobRecord is the immutable metadata row published for one shared blob.
// It is created exactly once at share time and never mutated; Size is the
// original (pre-compression) length while CompressedSize is the transport
// length actually stored.
type BlobRecord struct {
	Hash           string      `json:"hash"`
	Name           string      `json:"name"`
	Size           int64       `json:"size"`
	CompressedSize int64       `json:"compressed_size"`
	MimeType       string      `json:"mime_type"`
	OriginalType   string      `json:"original_type"`
	Compression    Compression `json:"compression"`
	Owner          string      `json:"owner,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	Ticket         string      `json:"ticket"`
}

// Validate checks record invariants before it is persisted.
func (r *BlobRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("record is required")
	}
	if strings.TrimSpace(r.Hash) == "" {
		return fmt.Errorf("record hash is required")
	}
	if strings.TrimSpace(r.Ticket) == "" {
		return fmt.Errorf("record ticket is required")
	}
	if r.Size < 0 || r.CompressedSize < 0 {
		return fmt.Errorf("record sizes must be non-negative")
	}
	if _, ok := validCompressions[r.Compression]; !ok {
		return fmt.Errorf("invalid compression tag: %s", r.Compression)
	}
	if r.Compression == CompressionNone && r.CompressedSize != r.Size {
		return fmt.Errorf("uncompressed record must have compressed_size == size")
	}
	if r.Compression == CompressionGzip && r.CompressedSize > r.Size {
		return fmt.Errorf("gzip record must not grow: compressed_size %d > size %d", r.CompressedSize, r.Size)
	}
	return nil
}

// TransportSize returns the number of bytes actually served over the wire.
func (r *BlobRecord) TransportSize() int64 {
	if r.Compression == CompressionGzip {
		return r.CompressedSize
	}
	return r.Size
}
