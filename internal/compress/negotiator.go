package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"blobdrop/internal/models"
)

const (
	// minCompressSize is the payload size below which gzip overhead
	// dominates any saving.
	minCompressSize = 8 * 1024

	// acceptRatio: a compressed form is only kept when it is smaller
	// than 90% of the original.
	acceptRatio = 0.9
)

// skipExtensions are formats that are already compressed; re-compressing
// them wastes CPU for no size win.
var skipExtensions = map[string]struct{}{
	".zip": {}, ".gz": {}, ".tgz": {}, ".bz2": {}, ".xz": {}, ".zst": {},
	".7z": {}, ".rar": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
	".mp4": {}, ".mkv": {}, ".webm": {}, ".mov": {}, ".avi": {},
	".mp3": {}, ".aac": {}, ".ogg": {}, ".flac": {},
	".pdf": {}, ".docx": {}, ".xlsx": {}, ".pptx": {},
}

// compressiblePrefixes are the mime families that reliably shrink.
var compressiblePrefixes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"application/xml",
}

// ErrDecompression indicates the stored transport bytes could not be
// decoded. Always fatal: truncated or corrupt output must never be
// substituted for the original content.
var ErrDecompression = errors.New("decompression failed")

// ShouldCompress reports whether a payload of the given size, mime type
// and filename is a worthwhile compression candidate.
func ShouldCompress(size int64, mimeType, name string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	if _, skip := skipExtensions[ext]; skip {
		return false
	}
	if size < minCompressSize {
		return false
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, prefix := range compressiblePrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}

// Negotiator applies the compression decision and the layered codec
// fallback. The zero value is not usable; use NewNegotiator.
type Negotiator struct {
	codecs []Codec
}

// NewNegotiator returns a negotiator with the default codec candidates.
func NewNegotiator() *Negotiator {
	return &Negotiator{codecs: defaultCodecs()}
}

// NewNegotiatorWithCodecs lets tests inject candidate lists.
func NewNegotiatorWithCodecs(codecs []Codec) *Negotiator {
	return &Negotiator{codecs: codecs}
}

// Compress attempts gzip on data when the decision function allows it.
// The compressed form is returned only if it beats the acceptance
// ratio; otherwise the original bytes pass through with tag none.
func (n *Negotiator) Compress(data []byte, mimeType, name string) ([]byte, models.Compression) {
	if !ShouldCompress(int64(len(data)), mimeType, name) {
		return data, models.CompressionNone
	}
	compressed, err := n.compressBytes(data)
	if err != nil {
		return data, models.CompressionNone
	}
	if float64(len(compressed)) >= acceptRatio*float64(len(data)) {
		return data, models.CompressionNone
	}
	return compressed, models.CompressionGzip
}

// Decompress decodes gzip transport bytes through the first working
// codec. Every codec failure is reported; no partial output escapes.
func (n *Negotiator) Decompress(data []byte) ([]byte, error) {
	var lastErr error
	for _, codec := range n.codecs {
		if !codec.Available() {
			continue
		}
		out, err := decompressWith(codec, data)
		if err != nil {
			lastErr = err
			continue
		}
		return out, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no codec available")
	}
	return nil, fmt.Errorf("%w: %v", ErrDecompression, lastErr)
}

// DecompressStream wraps src with a gzip decoder from the first
// available codec.
func (n *Negotiator) DecompressStream(src io.Reader) (io.ReadCloser, error) {
	var lastErr error
	for _, codec := range n.codecs {
		if !codec.Available() {
			continue
		}
		rc, err := codec.Decompress(src)
		if err != nil {
			lastErr = err
			continue
		}
		return rc, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no codec available")
	}
	return nil, fmt.Errorf("%w: %v", ErrDecompression, lastErr)
}

func (n *Negotiator) compressBytes(data []byte) ([]byte, error) {
	var lastErr error
	for _, codec := range n.codecs {
		if !codec.Available() {
			continue
		}
		out, err := compressWith(codec, data)
		if err != nil {
			lastErr = err
			continue
		}
		return out, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no codec available")
	}
	return nil, lastErr
}

func compressWith(codec Codec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := codec.Compress(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressWith(codec Codec, data []byte) ([]byte, error) {
	r, err := codec.Decompress(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(r)
	closeErr := r.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return out, nil
}
