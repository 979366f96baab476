// Package stream reads stored blobs as bounded byte-range sequences.
// It is the server-side mechanism behind HTTP partial responses: a
// requested range is clamped into the blob, then served as a lazy,
// finite series of fixed-size chunks without ever holding the whole
// blob in memory.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"blobdrop/internal/blobstore"
)

// ChunkLength is the fixed read granularity of a RangeReader.
const ChunkLength = 256 * 1024

// ErrRangeUnsatisfiable indicates a requested range lies entirely
// outside the blob.
var ErrRangeUnsatisfiable = errors.New("range not satisfiable")

// ByteRange is an inclusive [Start, End] byte span request.
type ByteRange struct {
	Start int64
	End   int64
}

// RangeReader yields the clamped range of one blob chunk by chunk.
// Each reader owns an independent store handle, so any number of
// readers may cover overlapping ranges of the same hash concurrently.
type RangeReader struct {
	Size  int64 // full blob size
	Start int64 // clamped range start
	End   int64 // clamped range end, inclusive

	src    blobstore.ReaderAtCloser
	offset int64
	buf    []byte
}

// OpenRange clamps req into [0, size-1] and positions a reader over it.
// A nil req means the full blob. A range starting past the end of the
// blob is ErrRangeUnsatisfiable.
func OpenRange(ctx context.Context, store blobstore.ContentStore, hash string, req *ByteRange) (*RangeReader, error) {
	src, size, err := store.OpenRange(ctx, hash)
	if err != nil {
		return nil, err
	}

	start, end := int64(0), size-1
	if req != nil && size > 0 {
		start, end = req.Start, req.End
		if start < 0 {
			start = 0
		}
		if end >= size || end < 0 {
			end = size - 1
		}
		if start >= size || start > end {
			_ = src.Close()
			return nil, fmt.Errorf("%w: bytes=%d-%d of %d", ErrRangeUnsatisfiable, req.Start, req.End, size)
		}
	}
	return &RangeReader{
		Size:   size,
		Start:  start,
		End:    end,
		src:    src,
		offset: start,
		buf:    make([]byte, ChunkLength),
	}, nil
}

// Length is the number of bytes the reader will yield in total.
func (r *RangeReader) Length() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Next returns the next chunk of at most ChunkLength bytes, or io.EOF
// once the clamped range is exhausted. The returned slice is only
// valid until the following Next call.
func (r *RangeReader) Next() ([]byte, error) {
	remaining := r.End - r.offset + 1
	if remaining <= 0 {
		return nil, io.EOF
	}
	n := int64(len(r.buf))
	if remaining < n {
		n = remaining
	}
	read, err := r.src.ReadAt(r.buf[:n], r.offset)
	if read > 0 {
		r.offset += int64(read)
		return r.buf[:read], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// Close releases the underlying store handle.
func (r *RangeReader) Close() error {
	return r.src.Close()
}

// WriteTo streams the full clamped range into w.
func (r *RangeReader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}
