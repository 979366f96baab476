// Package compress decides whether a payload is worth compressing
// before upload and performs gzip encode/decode through an ordered
// list of codec candidates, preferring the fastest available one.
package compress

import (
	stdgzip "compress/gzip"
	"io"

	kpgzip "github.com/klauspost/compress/gzip"
)

// Codec is one gzip implementation candidate. Candidates are queried
// for availability before use; the first available one wins.
type Codec interface {
	Name() string
	Available() bool
	Compress(dst io.Writer) (io.WriteCloser, error)
	Decompress(src io.Reader) (io.ReadCloser, error)
}

// klauspostCodec uses github.com/klauspost/compress, the throughput-
// optimized implementation.
type klauspostCodec struct{}

func (klauspostCodec) Name() string    { return "klauspost/gzip" }
func (klauspostCodec) Available() bool { return true }

func (klauspostCodec) Compress(dst io.Writer) (io.WriteCloser, error) {
	return kpgzip.NewWriterLevel(dst, kpgzip.DefaultCompression)
}

func (klauspostCodec) Decompress(src io.Reader) (io.ReadCloser, error) {
	return kpgzip.NewReader(src)
}

// stdlibCodec is the compress/gzip fallback.
type stdlibCodec struct{}

func (stdlibCodec) Name() string    { return "stdlib/gzip" }
func (stdlibCodec) Available() bool { return true }

func (stdlibCodec) Compress(dst io.Writer) (io.WriteCloser, error) {
	return stdgzip.NewWriterLevel(dst, stdgzip.DefaultCompression)
}

func (stdlibCodec) Decompress(src io.Reader) (io.ReadCloser, error) {
	return stdgzip.NewReader(src)
}

// defaultCodecs is the preference-ordered candidate list.
func defaultCodecs() []Codec {
	return []Codec{klauspostCodec{}, stdlibCodec{}}
}
