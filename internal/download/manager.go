// Package download implements the client-side transfer engine: a
// parallel, retrying, chunk-ordered downloader over the server's
// byte-range surface, with a sequential streaming fallback when range
// support is absent.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"blobdrop/internal/api"
	"blobdrop/internal/compress"
	"blobdrop/internal/models"
)

// ErrDownloadFailed indicates the transfer exhausted its retry budget
// or was aborted; no output file is left behind.
var ErrDownloadFailed = errors.New("download failed")

// Progress receives aggregate transport bytes received so far and the
// expected total (0 when unknown). Called on every chunk completion
// and stream read; may be called from multiple goroutines.
type Progress func(received, total int64)

// Options tunes a Manager. Zero values fall back to the defaults
// documented on each field.
type Options struct {
	Concurrency    int           // parallel chunk workers, default 4
	ChunkSize      int64         // default 512 KiB
	LargeChunkSize int64         // default 1 MiB
	LargeThreshold int64         // transport size that switches chunk size, default 200 MiB
	RetryBudget    int           // attempts per chunk, default 3
	BackoffUnit    time.Duration // retry delay multiplier, default 400ms
	Progress       Progress
	Logger         *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 512 * 1024
	}
	if o.LargeChunkSize <= 0 {
		o.LargeChunkSize = 1 << 20
	}
	if o.LargeThreshold <= 0 {
		o.LargeThreshold = 200 << 20
	}
	if o.RetryBudget <= 0 {
		o.RetryBudget = 3
	}
	if o.BackoffUnit <= 0 {
		o.BackoffUnit = 400 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Result reports one finished download.
type Result struct {
	Session *models.DownloadSession
	Path    string
	Bytes   int64 // original (decompressed) bytes written
}

// Manager drives downloads against one API endpoint.
type Manager struct {
	client     *api.Client
	negotiator *compress.Negotiator
	online     *OnlineGate
	opts       Options
}

// NewManager creates a download manager.
func NewManager(client *api.Client, opts Options) *Manager {
	opts.applyDefaults()
	return &Manager{
		client:     client,
		negotiator: compress.NewNegotiator(),
		online:     NewOnlineGate(),
		opts:       opts,
	}
}

// Online exposes the connectivity gate so callers can suspend and
// resume in-flight transfers.
func (m *Manager) Online() *OnlineGate {
	return m.online
}

// Download fetches the blob behind the ticket into destPath. The
// transport is chunked when the server supports byte ranges, streaming
// otherwise; both paths produce byte-identical output. No partial file
// remains on any failure path.
func (m *Manager) Download(ctx context.Context, encodedTicket, destPath string) (*Result, error) {
	session, err := models.NewDownloadSession(encodedTicket)
	if err != nil {
		return nil, err
	}
	if destPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	transport, err := m.fetchTransport(ctx, session, encodedTicket)
	if err != nil {
		session.State = models.SessionFailed
		return nil, err
	}

	written, err := m.finish(ctx, session, transport, destPath)
	if err != nil {
		session.State = models.SessionFailed
		return nil, err
	}

	session.State = models.SessionDone
	return &Result{Session: session, Path: destPath, Bytes: written}, nil
}

// fetchTransport runs the probing state and the selected transfer
// state, returning a reader over the complete transport bytes.
func (m *Manager) fetchTransport(ctx context.Context, session *models.DownloadSession, encodedTicket string) (io.Reader, error) {
	probe, err := m.client.Probe(ctx, encodedTicket)
	if err != nil || !probe.RangeSupported || probe.TransportSize <= 0 {
		if err != nil {
			m.opts.Logger.Debug("probe failed, falling back to streaming", "error", err)
		}
		return m.streamTransfer(ctx, session)
	}

	session.Compression = probe.Compression
	session.CompressedSize = probe.TransportSize
	session.OriginalSize = probe.OriginalSize
	return m.chunkedTransfer(ctx, session, probe.TransportSize)
}

func (m *Manager) chunkSizeFor(transportSize int64) int64 {
	if transportSize > m.opts.LargeThreshold {
		return m.opts.LargeChunkSize
	}
	return m.opts.ChunkSize
}

// chunkedTransfer partitions the transport into fixed chunks and
// fetches them with a bounded worker pool. Workers claim the next
// chunk index from a shared atomic cursor and write results at their
// claimed index, so final assembly reflects index order regardless of
// completion order.
func (m *Manager) chunkedTransfer(ctx context.Context, session *models.DownloadSession, transportSize int64) (io.Reader, error) {
	session.State = models.SessionChunked
	chunkSize := m.chunkSizeFor(transportSize)
	chunkCount := int((transportSize + chunkSize - 1) / chunkSize)
	session.ChunkSize = chunkSize
	session.ChunkCount = chunkCount

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make([][]byte, chunkCount)
	var cursor atomic.Int64
	var received atomic.Int64
	var firstErr error
	var errOnce sync.Once
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	var wg sync.WaitGroup
	for range m.opts.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				index := int(cursor.Add(1) - 1)
				if index >= chunkCount || ctx.Err() != nil {
					return
				}
				data, err := m.fetchChunkWithRetry(ctx, session.Ticket, index, chunkSize, transportSize)
				if err != nil {
					fail(err)
					return
				}
				chunks[index] = data
				total := received.Add(int64(len(data)))
				m.reportProgress(total, transportSize)
			}
		}()
	}
	wg.Wait()

	// Workers only touch the atomic counter; the session field is
	// written once the pool has drained.
	session.ReceivedBytes = received.Load()

	if firstErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, firstErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	readers := make([]io.Reader, chunkCount)
	for i, chunk := range chunks {
		readers[i] = bytes.NewReader(chunk)
	}
	return io.MultiReader(readers...), nil
}

// fetchChunkWithRetry fetches one chunk, retrying up to the budget
// with linear backoff. An offline wait suspends the worker without
// consuming an attempt.
func (m *Manager) fetchChunkWithRetry(ctx context.Context, encodedTicket string, index int, chunkSize, transportSize int64) ([]byte, error) {
	start := int64(index) * chunkSize
	end := start + chunkSize - 1
	if end >= transportSize {
		end = transportSize - 1
	}

	var lastErr error
	for attempt := 1; attempt <= m.opts.RetryBudget; attempt++ {
		if err := m.online.Wait(ctx); err != nil {
			return nil, err
		}
		data, err := m.client.FetchRange(ctx, encodedTicket, start, end)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.opts.Logger.Debug("chunk fetch failed",
			"chunk", index, "attempt", attempt, "error", err)
		if attempt < m.opts.RetryBudget {
			backoff := time.Duration(attempt) * m.opts.BackoffUnit
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("chunk %d exhausted %d attempts: %w", index, m.opts.RetryBudget, lastErr)
}

// streamTransfer is the single sequential request fallback.
func (m *Manager) streamTransfer(ctx context.Context, session *models.DownloadSession) (io.Reader, error) {
	session.State = models.SessionStreaming

	body, size, compression, err := m.client.FetchStream(ctx, session.Ticket)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer body.Close()
	session.CompressedSize = size
	session.Compression = compression

	var buf []byte
	if size > 0 {
		buf = make([]byte, 0, size)
	}
	chunk := make([]byte, 256*1024)
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			session.ReceivedBytes = int64(len(buf))
			m.reportProgress(int64(len(buf)), size)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		}
	}
	return bytes.NewReader(buf), nil
}

// finish runs the decompressing and persisting states: decode the
// transport bytes when tagged gzip, then write through a scoped
// .partial staging file that is discarded on every failure path.
func (m *Manager) finish(ctx context.Context, session *models.DownloadSession, transport io.Reader, destPath string) (int64, error) {
	source := transport
	if session.Compression == models.CompressionGzip {
		session.State = models.SessionDecompressing
		decoded, err := m.negotiator.DecompressStream(transport)
		if err != nil {
			return 0, err
		}
		defer decoded.Close()
		source = decoded
	}

	session.State = models.SessionPersisting
	partial := destPath + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	discard := func() {
		_ = out.Close()
		_ = os.Remove(partial)
	}

	written, err := io.Copy(out, source)
	if err != nil {
		discard()
		// A gzip stream error surfaces here; it is terminal and the
		// partial output is dropped rather than persisted truncated.
		if session.Compression == models.CompressionGzip {
			return 0, fmt.Errorf("%w: %v", compress.ErrDecompression, err)
		}
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if err := ctx.Err(); err != nil {
		discard()
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if err := os.Rename(partial, destPath); err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return written, nil
}

func (m *Manager) reportProgress(received, total int64) {
	if m.opts.Progress != nil {
		m.opts.Progress(received, total)
	}
}
