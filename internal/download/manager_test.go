package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"blobdrop/internal/api"
	"blobdrop/internal/compress"
	"blobdrop/internal/models"
)

// rangedOrigin is a stub download endpoint with byte-range support and
// per-chunk failure injection.
type rangedOrigin struct {
	payload     []byte
	compression string
	onFailure   func() // invoked when a failure is injected

	mu       sync.Mutex
	failures map[int64]int // range start -> remaining injected failures
	hits     map[int64]int // range start -> requests seen
}

func newRangedOrigin(payload []byte) *rangedOrigin {
	return &rangedOrigin{
		payload:     payload,
		compression: "none",
		failures:    map[int64]int{},
		hits:        map[int64]int{},
	}
}

func (o *rangedOrigin) failChunkAt(start int64, times int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[start] = times
}

func (o *rangedOrigin) hitsAt(start int64) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[start]
}

func (o *rangedOrigin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/download" {
		http.NotFound(w, r)
		return
	}
	header := w.Header()
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Type", "application/octet-stream")
	header.Set(api.HeaderCompression, o.compression)
	header.Set(api.HeaderOriginalSize, strconv.Itoa(len(o.payload)))

	if r.Method == http.MethodHead {
		header.Set("Content-Length", strconv.Itoa(len(o.payload)))
		w.WriteHeader(http.StatusOK)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		header.Set("Content-Length", strconv.Itoa(len(o.payload)))
		_, _ = w.Write(o.payload)
		return
	}

	var start, end int64
	if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err != nil {
		http.Error(w, "bad range", http.StatusBadRequest)
		return
	}

	o.mu.Lock()
	o.hits[start]++
	if o.failures[start] > 0 {
		o.failures[start]--
		o.mu.Unlock()
		if o.onFailure != nil {
			o.onFailure()
		}
		http.Error(w, "injected failure", http.StatusServiceUnavailable)
		return
	}
	o.mu.Unlock()

	if end >= int64(len(o.payload)) {
		end = int64(len(o.payload)) - 1
	}
	if start > end || start >= int64(len(o.payload)) {
		http.Error(w, "unsatisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}
	header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(o.payload)))
	header.Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(o.payload[start : end+1])
}

// streamOrigin serves full downloads only; probes fail, forcing the
// streaming fallback.
type streamOrigin struct {
	payload     []byte
	compression string
}

func (o *streamOrigin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		http.Error(w, "no probes here", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set(api.HeaderCompression, o.compression)
	w.Header().Set("Content-Length", strconv.Itoa(len(o.payload)))
	_, _ = w.Write(o.payload)
}

func testOpts() Options {
	return Options{
		Concurrency: 4,
		ChunkSize:   256 * 1024,
		RetryBudget: 3,
		BackoffUnit: time.Millisecond,
	}
}

func transferPayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte((i * 31) % 256)
	}
	return payload
}

func TestChunkedDownloadReassembles(t *testing.T) {
	payload := transferPayload(3*1024*1024 + 517)
	origin := newRangedOrigin(payload)
	ts := httptest.NewServer(origin)
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	manager := NewManager(api.NewClient(ts.URL), testOpts())

	result, err := manager.Download(context.Background(), "bd1test", dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if result.Bytes != int64(len(payload)) {
		t.Fatalf("wrote %d bytes, want %d", result.Bytes, len(payload))
	}
	if result.Session.State != models.SessionDone {
		t.Fatalf("session state %q, want done", result.Session.State)
	}
	wantChunks := (len(payload) + 256*1024 - 1) / (256 * 1024)
	if result.Session.ChunkCount != wantChunks {
		t.Fatalf("chunk count %d, want %d", result.Session.ChunkCount, wantChunks)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("reassembled output differs from origin payload")
	}
	if _, err := os.Stat(dest + ".partial"); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("staging file left behind after success")
	}
}

func TestChunkedRetryRecovers(t *testing.T) {
	payload := transferPayload(1024 * 1024)
	origin := newRangedOrigin(payload)
	// Third chunk fails twice, then succeeds on the final attempt.
	flakyStart := int64(2 * 256 * 1024)
	origin.failChunkAt(flakyStart, 2)
	ts := httptest.NewServer(origin)
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	manager := NewManager(api.NewClient(ts.URL), testOpts())

	if _, err := manager.Download(context.Background(), "bd1test", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("output corrupted by retried chunk")
	}
	if hits := origin.hitsAt(flakyStart); hits != 3 {
		t.Fatalf("flaky chunk fetched %d times, want 3", hits)
	}
}

func TestChunkedRetryExhausted(t *testing.T) {
	payload := transferPayload(1024 * 1024)
	origin := newRangedOrigin(payload)
	origin.failChunkAt(0, 100)
	ts := httptest.NewServer(origin)
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	manager := NewManager(api.NewClient(ts.URL), testOpts())

	_, err := manager.Download(context.Background(), "bd1test", dest)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("failed download left an output file")
	}
	if _, statErr := os.Stat(dest + ".partial"); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("failed download left a staging file")
	}
}

func TestStreamingFallback(t *testing.T) {
	payload := transferPayload(700_000)
	ts := httptest.NewServer(&streamOrigin{payload: payload, compression: "none"})
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	manager := NewManager(api.NewClient(ts.URL), testOpts())

	result, err := manager.Download(context.Background(), "bd1test", dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if result.Bytes != int64(len(payload)) {
		t.Fatalf("wrote %d bytes, want %d", result.Bytes, len(payload))
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("streamed output differs from origin payload")
	}
}

func TestChunkedAndStreamingProduceIdenticalOutput(t *testing.T) {
	payload := transferPayload(900_000)

	ranged := httptest.NewServer(newRangedOrigin(payload))
	defer ranged.Close()
	streamed := httptest.NewServer(&streamOrigin{payload: payload, compression: "none"})
	defer streamed.Close()

	dir := t.TempDir()
	chunkedDest := filepath.Join(dir, "chunked.bin")
	streamedDest := filepath.Join(dir, "streamed.bin")

	if _, err := NewManager(api.NewClient(ranged.URL), testOpts()).Download(context.Background(), "bd1test", chunkedDest); err != nil {
		t.Fatalf("chunked Download: %v", err)
	}
	if _, err := NewManager(api.NewClient(streamed.URL), testOpts()).Download(context.Background(), "bd1test", streamedDest); err != nil {
		t.Fatalf("streamed Download: %v", err)
	}

	a, err := os.ReadFile(chunkedDest)
	if err != nil {
		t.Fatalf("read chunked: %v", err)
	}
	b, err := os.ReadFile(streamedDest)
	if err != nil {
		t.Fatalf("read streamed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("transport modes produced different output")
	}
}

func TestChunkedSessionCountsUnderConcurrency(t *testing.T) {
	// Many small chunks across many workers; the race detector watches
	// the shared session while the pool runs.
	payload := transferPayload(2 * 1024 * 1024)
	ts := httptest.NewServer(newRangedOrigin(payload))
	defer ts.Close()

	opts := testOpts()
	opts.Concurrency = 8
	opts.ChunkSize = 32 * 1024

	dest := filepath.Join(t.TempDir(), "out.bin")
	result, err := NewManager(api.NewClient(ts.URL), opts).Download(context.Background(), "bd1test", dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if result.Session.ReceivedBytes != int64(len(payload)) {
		t.Fatalf("session received %d bytes, want %d", result.Session.ReceivedBytes, len(payload))
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("reassembled output differs from origin payload")
	}
}

func TestOfflineSuspensionPreservesRetryBudget(t *testing.T) {
	payload := transferPayload(512 * 1024)
	origin := newRangedOrigin(payload)
	flakyStart := int64(256 * 1024)
	origin.failChunkAt(flakyStart, 1)
	ts := httptest.NewServer(origin)
	defer ts.Close()

	opts := testOpts()
	opts.Concurrency = 1
	opts.RetryBudget = 2

	manager := NewManager(api.NewClient(ts.URL), opts)
	gate := manager.Online()

	// Connectivity drops at the moment the chunk fails. The retry must
	// suspend on the gate for the whole offline window without burning
	// its one remaining attempt.
	const offlineWindow = 150 * time.Millisecond
	origin.onFailure = func() {
		gate.SetOffline()
		go func() {
			time.Sleep(offlineWindow)
			gate.SetOnline()
		}()
	}

	start := time.Now()
	dest := filepath.Join(t.TempDir(), "out.bin")
	if _, err := manager.Download(context.Background(), "bd1test", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if elapsed := time.Since(start); elapsed < offlineWindow {
		t.Fatalf("download finished in %v, before connectivity returned", elapsed)
	}
	if hits := origin.hitsAt(flakyStart); hits != 2 {
		t.Fatalf("flaky chunk fetched %d times, want exactly 2", hits)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("resumed output differs from origin payload")
	}
}

func TestGzipTransportDecompresses(t *testing.T) {
	original := []byte(strings.Repeat("compressible transfer payload\n", 20_000))
	transport, comp := compress.NewNegotiator().Compress(original, "text/plain", "big.txt")
	if comp != models.CompressionGzip {
		t.Fatalf("fixture should compress, got %s", comp)
	}

	origin := newRangedOrigin(transport)
	origin.compression = "gzip"
	ts := httptest.NewServer(origin)
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "big.txt")
	manager := NewManager(api.NewClient(ts.URL), testOpts())

	result, err := manager.Download(context.Background(), "bd1test", dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if result.Bytes != int64(len(original)) {
		t.Fatalf("wrote %d bytes, want %d original bytes", result.Bytes, len(original))
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Fatal("decompressed output differs from original")
	}
}

func TestCorruptGzipTransportFails(t *testing.T) {
	// The origin labels garbage as gzip; the decode failure must be
	// terminal and leave nothing behind.
	origin := newRangedOrigin(transferPayload(300_000))
	origin.compression = "gzip"
	ts := httptest.NewServer(origin)
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "out.txt")
	manager := NewManager(api.NewClient(ts.URL), testOpts())

	_, err := manager.Download(context.Background(), "bd1test", dest)
	if !errors.Is(err, compress.ErrDecompression) {
		t.Fatalf("expected ErrDecompression, got %v", err)
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("corrupt download left an output file")
	}
	if _, statErr := os.Stat(dest + ".partial"); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("corrupt download left a staging file")
	}
}

func TestProgressReporting(t *testing.T) {
	payload := transferPayload(1024 * 1024)
	ts := httptest.NewServer(newRangedOrigin(payload))
	defer ts.Close()

	var mu sync.Mutex
	var lastReceived, lastTotal int64
	calls := 0
	opts := testOpts()
	opts.Progress = func(received, total int64) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if received > lastReceived {
			lastReceived = received
		}
		lastTotal = total
	}

	dest := filepath.Join(t.TempDir(), "out.bin")
	if _, err := NewManager(api.NewClient(ts.URL), opts).Download(context.Background(), "bd1test", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Fatal("progress callback never fired")
	}
	if lastReceived != int64(len(payload)) {
		t.Fatalf("final received %d, want %d", lastReceived, len(payload))
	}
	if lastTotal != int64(len(payload)) {
		t.Fatalf("total %d, want %d", lastTotal, len(payload))
	}
}

func TestDownloadCanceled(t *testing.T) {
	payload := transferPayload(1024 * 1024)
	origin := newRangedOrigin(payload)
	origin.failChunkAt(0, 100)
	ts := httptest.NewServer(origin)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "out.bin")
	opts := testOpts()
	opts.BackoffUnit = time.Second
	_, err := NewManager(api.NewClient(ts.URL), opts).Download(ctx, "bd1test", dest)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("canceled download left an output file")
	}
}

func TestDownloadRequiresDestination(t *testing.T) {
	manager := NewManager(api.NewClient("http://127.0.0.1:0"), testOpts())
	if _, err := manager.Download(context.Background(), "bd1test", ""); err == nil {
		t.Fatal("expected error for empty destination")
	}
	if _, err := manager.Download(context.Background(), " ", "out.bin"); err == nil {
		t.Fatal("expected error for blank ticket")
	}
}
