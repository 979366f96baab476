package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"blobdrop/internal/ticket"
)

const fetchTimeout = 5 * time.Minute

// FetchingStore wraps a ContentStore with the ability to pull missing
// content from the remote origins named in a ticket. The fetched bytes
// are re-hashed through Put, so a lying origin cannot plant content
// under the wrong hash.
type FetchingStore struct {
	ContentStore
	client *http.Client
	logger *slog.Logger
}

// NewFetchingStore decorates inner with remote fetch support.
func NewFetchingStore(inner ContentStore, logger *slog.Logger) *FetchingStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchingStore{
		ContentStore: inner,
		client:       &http.Client{Timeout: fetchTimeout},
		logger:       logger,
	}
}

// EnsureLocal makes the ticket's content locally readable, trying each
// remote hint in order until one yields bytes with the expected hash.
func (s *FetchingStore) EnsureLocal(ctx context.Context, t ticket.Ticket) error {
	if s.Contains(ctx, t.Hash) {
		return nil
	}
	if len(t.Addrs) == 0 {
		return fmt.Errorf("%w: %s (no remote hints)", ErrNotFound, t.Hash)
	}

	encoded, err := ticket.Encode(ticket.Ticket{Hash: t.Hash, Size: t.Size})
	if err != nil {
		return err
	}

	var lastErr error
	for _, addr := range t.Addrs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.fetchFrom(ctx, addr, encoded, t.Hash); err != nil {
			s.logger.Debug("remote fetch failed", "addr", addr, "hash", t.Hash, "error", err)
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("content %s unreachable: %w", t.Hash, lastErr)
}

func (s *FetchingStore) fetchFrom(ctx context.Context, addr, encodedTicket, wantHash string) error {
	base := strings.TrimRight(addr, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		base+"/download?ticket="+url.QueryEscape(encodedTicket), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("origin %s returned status %d", addr, resp.StatusCode)
	}

	result, err := s.Put(ctx, resp.Body)
	if err != nil {
		return err
	}
	if result.Hash != wantHash {
		_ = s.Delete(ctx, result.Hash)
		return fmt.Errorf("origin %s served hash %s, wanted %s", addr, result.Hash, wantHash)
	}
	return nil
}
