package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blobdrop/internal/blobstore"
	"blobdrop/internal/models"
	"blobdrop/internal/store"
	"blobdrop/internal/ticket"
)

// InspectService resolves tickets to metadata records. Resolution
// first makes the content locally retrievable (which may fetch from
// the ticket's remote hints), then prefers the local record and falls
// back to a synthesized one when this instance never saw the share.
type InspectService struct {
	records store.RecordStore
	blobs   blobstore.ContentStore
	logger  *slog.Logger
}

// NewInspectService constructs an InspectService.
func NewInspectService(records store.RecordStore, blobs blobstore.ContentStore, logger *slog.Logger) *InspectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InspectService{records: records, blobs: blobs, logger: logger}
}

// Resolve turns an encoded ticket into a BlobRecord. A missing local
// record is never an error: a fallback record is synthesized from the
// store. Only a malformed ticket or unreachable content fails.
func (s *InspectService) Resolve(ctx context.Context, encoded string) (models.BlobRecord, error) {
	var zero models.BlobRecord
	if s == nil || s.records == nil || s.blobs == nil {
		return zero, internalError(fmt.Errorf("inspect service is not configured"))
	}

	t, err := ticket.Decode(encoded)
	if err != nil {
		return zero, invalidTicket(err)
	}

	// May suspend on a network fetch from the ticket's remote hints.
	if err := s.blobs.EnsureLocal(ctx, t); err != nil {
		return zero, notFoundCode(fmt.Errorf("content unreachable: %w", err), ErrCodeContentNotFound)
	}

	record, err := s.records.GetRecord(ctx, t.Hash)
	if err == nil {
		return *record, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return zero, storeFailure(err)
	}

	return s.fallbackRecord(ctx, t, encoded)
}

// fallbackRecord reconstructs minimal metadata when the share happened
// on a different instance: the name derives from the hash and the size
// comes straight from the store.
func (s *InspectService) fallbackRecord(ctx context.Context, t ticket.Ticket, encoded string) (models.BlobRecord, error) {
	size, err := s.blobs.Size(ctx, t.Hash)
	if err != nil {
		return models.BlobRecord{}, notFoundCode(fmt.Errorf("content unreachable: %w", err), ErrCodeContentNotFound)
	}

	s.logger.Debug("serving fallback record", "hash", t.Hash)
	return models.BlobRecord{
		Hash:           t.Hash,
		Name:           t.Hash + ".bin",
		Size:           size,
		CompressedSize: size,
		MimeType:       "application/octet-stream",
		OriginalType:   "application/octet-stream",
		Compression:    models.CompressionNone,
		Ticket:         encoded,
	}, nil
}
