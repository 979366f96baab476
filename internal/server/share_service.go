package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"blobdrop/internal/blobstore"
	"blobdrop/internal/compress"
	"blobdrop/internal/models"
	"blobdrop/internal/store"
	"blobdrop/internal/ticket"
)

// compressMarginRatio is the acceptance threshold a gzip share must
// meet: transport bytes strictly below 90% of the original size.
const compressMarginRatio = 0.9

// ShareService owns the ingest path: transport bytes in, content hash
// computed during ingestion, metadata record published, ticket issued.
type ShareService struct {
	records   store.RecordStore
	blobs     blobstore.ContentStore
	advertise []string
	logger    *slog.Logger
}

// NewShareService constructs a ShareService. advertise lists the base
// URLs embedded in issued tickets as remote-location hints.
func NewShareService(records store.RecordStore, blobs blobstore.ContentStore, advertise []string, logger *slog.Logger) *ShareService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShareService{records: records, blobs: blobs, advertise: advertise, logger: logger}
}

// ShareInput describes one upload. Source carries the transport bytes
// (possibly compressed); the Original* fields describe the logical
// uncompressed content and are authoritative for display and for the
// eventual decompression decision.
type ShareInput struct {
	Source       io.Reader
	OriginalName string
	OriginalSize int64
	OriginalType string
	Compression  models.Compression
	Owner        string
}

// ShareBytes ingests one upload and publishes its record. The transport
// bytes are staged in a scoped temp file that is released on every exit
// path; on any ingest error nothing is published.
func (s *ShareService) ShareBytes(ctx context.Context, in ShareInput) (models.BlobRecord, error) {
	var zero models.BlobRecord
	if s == nil || s.records == nil || s.blobs == nil {
		return zero, internalError(fmt.Errorf("share service is not configured"))
	}
	if in.Source == nil {
		return zero, badRequestCode(fmt.Errorf("upload content is required"), ErrCodeMissingRequired)
	}
	name := strings.TrimSpace(in.OriginalName)
	if name == "" {
		return zero, badRequestCode(fmt.Errorf("originalName is required"), ErrCodeMissingRequired)
	}

	staging, err := os.CreateTemp("", "blobdrop-share-*")
	if err != nil {
		return zero, ingestFailure(fmt.Errorf("create staging file: %w", err))
	}
	stagingPath := staging.Name()
	defer func() {
		_ = staging.Close()
		_ = os.Remove(stagingPath)
	}()

	transportSize, err := io.Copy(staging, in.Source)
	if err != nil {
		return zero, ingestFailure(fmt.Errorf("stage upload: %w", err))
	}
	if _, err := staging.Seek(0, io.SeekStart); err != nil {
		return zero, ingestFailure(fmt.Errorf("rewind staging file: %w", err))
	}

	record, err := s.buildRecord(in, name, transportSize)
	if err != nil {
		return zero, err
	}

	result, err := s.blobs.Put(ctx, staging)
	if err != nil {
		return zero, ingestFailure(fmt.Errorf("ingest blob: %w", err))
	}
	record.Hash = result.Hash

	encoded, err := ticket.Encode(ticket.Ticket{
		Hash:  result.Hash,
		Size:  transportSize,
		Addrs: s.advertise,
	})
	if err != nil {
		return zero, internalError(err)
	}
	record.Ticket = encoded

	if err := s.records.CreateRecord(ctx, &record); err != nil {
		return zero, storeFailure(err)
	}

	s.logger.Info("blob shared",
		"hash", record.Hash,
		"name", record.Name,
		"size", record.Size,
		"compressed_size", record.CompressedSize,
		"compression", record.Compression,
	)
	return record, nil
}

// ShareText shares a text snippet, negotiating compression server-side.
func (s *ShareService) ShareText(ctx context.Context, text, owner string, negotiator *compress.Negotiator) (models.BlobRecord, error) {
	var zero models.BlobRecord
	if text == "" {
		return zero, badRequestCode(fmt.Errorf("text is required"), ErrCodeMissingRequired)
	}

	original := []byte(text)
	const mimeType = "text/plain"
	name := fmt.Sprintf("text-%d.txt", time.Now().UTC().UnixMilli())

	payload, compression := negotiator.Compress(original, mimeType, name)

	return s.ShareBytes(ctx, ShareInput{
		Source:       strings.NewReader(string(payload)),
		OriginalName: name,
		OriginalSize: int64(len(original)),
		OriginalType: mimeType,
		Compression:  compression,
		Owner:        owner,
	})
}

func (s *ShareService) buildRecord(in ShareInput, name string, transportSize int64) (models.BlobRecord, error) {
	var zero models.BlobRecord

	mimeType := strings.TrimSpace(in.OriginalType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	originalSize := in.OriginalSize
	switch in.Compression {
	case models.CompressionNone:
		if originalSize > 0 && originalSize != transportSize {
			return zero, badRequest(fmt.Errorf("declared originalSize %d does not match uploaded %d bytes", originalSize, transportSize))
		}
		originalSize = transportSize
	case models.CompressionGzip:
		if originalSize <= 0 {
			return zero, badRequestCode(fmt.Errorf("originalSize is required for compressed uploads"), ErrCodeMissingRequired)
		}
		if float64(transportSize) >= compressMarginRatio*float64(originalSize) {
			return zero, badRequest(fmt.Errorf("gzip upload of %d bytes does not meet the compression margin for %d original bytes; upload uncompressed instead", transportSize, originalSize))
		}
	default:
		return zero, badRequest(fmt.Errorf("invalid compression tag: %s", in.Compression))
	}

	// The transport content type diverges from the logical one when
	// the wire bytes are compressed.
	transportType := mimeType
	if in.Compression == models.CompressionGzip {
		transportType = "application/gzip"
	}

	return models.BlobRecord{
		Name:           name,
		Size:           originalSize,
		CompressedSize: transportSize,
		MimeType:       transportType,
		OriginalType:   mimeType,
		Compression:    in.Compression,
		Owner:          strings.TrimSpace(in.Owner),
		CreatedAt:      time.Now().UTC(),
	}, nil
}
