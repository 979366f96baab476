package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"blobdrop/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord(hash string) *models.BlobRecord {
	return &models.BlobRecord{
		Hash:           hash,
		Name:           "sample.txt",
		Size:           2048,
		CompressedSize: 512,
		MimeType:       "application/gzip",
		OriginalType:   "text/plain",
		Compression:    models.CompressionGzip,
		Owner:          "alice",
		Ticket:         "bd1" + hash,
	}
}

func TestCreateAndGetRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := sampleRecord("aaaa1111")
	if err := s.CreateRecord(ctx, record); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if record.CreatedAt.IsZero() {
		t.Fatal("CreateRecord must stamp CreatedAt")
	}

	got, err := s.GetRecord(ctx, "aaaa1111")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Name != record.Name || got.Size != record.Size || got.CompressedSize != record.CompressedSize {
		t.Fatalf("record round trip mismatch: %+v", got)
	}
	if got.Compression != models.CompressionGzip {
		t.Fatalf("compression %q, want gzip", got.Compression)
	}
	if got.Owner != "alice" {
		t.Fatalf("owner %q, want alice", got.Owner)
	}
	if got.Ticket != record.Ticket {
		t.Fatalf("ticket %q, want %q", got.Ticket, record.Ticket)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) {
		t.Fatalf("created_at %v, want %v", got.CreatedAt, record.CreatedAt)
	}
}

func TestCreateRecordIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := sampleRecord("bbbb2222")
	first.Name = "original.txt"
	if err := s.CreateRecord(ctx, first); err != nil {
		t.Fatalf("first CreateRecord: %v", err)
	}

	// A second insert for the same hash must not overwrite the first.
	second := sampleRecord("bbbb2222")
	second.Name = "imposter.txt"
	if err := s.CreateRecord(ctx, second); err != nil {
		t.Fatalf("second CreateRecord: %v", err)
	}

	got, err := s.GetRecord(ctx, "bbbb2222")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Name != "original.txt" {
		t.Fatalf("record was overwritten: name %q", got.Name)
	}

	count, err := s.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 1 {
		t.Fatalf("count %d, want 1", count)
	}
}

func TestCreateRecordValidates(t *testing.T) {
	s := newTestStore(t)
	bad := sampleRecord("cccc3333")
	bad.Compression = "zstd"
	if err := s.CreateRecord(context.Background(), bad); err == nil {
		t.Fatal("invalid record must be rejected")
	}
}

func TestGetRecordNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRecord(context.Background(), "nope")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestListRecordsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, hash := range []string{"dddd0001", "dddd0002", "dddd0003"} {
		record := sampleRecord(hash)
		record.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.CreateRecord(ctx, record); err != nil {
			t.Fatalf("CreateRecord %s: %v", hash, err)
		}
	}

	records, err := s.ListRecords(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Hash != "dddd0003" || records[2].Hash != "dddd0001" {
		t.Fatalf("wrong ordering: %s .. %s", records[0].Hash, records[2].Hash)
	}

	limited, err := s.ListRecords(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecords limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit ignored: got %d records", len(limited))
	}
}

func TestSchemaVersion(t *testing.T) {
	s := newTestStore(t)
	version, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version < 1 {
		t.Fatalf("schema version %d, want >= 1", version)
	}
}
