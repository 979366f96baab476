package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"blobdrop/internal/models"
)

// ErrRecordNotFound indicates no record exists for a hash.
var ErrRecordNotFound = errors.New("record not found")

const recordColumns = "hash, name, size, compressed_size, mime_type, original_type, compression, owner, created_at, ticket"

// RecordStore is the persistence surface the share and inspect
// services depend on.
type RecordStore interface {
	CreateRecord(ctx context.Context, record *models.BlobRecord) error
	GetRecord(ctx context.Context, hash string) (*models.BlobRecord, error)
	ListRecords(ctx context.Context, limit int) ([]models.BlobRecord, error)
	CountRecords(ctx context.Context) (int64, error)
}

// CreateRecord inserts one blob record. A record that already exists
// for the hash is left untouched: records are immutable and the same
// bytes always share one row.
func (s *Store) CreateRecord(ctx context.Context, record *models.BlobRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO blob_records (`+recordColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO NOTHING`,
		record.Hash,
		record.Name,
		record.Size,
		record.CompressedSize,
		record.MimeType,
		record.OriginalType,
		string(record.Compression),
		record.Owner,
		record.CreatedAt.Format(time.RFC3339Nano),
		record.Ticket,
	)
	if err != nil {
		return fmt.Errorf("insert blob record: %w", err)
	}
	return nil
}

// GetRecord returns the record for hash or ErrRecordNotFound.
func (s *Store) GetRecord(ctx context.Context, hash string) (*models.BlobRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM blob_records WHERE hash = ?`, hash)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, hash)
	}
	return record, err
}

// ListRecords returns records newest first, up to limit (0 = no limit).
func (s *Store) ListRecords(ctx context.Context, limit int) ([]models.BlobRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM blob_records ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.BlobRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// CountRecords reports the number of published records.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blob_records`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.BlobRecord, error) {
	var record models.BlobRecord
	var owner sql.NullString
	var compression, createdAt string
	if err := row.Scan(
		&record.Hash,
		&record.Name,
		&record.Size,
		&record.CompressedSize,
		&record.MimeType,
		&record.OriginalType,
		&compression,
		&owner,
		&createdAt,
		&record.Ticket,
	); err != nil {
		return nil, err
	}
	record.Owner = owner.String

	parsed, err := models.ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	record.Compression = parsed

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	record.CreatedAt = ts

	return &record, nil
}
