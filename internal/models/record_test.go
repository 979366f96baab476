package models

import (
	"testing"
	"time"
)

func validRecord() BlobRecord {
	return BlobRecord{
		Hash:           "ab12",
		Name:           "report.txt",
		Size:           1000,
		CompressedSize: 1000,
		MimeType:       "text/plain",
		OriginalType:   "text/plain",
		Compression:    CompressionNone,
		CreatedAt:      time.Now().UTC(),
		Ticket:         "bd1abc",
	}
}

func TestParseCompression(t *testing.T) {
	cases := []struct {
		raw     string
		want    Compression
		wantErr bool
	}{
		{"gzip", CompressionGzip, false},
		{"none", CompressionNone, false},
		{"", CompressionNone, false},
		{" GZIP ", CompressionGzip, false},
		{"brotli", "", true},
		{"deflate", "", true},
	}
	for _, tc := range cases {
		got, err := ParseCompression(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseCompression(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCompression(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestRecordValidate(t *testing.T) {
	good := validRecord()
	if err := good.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	mutations := []struct {
		name   string
		mutate func(*BlobRecord)
	}{
		{"missing hash", func(r *BlobRecord) { r.Hash = " " }},
		{"missing ticket", func(r *BlobRecord) { r.Ticket = "" }},
		{"negative size", func(r *BlobRecord) { r.Size = -1 }},
		{"bad compression", func(r *BlobRecord) { r.Compression = "zstd" }},
		{"none with divergent sizes", func(r *BlobRecord) { r.CompressedSize = 500 }},
		{"gzip that grew", func(r *BlobRecord) {
			r.Compression = CompressionGzip
			r.CompressedSize = r.Size + 1
		}},
	}
	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			record := validRecord()
			tc.mutate(&record)
			if err := record.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestTransportSize(t *testing.T) {
	record := validRecord()
	if got := record.TransportSize(); got != 1000 {
		t.Fatalf("uncompressed transport size %d, want 1000", got)
	}

	record.Compression = CompressionGzip
	record.CompressedSize = 400
	if got := record.TransportSize(); got != 400 {
		t.Fatalf("gzip transport size %d, want 400", got)
	}
}
