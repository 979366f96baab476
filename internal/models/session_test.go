package models

import "testing"

func TestNewDownloadSession(t *testing.T) {
	s, err := NewDownloadSession("bd1abc")
	if err != nil {
		t.Fatalf("NewDownloadSession: %v", err)
	}
	if s.ID == "" {
		t.Fatal("session needs an ID")
	}
	if s.State != SessionProbing {
		t.Fatalf("state %q, want probing", s.State)
	}
	if s.Compression != CompressionNone {
		t.Fatalf("compression %q, want none", s.Compression)
	}

	other, err := NewDownloadSession("bd1abc")
	if err != nil {
		t.Fatalf("NewDownloadSession: %v", err)
	}
	if other.ID == s.ID {
		t.Fatal("session IDs must be unique")
	}

	if _, err := NewDownloadSession("  "); err == nil {
		t.Fatal("expected error for blank ticket")
	}
}

func TestSessionProgress(t *testing.T) {
	s := &DownloadSession{CompressedSize: 1000, ReceivedBytes: 250}
	if got := s.Progress(); got != 0.25 {
		t.Fatalf("progress %f, want 0.25", got)
	}

	s.ReceivedBytes = 2000
	if got := s.Progress(); got != 1 {
		t.Fatalf("progress clamps at 1, got %f", got)
	}

	empty := &DownloadSession{}
	if got := empty.Progress(); got != 0 {
		t.Fatalf("zero transport size must report 0, got %f", got)
	}
}
