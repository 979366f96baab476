package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionState tracks a client download through its lifecycle.
type SessionState string

const (
	SessionProbing       SessionState = "probing"
	SessionChunked       SessionState = "chunked"
	SessionStreaming     SessionState = "streaming"
	SessionDecompressing SessionState = "decompressing"
	SessionPersisting    SessionState = "persisting"
	SessionDone          SessionState = "done"
	SessionFailed        SessionState = "failed"
)

// DownloadSession is the client-local, in-memory state of one download.
// Sessions do not survive a process restart; a failed download starts over.
type DownloadSession struct {
	ID             string
	Ticket         string
	CompressedSize int64
	OriginalSize   int64
	ChunkSize      int64
	ChunkCount     int
	ReceivedBytes  int64
	Compression    Compression
	State          SessionState
	StartedAt      time.Time
}

// NewDownloadSession creates a session in the probing state.
func NewDownloadSession(ticket string) (*DownloadSession, error) {
	if strings.TrimSpace(ticket) == "" {
		return nil, fmt.Errorf("ticket is required")
	}
	return &DownloadSession{
		ID:          uuid.NewString(),
		Ticket:      ticket,
		Compression: CompressionNone,
		State:       SessionProbing,
		StartedAt:   time.Now().UTC(),
	}, nil
}

// Progress reports received bytes as a fraction of the transport size.
func (s *DownloadSession) Progress() float64 {
	if s == nil || s.CompressedSize <= 0 {
		return 0
	}
	p := float64(s.ReceivedBytes) / float64(s.CompressedSize)
	if p > 1 {
		p = 1
	}
	return p
}
