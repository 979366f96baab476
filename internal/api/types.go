// Package api defines the wire types of the blobdrop HTTP surface and
// a client for consuming it.
package api

import "blobdrop/internal/models"

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse reports server identity and record counts.
type InfoResponse struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	SchemaVersion int    `json:"schema_version"`
	RecordCount   int64  `json:"record_count"`
}

// ShareTextRequest shares a text snippet.
type ShareTextRequest struct {
	Text  string `json:"text"`
	Owner string `json:"owner,omitempty"`
}

// InspectResponse is a BlobRecord plus the ticket to pass to /download.
type InspectResponse struct {
	models.BlobRecord
	DownloadURLTicket string `json:"downloadUrlTicket"`
}

// PreviewResponse is a bounded head-of-file sample. Text previews
// carry textContent; binary previews carry base64.
type PreviewResponse struct {
	IsText      bool   `json:"isText"`
	MimeType    string `json:"mimeType"`
	TextContent string `json:"textContent,omitempty"`
	Base64      string `json:"base64,omitempty"`
}

// ProbeResult is what a metadata probe (HEAD /download) learns about a
// transfer before any payload bytes move.
type ProbeResult struct {
	TransportSize  int64
	RangeSupported bool
	Compression    models.Compression
	Hash           string
	MimeType       string
	OriginalName   string
	OriginalSize   int64
	OriginalType   string
}
