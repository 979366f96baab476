package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Ingest.
	mux.HandleFunc("POST /share-file", s.handleShareFile)
	mux.HandleFunc("POST /share-text", s.handleShareText)

	// Resolution and transfer.
	mux.HandleFunc("GET /inspect", s.handleInspect)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("GET /preview", s.handlePreview)

	return mux
}
