package server

import (
	"net/http"

	"blobdrop/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	count, err := s.records.CountRecords(r.Context())
	if err != nil {
		s.writeServiceError(w, r, storeFailure(err))
		return
	}
	schemaVersion, err := s.records.SchemaVersion()
	if err != nil {
		s.writeServiceError(w, r, storeFailure(err))
		return
	}

	s.writeJSON(w, http.StatusOK, api.InfoResponse{
		Name:          "blobdrop",
		Version:       s.version,
		SchemaVersion: schemaVersion,
		RecordCount:   count,
	})
}
