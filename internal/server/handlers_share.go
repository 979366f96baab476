package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"blobdrop/internal/api"
	"blobdrop/internal/models"
)

func (s *Server) handleShareFile(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.shareLimiter, w, r, "share") {
		return
	}
	defer s.releaseLimiter(s.shareLimiter)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.multipartMem); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("file is required"), ErrCodeMissingRequired))
		return
	}
	defer file.Close()

	compression, err := models.ParseCompression(r.FormValue("compression"))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(err))
		return
	}

	var originalSize int64
	if raw := strings.TrimSpace(r.FormValue("originalSize")); raw != "" {
		originalSize, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || originalSize < 0 {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(fmt.Errorf("invalid originalSize %q", raw)))
			return
		}
	}

	record, err := s.shareService.ShareBytes(r.Context(), ShareInput{
		Source:       file,
		OriginalName: firstNonEmpty(r.FormValue("originalName"), header.Filename),
		OriginalSize: originalSize,
		OriginalType: strings.TrimSpace(r.FormValue("originalType")),
		Compression:  compression,
		Owner:        r.FormValue("owner"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleShareText(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.shareLimiter, w, r, "share") {
		return
	}
	defer s.releaseLimiter(s.shareLimiter)

	var req api.ShareTextRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	record, err := s.shareService.ShareText(r.Context(), req.Text, req.Owner, s.negotiator)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	encoded := strings.TrimSpace(r.URL.Query().Get("ticket"))
	if encoded == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("ticket is required"), ErrCodeMissingRequired))
		return
	}

	record, err := s.inspectService.Resolve(r.Context(), encoded)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.InspectResponse{
		BlobRecord:        record,
		DownloadURLTicket: record.Ticket,
	})
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
