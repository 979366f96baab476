package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"blobdrop/internal/api"
	"blobdrop/internal/models"
	"blobdrop/internal/stream"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
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

	rangeReq, hasRange, err := parseRangeHeader(r.Header.Get("Range"))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidRange))
		return
	}
	if rangeReq != nil && rangeReq.Start < 0 {
		// Suffix form: the final n transport bytes.
		n := -rangeReq.Start
		start := record.TransportSize() - n
		if start < 0 {
			start = 0
		}
		rangeReq = &stream.ByteRange{Start: start, End: -1}
	}

	reader, err := stream.OpenRange(r.Context(), s.blobs, record.Hash, rangeReq)
	if errors.Is(err, stream.ErrRangeUnsatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", record.TransportSize()))
		s.writeErrorReq(w, r, http.StatusRequestedRangeNotSatisfiable, rangeUnsatisfiable(err))
		return
	}
	if err != nil {
		s.writeServiceError(w, r, storeFailure(err))
		return
	}
	defer reader.Close()

	header := w.Header()
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Type", record.MimeType)
	header.Set("Content-Length", strconv.FormatInt(reader.Length(), 10))
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": record.Name}))
	header.Set(api.HeaderFileHash, record.Hash)
	header.Set(api.HeaderCompression, string(record.Compression))
	header.Set(api.HeaderOriginalName, record.Name)
	header.Set(api.HeaderOriginalSize, strconv.FormatInt(record.Size, 10))
	header.Set(api.HeaderOriginalType, record.OriginalType)

	status := http.StatusOK
	if hasRange {
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", reader.Start, reader.End, reader.Size))
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := reader.WriteTo(w); err != nil {
		// Headers are gone; all we can do is log the broken transfer.
		s.log().Debug("download stream interrupted", "hash", record.Hash, "error", err)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	encoded := strings.TrimSpace(r.URL.Query().Get("ticket"))
	if encoded == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("ticket is required"), ErrCodeMissingRequired))
		return
	}

	limit := int64(stream.PreviewMaxBytes)
	if raw := strings.TrimSpace(r.URL.Query().Get("bytes")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid bytes %q", raw), ErrCodeInvalidQuery))
			return
		}
		limit = parsed
	}

	record, err := s.inspectService.Resolve(r.Context(), encoded)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	data, err := s.previewBytes(r, record.Hash, record.Compression == models.CompressionGzip, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := api.PreviewResponse{
		IsText:   stream.IsTextContent(record.OriginalType, record.Name),
		MimeType: record.OriginalType,
	}
	if resp.IsText {
		resp.TextContent = string(data)
	} else {
		resp.Base64 = base64.StdEncoding.EncodeToString(data)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// previewBytes samples the beginning of the logical content. Compressed
// blobs are decoded through a streaming reader so only the preview
// window is ever held in memory.
func (s *Server) previewBytes(r *http.Request, hash string, gzipped bool, limit int64) ([]byte, error) {
	if limit < stream.PreviewMinBytes {
		limit = stream.PreviewMinBytes
	}
	if limit > stream.PreviewMaxBytes {
		limit = stream.PreviewMaxBytes
	}

	if !gzipped {
		preview, err := stream.ExtractPreview(r.Context(), s.blobs, hash, "", "", limit)
		if err != nil {
			return nil, storeFailure(err)
		}
		return preview.Bytes, nil
	}

	raw, err := s.blobs.Open(r.Context(), hash)
	if err != nil {
		return nil, storeFailure(err)
	}
	defer raw.Close()

	decoded, err := s.negotiator.DecompressStream(raw)
	if err != nil {
		return nil, internalError(err)
	}
	defer decoded.Close()

	data, err := io.ReadAll(io.LimitReader(decoded, limit))
	if err != nil {
		return nil, internalError(err)
	}
	return data, nil
}

// parseRangeHeader understands single-range forms bytes=a-b, bytes=a-
// and bytes=-n. Multi-range requests are rejected.
func parseRangeHeader(raw string) (*stream.ByteRange, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false, nil
	}
	value, ok := strings.CutPrefix(raw, "bytes=")
	if !ok {
		return nil, false, fmt.Errorf("unsupported range unit in %q", raw)
	}
	if strings.Contains(value, ",") {
		return nil, false, fmt.Errorf("multiple ranges are not supported")
	}
	startRaw, endRaw, ok := strings.Cut(value, "-")
	if !ok {
		return nil, false, fmt.Errorf("malformed range %q", raw)
	}
	startRaw = strings.TrimSpace(startRaw)
	endRaw = strings.TrimSpace(endRaw)

	// Suffix form bytes=-n: the final n bytes.
	if startRaw == "" {
		n, err := strconv.ParseInt(endRaw, 10, 64)
		if err != nil || n <= 0 {
			return nil, false, fmt.Errorf("malformed suffix range %q", raw)
		}
		return &stream.ByteRange{Start: -n, End: -1}, true, nil
	}

	start, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil || start < 0 {
		return nil, false, fmt.Errorf("malformed range start in %q", raw)
	}
	end := int64(-1) // open-ended: clamped to size-1 downstream
	if endRaw != "" {
		end, err = strconv.ParseInt(endRaw, 10, 64)
		if err != nil || end < start {
			return nil, false, fmt.Errorf("malformed range end in %q", raw)
		}
	}
	return &stream.ByteRange{Start: start, End: end}, true, nil
}
