package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"blobdrop/internal/compress"
	"blobdrop/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Minute
	httpTimeoutEnvKey  = "BLOBDROP_HTTP_TIMEOUT"
)

// Transfer metadata headers. These names are part of the wire
// protocol; clients on other stacks read them verbatim.
const (
	HeaderFileHash     = "X-File-Hash"
	HeaderCompression  = "X-Compression"
	HeaderOriginalName = "X-Original-Name"
	HeaderOriginalSize = "X-Original-Size"
	HeaderOriginalType = "X-Original-Type"
)

// Client is an HTTP client for the blobdrop API.
type Client struct {
	baseURL    string
	http       *http.Client
	negotiator *compress.Negotiator
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: httpTimeoutFromEnv()},
		negotiator: compress.NewNegotiator(),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// GetInfo fetches server identity and record counts.
func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.doJSON(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

// ShareFile negotiates compression for the file at path and uploads
// it. The upload always carries the original name, size and mime type;
// the transport bytes may be the gzip form when it pays off.
func (c *Client) ShareFile(ctx context.Context, path, owner string) (models.BlobRecord, error) {
	var zero models.BlobRecord

	info, err := os.Stat(path)
	if err != nil {
		return zero, err
	}
	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}
	payload, compression := c.negotiator.Compress(data, mimeType, name)

	return c.uploadMultipart(ctx, payload, shareMeta{
		Owner:        owner,
		OriginalName: name,
		OriginalSize: info.Size(),
		OriginalType: mimeType,
		Compression:  compression,
	})
}

// ShareText shares a text snippet; the server fixes mime to text/plain.
func (c *Client) ShareText(ctx context.Context, text, owner string) (models.BlobRecord, error) {
	var resp models.BlobRecord
	err := c.doJSON(ctx, http.MethodPost, "/share-text", nil, ShareTextRequest{Text: text, Owner: owner}, &resp)
	return resp, err
}

// Inspect resolves a ticket to its metadata record.
func (c *Client) Inspect(ctx context.Context, encodedTicket string) (InspectResponse, error) {
	var resp InspectResponse
	query := url.Values{"ticket": {encodedTicket}}
	err := c.doJSON(ctx, http.MethodGet, "/inspect", query, nil, &resp)
	return resp, err
}

// Preview fetches a bounded head-of-file sample.
func (c *Client) Preview(ctx context.Context, encodedTicket string, byteLimit int64) (PreviewResponse, error) {
	var resp PreviewResponse
	query := url.Values{"ticket": {encodedTicket}}
	if byteLimit > 0 {
		query.Set("bytes", strconv.FormatInt(byteLimit, 10))
	}
	err := c.doJSON(ctx, http.MethodGet, "/preview", query, nil, &resp)
	return resp, err
}

// Probe issues the HEAD-equivalent metadata request for a download.
func (c *Client) Probe(ctx context.Context, encodedTicket string) (ProbeResult, error) {
	var zero ProbeResult
	req, err := c.newRequest(ctx, http.MethodHead, "/download", url.Values{"ticket": {encodedTicket}}, nil)
	if err != nil {
		return zero, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return zero, err
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return zero, statusError(resp)
	}

	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	originalSize, _ := strconv.ParseInt(resp.Header.Get(HeaderOriginalSize), 10, 64)
	compression, err := models.ParseCompression(resp.Header.Get(HeaderCompression))
	if err != nil {
		return zero, err
	}

	return ProbeResult{
		TransportSize:  size,
		RangeSupported: strings.Contains(resp.Header.Get("Accept-Ranges"), "bytes"),
		Compression:    compression,
		Hash:           resp.Header.Get(HeaderFileHash),
		MimeType:       resp.Header.Get("Content-Type"),
		OriginalName:   resp.Header.Get(HeaderOriginalName),
		OriginalSize:   originalSize,
		OriginalType:   resp.Header.Get(HeaderOriginalType),
	}, nil
}

// FetchRange downloads the inclusive byte range [start, end] of the
// transport payload and verifies the exact length arrived.
func (c *Client) FetchRange(ctx context.Context, encodedTicket string, start, end int64) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/download", url.Values{"ticket": {encodedTicket}}, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusPartialContent {
		return nil, statusError(resp)
	}

	want := end - start + 1
	data, err := io.ReadAll(io.LimitReader(resp.Body, want+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != want {
		return nil, fmt.Errorf("range bytes=%d-%d returned %d bytes, want %d", start, end, len(data), want)
	}
	return data, nil
}

// FetchStream opens a single sequential download of the full transport
// payload. The caller owns the returned body.
func (c *Client) FetchStream(ctx context.Context, encodedTicket string) (io.ReadCloser, int64, models.Compression, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/download", url.Values{"ticket": {encodedTicket}}, nil)
	if err != nil {
		return nil, 0, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, "", err
	}
	if resp.StatusCode != http.StatusOK {
		defer drainAndClose(resp.Body)
		return nil, 0, "", statusError(resp)
	}
	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	compression, err := models.ParseCompression(resp.Header.Get(HeaderCompression))
	if err != nil {
		defer drainAndClose(resp.Body)
		return nil, 0, "", err
	}
	return resp.Body, size, compression, nil
}

type shareMeta struct {
	Owner        string
	OriginalName string
	OriginalSize int64
	OriginalType string
	Compression  models.Compression
}

func (c *Client) uploadMultipart(ctx context.Context, payload []byte, meta shareMeta) (models.BlobRecord, error) {
	var zero models.BlobRecord

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"owner":        meta.Owner,
		"originalName": meta.OriginalName,
		"originalSize": strconv.FormatInt(meta.OriginalSize, 10),
		"originalType": meta.OriginalType,
		"compression":  string(meta.Compression),
	}
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return zero, err
		}
	}
	part, err := mw.CreateFormFile("file", meta.OriginalName)
	if err != nil {
		return zero, err
	}
	if _, err := part.Write(payload); err != nil {
		return zero, err
	}
	if err := mw.Close(); err != nil {
		return zero, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/share-file", nil, &body)
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, err
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return zero, statusError(resp)
	}

	var record models.BlobRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return zero, fmt.Errorf("decode share response: %w", err)
	}
	return record, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return http.NewRequestWithContext(ctx, method, u, body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := c.newRequest(ctx, method, path, query, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(resp *http.Response) error {
	var apiErr ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}

func httpTimeoutFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if raw == "" {
		return defaultHTTPTimeout
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return defaultHTTPTimeout
}
