package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"blobdrop/internal/blobstore"
	"blobdrop/internal/compress"
	"blobdrop/internal/store"
)

const (
	allowRemoteEnvKey     = "BLOBDROP_ALLOW_REMOTE"
	readHeaderTimeout     = 5 * time.Second
	idleTimeout           = 60 * time.Second
	shareConcurrencyLimit = 4
)

// Options configures optional server behavior.
type Options struct {
	// AdvertiseAddrs are the base URLs embedded in issued tickets.
	AdvertiseAddrs []string
	// MaxUploadBytes bounds one multipart upload body.
	MaxUploadBytes int64
	// MultipartMaxMemory bounds in-memory multipart buffering.
	MultipartMaxMemory int64
	Version            string
}

// Server wraps HTTP handlers for the blobdrop transfer API.
type Server struct {
	addr           string
	records        *store.Store
	blobs          blobstore.ContentStore
	shareService   *ShareService
	inspectService *InspectService
	negotiator     *compress.Negotiator
	logger         *slog.Logger
	version        string
	maxUploadBytes int64
	multipartMem   int64
	shareLimiter   chan struct{}
}

// New creates a new server instance.
func New(addr string, records *store.Store, blobs blobstore.ContentStore, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 2 << 30
	}
	if opts.MultipartMaxMemory <= 0 {
		opts.MultipartMaxMemory = 8 << 20
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	return &Server{
		addr:           addr,
		records:        records,
		blobs:          blobs,
		shareService:   NewShareService(records, blobs, opts.AdvertiseAddrs, logger),
		inspectService: NewInspectService(records, blobs, logger),
		negotiator:     compress.NewNegotiator(),
		logger:         logger,
		version:        opts.Version,
		maxUploadBytes: opts.MaxUploadBytes,
		multipartMem:   opts.MultipartMaxMemory,
		shareLimiter:   make(chan struct{}, shareConcurrencyLimit),
	}
}

// Handler returns the routed HTTP handler, for serving and for tests.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
