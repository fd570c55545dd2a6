package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zmcp/odata-sample/internal/constants"
	"github.com/zmcp/odata-sample/internal/debug"
	"github.com/zmcp/odata-sample/internal/models"
	"github.com/zmcp/odata-sample/internal/transport"
)

// ParseServer serves the metadata parse endpoint over HTTP
type ParseServer struct {
	addr           string
	handler        transport.Handler
	allowRemote    bool
	maxRequestSize int64
	verbose        bool
	tracer         *debug.TraceLogger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewParseServer creates an HTTP transport listening on addr. Unless
// allowRemote is set, only loopback clients are served.
func NewParseServer(addr string, handler transport.Handler, allowRemote bool) *ParseServer {
	return &ParseServer{
		addr:           addr,
		handler:        handler,
		allowRemote:    allowRemote,
		maxRequestSize: constants.DefaultMaxRequestSize,
	}
}

// SetMaxRequestSize limits the size of request bodies
func (t *ParseServer) SetMaxRequestSize(size int64) {
	if size > 0 {
		t.maxRequestSize = size
	}
}

// SetVerbose enables request logging to stderr
func (t *ParseServer) SetVerbose(verbose bool) {
	t.verbose = verbose
}

// SetTracer sets the trace logger
func (t *ParseServer) SetTracer(tracer *debug.TraceLogger) {
	t.tracer = tracer
}

// Addr returns the listening address once Start has bound it, or the
// configured address before that
func (t *ParseServer) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}

// Handler returns the HTTP handler with every endpoint and middleware applied
func (t *ParseServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(constants.ParseEndpoint, t.handleParse)
	mux.HandleFunc(constants.HealthEndpoint, t.handleHealth)
	return t.addSecurityHeaders(mux)
}

// Start binds the address and serves until ctx is cancelled
func (t *ParseServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.addr, err)
	}

	server := &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	t.mu.Lock()
	t.server = server
	t.listener = listener
	t.mu.Unlock()

	if t.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Serving %s on %s\n", constants.ParseEndpoint, listener.Addr())
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		return t.Close()
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

// Close gracefully shuts down the HTTP server
func (t *ParseServer) Close() error {
	t.mu.Lock()
	server := t.server
	t.mu.Unlock()

	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// addSecurityHeaders refuses remote clients unless allowed, adds security
// headers, and answers CORS preflight requests from localhost pages
func (t *ParseServer) addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.allowRemote && !isLocalhost(r.RemoteAddr) {
			writeError(w, http.StatusForbidden, "Remote connections not allowed without --allow-remote")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		if origin := r.Header.Get("Origin"); origin != "" && isLocalOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleParse answers POST /api/parse with the sample result for the
// submitted metadata document
func (t *ParseServer) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body := http.MaxBytesReader(w, r.Body, t.maxRequestSize)
	var req models.ParseRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		t.fail(w, http.StatusInternalServerError, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if req.Metadata == "" {
		t.fail(w, http.StatusBadRequest, transport.ErrMetadataRequired)
		return
	}

	result, err := t.handler(r.Context(), []byte(req.Metadata))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, transport.ErrMetadataRequired) {
			status = http.StatusBadRequest
		}
		t.fail(w, status, err)
		return
	}

	w.Header().Set(constants.ContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil && t.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Error encoding response: %v\n", err)
	}
}

func (t *ParseServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(constants.ContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":   "ok",
		"endpoint": constants.ParseEndpoint,
	})
}

// fail logs err and writes the public message for status. Parse failures
// never expose the underlying error to the client.
func (t *ParseServer) fail(w http.ResponseWriter, status int, err error) {
	t.tracer.LogError("Parse request failed", err, map[string]int{"status": status})
	if t.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Parse request failed (%d): %v\n", status, err)
	}

	message := constants.ErrParseFailed
	if status == http.StatusBadRequest {
		message = constants.ErrMetadataRequired
	}
	writeError(w, status, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set(constants.ContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}

// isLocalhost checks if a host or host:port is a loopback address
func isLocalhost(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// isLocalOrigin checks if a CORS origin such as http://localhost:3000 is local
func isLocalOrigin(origin string) bool {
	_, hostPort, ok := strings.Cut(origin, "://")
	if !ok {
		return false
	}
	return isLocalhost(hostPort)
}
