package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/odata-sample/internal/models"
	"github.com/zmcp/odata-sample/internal/sample"
	"github.com/zmcp/odata-sample/internal/transport"
)

func stubHandler(ctx context.Context, metadata []byte) (*models.ParsedResult, error) {
	if string(metadata) == "bad" {
		return nil, errors.New("failed to parse metadata: XML syntax error")
	}
	result := models.NewParsedResult()
	entity := sample.NewObject()
	entity.Set("ID", sample.Number(0))
	result.Entities.Set("Product", sample.ObjectValue(entity))
	return result, nil
}

func newLocalRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:54321"
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandleParse(t *testing.T) {
	server := NewParseServer(":0", stubHandler, false)
	handler := server.Handler()

	tests := []struct {
		name          string
		body          string
		expectedCode  int
		expectedError string
	}{
		{"valid metadata", `{"metadata":"<edmx/>"}`, http.StatusOK, ""},
		{"missing metadata", `{}`, http.StatusBadRequest, "Metadata is required"},
		{"empty metadata", `{"metadata":""}`, http.StatusBadRequest, "Metadata is required"},
		{"null metadata", `{"metadata":null}`, http.StatusBadRequest, "Metadata is required"},
		{"parse failure", `{"metadata":"bad"}`, http.StatusInternalServerError, "Failed to parse metadata"},
		{"invalid JSON", `{"metadata":`, http.StatusInternalServerError, "Failed to parse metadata"},
		{"wrong type", `{"metadata":42}`, http.StatusInternalServerError, "Failed to parse metadata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, newLocalRequest(http.MethodPost, "/api/parse", tt.body))

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decodeError(t, rec))
			}
		})
	}
}

func TestHandleParseSuccessBody(t *testing.T) {
	handler := NewParseServer(":0", stubHandler, false).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newLocalRequest(http.MethodPost, "/api/parse", `{"metadata":"<edmx/>"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"actions":[],"functions":[],"entities":{"Product":{"ID":0}},"complexTypes":{}}`, rec.Body.String())
}

func TestHandleParseDoesNotLeakErrors(t *testing.T) {
	handler := NewParseServer(":0", stubHandler, false).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newLocalRequest(http.MethodPost, "/api/parse", `{"metadata":"bad"}`))

	assert.NotContains(t, rec.Body.String(), "XML syntax error")
}

func TestHandleParseHandlerReportsMissingMetadata(t *testing.T) {
	handler := NewParseServer(":0", func(ctx context.Context, metadata []byte) (*models.ParsedResult, error) {
		return nil, fmt.Errorf("wrapped: %w", transport.ErrMetadataRequired)
	}, false).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newLocalRequest(http.MethodPost, "/api/parse", `{"metadata":"  "}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Metadata is required", decodeError(t, rec))
}

func TestHandleParseMethodNotAllowed(t *testing.T) {
	handler := NewParseServer(":0", stubHandler, false).Handler()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newLocalRequest(method, "/api/parse", ""))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, "POST", rec.Header().Get("Allow"))
	}
}

func TestHandleParseRequestTooLarge(t *testing.T) {
	server := NewParseServer(":0", stubHandler, false)
	server.SetMaxRequestSize(64)
	handler := server.Handler()

	body := `{"metadata":"` + strings.Repeat("x", 200) + `"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newLocalRequest(http.MethodPost, "/api/parse", body))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSecurityMiddleware(t *testing.T) {
	t.Run("remote client refused", func(t *testing.T) {
		handler := NewParseServer(":0", stubHandler, false).Handler()

		req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(`{"metadata":"<edmx/>"}`))
		req.RemoteAddr = "203.0.113.7:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("remote client allowed", func(t *testing.T) {
		handler := NewParseServer(":0", stubHandler, true).Handler()

		req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(`{"metadata":"<edmx/>"}`))
		req.RemoteAddr = "203.0.113.7:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("security headers", func(t *testing.T) {
		handler := NewParseServer(":0", stubHandler, false).Handler()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newLocalRequest(http.MethodGet, "/health", ""))

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	})

	t.Run("CORS preflight from localhost page", func(t *testing.T) {
		handler := NewParseServer(":0", stubHandler, false).Handler()

		req := newLocalRequest(http.MethodOptions, "/api/parse", "")
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no CORS for foreign origin", func(t *testing.T) {
		handler := NewParseServer(":0", stubHandler, false).Handler()

		req := newLocalRequest(http.MethodPost, "/api/parse", `{"metadata":"<edmx/>"}`)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestHealth(t *testing.T) {
	handler := NewParseServer(":0", stubHandler, false).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newLocalRequest(http.MethodGet, "/health", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","endpoint":"/api/parse"}`, rec.Body.String())
}

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		addr     string
		expected bool
	}{
		{"127.0.0.1:8080", true},
		{"127.0.0.1", true},
		{"[::1]:8080", true},
		{"::1", true},
		{"localhost:3000", true},
		{"localhost", true},
		{"192.168.1.10:8080", false},
		{"example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := isLocalhost(tt.addr); got != tt.expected {
				t.Errorf("isLocalhost(%q) = %v, want %v", tt.addr, got, tt.expected)
			}
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	server := NewParseServer("127.0.0.1:0", stubHandler, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Start(ctx)
	}()

	// Wait for the listener to be bound
	var addr string
	require.Eventually(t, func() bool {
		addr = server.Addr()
		return addr != "127.0.0.1:0"
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post("http://"+addr+"/api/parse", "application/json", strings.NewReader(`{"metadata":"<edmx/>"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"Product"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartInvalidAddress(t *testing.T) {
	server := NewParseServer("256.0.0.1:99999", stubHandler, false)
	err := server.Start(context.Background())
	assert.Error(t, err)
}
