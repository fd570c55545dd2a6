package client

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zmcp/odata-sample/internal/constants"
	"github.com/zmcp/odata-sample/internal/debug"
)

// ErrMetadataTooLarge is returned when a response body exceeds the size limit
var ErrMetadataTooLarge = errors.New("metadata document too large")

// maxErrorBodyLength bounds the body excerpt quoted in HTTP errors
const maxErrorBodyLength = 500

// MetadataClient fetches $metadata documents from OData services
type MetadataClient struct {
	baseURL     string
	httpClient  *http.Client
	cookies     map[string]string
	username    string
	password    string
	bearerToken string
	maxSize     int64
	verbose     bool
	retryConfig *RetryConfig
	mu          sync.RWMutex // Guards cookies and bearerToken
}

// NewMetadataClient creates a client for the service rooted at baseURL
func NewMetadataClient(baseURL string, verbose bool) *MetadataClient {
	// Ensure base URL ends with /
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &MetadataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(constants.DefaultTimeout) * time.Second,
		},
		verbose:     verbose,
		retryConfig: DefaultRetryConfig(),
	}
}

// BaseURL returns the normalized service root
func (c *MetadataClient) BaseURL() string {
	return c.baseURL
}

// SetBasicAuth configures basic authentication
func (c *MetadataClient) SetBasicAuth(username, password string) {
	c.username = username
	c.password = password
}

// SetCookies configures cookie authentication
func (c *MetadataClient) SetCookies(cookies map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies = cookies
}

// SetBearerToken configures OAuth bearer authentication
func (c *MetadataClient) SetBearerToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bearerToken = token
}

// SetMaxSize limits the size of response bodies. Zero or less disables the limit.
func (c *MetadataClient) SetMaxSize(maxSize int64) {
	c.maxSize = maxSize
}

// SetTimeout overrides the HTTP timeout
func (c *MetadataClient) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
}

// SetRetryConfig configures retry behavior for failed requests
func (c *MetadataClient) SetRetryConfig(cfg *RetryConfig) {
	if cfg != nil {
		c.retryConfig = cfg
	}
}

// FetchMetadata downloads the raw $metadata document
func (c *MetadataClient) FetchMetadata(ctx context.Context) ([]byte, error) {
	req, err := c.buildRequest(ctx, constants.GET, constants.MetadataEndpoint)
	if err != nil {
		return nil, err
	}

	resp, body, err := c.doRequestWithRetry(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorFromBody(body, resp.StatusCode)
	}

	if c.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Received %d bytes of metadata\n", len(body))
	}

	return body, nil
}

// buildRequest creates an HTTP request with proper headers and authentication
func (c *MetadataClient) buildRequest(ctx context.Context, method, endpoint string) (*http.Request, error) {
	fullURL := c.baseURL + strings.TrimPrefix(endpoint, "/")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(constants.UserAgent, constants.DefaultUserAgent)
	req.Header.Set(constants.Accept, constants.ContentTypeXML)

	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{
			Name:  name,
			Value: value,
		})
	}

	if c.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Request headers: %s\n", debug.MaskHeaders(req.Header))
	}

	return req, nil
}

// doRequestWithRetry executes a request with exponential backoff. The last
// response is returned once retries are exhausted so callers can report it.
func (c *MetadataClient) doRequestWithRetry(req *http.Request) (*http.Response, []byte, error) {
	var lastErr error
	var lastResp *http.Response
	var lastBody []byte

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryConfig.CalculateBackoff(attempt - 1)
			if c.verbose {
				fmt.Fprintf(os.Stderr, "[VERBOSE] Retry attempt %d/%d after %v\n",
					attempt, c.retryConfig.MaxRetries, backoff)
			}
			select {
			case <-req.Context().Done():
				return nil, nil, req.Context().Err()
			case <-time.After(backoff):
			}
		}

		if c.verbose && attempt == 0 {
			fmt.Fprintf(os.Stderr, "[VERBOSE] %s %s\n", req.Method, debug.MaskURL(req.URL.String()))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			if c.verbose {
				fmt.Fprintf(os.Stderr, "[VERBOSE] Request failed: %v\n", err)
			}
			if req.Context().Err() != nil {
				return nil, nil, lastErr
			}
			continue
		}

		body, readErr := c.readBody(resp.Body)
		resp.Body.Close()
		if errors.Is(readErr, ErrMetadataTooLarge) {
			return nil, nil, readErr
		}
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", readErr)
			continue
		}

		lastResp = resp
		lastBody = body

		if c.retryConfig.ShouldRetry(resp.StatusCode, attempt) {
			if c.verbose {
				fmt.Fprintf(os.Stderr, "[VERBOSE] Received status %d, will retry\n", resp.StatusCode)
			}
			continue
		}

		return resp, body, nil
	}

	if lastResp != nil {
		return lastResp, lastBody, nil
	}
	return nil, nil, fmt.Errorf("all %d retries failed: %w", c.retryConfig.MaxRetries, lastErr)
}

// readBody reads at most maxSize bytes, failing when the body is longer
func (c *MetadataClient) readBody(r io.Reader) ([]byte, error) {
	if c.maxSize <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, c.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrMetadataTooLarge, c.maxSize)
	}
	return body, nil
}

// serviceError is the OData error payload. The v2 JSON format nests the
// message in an object, v4 uses a plain string.
type serviceError struct {
	Code    string          `json:"code" xml:"code"`
	Message json.RawMessage `json:"message" xml:"-"`
	XMLText string          `json:"-" xml:"message"`
}

func (e *serviceError) text() string {
	if e.XMLText != "" {
		return strings.TrimSpace(e.XMLText)
	}
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}
	var nested struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(e.Message, &nested); err == nil {
		return nested.Value
	}
	return ""
}

// parseErrorFromBody builds an error from a failed response, using the
// service's error payload when one can be decoded
func parseErrorFromBody(body []byte, statusCode int) error {
	var jsonResp struct {
		Error *serviceError `json:"error"`
	}
	if err := json.Unmarshal(body, &jsonResp); err == nil && jsonResp.Error != nil {
		return buildDetailedError(jsonResp.Error, statusCode)
	}

	var xmlResp serviceError
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("<")) {
		if err := xml.Unmarshal(trimmed, &xmlResp); err == nil && (xmlResp.Code != "" || xmlResp.XMLText != "") {
			return buildDetailedError(&xmlResp, statusCode)
		}
	}

	return fmt.Errorf("HTTP %d: %s", statusCode, truncate(string(trimmed), maxErrorBodyLength))
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func buildDetailedError(e *serviceError, statusCode int) error {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("OData error (HTTP %d)", statusCode))
	if e.Code != "" {
		msg.WriteString(fmt.Sprintf(" [%s]", e.Code))
	}
	if text := e.text(); text != "" {
		msg.WriteString(": " + text)
	}
	return fmt.Errorf("%s", msg.String())
}
