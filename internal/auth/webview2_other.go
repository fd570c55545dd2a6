//go:build !windows

package auth

import (
	"context"
	"errors"
)

// ErrWebView2Unsupported is returned outside Windows
var ErrWebView2Unsupported = errors.New("WebView2 authentication is only available on Windows")

// WebView2Authenticator is not available on non-Windows platforms
type WebView2Authenticator struct {
	serviceURL string
	verbose    bool
}

// NewWebView2Authenticator creates a WebView2 authenticator (non-Windows stub)
func NewWebView2Authenticator(serviceURL string, verbose bool) *WebView2Authenticator {
	return &WebView2Authenticator{serviceURL: serviceURL, verbose: verbose}
}

// Authenticate returns ErrWebView2Unsupported
func (w *WebView2Authenticator) Authenticate(ctx context.Context) (*Credentials, error) {
	return nil, ErrWebView2Unsupported
}
