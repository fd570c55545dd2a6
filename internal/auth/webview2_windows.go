//go:build windows

package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jchv/go-webview2"

	"github.com/zmcp/odata-sample/internal/config"
	"github.com/zmcp/odata-sample/internal/constants"
)

// ErrWebView2Unsupported is returned outside Windows
var ErrWebView2Unsupported = errors.New("WebView2 authentication is only available on Windows")

// cookieMonitor reports document.cookie to Go whenever it changes
const cookieMonitor = `
	let lastCookies = '';
	function reportCookies() {
		const current = document.cookie;
		if (current !== lastCookies) {
			lastCookies = current;
			if (window.notifyCookies) {
				window.notifyCookies(current);
			}
		}
	}
	setInterval(reportCookies, 1000);
	window.addEventListener('load', reportCookies);
`

// WebView2Authenticator captures SAP SSO cookies from an Edge WebView2 window
type WebView2Authenticator struct {
	serviceURL string
	verbose    bool

	mu      sync.Mutex
	cookies map[string]string
	done    chan struct{}
}

// NewWebView2Authenticator creates a WebView2 authenticator
func NewWebView2Authenticator(serviceURL string, verbose bool) *WebView2Authenticator {
	return &WebView2Authenticator{
		serviceURL: serviceURL,
		verbose:    verbose,
		cookies:    make(map[string]string),
		done:       make(chan struct{}, 1),
	}
}

// Authenticate opens the service in a WebView2 window and waits for the SAP
// logon ticket cookie
func (w *WebView2Authenticator) Authenticate(ctx context.Context) (*Credentials, error) {
	if w.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Starting WebView2 authentication\n")
	}

	view := webview2.New(false)
	if view == nil {
		return nil, fmt.Errorf("failed to create WebView2 instance. Please ensure Edge WebView2 Runtime is installed")
	}
	defer view.Destroy()

	view.SetTitle("SAP Authentication - OData Sample")
	view.SetSize(1024, 768, webview2.HintNone)
	view.Bind("notifyCookies", w.record)
	view.Init(cookieMonitor)
	view.Navigate(w.serviceURL)

	go view.Run()

	select {
	case <-w.done:
		view.Terminate()
	case <-ctx.Done():
		view.Terminate()
		return nil, ctx.Err()
	case <-time.After(constants.SSOTimeout * time.Minute):
		view.Terminate()
		return nil, fmt.Errorf("authentication timeout")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	result := make(map[string]string, len(w.cookies))
	for name, value := range w.cookies {
		result[name] = value
	}
	return &Credentials{Cookies: result}, nil
}

func (w *WebView2Authenticator) record(cookieString string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for name, value := range config.ParseCookieString(cookieString) {
		w.cookies[name] = value
		if w.verbose {
			fmt.Fprintf(os.Stderr, "[VERBOSE] Cookie: %s\n", name)
		}
	}

	if hasSAPSession(w.cookies) {
		select {
		case w.done <- struct{}{}:
		default:
		}
	}
}
