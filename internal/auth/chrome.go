package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/zmcp/odata-sample/internal/constants"
)

// ChromeAuthenticator captures SAP SSO session cookies from a Chrome window
// driven over the DevTools protocol
type ChromeAuthenticator struct {
	serviceURL   string
	headless     bool
	verbose      bool
	pollInterval time.Duration
}

// NewChromeAuthenticator creates a Chrome based authenticator
func NewChromeAuthenticator(serviceURL string, headless, verbose bool) *ChromeAuthenticator {
	return &ChromeAuthenticator{
		serviceURL:   serviceURL,
		headless:     headless,
		verbose:      verbose,
		pollInterval: time.Second,
	}
}

// Authenticate opens the service in Chrome and waits until an SAP session
// cookie for the service host appears
func (c *ChromeAuthenticator) Authenticate(ctx context.Context) (*Credentials, error) {
	if c.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Starting Chrome SSO authentication (headless: %v)\n", c.headless)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.SSOTimeout*time.Minute)
	defer cancel()

	// The defaults run headless; a later flag overrides an earlier one
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if !c.headless {
		opts = append(opts,
			chromedp.Flag("headless", false),
			chromedp.WindowSize(1024, 768),
		)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	chromeCtx, cancelChrome := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		if c.verbose {
			fmt.Fprintf(os.Stderr, "[CHROME] "+format+"\n", args...)
		}
	}))
	defer cancelChrome()

	if c.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Navigating to: %s\n", c.serviceURL)
	}
	if err := chromedp.Run(chromeCtx, network.Enable(), chromedp.Navigate(c.serviceURL)); err != nil {
		return nil, fmt.Errorf("chrome automation failed: %w", err)
	}

	if !c.headless {
		fmt.Fprintf(os.Stderr, "\n=== Chrome Browser Authentication ===\n")
		fmt.Fprintf(os.Stderr, "A Chrome window has opened. Please log in with your credentials.\n")
		fmt.Fprintf(os.Stderr, "The window closes automatically after a successful login.\n")
		fmt.Fprintf(os.Stderr, "=====================================\n\n")
	}

	host := serviceHost(c.serviceURL)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chrome authentication did not complete: %w", ctx.Err())
		case <-ticker.C:
		}

		var cookies []*network.Cookie
		err := chromedp.Run(chromeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().WithUrls([]string{c.serviceURL}).Do(ctx)
			return err
		}))
		if err != nil {
			if chromeCtx.Err() != nil {
				return nil, fmt.Errorf("chrome window was closed: %w", err)
			}
			if c.verbose {
				fmt.Fprintf(os.Stderr, "[VERBOSE] Error getting cookies: %v\n", err)
			}
			continue
		}

		captured := cookiesForHost(cookies, host)
		if hasSAPSession(captured) {
			if c.verbose {
				fmt.Fprintf(os.Stderr, "[VERBOSE] Captured %d cookies for %s\n", len(captured), host)
			}
			return &Credentials{Cookies: captured}, nil
		}
	}
}

// cookiesForHost keeps the cookies whose domain covers host
func cookiesForHost(cookies []*network.Cookie, host string) map[string]string {
	out := make(map[string]string)
	for _, cookie := range cookies {
		if cookie == nil || !domainMatches(cookie.Domain, host) {
			continue
		}
		out[cookie.Name] = cookie.Value
	}
	return out
}

func domainMatches(domain, host string) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	host = strings.ToLower(host)
	if domain == "" || host == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// hasSAPSession reports whether cookies hold an SAP logon ticket or session
func hasSAPSession(cookies map[string]string) bool {
	for name, value := range cookies {
		if value == "" {
			continue
		}
		if name == constants.SAPSSOCookie || strings.HasPrefix(name, "SAP_SESSIONID") {
			return true
		}
	}
	return false
}
