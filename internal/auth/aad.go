package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
	"github.com/pkg/browser"
)

// tokenRefreshMargin is how long before expiry a cached token is replaced
const tokenRefreshMargin = 5 * time.Minute

var errNoAccount = errors.New("no cached account")

// tokenClient is the part of the MSAL public client used here
type tokenClient interface {
	Accounts(ctx context.Context) ([]public.Account, error)
	AcquireTokenSilent(ctx context.Context, scopes []string, opts ...public.AcquireSilentOption) (public.AuthResult, error)
	AcquireTokenByDeviceCode(ctx context.Context, scopes []string, opts ...public.AcquireByDeviceCodeOption) (public.DeviceCode, error)
}

// AADAuthenticator obtains an Azure AD bearer token with the device code flow
type AADAuthenticator struct {
	config  *AADConfig
	client  tokenClient
	prompt  io.Writer
	openURL func(url string) error
	verbose bool

	mu     sync.Mutex
	cached *Credentials
}

// NewAADAuthenticator creates an authenticator backed by an MSAL public client
func NewAADAuthenticator(config *AADConfig, verbose bool) (*AADAuthenticator, error) {
	opts := []public.Option{public.WithAuthority(config.AuthorityURL())}
	if config.CacheFile != "" {
		opts = append(opts, public.WithCache(&fileCache{path: config.CacheFile}))
	}

	client, err := public.New(config.ClientID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MSAL client: %w", err)
	}

	return &AADAuthenticator{
		config:  config,
		client:  client,
		prompt:  os.Stderr,
		openURL: openInBrowser,
		verbose: verbose,
	}, nil
}

// Authenticate returns a bearer token, reusing a cached one while it is fresh
func (a *AADAuthenticator) Authenticate(ctx context.Context) (*Credentials, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && time.Now().Add(tokenRefreshMargin).Before(a.cached.ExpiresAt) {
		if a.verbose {
			fmt.Fprintf(os.Stderr, "[VERBOSE] Using cached AAD token (expires: %s)\n", a.cached.ExpiresAt.Format(time.RFC3339))
		}
		return a.cached, nil
	}

	result, err := a.acquireSilent(ctx)
	if err == nil {
		if a.verbose {
			fmt.Fprintf(os.Stderr, "[VERBOSE] Acquired AAD token silently\n")
		}
	} else {
		result, err = a.acquireByDeviceCode(ctx)
		if err != nil {
			return nil, err
		}
	}

	a.cached = &Credentials{
		BearerToken: result.AccessToken,
		ExpiresAt:   result.ExpiresOn,
	}
	if a.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] AAD authentication successful. Token expires: %s\n", result.ExpiresOn.Format(time.RFC3339))
	}
	return a.cached, nil
}

func (a *AADAuthenticator) acquireSilent(ctx context.Context) (public.AuthResult, error) {
	accounts, err := a.client.Accounts(ctx)
	if err != nil {
		return public.AuthResult{}, err
	}
	if len(accounts) == 0 {
		return public.AuthResult{}, errNoAccount
	}
	return a.client.AcquireTokenSilent(ctx, a.config.Scopes, public.WithSilentAccount(accounts[0]))
}

func (a *AADAuthenticator) acquireByDeviceCode(ctx context.Context) (public.AuthResult, error) {
	deviceCode, err := a.client.AcquireTokenByDeviceCode(ctx, a.config.Scopes)
	if err != nil {
		return public.AuthResult{}, fmt.Errorf("failed to initiate device code flow: %w", err)
	}

	// stdout carries the conversion result, so the prompt goes to stderr
	fmt.Fprintf(a.prompt, "\n=== Azure AD Authentication Required ===\n")
	fmt.Fprintf(a.prompt, "To sign in, use a web browser to open the page %s\n", deviceCode.Result.VerificationURL)
	fmt.Fprintf(a.prompt, "Enter the code: %s\n", deviceCode.Result.UserCode)
	fmt.Fprintf(a.prompt, "Scopes: %s\n", strings.Join(a.config.Scopes, " "))
	fmt.Fprintf(a.prompt, "Waiting for authentication...\n")
	fmt.Fprintf(a.prompt, "========================================\n\n")

	if a.config.OpenBrowser {
		if err := a.openURL(deviceCode.Result.VerificationURL); err != nil {
			fmt.Fprintf(a.prompt, "Failed to open browser: %v\n", err)
		}
	}

	result, err := deviceCode.AuthenticationResult(ctx)
	if err != nil {
		return public.AuthResult{}, fmt.Errorf("device code authentication failed: %w", err)
	}
	return result, nil
}

func openInBrowser(url string) error {
	browser.Stdout = os.Stderr
	return browser.OpenURL(url)
}
