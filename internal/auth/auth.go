// Package auth signs in to SSO protected OData services and hands the
// resulting bearer token or session cookies to the metadata client.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/zmcp/odata-sample/internal/config"
	"github.com/zmcp/odata-sample/internal/constants"
)

// Credentials is what a sign-in produces
type Credentials struct {
	BearerToken string
	Cookies     map[string]string
	ExpiresAt   time.Time // zero when unknown
}

// Target receives credentials, typically a *client.MetadataClient
type Target interface {
	SetBearerToken(token string)
	SetCookies(cookies map[string]string)
}

// Apply hands the credentials to target
func (c *Credentials) Apply(target Target) {
	if c == nil {
		return
	}
	if c.BearerToken != "" {
		target.SetBearerToken(c.BearerToken)
	}
	if len(c.Cookies) > 0 {
		target.SetCookies(c.Cookies)
	}
}

// Authenticator performs one sign-in flow
type Authenticator interface {
	Authenticate(ctx context.Context) (*Credentials, error)
}

// FromConfig returns the authenticator selected by cfg, or nil when no
// single sign-on method is configured
func FromConfig(cfg *config.Config) (Authenticator, error) {
	switch {
	case cfg.AuthAAD:
		aadConfig := &AADConfig{
			TenantID:    cfg.AADTenant,
			ClientID:    cfg.AADClientID,
			Scopes:      cfg.GetAADScopes(),
			CacheFile:   cfg.AADCache,
			OpenBrowser: cfg.AADBrowser,
		}
		if aadConfig.ClientID == "" {
			aadConfig.ClientID = constants.DefaultAADClientID
		}
		if err := aadConfig.Validate(); err != nil {
			return nil, fmt.Errorf("invalid AAD configuration: %w", err)
		}
		if len(aadConfig.Scopes) == 0 {
			aadConfig.Scopes = aadConfig.DefaultScopes(cfg.ServiceURL)
		}
		return NewAADAuthenticator(aadConfig, cfg.Verbose)

	case cfg.AuthChrome:
		return NewChromeAuthenticator(cfg.ServiceURL, cfg.AuthChromeHeadless, cfg.Verbose), nil

	case cfg.AuthWebView2:
		return NewWebView2Authenticator(cfg.ServiceURL, cfg.Verbose), nil
	}
	return nil, nil
}
