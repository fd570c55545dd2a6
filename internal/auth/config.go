package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// AADConfig holds Azure AD authentication configuration
type AADConfig struct {
	// TenantID is the Azure AD tenant ID (e.g., "contoso.onmicrosoft.com" or GUID).
	// Use "common" for multi-tenant applications.
	TenantID string

	// ClientID is the application (client) ID from app registration
	ClientID string

	// Scopes are the permissions requested (e.g., ["https://sapserver.com/.default"])
	Scopes []string

	// CacheFile persists the MSAL token cache between runs (optional)
	CacheFile string

	// OpenBrowser opens the device login page in the system browser
	OpenBrowser bool

	// Authority URL (optional, defaults to public cloud)
	Authority string
}

// Validate checks if the AAD configuration is valid
func (c *AADConfig) Validate() error {
	if c.TenantID == "" {
		return errors.New("tenant ID is required")
	}
	if c.ClientID == "" {
		return errors.New("client ID is required")
	}
	if !isValidGUID(c.ClientID) {
		return fmt.Errorf("client ID %q must be a valid GUID", c.ClientID)
	}
	return nil
}

// AuthorityURL returns the authority URL for the tenant
func (c *AADConfig) AuthorityURL() string {
	if c.Authority != "" {
		return c.Authority
	}
	return "https://login.microsoftonline.com/" + c.TenantID
}

// DefaultScopes returns the .default scope of the service's origin
func (c *AADConfig) DefaultScopes(serviceURL string) []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	return []string{serviceOrigin(serviceURL) + "/.default"}
}

// isValidGUID checks the 8-4-4-4-12 hexadecimal form
func isValidGUID(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 5 {
		return false
	}

	expectedLengths := []int{8, 4, 4, 4, 12}
	for i, part := range parts {
		if len(part) != expectedLengths[i] {
			return false
		}
		for _, c := range part {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
	}
	return true
}

// serviceOrigin reduces a service URL to https://host[:port]
func serviceOrigin(serviceURL string) string {
	u, err := url.Parse(serviceURL)
	if err != nil || u.Host == "" {
		host := strings.TrimPrefix(strings.TrimPrefix(serviceURL, "https://"), "http://")
		if idx := strings.Index(host, "/"); idx >= 0 {
			host = host[:idx]
		}
		return "https://" + host
	}
	return "https://" + u.Host
}

// serviceHost returns the bare host name of a service URL
func serviceHost(serviceURL string) string {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
