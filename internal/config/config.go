package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zmcp/odata-sample/internal/constants"
	"github.com/zmcp/odata-sample/internal/metadata"
)

// Config holds all configuration options for the sample generator
type Config struct {
	// Metadata source: a file, a service URL, or stdin when both are empty
	ServiceURL   string `mapstructure:"service_url"`
	MetadataFile string `mapstructure:"file"`

	// Authentication for fetching $metadata
	Username     string            `mapstructure:"username"`
	Password     string            `mapstructure:"password"`
	CookieFile   string            `mapstructure:"cookie_file"`
	CookieString string            `mapstructure:"cookie_string"`
	Cookies      map[string]string // Parsed cookies

	// Single sign-on, resolved into a bearer token or cookies before fetching
	AuthAAD            bool   `mapstructure:"auth_aad"`             // Azure AD device code flow
	AADTenant          string `mapstructure:"aad_tenant"`           // Azure AD tenant ID
	AADClientID        string `mapstructure:"aad_client_id"`        // AAD app client ID
	AADScopes          string `mapstructure:"aad_scopes"`           // Comma-separated scopes
	AADCache           string `mapstructure:"aad_cache"`            // Token cache file
	AADBrowser         bool   `mapstructure:"aad_browser"`          // Open the device login page
	AuthChrome         bool   `mapstructure:"auth_chrome"`          // Capture SSO cookies with Chrome
	AuthChromeHeadless bool   `mapstructure:"auth_chrome_headless"` // Run that Chrome headless
	AuthWebView2       bool   `mapstructure:"auth_webview2"`        // Capture SSO cookies with WebView2

	// Transport
	Transport      string `mapstructure:"transport"`
	HTTPAddr       string `mapstructure:"http_addr"`
	AllowRemote    bool   `mapstructure:"allow_remote"`
	MaxRequestSize int64  `mapstructure:"max_request_size"` // bytes

	// Output
	Format string `mapstructure:"format"`
	Indent int    `mapstructure:"indent"`
	Depth  int    `mapstructure:"depth"` // tree depth, 0 = unlimited

	// Parsing
	SkipBindingParameters bool `mapstructure:"skip_binding_parameters"`
	InheritBaseTypes      bool `mapstructure:"inherit_base_types"`

	// Fetching
	Timeout    int `mapstructure:"timeout"` // seconds
	MaxRetries int `mapstructure:"max_retries"`

	// Output and debugging
	Verbose bool `mapstructure:"verbose"`
	Trace   bool `mapstructure:"trace"`
}

// Default returns a Config with every default applied
func Default() *Config {
	return &Config{
		Transport:        constants.TransportStdio,
		HTTPAddr:         constants.DefaultHTTPAddr,
		MaxRequestSize:   constants.DefaultMaxRequestSize,
		Format:           constants.FormatJSON,
		Indent:           constants.DefaultIndent,
		Depth:            constants.DefaultTreeDepth,
		InheritBaseTypes: true,
		AADTenant:        constants.DefaultAADTenant,
		Timeout:          constants.DefaultTimeout,
		MaxRetries:       constants.DefaultMaxRetries,
	}
}

// HasBasicAuth returns true if username and password are configured
func (c *Config) HasBasicAuth() bool {
	return c.Username != "" && c.Password != ""
}

// HasCookieAuth returns true if cookies are configured
func (c *Config) HasCookieAuth() bool {
	return len(c.Cookies) > 0
}

// HasSSOAuth returns true if an interactive sign-in is configured
func (c *Config) HasSSOAuth() bool {
	return c.AuthAAD || c.AuthChrome || c.AuthWebView2
}

// GetAADScopes returns the parsed AAD scopes
func (c *Config) GetAADScopes() []string {
	var scopes []string
	for _, scope := range strings.Split(c.AADScopes, ",") {
		scope = strings.TrimSpace(scope)
		if scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// IsHTTP returns true when the HTTP endpoint should be served
func (c *Config) IsHTTP() bool {
	return c.Transport == constants.TransportHTTP
}

// TimeoutDuration returns the fetch timeout
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ParserOptions returns the metadata parser options for this configuration
func (c *Config) ParserOptions() metadata.Options {
	return metadata.Options{
		SkipBindingParameters: c.SkipBindingParameters,
		InheritBaseTypes:      c.InheritBaseTypes,
	}
}

// Validate checks option values and combinations
func (c *Config) Validate() error {
	switch c.Transport {
	case constants.TransportStdio, constants.TransportCLI, constants.TransportHTTP:
	default:
		return fmt.Errorf("unsupported transport %q (use stdio, cli or http)", c.Transport)
	}

	switch c.Format {
	case constants.FormatJSON, constants.FormatTree:
	default:
		return fmt.Errorf("unsupported format %q (use json or tree)", c.Format)
	}

	if c.Indent < 0 {
		return errors.New("indent must not be negative")
	}
	if c.Depth < 0 {
		return errors.New("depth must not be negative")
	}
	if c.MaxRequestSize <= 0 {
		return errors.New("max request size must be positive")
	}

	if c.ServiceURL != "" && c.MetadataFile != "" {
		return errors.New("use either a service URL or a metadata file, not both")
	}
	if c.IsHTTP() && (c.ServiceURL != "" || c.MetadataFile != "") {
		return errors.New("the http transport reads metadata from requests; do not pass a service URL or file")
	}

	authMethods := 0
	if c.CookieFile != "" {
		authMethods++
	}
	if c.CookieString != "" {
		authMethods++
	}
	if c.Username != "" {
		authMethods++
	}
	for _, sso := range []bool{c.AuthAAD, c.AuthChrome, c.AuthWebView2} {
		if sso {
			authMethods++
		}
	}
	if authMethods > 1 {
		return errors.New("only one authentication method can be used at a time")
	}
	if c.HasSSOAuth() && c.ServiceURL == "" {
		return errors.New("single sign-on needs a service URL to sign in to")
	}
	if c.AuthChromeHeadless && !c.AuthChrome {
		return errors.New("--auth-chrome-headless requires --auth-chrome")
	}

	return nil
}

// LoadCookies fills Cookies from CookieFile or CookieString
func (c *Config) LoadCookies() error {
	if c.CookieFile != "" {
		if _, err := os.Stat(c.CookieFile); os.IsNotExist(err) {
			return fmt.Errorf("cookie file not found: %s", c.CookieFile)
		}

		cookies, err := LoadCookiesFromFile(c.CookieFile)
		if err != nil {
			return fmt.Errorf("failed to load cookies from file: %w", err)
		}
		c.Cookies = cookies
		return nil
	}

	if c.CookieString != "" {
		cookies := ParseCookieString(c.CookieString)
		if len(cookies) == 0 {
			return errors.New("failed to parse cookie string")
		}
		c.Cookies = cookies
	}

	return nil
}

// LoadCookiesFromFile reads cookies in Netscape format, accepting plain
// key=value lines as well
func LoadCookiesFromFile(cookieFile string) (map[string]string, error) {
	cookies := make(map[string]string)

	file, err := os.Open(cookieFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// domain, flag, path, secure, expiration, name, value
		if parts := strings.Split(line, "\t"); len(parts) >= 7 {
			cookies[parts[5]] = parts[6]
			continue
		}
		if name, value, ok := strings.Cut(line, "="); ok {
			cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	return cookies, scanner.Err()
}

// ParseCookieString parses "key1=val1; key2=val2"
func ParseCookieString(cookieString string) map[string]string {
	cookies := make(map[string]string)
	for _, cookie := range strings.Split(cookieString, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(cookie), "=")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return cookies
}
