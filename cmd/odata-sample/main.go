package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zmcp/odata-sample/internal/auth"
	"github.com/zmcp/odata-sample/internal/client"
	"github.com/zmcp/odata-sample/internal/config"
	"github.com/zmcp/odata-sample/internal/converter"
	"github.com/zmcp/odata-sample/internal/debug"
	"github.com/zmcp/odata-sample/internal/transport/http"
	"github.com/zmcp/odata-sample/internal/transport/stdio"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "odata-sample [metadata-file | service-url]",
	Short: "OData metadata to sample JSON - generate example payloads from EDMX",
	Long: `OData metadata to sample JSON - generate example payloads from EDMX.

Reads an OData v2 or v4 $metadata document and prints a sample instance of every
complex type and entity type, plus the parameters and return values of every
action and function.

Examples:
  odata-sample metadata.xml
  cat metadata.xml | odata-sample --format tree
  odata-sample https://services.odata.org/V4/TripPinServiceRW/
  odata-sample --service https://my-sap-service.com/sap/opu/odata/sap/SERVICE_NAME/ --user admin --password secret
  odata-sample --service https://my-sap-service.com/sap/opu/odata/sap/SERVICE_NAME/ --auth-chrome
  odata-sample --service https://my-service.example.com/odata/ --auth-aad --aad-browser
  odata-sample --transport http --http-addr :8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSample,
}

func init() {
	// Load .env file if it exists
	godotenv.Load()

	cfg = config.Default()
	flags := rootCmd.Flags()

	// Metadata source
	flags.StringVar(&cfg.ServiceURL, "service", "", "URL of the OData service whose $metadata is fetched (overrides ODATA_SERVICE_URL env var)")
	flags.StringVarP(&cfg.MetadataFile, "file", "f", "", "Path to a metadata XML file (overrides ODATA_FILE env var)")

	// Authentication flags
	flags.StringVarP(&cfg.Username, "user", "u", "", "Username for basic authentication (overrides ODATA_USERNAME env var)")
	flags.StringVarP(&cfg.Password, "password", "p", "", "Password for basic authentication (overrides ODATA_PASSWORD env var)")
	flags.StringVar(&cfg.CookieFile, "cookie-file", "", "Path to cookie file in Netscape format")
	flags.StringVar(&cfg.CookieString, "cookie-string", "", "Cookie string (key1=val1; key2=val2)")

	// Single sign-on options
	flags.BoolVar(&cfg.AuthAAD, "auth-aad", false, "Use Azure AD authentication (device code flow, bearer token)")
	flags.StringVar(&cfg.AADTenant, "aad-tenant", cfg.AADTenant, "Azure AD tenant ID")
	flags.StringVar(&cfg.AADClientID, "aad-client-id", "", "Azure AD application (client) ID (default: Azure CLI public client)")
	flags.StringVar(&cfg.AADScopes, "aad-scopes", "", "Comma-separated OAuth2 scopes (default: service origin + /.default)")
	flags.StringVar(&cfg.AADCache, "aad-cache", "", "Token cache file (default: in-memory only)")
	flags.BoolVar(&cfg.AADBrowser, "aad-browser", false, "Open the device login page in the system browser")
	flags.BoolVar(&cfg.AuthChrome, "auth-chrome", false, "Log in through a Chrome window and capture the SAP session cookies")
	flags.BoolVar(&cfg.AuthChromeHeadless, "auth-chrome-headless", false, "Run the --auth-chrome browser headless (for SSO without a login form)")
	flags.BoolVar(&cfg.AuthWebView2, "auth-webview2", false, "Use WebView2 (Edge) for SAML authentication (Windows only)")

	// Output options
	flags.StringVar(&cfg.Format, "format", cfg.Format, "Output format: 'json' or 'tree'")
	flags.IntVar(&cfg.Indent, "indent", cfg.Indent, "JSON indent width (0 for compact output)")
	flags.IntVar(&cfg.Depth, "depth", cfg.Depth, "Tree depth before containers are collapsed (0 for unlimited)")

	// Parsing options
	flags.BoolVar(&cfg.SkipBindingParameters, "skip-binding-parameters", false, "Omit the binding parameter of bound actions")
	flags.BoolVar(&cfg.InheritBaseTypes, "inherit-base-types", cfg.InheritBaseTypes, "Include properties inherited through BaseType")

	// Fetch options
	flags.IntVar(&cfg.Timeout, "timeout", cfg.Timeout, "Timeout in seconds for fetching $metadata")
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Retries for 429 and 5xx responses when fetching $metadata")

	// Transport options
	flags.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: 'stdio' (or 'cli') converts one document, 'http' serves POST /api/parse")
	flags.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (used with --transport http)")
	flags.BoolVar(&cfg.AllowRemote, "allow-remote", false, "Accept connections from non-loopback clients (used with --transport http)")
	flags.Int64Var(&cfg.MaxRequestSize, "max-request-size", cfg.MaxRequestSize, "Maximum metadata size in bytes")

	// Output and debugging options
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output to stderr")
	flags.BoolVar(&cfg.Trace, "trace", false, "Write a JSON-lines trace of every conversion to a temp file")

	// Bind flags to viper for environment variable support
	bindings := map[string]string{
		"service_url":             "service",
		"file":                    "file",
		"username":                "user",
		"password":                "password",
		"cookie_file":             "cookie-file",
		"cookie_string":           "cookie-string",
		"auth_aad":                "auth-aad",
		"aad_tenant":              "aad-tenant",
		"aad_client_id":           "aad-client-id",
		"aad_scopes":              "aad-scopes",
		"aad_cache":               "aad-cache",
		"aad_browser":             "aad-browser",
		"auth_chrome":             "auth-chrome",
		"auth_chrome_headless":    "auth-chrome-headless",
		"auth_webview2":           "auth-webview2",
		"format":                  "format",
		"indent":                  "indent",
		"depth":                   "depth",
		"skip_binding_parameters": "skip-binding-parameters",
		"inherit_base_types":      "inherit-base-types",
		"timeout":                 "timeout",
		"max_retries":             "max-retries",
		"transport":               "transport",
		"http_addr":               "http-addr",
		"allow_remote":            "allow-remote",
		"max_request_size":        "max-request-size",
		"verbose":                 "verbose",
		"trace":                   "trace",
	}
	for key, flag := range bindings {
		viper.BindPFlag(key, flags.Lookup(flag))
	}

	// Set up environment variable mapping
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetEnvPrefix("ODATA")
}

func runSample(cmd *cobra.Command, args []string) error {
	// Flags win over the environment, which viper resolves per key
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	sourceFromFlag := cmd.Flags().Changed("service") || cmd.Flags().Changed("file")
	if len(args) > 0 && !sourceFromFlag {
		applyPositional(cfg, args[0])
		if cfg.Verbose {
			fmt.Fprintf(os.Stderr, "[VERBOSE] Using metadata source from positional argument.\n")
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.LoadCookies(); err != nil {
		return err
	}
	if cfg.Verbose {
		logAuthentication(cfg)
	}

	var tracer *debug.TraceLogger
	if cfg.Trace {
		var err error
		tracer, err = debug.NewTraceLogger(true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] Failed to create trace logger: %v\n", err)
		} else {
			defer tracer.Close()
			fmt.Fprintf(os.Stderr, "[TRACE] Trace logging enabled. Output file: %s\n", tracer.GetFilename())
		}
	}

	conv := converter.NewConverter(cfg.ParserOptions(), cfg.Verbose)
	conv.SetTracer(tracer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case cfg.IsHTTP():
		return serveHTTP(ctx, conv, tracer)
	case cfg.ServiceURL != "":
		return convertService(ctx, conv, tracer)
	default:
		return convertStdio(ctx, conv, tracer)
	}
}

// applyPositional treats a URL argument as the service and anything else as a file
func applyPositional(cfg *config.Config, arg string) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		cfg.ServiceURL = arg
		cfg.MetadataFile = ""
		return
	}
	cfg.MetadataFile = arg
	cfg.ServiceURL = ""
}

func logAuthentication(cfg *config.Config) {
	switch {
	case cfg.AuthAAD:
		fmt.Fprintf(os.Stderr, "[VERBOSE] Using Azure AD authentication (tenant: %s)\n", cfg.AADTenant)
	case cfg.AuthChrome:
		fmt.Fprintf(os.Stderr, "[VERBOSE] Using Chrome single sign-on (headless: %v)\n", cfg.AuthChromeHeadless)
	case cfg.AuthWebView2:
		fmt.Fprintf(os.Stderr, "[VERBOSE] Using WebView2 single sign-on\n")
	case cfg.HasCookieAuth():
		fmt.Fprintf(os.Stderr, "[VERBOSE] Using %d cookies for authentication\n", len(cfg.Cookies))
	case cfg.HasBasicAuth():
		fmt.Fprintf(os.Stderr, "[VERBOSE] Using basic authentication for user: %s (password %s)\n",
			cfg.Username, debug.MaskPassword(cfg.Password))
	case cfg.ServiceURL != "":
		fmt.Fprintf(os.Stderr, "[VERBOSE] No authentication provided or configured. Attempting anonymous access.\n")
	}
}

func serveHTTP(ctx context.Context, conv *converter.Converter, tracer *debug.TraceLogger) error {
	server := http.NewParseServer(cfg.HTTPAddr, conv.Convert, cfg.AllowRemote)
	server.SetMaxRequestSize(cfg.MaxRequestSize)
	server.SetVerbose(cfg.Verbose)
	server.SetTracer(tracer)

	fmt.Fprintf(os.Stderr, "Serving POST /api/parse on %s\n", cfg.HTTPAddr)

	if err := server.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\nShutdown complete\n")
	return nil
}

func convertService(ctx context.Context, conv *converter.Converter, tracer *debug.TraceLogger) error {
	mc := client.NewMetadataClient(cfg.ServiceURL, cfg.Verbose)
	if cfg.HasBasicAuth() {
		mc.SetBasicAuth(cfg.Username, cfg.Password)
	}
	if cfg.HasCookieAuth() {
		mc.SetCookies(cfg.Cookies)
	}
	mc.SetTimeout(cfg.TimeoutDuration())
	mc.SetRetryConfig(client.DefaultRetryConfig().WithMaxRetries(cfg.MaxRetries))
	mc.SetMaxSize(cfg.MaxRequestSize)
	if err := signIn(ctx, mc); err != nil {
		return err
	}
	conv.SetClient(mc)

	result, err := conv.ConvertURL(ctx)
	if err != nil {
		return err
	}

	out := newOutput(conv, tracer)
	return out.WriteResult(result)
}

// signIn runs the configured single sign-on flow and hands its credentials to mc
func signIn(ctx context.Context, mc *client.MetadataClient) error {
	authenticator, err := auth.FromConfig(cfg)
	if err != nil {
		return err
	}
	if authenticator == nil {
		return nil
	}

	creds, err := authenticator.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	creds.Apply(mc)

	if cfg.Verbose {
		if creds.BearerToken != "" {
			fmt.Fprintf(os.Stderr, "[VERBOSE] Using bearer token %s\n", debug.MaskToken(creds.BearerToken))
		}
		if len(creds.Cookies) > 0 {
			fmt.Fprintf(os.Stderr, "[VERBOSE] Acquired %d cookies\n", len(creds.Cookies))
		}
	}
	return nil
}

func convertStdio(ctx context.Context, conv *converter.Converter, tracer *debug.TraceLogger) error {
	tr := newOutput(conv, tracer)
	defer tr.Close()

	if cfg.MetadataFile != "" {
		file, err := os.Open(cfg.MetadataFile)
		if err != nil {
			return fmt.Errorf("failed to open metadata file: %w", err)
		}
		tr.SetInput(file)
		if cfg.Verbose {
			fmt.Fprintf(os.Stderr, "[VERBOSE] Reading metadata from %s\n", cfg.MetadataFile)
		}
	} else if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Reading metadata from stdin\n")
	}

	return tr.Start(ctx)
}

func newOutput(conv *converter.Converter, tracer *debug.TraceLogger) *stdio.StdioTransport {
	tr := stdio.New(conv.Convert)
	tr.SetFormat(cfg.Format, cfg.Indent, cfg.Depth)
	tr.SetMaxSize(cfg.MaxRequestSize)
	tr.SetTracer(tracer)
	return tr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\n--- FATAL ERROR ---\n")
		fmt.Fprintf(os.Stderr, "An unexpected error occurred: %v\n", err)
		fmt.Fprintf(os.Stderr, "-------------------\n")
		os.Exit(1)
	}
}
