package constants

import "strings"

// EdmxNamespaceV4 is the namespace of the root element of OData v4 documents
const EdmxNamespaceV4 = "http://docs.oasis-open.org/odata/ns/edmx"

// Type reference syntax
const (
	EdmPrefix        = "Edm."
	CollectionPrefix = "Collection("
	CollectionSuffix = ")"
)

// Edm primitive type names (without the Edm. prefix) that get a sample value
const (
	EdmInt32          = "Int32"
	EdmInt64          = "Int64"
	EdmDecimal        = "Decimal"
	EdmString         = "String"
	EdmBoolean        = "Boolean"
	EdmDateTimeOffset = "DateTimeOffset"
	EdmDate           = "Date"
)

// HTTP methods used to describe callables
const (
	GET  = "GET"
	POST = "POST"
)

// HTTP headers
const (
	ContentType = "Content-Type"
	Accept      = "Accept"
	UserAgent   = "User-Agent"
)

// Content types
const (
	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml"
)

// Endpoints
const (
	MetadataEndpoint = "$metadata"
	ParseEndpoint    = "/api/parse"
	HealthEndpoint   = "/health"
)

// Error messages returned by transports
const (
	ErrMetadataRequired = "Metadata is required"
	ErrParseFailed      = "Failed to parse metadata"
)

// Default values
const (
	DefaultUserAgent      = "OData-Sample/1.0 (Go)"
	DefaultTimeout        = 30 // seconds
	DefaultHTTPAddr       = ":8080"
	DefaultMaxRequestSize = 10 * 1024 * 1024 // 10MB
	DefaultIndent         = 2
	DefaultMaxRetries     = 3
	DefaultTreeDepth      = 6
)

// Single sign-on
const (
	DefaultAADTenant   = "common"
	DefaultAADClientID = "04b07795-8ddb-461a-bbee-02f9e1bf7b46" // Azure CLI public client
	SAPSSOCookie       = "MYSAPSSO2"
	SSOTimeout         = 5 // minutes
)

// Transport types
const (
	TransportStdio = "stdio"
	TransportCLI   = "cli" // alias for stdio
	TransportHTTP  = "http"
)

// Supported output formats
const (
	FormatJSON = "json"
	FormatTree = "tree"
)

// IsODataV4Version checks if an Edmx Version attribute denotes OData v4
func IsODataV4Version(version string) bool {
	return version == "4.0" || version == "4.01"
}

// IsCollectionType reports whether typeName has the Collection(...) form
func IsCollectionType(typeName string) bool {
	return strings.HasPrefix(typeName, CollectionPrefix) && strings.HasSuffix(typeName, CollectionSuffix)
}

// UnwrapCollection strips one Collection(...) wrapper, returning the input unchanged otherwise
func UnwrapCollection(typeName string) string {
	if !IsCollectionType(typeName) {
		return typeName
	}
	return typeName[len(CollectionPrefix) : len(typeName)-len(CollectionSuffix)]
}
