package models

import (
	"github.com/zmcp/odata-sample/internal/sample"
)

// Property represents a structural property of a complex or entity type
type Property struct {
	Name string `json:"name"`
	Type string `json:"type"` // OData type reference (e.g., "Edm.String", "NS.Address", "Collection(NS.Address)")
}

// ComplexType represents an OData complex type definition
type ComplexType struct {
	Name       string      `json:"name"`
	Properties []*Property `json:"properties"`
}

// NavigationProperty represents a relationship from an entity type to another entity type
type NavigationProperty struct {
	Name           string `json:"name"`
	TargetTypeName string `json:"target_type_name"` // namespace-qualified, never wrapped in Collection()
	IsCollection   bool   `json:"is_collection"`
}

// EntityType represents an OData entity type definition
type EntityType struct {
	Name                 string                `json:"name"`
	Properties           []*Property           `json:"properties"`
	NavigationProperties []*NavigationProperty `json:"navigation_properties,omitempty"`
}

// Parameter represents a parameter of an action or function
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Callable represents an action or function declared by the schema
type Callable struct {
	Name       string       `json:"name"`
	IsFunction bool         `json:"is_function"`
	IsBound    bool         `json:"is_bound,omitempty"`
	Parameters []*Parameter `json:"parameters"`
	ReturnType *string      `json:"return_type,omitempty"` // nil when the callable returns nothing
}

// Schema is the structured form of an EDMX document
type Schema struct {
	Namespace    string         `json:"namespace"`
	ComplexTypes []*ComplexType `json:"complex_types"`
	EntityTypes  []*EntityType  `json:"entity_types"`
	Callables    []*Callable    `json:"callables"`
	Version      string         `json:"version,omitempty"`
}

// ParsedAction describes an action, invoked with POST
type ParsedAction struct {
	Name       string         `json:"name"`
	Method     string         `json:"method"`
	Parameters *sample.Object `json:"parameters"`
	ReturnType sample.Value   `json:"returnType"`
}

// ParsedFunction describes a function, invoked with GET
type ParsedFunction struct {
	Name       string       `json:"name"`
	Method     string       `json:"method"`
	ReturnType sample.Value `json:"returnType"`
}

// ParsedResult is the sample tree produced for a schema
type ParsedResult struct {
	Actions      []*ParsedAction   `json:"actions"`
	Functions    []*ParsedFunction `json:"functions"`
	Entities     *sample.Object    `json:"entities"`
	ComplexTypes *sample.Object    `json:"complexTypes"`
}

// NewParsedResult returns an empty result with every member initialized
func NewParsedResult() *ParsedResult {
	return &ParsedResult{
		Actions:      make([]*ParsedAction, 0),
		Functions:    make([]*ParsedFunction, 0),
		Entities:     sample.NewObject(),
		ComplexTypes: sample.NewObject(),
	}
}

// SchemaSummary represents a summary of a parsed schema
type SchemaSummary struct {
	Namespace    string `json:"namespace"`
	Version      string `json:"version,omitempty"`
	ComplexTypes int    `json:"complex_types"`
	EntityTypes  int    `json:"entity_types"`
	Actions      int    `json:"actions"`
	Functions    int    `json:"functions"`
}

// ErrorResponse is the body returned by transports when a request fails
type ErrorResponse struct {
	Error string `json:"error"`
}

// ParseRequest is the body accepted by the HTTP parse endpoint
type ParseRequest struct {
	Metadata string `json:"metadata"`
}
