package metadata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/zmcp/odata-sample/internal/constants"
	"github.com/zmcp/odata-sample/internal/models"
)

// ErrNoSchema is returned when a document decodes but declares no Schema
var ErrNoSchema = errors.New("no schemas found in metadata")

// Options tunes how an EDMX document is turned into a schema
type Options struct {
	// SkipBindingParameters drops the binding parameter of bound actions and functions
	SkipBindingParameters bool
	// InheritBaseTypes folds the members of BaseType chains into derived types
	InheritBaseTypes bool
}

// EDMX represents the root EDMX document
type EDMX struct {
	XMLName      xml.Name     `xml:"Edmx"`
	Version      string       `xml:"Version,attr"`
	DataServices DataServices `xml:"DataServices"`
}

// DataServices contains the schemas
type DataServices struct {
	XMLName xml.Name `xml:"DataServices"`
	Schemas []Schema `xml:"Schema"`
}

// Schema contains entity types, complex types, associations and containers
type Schema struct {
	XMLName          xml.Name          `xml:"Schema"`
	Namespace        string            `xml:"Namespace,attr"`
	Alias            string            `xml:"Alias,attr"`
	EntityTypes      []EntityType      `xml:"EntityType"`
	ComplexTypes     []ComplexType     `xml:"ComplexType"`
	Associations     []Association     `xml:"Association"`
	EntityContainers []EntityContainer `xml:"EntityContainer"`
}

// EntityType represents an OData entity type
type EntityType struct {
	XMLName              xml.Name             `xml:"EntityType"`
	Name                 string               `xml:"Name,attr"`
	BaseType             string               `xml:"BaseType,attr"`
	Properties           []Property           `xml:"Property"`
	NavigationProperties []NavigationProperty `xml:"NavigationProperty"`
}

// ComplexType represents an OData complex type
type ComplexType struct {
	XMLName    xml.Name   `xml:"ComplexType"`
	Name       string     `xml:"Name,attr"`
	BaseType   string     `xml:"BaseType,attr"`
	Properties []Property `xml:"Property"`
}

// Property represents a structural property
type Property struct {
	XMLName  xml.Name `xml:"Property"`
	Name     string   `xml:"Name,attr"`
	Type     string   `xml:"Type,attr"`
	Nullable string   `xml:"Nullable,attr"`
}

// NavigationProperty represents a v2 navigation property, typed through its association
type NavigationProperty struct {
	XMLName      xml.Name `xml:"NavigationProperty"`
	Name         string   `xml:"Name,attr"`
	Relationship string   `xml:"Relationship,attr"`
	ToRole       string   `xml:"ToRole,attr"`
	FromRole     string   `xml:"FromRole,attr"`
}

// Association relates two entity types
type Association struct {
	XMLName xml.Name         `xml:"Association"`
	Name    string           `xml:"Name,attr"`
	Ends    []AssociationEnd `xml:"End"`
}

// AssociationEnd is one side of an association
type AssociationEnd struct {
	XMLName      xml.Name `xml:"End"`
	Role         string   `xml:"Role,attr"`
	Type         string   `xml:"Type,attr"`
	Multiplicity string   `xml:"Multiplicity,attr"`
}

// EntityContainer contains function imports
type EntityContainer struct {
	XMLName         xml.Name         `xml:"EntityContainer"`
	Name            string           `xml:"Name,attr"`
	FunctionImports []FunctionImport `xml:"FunctionImport"`
}

// FunctionImport represents an OData v2 function import
type FunctionImport struct {
	XMLName         xml.Name    `xml:"FunctionImport"`
	Name            string      `xml:"Name,attr"`
	ReturnType      string      `xml:"ReturnType,attr"`
	HTTPMethod      string      `xml:"HttpMethod,attr"` // m:HttpMethod
	IsSideEffecting string      `xml:"IsSideEffecting,attr"`
	IsBindable      string      `xml:"IsBindable,attr"`
	Parameters      []Parameter `xml:"Parameter"`
}

// Parameter represents a function import parameter
type Parameter struct {
	XMLName xml.Name `xml:"Parameter"`
	Name    string   `xml:"Name,attr"`
	Type    string   `xml:"Type,attr"`
	Mode    string   `xml:"Mode,attr"`
}

// edmxHeader is decoded first to pick the version specific parser
type edmxHeader struct {
	XMLName xml.Name `xml:"Edmx"`
	Version string   `xml:"Version,attr"`
}

// ParseSchema parses OData metadata XML into a schema.
// It automatically detects whether the metadata is v2 or v4 and uses the appropriate parser.
// Documents that are not well-formed XML are reported by the v2 parser.
func ParseSchema(data []byte, opts Options) (*models.Schema, error) {
	if IsODataV4(data) {
		return ParseSchemaV4(data, opts)
	}
	return ParseSchemaV2(data, opts)
}

// IsODataV4 checks if the metadata is OData v4, by the Edmx Version
// attribute or, when that is missing, the v4 edmx namespace
func IsODataV4(data []byte) bool {
	var header edmxHeader
	if err := xml.Unmarshal(data, &header); err != nil {
		return false
	}
	if header.Version == "" {
		return header.XMLName.Space == constants.EdmxNamespaceV4
	}
	return constants.IsODataV4Version(header.Version)
}

// ParseSchemaV2 parses OData v2/v3 metadata XML
func ParseSchemaV2(data []byte, opts Options) (*models.Schema, error) {
	var edmx EDMX
	if err := xml.Unmarshal(data, &edmx); err != nil {
		return nil, fmt.Errorf("failed to parse metadata XML: %w", err)
	}

	schemas := edmx.DataServices.Schemas
	if len(schemas) == 0 {
		return nil, ErrNoSchema
	}

	// The schema holding the entity container is the main one
	main := &schemas[0]
	for i := range schemas {
		if len(schemas[i].EntityContainers) > 0 {
			main = &schemas[i]
			break
		}
	}

	q := newQualifier(main.Namespace)
	associations := make(map[string]*Association)
	for i := range schemas {
		q.add(schemas[i].Namespace, schemas[i].Alias)
		for j := range schemas[i].Associations {
			a := &schemas[i].Associations[j]
			associations[a.Name] = a
		}
	}

	var complexTypes, entityTypes []*structuredType
	var callables []*models.Callable
	for _, schema := range schemas {
		for _, ct := range schema.ComplexTypes {
			complexTypes = append(complexTypes, &structuredType{
				name:       ct.Name,
				baseType:   q.qualify(ct.BaseType),
				properties: parseProperties(ct.Properties, q),
			})
		}

		for _, et := range schema.EntityTypes {
			entityTypes = append(entityTypes, parseEntityType(et, associations, q))
		}

		for _, container := range schema.EntityContainers {
			for _, fi := range container.FunctionImports {
				callables = append(callables, parseFunctionImport(fi, q, opts))
			}
		}
	}

	if opts.InheritBaseTypes {
		inheritMembers(complexTypes, main.Namespace)
		inheritMembers(entityTypes, main.Namespace)
	}

	return &models.Schema{
		Namespace:    main.Namespace,
		ComplexTypes: toComplexTypes(complexTypes),
		EntityTypes:  toEntityTypes(entityTypes),
		Callables:    callables,
		Version:      edmx.Version,
	}, nil
}

// parseProperties converts XML properties to model
func parseProperties(props []Property, q *qualifier) []*models.Property {
	out := make([]*models.Property, 0, len(props))
	for _, prop := range props {
		out = append(out, &models.Property{
			Name: prop.Name,
			Type: q.qualify(prop.Type),
		})
	}
	return out
}

// parseEntityType converts XML entity type to model, typing navigation
// properties through the association end named by ToRole
func parseEntityType(et EntityType, associations map[string]*Association, q *qualifier) *structuredType {
	t := &structuredType{
		name:       et.Name,
		baseType:   q.qualify(et.BaseType),
		properties: parseProperties(et.Properties, q),
		navigation: make([]*models.NavigationProperty, 0, len(et.NavigationProperties)),
	}

	for _, navProp := range et.NavigationProperties {
		nav := &models.NavigationProperty{Name: navProp.Name}
		if assoc, ok := associations[lastSegment(navProp.Relationship)]; ok {
			for _, end := range assoc.Ends {
				if end.Role == navProp.ToRole {
					nav.TargetTypeName = q.qualify(end.Type)
					nav.IsCollection = end.Multiplicity == "*"
					break
				}
			}
		}
		t.navigation = append(t.navigation, nav)
	}

	return t
}

// parseFunctionImport converts XML function import to model.
// GET imports (the default when no method is given) are functions,
// anything else is an action.
func parseFunctionImport(fi FunctionImport, q *qualifier, opts Options) *models.Callable {
	callable := &models.Callable{
		Name:       fi.Name,
		IsFunction: isFunctionImportReadOnly(fi),
		IsBound:    fi.IsBindable == "true",
		Parameters: make([]*models.Parameter, 0, len(fi.Parameters)),
	}

	if fi.ReturnType != "" {
		returnType := q.qualify(fi.ReturnType)
		callable.ReturnType = &returnType
	}

	params := fi.Parameters
	if opts.SkipBindingParameters && callable.IsBound && len(params) > 0 {
		params = params[1:]
	}
	for _, param := range params {
		callable.Parameters = append(callable.Parameters, &models.Parameter{
			Name: param.Name,
			Type: q.qualify(param.Type),
		})
	}

	return callable
}

func isFunctionImportReadOnly(fi FunctionImport) bool {
	if fi.HTTPMethod != "" {
		return strings.EqualFold(fi.HTTPMethod, constants.GET)
	}
	// OData v3 marks side effects explicitly
	return fi.IsSideEffecting != "true"
}
