package metadata

import (
	"encoding/xml"
	"fmt"

	"github.com/zmcp/odata-sample/internal/constants"
	"github.com/zmcp/odata-sample/internal/models"
)

// EDMXV4 represents the root EDMX document for OData v4
type EDMXV4 struct {
	XMLName      xml.Name       `xml:"Edmx"`
	Version      string         `xml:"Version,attr"`
	DataServices DataServicesV4 `xml:"DataServices"`
}

// DataServicesV4 contains the schemas for OData v4
type DataServicesV4 struct {
	XMLName xml.Name   `xml:"DataServices"`
	Schemas []SchemaV4 `xml:"Schema"`
}

// SchemaV4 contains the declarations of an OData v4 schema. Actions and
// functions are collected in document order through Members.
type SchemaV4 struct {
	XMLName          xml.Name            `xml:"Schema"`
	Namespace        string              `xml:"Namespace,attr"`
	Alias            string              `xml:"Alias,attr"`
	EntityTypes      []EntityTypeV4      `xml:"EntityType"`
	ComplexTypes     []ComplexTypeV4     `xml:"ComplexType"`
	EntityContainers []EntityContainerV4 `xml:"EntityContainer"`
	Members          []OperationV4       `xml:",any"`
}

// EntityTypeV4 represents an OData v4 entity type
type EntityTypeV4 struct {
	XMLName              xml.Name               `xml:"EntityType"`
	Name                 string                 `xml:"Name,attr"`
	BaseType             string                 `xml:"BaseType,attr"`
	Abstract             string                 `xml:"Abstract,attr"`
	Properties           []PropertyV4           `xml:"Property"`
	NavigationProperties []NavigationPropertyV4 `xml:"NavigationProperty"`
}

// ComplexTypeV4 represents an OData v4 complex type
type ComplexTypeV4 struct {
	XMLName    xml.Name     `xml:"ComplexType"`
	Name       string       `xml:"Name,attr"`
	BaseType   string       `xml:"BaseType,attr"`
	Abstract   string       `xml:"Abstract,attr"`
	Properties []PropertyV4 `xml:"Property"`
}

// PropertyV4 represents a structural property in OData v4
type PropertyV4 struct {
	XMLName  xml.Name `xml:"Property"`
	Name     string   `xml:"Name,attr"`
	Type     string   `xml:"Type,attr"`
	Nullable string   `xml:"Nullable,attr"`
}

// NavigationPropertyV4 represents a navigation property in OData v4
type NavigationPropertyV4 struct {
	XMLName  xml.Name `xml:"NavigationProperty"`
	Name     string   `xml:"Name,attr"`
	Type     string   `xml:"Type,attr"`
	Nullable string   `xml:"Nullable,attr"`
	Partner  string   `xml:"Partner,attr"`
}

// EntityContainerV4 marks the main schema
type EntityContainerV4 struct {
	XMLName xml.Name `xml:"EntityContainer"`
	Name    string   `xml:"Name,attr"`
}

// OperationV4 captures any schema child element not matched above.
// Only Action and Function elements are used.
type OperationV4 struct {
	XMLName    xml.Name
	Name       string        `xml:"Name,attr"`
	IsBound    string        `xml:"IsBound,attr"`
	Parameters []ParameterV4 `xml:"Parameter"`
	ReturnType *ReturnTypeV4 `xml:"ReturnType"`
}

// ParameterV4 represents a function/action parameter in OData v4
type ParameterV4 struct {
	XMLName  xml.Name `xml:"Parameter"`
	Name     string   `xml:"Name,attr"`
	Type     string   `xml:"Type,attr"`
	Nullable string   `xml:"Nullable,attr"`
}

// ReturnTypeV4 represents a function/action return type in OData v4
type ReturnTypeV4 struct {
	XMLName  xml.Name `xml:"ReturnType"`
	Type     string   `xml:"Type,attr"`
	Nullable string   `xml:"Nullable,attr"`
}

const (
	elementAction   = "Action"
	elementFunction = "Function"
)

// ParseSchemaV4 parses OData v4 metadata XML
func ParseSchemaV4(data []byte, opts Options) (*models.Schema, error) {
	var edmx EDMXV4
	if err := xml.Unmarshal(data, &edmx); err != nil {
		return nil, fmt.Errorf("failed to parse v4 metadata XML: %w", err)
	}

	schemas := edmx.DataServices.Schemas
	if len(schemas) == 0 {
		return nil, ErrNoSchema
	}

	main := &schemas[0]
	for i := range schemas {
		if len(schemas[i].EntityContainers) > 0 {
			main = &schemas[i]
			break
		}
	}

	q := newQualifier(main.Namespace)
	for _, schema := range schemas {
		q.add(schema.Namespace, schema.Alias)
	}

	var complexTypes, entityTypes []*structuredType
	var callables []*models.Callable
	for _, schema := range schemas {
		for _, ct := range schema.ComplexTypes {
			complexTypes = append(complexTypes, &structuredType{
				name:       ct.Name,
				baseType:   q.qualify(ct.BaseType),
				properties: parsePropertiesV4(ct.Properties, q),
			})
		}

		for _, et := range schema.EntityTypes {
			entityTypes = append(entityTypes, parseEntityTypeV4(et, q))
		}

		for _, member := range schema.Members {
			switch member.XMLName.Local {
			case elementAction, elementFunction:
				callables = append(callables, parseOperationV4(member, q, opts))
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

func parsePropertiesV4(props []PropertyV4, q *qualifier) []*models.Property {
	out := make([]*models.Property, 0, len(props))
	for _, prop := range props {
		out = append(out, &models.Property{
			Name: prop.Name,
			Type: q.qualify(prop.Type),
		})
	}
	return out
}

// parseEntityTypeV4 converts XML entity type to model for OData v4
func parseEntityTypeV4(et EntityTypeV4, q *qualifier) *structuredType {
	t := &structuredType{
		name:       et.Name,
		baseType:   q.qualify(et.BaseType),
		properties: parsePropertiesV4(et.Properties, q),
		navigation: make([]*models.NavigationProperty, 0, len(et.NavigationProperties)),
	}

	for _, navProp := range et.NavigationProperties {
		t.navigation = append(t.navigation, &models.NavigationProperty{
			Name:           navProp.Name,
			TargetTypeName: q.qualify(constants.UnwrapCollection(navProp.Type)),
			IsCollection:   constants.IsCollectionType(navProp.Type),
		})
	}

	return t
}

// parseOperationV4 converts an Action or Function element to a callable
func parseOperationV4(op OperationV4, q *qualifier, opts Options) *models.Callable {
	callable := &models.Callable{
		Name:       op.Name,
		IsFunction: op.XMLName.Local == elementFunction,
		IsBound:    op.IsBound == "true",
		Parameters: make([]*models.Parameter, 0, len(op.Parameters)),
	}

	if op.ReturnType != nil && op.ReturnType.Type != "" {
		returnType := q.qualify(op.ReturnType.Type)
		callable.ReturnType = &returnType
	}

	// The first parameter of a bound operation is its binding parameter
	params := op.Parameters
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
