package metadata

import (
	"strings"

	"github.com/zmcp/odata-sample/internal/constants"
	"github.com/zmcp/odata-sample/internal/models"
)

// qualifier rewrites type references so that every namespace or alias
// declared in the document points at the main schema namespace
type qualifier struct {
	mainNamespace string
	known         map[string]bool
}

func newQualifier(mainNamespace string) *qualifier {
	return &qualifier{
		mainNamespace: mainNamespace,
		known:         map[string]bool{mainNamespace: true},
	}
}

func (q *qualifier) add(namespace, alias string) {
	if namespace != "" {
		q.known[namespace] = true
	}
	if alias != "" {
		q.known[alias] = true
	}
}

// qualify normalizes a type reference. Edm types and references to
// namespaces outside the document are returned unchanged.
func (q *qualifier) qualify(typeName string) string {
	typeName = strings.TrimSpace(typeName)
	if constants.IsCollectionType(typeName) {
		return constants.CollectionPrefix + q.qualify(constants.UnwrapCollection(typeName)) + constants.CollectionSuffix
	}
	if typeName == "" || strings.HasPrefix(typeName, constants.EdmPrefix) {
		return typeName
	}

	idx := strings.LastIndex(typeName, ".")
	if idx <= 0 {
		return typeName
	}
	if q.known[typeName[:idx]] {
		return q.mainNamespace + "." + typeName[idx+1:]
	}
	return typeName
}

// structuredType is an entity or complex type before base types are folded in
type structuredType struct {
	name       string
	baseType   string // qualified
	properties []*models.Property
	navigation []*models.NavigationProperty
}

// inheritMembers prepends the members of each type's base type chain.
// Unknown base types end the chain; so does a cycle.
func inheritMembers(types []*structuredType, namespace string) {
	byName := make(map[string]*structuredType, len(types))
	own := make(map[*structuredType]structuredType, len(types))
	for _, t := range types {
		byName[namespace+"."+t.name] = t
		own[t] = *t
	}

	for _, t := range types {
		var chain []*structuredType
		visited := map[*structuredType]bool{t: true}
		for base := byName[t.baseType]; base != nil && !visited[base]; base = byName[base.baseType] {
			visited[base] = true
			chain = append(chain, base)
		}
		if len(chain) == 0 {
			continue
		}

		var props []*models.Property
		var navs []*models.NavigationProperty
		for i := len(chain) - 1; i >= 0; i-- {
			props = append(props, own[chain[i]].properties...)
			navs = append(navs, own[chain[i]].navigation...)
		}
		t.properties = append(props, own[t].properties...)
		t.navigation = append(navs, own[t].navigation...)
	}
}

func toComplexTypes(types []*structuredType) []*models.ComplexType {
	out := make([]*models.ComplexType, 0, len(types))
	for _, t := range types {
		out = append(out, &models.ComplexType{
			Name:       t.name,
			Properties: t.properties,
		})
	}
	return out
}

func toEntityTypes(types []*structuredType) []*models.EntityType {
	out := make([]*models.EntityType, 0, len(types))
	for _, t := range types {
		out = append(out, &models.EntityType{
			Name:                 t.name,
			Properties:           t.properties,
			NavigationProperties: t.navigation,
		})
	}
	return out
}

// Summarize returns declaration counts for a parsed schema
func Summarize(schema *models.Schema) models.SchemaSummary {
	summary := models.SchemaSummary{}
	if schema == nil {
		return summary
	}

	summary.Namespace = schema.Namespace
	summary.Version = schema.Version
	summary.ComplexTypes = len(schema.ComplexTypes)
	summary.EntityTypes = len(schema.EntityTypes)
	for _, c := range schema.Callables {
		if c.IsFunction {
			summary.Functions++
		} else {
			summary.Actions++
		}
	}
	return summary
}

func lastSegment(qualifiedName string) string {
	if idx := strings.LastIndex(qualifiedName, "."); idx >= 0 {
		return qualifiedName[idx+1:]
	}
	return qualifiedName
}
