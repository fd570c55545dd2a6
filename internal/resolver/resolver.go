// Package resolver turns a parsed schema into sample instances of its
// complex types, entity types, actions and functions.
//
// Types are resolved in three passes: complex types, then entity types, then
// callables. Each pass looks names up in the mappings built so far, so a
// reference to a type declared later in the document (including a type that
// refers to itself) resolves to an empty placeholder instead of its shape.
package resolver

import (
	"strings"
	"time"

	"github.com/zmcp/odata-sample/internal/constants"
	"github.com/zmcp/odata-sample/internal/models"
	"github.com/zmcp/odata-sample/internal/sample"
	"github.com/zmcp/odata-sample/internal/utils"
)

// Clock supplies the time used for Edm.DateTimeOffset and Edm.Date samples
type Clock func() time.Time

// SystemClock reads the wall clock
func SystemClock() time.Time {
	return time.Now()
}

// FixedClock returns a Clock that always reports t
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// lookupOrder decides which mapping wins when a bare name is declared
// both as a complex type and as an entity type.
type lookupOrder int

const (
	complexFirst lookupOrder = iota // structural properties
	entityFirst                     // parameters and return types
)

type resolution struct {
	namespacePrefix string
	now             time.Time
	complexTypes    *sample.Object
	entities        *sample.Object
}

// Resolve builds the sample tree for schema. It never fails: references it
// cannot resolve become {} and unknown primitives become null.
func Resolve(schema *models.Schema, clock Clock) *models.ParsedResult {
	result := models.NewParsedResult()
	if schema == nil {
		return result
	}
	if clock == nil {
		clock = SystemClock
	}

	r := &resolution{
		namespacePrefix: schema.Namespace + ".",
		now:             clock(),
		complexTypes:    result.ComplexTypes,
		entities:        result.Entities,
	}

	for _, ct := range schema.ComplexTypes {
		if ct == nil {
			continue
		}
		r.complexTypes.Set(ct.Name, sample.ObjectValue(r.resolveProperties(ct.Properties)))
	}

	for _, et := range schema.EntityTypes {
		if et == nil {
			continue
		}
		obj := r.resolveProperties(et.Properties)
		for _, nav := range et.NavigationProperties {
			if nav == nil {
				continue
			}
			obj.Set(nav.Name, r.resolveNavigation(nav))
		}
		r.entities.Set(et.Name, sample.ObjectValue(obj))
	}

	for _, c := range schema.Callables {
		if c == nil {
			continue
		}
		returnType := sample.EmptyObject()
		if c.ReturnType != nil {
			returnType = r.resolveType(*c.ReturnType, entityFirst)
		}

		if c.IsFunction {
			result.Functions = append(result.Functions, &models.ParsedFunction{
				Name:       c.Name,
				Method:     constants.GET,
				ReturnType: returnType,
			})
			continue
		}

		params := sample.NewObject()
		for _, p := range c.Parameters {
			if p == nil {
				continue
			}
			params.Set(p.Name, r.resolveType(p.Type, entityFirst))
		}
		result.Actions = append(result.Actions, &models.ParsedAction{
			Name:       c.Name,
			Method:     constants.POST,
			Parameters: params,
			ReturnType: returnType,
		})
	}

	return result
}

func (r *resolution) resolveProperties(props []*models.Property) *sample.Object {
	obj := sample.NewObject()
	for _, p := range props {
		if p == nil {
			continue
		}
		obj.Set(p.Name, r.resolveType(p.Type, complexFirst))
	}
	return obj
}

// resolveNavigation only consults entity types; a target that has not been
// resolved yet yields the {} placeholder. Embedded shapes are copies, so the
// returned tree can be edited one node at a time.
func (r *resolution) resolveNavigation(nav *models.NavigationProperty) sample.Value {
	target := strings.TrimPrefix(nav.TargetTypeName, r.namespacePrefix)
	value, ok := r.entities.Get(target)
	if !ok {
		value = sample.EmptyObject()
	}
	value = value.Clone()
	if nav.IsCollection {
		return sample.Array(value)
	}
	return value
}

func (r *resolution) resolveType(typeName string, order lookupOrder) sample.Value {
	if strings.HasPrefix(typeName, constants.CollectionPrefix) {
		inner := strings.TrimPrefix(typeName, constants.CollectionPrefix)
		inner = strings.TrimSuffix(inner, constants.CollectionSuffix)
		return sample.Array(r.resolveType(inner, order))
	}

	if strings.HasPrefix(typeName, r.namespacePrefix) {
		return r.lookup(strings.TrimPrefix(typeName, r.namespacePrefix), order)
	}

	return r.primitive(strings.TrimPrefix(typeName, constants.EdmPrefix))
}

func (r *resolution) lookup(name string, order lookupOrder) sample.Value {
	first, second := r.complexTypes, r.entities
	if order == entityFirst {
		first, second = r.entities, r.complexTypes
	}
	if v, ok := first.Get(name); ok {
		return v.Clone()
	}
	if v, ok := second.Get(name); ok {
		return v.Clone()
	}
	return sample.EmptyObject()
}

func (r *resolution) primitive(name string) sample.Value {
	switch name {
	case constants.EdmInt32, constants.EdmInt64, constants.EdmDecimal:
		return sample.Number(0)
	case constants.EdmString:
		return sample.String("")
	case constants.EdmBoolean:
		return sample.Bool(false)
	case constants.EdmDateTimeOffset, constants.EdmDate:
		return sample.String(utils.FormatDateForOData(r.now, name))
	default:
		return sample.Null()
	}
}
