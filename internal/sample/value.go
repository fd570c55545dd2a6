// Package sample holds the placeholder values produced for OData types.
package sample

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind identifies which case of Value is populated
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindObject
	KindArray
)

// String returns the JSON type name of the kind
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "null"
	}
}

// Value is a JSON-compatible sample value. The zero Value is null.
type Value struct {
	kind  Kind
	num   float64
	str   string
	flag  bool
	obj   *Object
	items []Value
}

// Null returns the null sample value
func Null() Value {
	return Value{}
}

// Number returns a numeric sample value
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// String returns a string sample value
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Bool returns a boolean sample value
func Bool(b bool) Value {
	return Value{kind: KindBool, flag: b}
}

// ObjectValue wraps an object. A nil object is treated as an empty one.
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

// EmptyObject returns the {} placeholder used for unresolved references
func EmptyObject() Value {
	return ObjectValue(NewObject())
}

// Array returns an array sample value holding items
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// Kind reports which case v holds
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is null
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsNumber returns the numeric payload and whether v is a number
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsString returns the string payload and whether v is a string
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsBool returns the boolean payload and whether v is a boolean
func (v Value) AsBool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// AsObject returns the object payload and whether v is an object
func (v Value) AsObject() (*Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// AsArray returns the array items and whether v is an array
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.items, true
}

// Clone returns a deep copy of v. Objects and arrays share no storage with
// the original.
func (v Value) Clone() Value {
	switch v.kind {
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	case KindArray:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = item.Clone()
		}
		return Value{kind: KindArray, items: items}
	default:
		return v
	}
}

// Interface converts v into plain Go values (nil, float64, string, bool,
// map[string]interface{}, []interface{}) as encoding/json would decode them
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.flag
	case KindObject:
		m := make(map[string]interface{}, v.obj.Len())
		for _, key := range v.obj.Keys() {
			item, _ := v.obj.Get(key)
			m[key] = item.Interface()
		}
		return m
	case KindArray:
		out := make([]interface{}, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNumber:
		buf.WriteString(strconv.FormatFloat(v.num, 'f', -1, 64))
	case KindString:
		data, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.flag))
	case KindObject:
		return v.obj.encode(buf)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		buf.WriteString("null")
	}
	return nil
}
