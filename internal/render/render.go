// Package render writes a ParsedResult as JSON or as an indented text tree.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zmcp/odata-sample/internal/models"
	"github.com/zmcp/odata-sample/internal/sample"
)

// Section titles used by Tree
const (
	SectionActions      = "Actions (POST)"
	SectionFunctions    = "Functions (GET)"
	SectionEntities     = "Entities"
	SectionComplexTypes = "Complex Types"
)

const collapsedMarker = "▶"

// JSON writes result as JSON followed by a newline. An indent of zero
// produces compact output.
func JSON(w io.Writer, result *models.ParsedResult, indent int) error {
	if result == nil {
		result = models.NewParsedResult()
	}

	var data []byte
	var err error
	if indent > 0 {
		data, err = json.MarshalIndent(result, "", strings.Repeat(" ", indent))
	} else {
		data, err = json.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Tree writes result as an indented tree. Containers nested deeper than
// maxDepth are collapsed to their size; a maxDepth of zero shows everything.
func Tree(w io.Writer, result *models.ParsedResult, maxDepth int) error {
	if result == nil {
		result = models.NewParsedResult()
	}

	t := &tree{maxDepth: maxDepth}

	if len(result.Actions) > 0 {
		t.line(0, SectionActions)
		for _, a := range result.Actions {
			t.line(1, a.Name)
			t.value(2, "parameters", sample.ObjectValue(a.Parameters))
			t.value(2, "returnType", a.ReturnType)
		}
	}

	if len(result.Functions) > 0 {
		t.line(0, SectionFunctions)
		for _, f := range result.Functions {
			t.line(1, f.Name)
			t.value(2, "returnType", f.ReturnType)
		}
	}

	t.section(SectionEntities, result.Entities)
	t.section(SectionComplexTypes, result.ComplexTypes)

	_, err := io.WriteString(w, t.buf.String())
	return err
}

type tree struct {
	buf      strings.Builder
	maxDepth int
}

func (t *tree) line(depth int, text string) {
	t.buf.WriteString(strings.Repeat("  ", depth))
	t.buf.WriteString(text)
	t.buf.WriteByte('\n')
}

func (t *tree) section(title string, obj *sample.Object) {
	if obj.Len() == 0 {
		return
	}
	t.line(0, title)
	for _, key := range obj.Keys() {
		v, _ := obj.Get(key)
		t.value(1, key, v)
	}
}

func (t *tree) value(depth int, label string, v sample.Value) {
	switch v.Kind() {
	case sample.KindObject:
		obj, _ := v.AsObject()
		if obj.Len() == 0 {
			t.line(depth, label+": {}")
			return
		}
		if t.collapsed(depth) {
			t.line(depth, fmt.Sprintf("%s: %s {%d}", label, collapsedMarker, obj.Len()))
			return
		}
		t.line(depth, label)
		for _, key := range obj.Keys() {
			child, _ := obj.Get(key)
			t.value(depth+1, key, child)
		}

	case sample.KindArray:
		items, _ := v.AsArray()
		if len(items) == 0 {
			t.line(depth, label+": []")
			return
		}
		if t.collapsed(depth) {
			t.line(depth, fmt.Sprintf("%s: %s [%d]", label, collapsedMarker, len(items)))
			return
		}
		t.line(depth, label)
		for i, item := range items {
			t.value(depth+1, fmt.Sprintf("[%d]", i), item)
		}

	default:
		t.line(depth, label+": "+scalar(v))
	}
}

func (t *tree) collapsed(depth int) bool {
	return t.maxDepth > 0 && depth >= t.maxDepth
}

func scalar(v sample.Value) string {
	switch v.Kind() {
	case sample.KindNumber:
		n, _ := v.AsNumber()
		return strconv.FormatFloat(n, 'f', -1, 64)
	case sample.KindString:
		s, _ := v.AsString()
		return strconv.Quote(s)
	case sample.KindBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	default:
		return "null"
	}
}
