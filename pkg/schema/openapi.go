package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ExtensionKey holds per-property wizard hints in an OpenAPI schema:
//
//	x-formwizard:
//	  question: claim        # groups properties into one card
//	  title: About the claim # card title, first property wins
//	  widget: radio          # overrides the inferred field type
//	  order: 2
const ExtensionKey = "x-formwizard"

// ErrOperationNotFound is returned when operationID is not in the document.
var ErrOperationNotFound = errors.New("schema: operation not found")

// requestMediaTypes are tried in order when picking the request body schema.
var requestMediaTypes = []string{
	"application/x-www-form-urlencoded",
	"multipart/form-data",
	"application/json",
}

// FromOpenAPI derives a definition from the request body of operationID.
// Each top-level property becomes a field; properties sharing an
// x-formwizard question are grouped into one card.
func FromOpenAPI(ctx context.Context, data []byte, operationID string) (*Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("schema: openapi document is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("schema: load openapi document: %w", err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("schema: validate openapi document: %w", err)
	}

	op, path := findOperation(doc, strings.TrimSpace(operationID))
	if op == nil {
		return nil, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
	}
	body := requestSchema(op)
	if body == nil || len(body.Properties) == 0 {
		return nil, fmt.Errorf("schema: operation %q has no request body properties", operationID)
	}

	def := &Definition{
		Code:  operationID,
		Title: firstNonEmpty(op.Summary, body.Title, operationID),
	}
	if path != "" {
		def.SaveURL = path
	}

	required := make(map[string]bool, len(body.Required))
	for _, name := range body.Required {
		required[name] = true
	}

	type entry struct {
		name  string
		order float64
		hints hints
		field Field
	}
	entries := make([]entry, 0, len(body.Properties))
	for name, ref := range body.Properties {
		if ref == nil || ref.Value == nil {
			continue
		}
		h := readHints(ref.Value.Extensions)
		entries = append(entries, entry{
			name:  name,
			order: h.order,
			hints: h,
			field: convertProperty(name, ref.Value, required[name], h),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].name < entries[j].name
	})

	index := make(map[string]int)
	for _, e := range entries {
		id := e.hints.question
		if id == "" {
			id = e.name
		}
		pos, ok := index[id]
		if !ok {
			pos = len(def.Questions)
			index[id] = pos
			def.Questions = append(def.Questions, Question{
				ID:    id,
				Title: firstNonEmpty(e.hints.title, e.field.Label),
			})
		}
		def.Questions[pos].Fields = append(def.Questions[pos].Fields, e.field)
	}

	normalise(def)
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func findOperation(doc *openapi3.T, operationID string) (*openapi3.Operation, string) {
	if doc.Paths == nil {
		return nil, ""
	}
	paths := doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for key := range paths {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, path := range keys {
		item := paths[path]
		if item == nil {
			continue
		}
		for _, op := range item.Operations() {
			if op != nil && op.OperationID == operationID {
				return op, path
			}
		}
	}
	return nil, ""
}

func requestSchema(op *openapi3.Operation) *openapi3.Schema {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	for _, mediaType := range requestMediaTypes {
		if mt, ok := content[mediaType]; ok && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

type hints struct {
	question string
	title    string
	widget   string
	order    float64
}

func readHints(ext map[string]any) hints {
	raw, ok := ext[ExtensionKey].(map[string]any)
	if !ok {
		return hints{}
	}
	var h hints
	h.question, _ = raw["question"].(string)
	h.title, _ = raw["title"].(string)
	h.widget, _ = raw["widget"].(string)
	switch v := raw["order"].(type) {
	case float64:
		h.order = v
	case int:
		h.order = float64(v)
	}
	return h
}

func convertProperty(name string, s *openapi3.Schema, required bool, h hints) Field {
	f := Field{
		Name:     name,
		Label:    firstNonEmpty(s.Title, s.Description),
		Required: required,
		Type:     inferType(s),
	}
	if h.widget != "" {
		f.Type = h.widget
	}
	for _, v := range s.Enum {
		if str := fmt.Sprint(v); str != "" {
			f.Options = append(f.Options, str)
		}
	}
	if s.Default != nil {
		f.Default = fmt.Sprint(s.Default)
	}
	return f
}

func inferType(s *openapi3.Schema) string {
	switch {
	case s.Type.Is(openapi3.TypeBoolean):
		return "checkbox"
	case s.Type.Is(openapi3.TypeInteger), s.Type.Is(openapi3.TypeNumber):
		return "number"
	case len(s.Enum) > 0:
		return "select"
	}
	switch s.Format {
	case "email":
		return "email"
	case "date":
		return "date"
	case "phone", "tel":
		return "tel"
	}
	if s.MaxLength != nil && *s.MaxLength > 255 {
		return "textarea"
	}
	return "text"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
