package autosave

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("autosave: controller closed")
	// ErrNoSaveURL is returned when a client has nowhere to send saves.
	ErrNoSaveURL = errors.New("autosave: save url is required")
)

// HTTPError reports a non-2xx save response.
type HTTPError struct {
	StatusCode int
	Status     string
	// Errors holds the mapped validation messages of a 422 response.
	Errors ErrorMapping
}

func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("autosave: server responded %s", e.Status)
	}
	return fmt.Sprintf("autosave: server responded %d", e.StatusCode)
}

// ErrorMapping splits a validation payload into field and form messages.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// Messages flattens the mapping for display, form messages first and
// field messages ordered by field name.
func (m ErrorMapping) Messages() []string {
	out := append([]string(nil), m.Form...)
	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, m.Fields[name]...)
	}
	return out
}

// MapErrorPayload assigns server messages to the named fields of the form.
// Keys may use Rails bracket notation ("submission[plaintiff_name]"),
// dotted paths or JSON pointers; wrapper segments are dropped and the
// longest trailing match wins. Unknown keys become form-level messages so
// nothing is lost.
func MapErrorPayload(fieldNames []string, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	if len(payload) == 0 {
		mapping.Fields = nil
		return mapping
	}

	known := make(map[string]struct{}, len(fieldNames))
	for _, name := range fieldNames {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			known[trimmed] = struct{}{}
		}
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, rawPath := range keys {
		messages := normalizeMessages(payload[rawPath])
		if len(messages) == 0 {
			continue
		}
		name, formLevel := mapErrorPath(rawPath, known)
		if formLevel {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		mapping.Fields[name] = append(mapping.Fields[name], messages...)
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func mapErrorPath(raw string, known map[string]struct{}) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isFormLevelKey(trimmed) {
		return "", true
	}
	if _, ok := known[trimmed]; ok {
		return trimmed, false
	}

	segments := stripNumeric(pathSegments(trimmed))
	// Try the longest suffix first so "a[b][c]" prefers "b.c" over "c".
	for start := 0; start < len(segments); start++ {
		for _, candidate := range []string{
			strings.Join(segments[start:], "."),
			strings.Join(segments[start:], "_"),
		} {
			if _, ok := known[candidate]; ok {
				return candidate, false
			}
		}
	}
	return "", true
}

func pathSegments(path string) []string {
	clean := strings.TrimLeft(path, "#$/.")
	clean = strings.NewReplacer("[", ".", "]", "", "/", ".").Replace(clean)
	parts := strings.Split(clean, ".")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		out = append(out, part)
	}
	return out
}

func stripNumeric(segments []string) []string {
	out := segments[:0:0]
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "base", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
