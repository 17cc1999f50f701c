package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/form"
)

// ErrInvalidDefinition wraps every validation failure.
var ErrInvalidDefinition = errors.New("schema: invalid definition")

// Definition describes one form page: the wizard cards and the fields they
// hold. The traditional view renders the same fields in order.
type Definition struct {
	Code       string     `json:"code" yaml:"code"`
	Title      string     `json:"title,omitempty" yaml:"title,omitempty"`
	PageKey    string     `json:"pageKey,omitempty" yaml:"pageKey,omitempty"`
	SaveURL    string     `json:"saveUrl,omitempty" yaml:"saveUrl,omitempty"`
	PreviewURL string     `json:"previewUrl,omitempty" yaml:"previewUrl,omitempty"`
	Questions  []Question `json:"questions" yaml:"questions"`
}

// Question is one wizard card.
type Question struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title" yaml:"title"`
	Help   string  `json:"help,omitempty" yaml:"help,omitempty"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Field is one named control. Choice fields (select, radio, and checkbox
// groups) list their values in Options; a checkbox without options is a
// single "1" toggle.
type Field struct {
	Name     string   `json:"name" yaml:"name"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
	Type     string   `json:"type,omitempty" yaml:"type,omitempty"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Default  string   `json:"default,omitempty" yaml:"default,omitempty"`
}

// Kind maps the field type onto a form kind. Unknown types are reported
// with ok false.
func (f Field) Kind() (form.Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(f.Type)) {
	case "", "text", "string":
		return form.KindText, true
	case "textarea":
		return form.KindTextArea, true
	case "select":
		return form.KindSelect, true
	case "checkbox", "boolean":
		return form.KindCheckbox, true
	case "radio":
		return form.KindRadio, true
	case "hidden":
		return form.KindHidden, true
	case "email":
		return form.KindEmail, true
	case "tel", "phone":
		return form.KindTel, true
	case "number", "integer":
		return form.KindNumber, true
	case "date":
		return form.KindDate, true
	default:
		return "", false
	}
}

// Key is the page key, defaulting to "/forms/<code>".
func (d *Definition) Key() string {
	if key := strings.TrimSpace(d.PageKey); key != "" {
		return key
	}
	return "/forms/" + strings.TrimSpace(d.Code)
}

// Validate checks the definition is buildable.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	if strings.TrimSpace(d.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidDefinition)
	}
	if len(d.Questions) == 0 {
		return fmt.Errorf("%w: form %q has no questions", ErrInvalidDefinition, d.Code)
	}

	ids := make(map[string]struct{}, len(d.Questions))
	for qi, q := range d.Questions {
		id := strings.TrimSpace(q.ID)
		if id == "" {
			return fmt.Errorf("%w: question %d has no id", ErrInvalidDefinition, qi+1)
		}
		if _, dup := ids[id]; dup {
			return fmt.Errorf("%w: duplicate question id %q", ErrInvalidDefinition, id)
		}
		ids[id] = struct{}{}
		if len(q.Fields) == 0 {
			return fmt.Errorf("%w: question %q has no fields", ErrInvalidDefinition, id)
		}
		for fi, f := range q.Fields {
			if strings.TrimSpace(f.Name) == "" {
				return fmt.Errorf("%w: question %q field %d has no name", ErrInvalidDefinition, id, fi+1)
			}
			kind, ok := f.Kind()
			if !ok {
				return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidDefinition, f.Name, f.Type)
			}
			if (kind == form.KindRadio || kind == form.KindSelect) && len(f.Options) == 0 {
				return fmt.Errorf("%w: %s field %q needs options", ErrInvalidDefinition, kind, f.Name)
			}
		}
	}
	return nil
}
