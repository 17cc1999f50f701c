// Package autofill writes externally supplied values (a saved profile, an
// address lookup) into every rendered view of a page.
package autofill

import (
	"sort"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/form"
)

// Filler applies values to a page and announces the change.
type Filler struct {
	page *form.Page
	bus  *events.Bus
}

// New returns a Filler for page.
func New(page *form.Page, bus *events.Bus) *Filler {
	return &Filler{page: page, bus: bus}
}

// Apply writes values into both views. Text inputs take the value, choice
// inputs are checked when their value matches. Names without an input are
// skipped. It returns the sorted names that were written and publishes
// autofill:applied when any were.
func (f *Filler) Apply(values map[string]string, source string) []string {
	if f == nil || f.page == nil || len(values) == 0 {
		return nil
	}

	written := make(map[string]struct{}, len(values))
	for _, c := range f.page.Containers() {
		for name, value := range values {
			inputs := c.Named(name)
			if len(inputs) == 0 {
				continue
			}
			for _, in := range inputs {
				if in.Kind.Choice() {
					in.SetChecked(in.Value() == value)
					continue
				}
				in.SetValue(value)
			}
			written[name] = struct{}{}
		}
	}
	if len(written) == 0 {
		return nil
	}

	fields := make([]string, 0, len(written))
	for name := range written {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	events.Publish(f.bus, events.AutofillApplied, events.AutofillEvent{
		Source: strings.TrimSpace(source),
		Fields: fields,
	})
	return fields
}
