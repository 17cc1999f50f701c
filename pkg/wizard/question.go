package wizard

import (
	"github.com/goliatone/go-formwizard/pkg/form"
)

// Question is one wizard card. Its inputs are the wizard view's controls
// for that card.
type Question struct {
	ID     string
	Title  string
	Help   string
	Inputs []*form.Input
}

// Missing lists the names of required groups that are not filled, in
// first-appearance order. Checkbox and radio groups need one checked
// option; other inputs must be non-blank after trimming.
func (q Question) Missing() []string {
	var required []*form.Input
	for _, in := range q.Inputs {
		if in != nil && in.Required {
			required = append(required, in)
		}
	}
	names, groups := form.GroupByName(required)
	var missing []string
	for _, name := range names {
		if !form.Filled(groups[name]) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Valid reports whether every required group is filled.
func (q Question) Valid() bool {
	return len(q.Missing()) == 0
}

// HasEmpty reports whether any input group of the card is unanswered.
func (q Question) HasEmpty() bool {
	var visible []*form.Input
	for _, in := range q.Inputs {
		if in != nil && in.Kind != form.KindHidden {
			visible = append(visible, in)
		}
	}
	names, groups := form.GroupByName(visible)
	for _, name := range names {
		if !form.Filled(groups[name]) {
			return true
		}
	}
	return false
}

// HasEmptyRequired reports whether a required group is unanswered.
func (q Question) HasEmptyRequired() bool {
	return !q.Valid()
}

// Contains reports whether in belongs to the card.
func (q Question) Contains(in *form.Input) bool {
	for _, candidate := range q.Inputs {
		if candidate == in {
			return true
		}
	}
	return false
}

func (q Question) firstInput() *form.Input {
	for _, in := range q.Inputs {
		if in != nil && in.Kind != form.KindHidden {
			return in
		}
	}
	return nil
}
