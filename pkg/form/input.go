package form

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Kind mirrors the HTML control types the wizard and traditional views use.
type Kind string

const (
	KindText     Kind = "text"
	KindTextArea Kind = "textarea"
	KindSelect   Kind = "select"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
	KindHidden   Kind = "hidden"
	KindEmail    Kind = "email"
	KindTel      Kind = "tel"
	KindNumber   Kind = "number"
	KindDate     Kind = "date"
)

// Choice reports whether the kind uses checked state rather than free text.
func (k Kind) Choice() bool {
	return k == KindCheckbox || k == KindRadio
}

// Textual reports whether the kind accepts typed text (the inputs where
// swipe gestures are suppressed).
func (k Kind) Textual() bool {
	switch k {
	case KindText, KindTextArea, KindEmail, KindTel, KindNumber, KindDate:
		return true
	default:
		return false
	}
}

// editSeq orders edits across every input in the process so snapshot merges
// can prefer the most recent non-empty value.
var editSeq atomic.Uint64

// Input is a single named control. Name, Kind, Required, Label and Options
// are fixed at construction; value and checked state are safe for
// concurrent use.
type Input struct {
	Name     string
	Kind     Kind
	Required bool
	Label    string
	// Options lists selectable values for select inputs.
	Options []string

	mu      sync.RWMutex
	value   string
	checked bool
	seq     uint64
}

// NewInput constructs an input with an initial value.
func NewInput(name string, kind Kind, value string) *Input {
	if kind == "" {
		kind = KindText
	}
	return &Input{
		Name:  strings.TrimSpace(name),
		Kind:  kind,
		value: value,
	}
}

// NewChoice constructs a checkbox or radio input with a fixed value.
func NewChoice(name string, kind Kind, value string, checked bool) *Input {
	in := NewInput(name, kind, value)
	in.checked = checked
	return in
}

// Value returns the input's current value.
func (in *Input) Value() string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.value
}

// Checked reports the checked state of a checkbox or radio input.
func (in *Input) Checked() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.checked
}

// SetValue records a user edit.
func (in *Input) SetValue(value string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.value = value
	in.seq = editSeq.Add(1)
}

// SetChecked records a user toggle.
func (in *Input) SetChecked(checked bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.checked = checked
	in.seq = editSeq.Add(1)
}

// Blank reports whether a textual input holds only whitespace, or whether a
// choice input is unchecked.
func (in *Input) Blank() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.Kind.Choice() {
		return !in.checked
	}
	return strings.TrimSpace(in.value) == ""
}

// submitted returns the value the input contributes to a form snapshot and
// its edit sequence.
func (in *Input) submitted() (string, uint64) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.Kind.Choice() && !in.checked {
		return "", in.seq
	}
	return in.value, in.seq
}

// assign mirrors another input's state without counting as a new edit.
func (in *Input) assign(value string, checked bool, seq uint64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.Kind.Choice() {
		in.checked = checked
	} else {
		in.value = value
	}
	if seq > in.seq {
		in.seq = seq
	}
}

func (in *Input) state() (string, bool, uint64) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.value, in.checked, in.seq
}

// Filled applies required-field semantics to a group of inputs sharing a
// name: choice groups need at least one checked input, text and select
// inputs need a non-blank value after trimming.
func Filled(inputs []*Input) bool {
	if len(inputs) == 0 {
		return true
	}
	if inputs[0].Kind.Choice() {
		for _, in := range inputs {
			if in.Checked() {
				return true
			}
		}
		return false
	}
	for _, in := range inputs {
		if in.Blank() {
			return false
		}
	}
	return true
}

// GroupByName groups inputs by name, preserving first-seen order.
func GroupByName(inputs []*Input) ([]string, map[string][]*Input) {
	var names []string
	groups := make(map[string][]*Input)
	for _, in := range inputs {
		if in == nil || in.Name == "" {
			continue
		}
		if _, ok := groups[in.Name]; !ok {
			names = append(names, in.Name)
		}
		groups[in.Name] = append(groups[in.Name], in)
	}
	return names, groups
}
