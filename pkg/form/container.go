package form

import "sync/atomic"

// Mode identifies one of the two rendered views of a form.
type Mode string

const (
	ModeWizard      Mode = "wizard"
	ModeTraditional Mode = "traditional"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeWizard || m == ModeTraditional
}

// Container is one independently rendered view of the form: the wizard
// cards or the traditional single-page form.
type Container struct {
	Mode    Mode
	inputs  []*Input
	visible atomic.Bool
}

// NewContainer builds a container over inputs; nil inputs are dropped.
func NewContainer(mode Mode, inputs ...*Input) *Container {
	c := &Container{Mode: mode}
	for _, in := range inputs {
		if in != nil {
			c.inputs = append(c.inputs, in)
		}
	}
	return c
}

// Inputs returns the container's inputs in document order.
func (c *Container) Inputs() []*Input {
	if c == nil {
		return nil
	}
	return c.inputs
}

// Named returns every input carrying name.
func (c *Container) Named(name string) []*Input {
	if c == nil {
		return nil
	}
	var out []*Input
	for _, in := range c.inputs {
		if in.Name == name {
			out = append(out, in)
		}
	}
	return out
}

// Visible reports whether the container is the one shown to the user.
func (c *Container) Visible() bool {
	return c != nil && c.visible.Load()
}

// SetVisible shows or hides the container.
func (c *Container) SetVisible(visible bool) {
	if c != nil {
		c.visible.Store(visible)
	}
}

// Snapshot captures this container alone.
func (c *Container) Snapshot() Data {
	return Snapshot(c)
}

// CopyValues mirrors every named input of from onto the inputs of to that
// share its name. Choice inputs copy checked state by matching value; text
// inputs copy the value.
func CopyValues(from, to *Container) {
	if from == nil || to == nil || from == to {
		return
	}
	_, groups := GroupByName(from.inputs)
	for _, target := range to.inputs {
		sources, ok := groups[target.Name]
		if !ok {
			continue
		}
		if target.Kind.Choice() {
			checked := false
			var seq uint64
			for _, src := range sources {
				value, isChecked, srcSeq := src.state()
				if srcSeq > seq {
					seq = srcSeq
				}
				if isChecked && value == target.Value() {
					checked = true
				}
			}
			target.assign("", checked, seq)
			continue
		}
		value, _, seq := sources[0].state()
		target.assign(value, false, seq)
	}
}
