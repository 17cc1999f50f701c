package schema

import (
	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Built is a definition materialised into live inputs.
type Built struct {
	Page      *form.Page
	Questions []wizard.Question
}

// Build creates both views with separate inputs for every field and one
// wizard question per card. The wizard view starts visible.
func (d *Definition) Build() (*Built, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	var wizardInputs, traditionalInputs []*form.Input
	questions := make([]wizard.Question, 0, len(d.Questions))
	for _, q := range d.Questions {
		var cardInputs []*form.Input
		for _, f := range q.Fields {
			cardInputs = append(cardInputs, f.inputs()...)
			traditionalInputs = append(traditionalInputs, f.inputs()...)
		}
		wizardInputs = append(wizardInputs, cardInputs...)
		questions = append(questions, wizard.Question{
			ID:     q.ID,
			Title:  q.Title,
			Help:   q.Help,
			Inputs: cardInputs,
		})
	}

	page := &form.Page{
		Key:         d.Key(),
		Wizard:      form.NewContainer(form.ModeWizard, wizardInputs...),
		Traditional: form.NewContainer(form.ModeTraditional, traditionalInputs...),
	}
	page.Wizard.SetVisible(true)
	return &Built{Page: page, Questions: questions}, nil
}

func (f Field) inputs() []*form.Input {
	kind, _ := f.Kind()
	decorate := func(in *form.Input) *form.Input {
		in.Required = f.Required
		in.Label = f.Label
		return in
	}

	switch {
	case kind == form.KindCheckbox && len(f.Options) == 0:
		return []*form.Input{decorate(form.NewChoice(f.Name, kind, "1", f.Default == "1" || f.Default == "true"))}
	case kind.Choice():
		out := make([]*form.Input, 0, len(f.Options))
		for _, opt := range f.Options {
			out = append(out, decorate(form.NewChoice(f.Name, kind, opt, opt == f.Default)))
		}
		return out
	case kind == form.KindSelect:
		in := decorate(form.NewInput(f.Name, kind, f.Default))
		in.Options = append([]string(nil), f.Options...)
		return []*form.Input{in}
	default:
		return []*form.Input{decorate(form.NewInput(f.Name, kind, f.Default))}
	}
}
