package terminal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Navigation answers accepted by text prompts.
const (
	BackToken = "<"
	SkipToken = ">"
)

// BackOption is appended to choice prompts after the first question.
const BackOption = "« Back"

type action int

const (
	actionNext action = iota
	actionBack
)

// Runner walks a navigator's questions with a PromptDriver. Answers are
// written into the wizard view's inputs and announced on the bus as field
// changes so autosave picks them up.
type Runner struct {
	nav    *wizard.Navigator
	driver PromptDriver
	bus    *events.Bus
	logger *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithPromptDriver overrides the survey driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Runner) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithBus publishes field changes on bus.
func WithBus(bus *events.Bus) Option {
	return func(r *Runner) {
		r.bus = bus
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger.Named("terminal")
		}
	}
}

// NewRunner returns a runner for nav.
func NewRunner(nav *wizard.Navigator, opts ...Option) *Runner {
	r := &Runner{
		nav:    nav,
		driver: NewSurveyDriver(nil),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run prompts until the wizard finishes, the context ends or the driver
// fails. "<" steps back like Escape and ">" leaves the card like Enter.
func (r *Runner) Run(ctx context.Context) error {
	for !r.nav.Finished() {
		if err := ctx.Err(); err != nil {
			return err
		}
		index := r.nav.Index()
		q := r.nav.Current()

		title := q.Title
		if title == "" {
			title = q.ID
		}
		if err := r.driver.Info(ctx, fmt.Sprintf("[%d/%d] %s", index+1, r.nav.Total(), title)); err != nil {
			return err
		}
		if q.Help != "" {
			if err := r.driver.Info(ctx, q.Help); err != nil {
				return err
			}
		}

		act, err := r.ask(ctx, q, index)
		if err != nil {
			return err
		}

		switch act {
		case actionBack:
			r.nav.HandleKey(wizard.KeyEvent{Key: wizard.KeyEscape})
		case actionNext:
			if index == r.nav.Total()-1 {
				// Enter on the last card is native submission.
				r.nav.Next()
				continue
			}
			r.nav.HandleKey(wizard.KeyEvent{Key: wizard.KeyEnter})
		}
	}
	return nil
}

func (r *Runner) ask(ctx context.Context, q wizard.Question, index int) (action, error) {
	names, groups := form.GroupByName(q.Inputs)
	for _, name := range names {
		group := groups[name]
		first := group[0]
		if first.Kind == form.KindHidden {
			continue
		}

		message := first.Label
		if message == "" {
			message = name
		}
		if first.Required {
			message += " *"
		}

		var (
			act action
			err error
		)
		switch first.Kind {
		case form.KindRadio:
			act, err = r.askRadio(ctx, message, group, index > 0)
		case form.KindCheckbox:
			err = r.askCheckboxes(ctx, message, group)
		case form.KindSelect:
			act, err = r.askSelect(ctx, message, first, index > 0)
		case form.KindTextArea:
			act, err = r.askText(ctx, message, first, true)
		default:
			act, err = r.askText(ctx, message, first, false)
		}
		if err != nil {
			return actionNext, err
		}
		if act == actionBack {
			return actionBack, nil
		}
	}
	return actionNext, nil
}

func (r *Runner) askText(ctx context.Context, message string, in *form.Input, multiline bool) (action, error) {
	var (
		answer string
		err    error
	)
	if multiline {
		answer, err = r.driver.TextArea(ctx, TextAreaConfig{Message: message, Default: in.Value()})
	} else {
		answer, err = r.driver.Input(ctx, InputConfig{
			Message: message,
			Default: in.Value(),
			Help:    fmt.Sprintf("%q goes back, %q keeps the current answer", BackToken, SkipToken),
		})
	}
	if err != nil {
		return actionNext, err
	}
	switch strings.TrimSpace(answer) {
	case BackToken:
		return actionBack, nil
	case SkipToken:
		return actionNext, nil
	}
	if answer != in.Value() {
		in.SetValue(answer)
		r.changed(in.Name)
	}
	return actionNext, nil
}

func (r *Runner) askRadio(ctx context.Context, message string, group []*form.Input, allowBack bool) (action, error) {
	options := make([]string, 0, len(group)+1)
	defaultIndex := 0
	for i, in := range group {
		options = append(options, in.Value())
		if in.Checked() {
			defaultIndex = i
		}
	}
	if allowBack {
		options = append(options, BackOption)
	}

	idx, err := r.driver.Select(ctx, SelectConfig{Message: message, Options: options, DefaultIndex: defaultIndex})
	if err != nil {
		return actionNext, err
	}
	if idx < 0 || idx >= len(group) {
		return actionBack, nil
	}
	for i, in := range group {
		in.SetChecked(i == idx)
	}
	r.changed(group[0].Name)
	return actionNext, nil
}

func (r *Runner) askCheckboxes(ctx context.Context, message string, group []*form.Input) error {
	options := make([]string, 0, len(group))
	var defaults []int
	for i, in := range group {
		label := in.Label
		if label == "" {
			label = in.Value()
		}
		options = append(options, label)
		if in.Checked() {
			defaults = append(defaults, i)
		}
	}

	picked, err := r.driver.MultiSelect(ctx, SelectConfig{Message: message, Options: options, Defaults: defaults})
	if err != nil {
		return err
	}
	chosen := make(map[int]struct{}, len(picked))
	for _, i := range picked {
		chosen[i] = struct{}{}
	}
	for i, in := range group {
		_, ok := chosen[i]
		in.SetChecked(ok)
	}
	r.changed(group[0].Name)
	return nil
}

func (r *Runner) askSelect(ctx context.Context, message string, in *form.Input, allowBack bool) (action, error) {
	options := append([]string(nil), in.Options...)
	defaultIndex := indexOf(options, in.Value())
	if allowBack {
		options = append(options, BackOption)
	}

	idx, err := r.driver.Select(ctx, SelectConfig{Message: message, Options: options, DefaultIndex: defaultIndex})
	if err != nil {
		return actionNext, err
	}
	if idx < 0 || idx >= len(in.Options) {
		return actionBack, nil
	}
	if value := in.Options[idx]; value != in.Value() {
		in.SetValue(value)
		r.changed(in.Name)
	}
	return actionNext, nil
}

func (r *Runner) changed(name string) {
	r.logger.Debug("field changed", zap.String("field", name))
	events.Publish(r.bus, events.FormFieldChanged, events.FieldChangedEvent{Name: name, Mode: form.ModeWizard})
}
