// Package viewtoggle switches a page between the wizard and the
// traditional form, copying values across before every switch.
package viewtoggle

import (
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/storage"
)

// ModeKey stores the chosen view in local storage.
const ModeKey = "formViewMode"

// DefaultConfirmMessage is shown when switching with unsaved changes.
const DefaultConfirmMessage = "You have unsaved changes. Switch views anyway?"

// Confirmer asks the user to confirm a switch.
type Confirmer interface {
	Confirm(message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(message string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(message string) bool { return f(message) }

// Control is the toggle widget. SetMode moves it without user input, used
// to revert a declined switch.
type Control interface {
	SetMode(mode form.Mode)
}

// Toggle keeps the wizard and traditional containers in step.
type Toggle struct {
	wizard      *form.Container
	traditional *form.Container
	store       storage.Backend
	bus         *events.Bus
	confirmer   Confirmer
	control     Control
	message     string
	initial     form.Mode
	logger      *zap.Logger

	mu     sync.Mutex
	mode   form.Mode
	dirty  bool
	unsubs []func()
}

// Option configures a Toggle.
type Option func(*Toggle)

// WithStorage persists the chosen mode.
func WithStorage(b storage.Backend) Option {
	return func(t *Toggle) { t.store = b }
}

// WithBus connects the toggle to the page's event bus.
func WithBus(bus *events.Bus) Option {
	return func(t *Toggle) { t.bus = bus }
}

// WithConfirmer asks before switching with unsaved changes. Without one
// such switches go ahead.
func WithConfirmer(c Confirmer) Option {
	return func(t *Toggle) { t.confirmer = c }
}

// WithControl sets the toggle widget.
func WithControl(c Control) Option {
	return func(t *Toggle) { t.control = c }
}

// WithConfirmMessage overrides DefaultConfirmMessage.
func WithConfirmMessage(msg string) Option {
	return func(t *Toggle) {
		if msg != "" {
			t.message = msg
		}
	}
}

// WithInitialMode sets the mode used when nothing is stored.
func WithInitialMode(mode form.Mode) Option {
	return func(t *Toggle) {
		if mode.Valid() {
			t.initial = mode
		}
	}
}

// WithLogger sets the toggle logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Toggle) {
		if logger != nil {
			t.logger = logger.Named("viewtoggle")
		}
	}
}

// New returns a toggle over the two containers.
func New(wizard, traditional *form.Container, opts ...Option) *Toggle {
	t := &Toggle{
		wizard:      wizard,
		traditional: traditional,
		message:     DefaultConfirmMessage,
		initial:     form.ModeWizard,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	t.mode = t.initial
	return t
}

// Connect restores the stored mode, shows the matching container and
// starts tracking unsaved changes. It returns the active mode.
func (t *Toggle) Connect() form.Mode {
	mode := t.initial
	if stored, ok := storage.GetString(t.store, ModeKey); ok && form.Mode(stored).Valid() {
		mode = form.Mode(stored)
	}

	t.mu.Lock()
	t.mode = mode
	t.unsubs = append(t.unsubs,
		events.Subscribe(t.bus, events.FormSaved, func(e events.FormSavedEvent) { t.setDirty(e.Pending) }),
		events.Subscribe(t.bus, events.FormFieldChanged, func(events.FieldChangedEvent) { t.setDirty(true) }),
		events.Subscribe(t.bus, events.AutofillApplied, func(events.AutofillEvent) { t.setDirty(true) }),
	)
	t.mu.Unlock()

	t.show(mode)
	if t.control != nil {
		t.control.SetMode(mode)
	}
	return mode
}

// Mode reports the active view.
func (t *Toggle) Mode() form.Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Dirty reports whether edits happened since the last form:saved.
func (t *Toggle) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}

// MarkDirty records an edit.
func (t *Toggle) MarkDirty() { t.setDirty(true) }

// Switch changes the visible view. With unsaved changes the user is asked
// first; declining reverts the control and keeps the current view. Values
// are copied from the visible container into the other one before the
// switch. It reports whether the mode changed.
func (t *Toggle) Switch(to form.Mode) bool {
	if !to.Valid() {
		return false
	}
	t.mu.Lock()
	from := t.mode
	dirty := t.dirty
	t.mu.Unlock()
	if from == to {
		return false
	}

	if dirty && t.confirmer != nil && !t.confirmer.Confirm(t.message) {
		t.logger.Debug("switch declined", zap.String("from", string(from)), zap.String("to", string(to)))
		if t.control != nil {
			t.control.SetMode(from)
		}
		return false
	}

	form.CopyValues(t.container(from), t.container(to))

	t.mu.Lock()
	t.mode = to
	t.mu.Unlock()

	t.show(to)
	if !storage.SetString(t.store, ModeKey, string(to)) && t.store != nil {
		t.logger.Warn("view mode not persisted")
	}
	if t.control != nil {
		t.control.SetMode(to)
	}
	events.Publish(t.bus, events.ViewModeChanged, events.ModeChangedEvent{From: from, To: to})
	return true
}

// Close detaches from the bus.
func (t *Toggle) Close() {
	t.mu.Lock()
	unsubs := t.unsubs
	t.unsubs = nil
	t.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

func (t *Toggle) setDirty(dirty bool) {
	t.mu.Lock()
	t.dirty = dirty
	t.mu.Unlock()
}

func (t *Toggle) container(mode form.Mode) *form.Container {
	if mode == form.ModeTraditional {
		return t.traditional
	}
	return t.wizard
}

func (t *Toggle) show(mode form.Mode) {
	if t.wizard != nil {
		t.wizard.SetVisible(mode == form.ModeWizard)
	}
	if t.traditional != nil {
		t.traditional.SetVisible(mode == form.ModeTraditional)
	}
}
