// Package status presents autosave progress. It holds no business logic:
// callers move it between states and it keeps a bound view's text and
// class in step.
package status

import (
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-theme"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/clock"
)

// State is the presentation state of the indicator.
type State string

const (
	StateIdle    State = "idle"
	StateSaving  State = "saving"
	StateSaved   State = "saved"
	StateError   State = "error"
	StateWarning State = "warning"
	StateInfo    State = "info"
	StateQueued  State = "queued"
)

// DefaultRevertDelay is how long "saved" stays visible before reverting to
// idle styling.
const DefaultRevertDelay = 2 * time.Second

var defaultText = map[State]string{
	StateIdle:   "",
	StateSaving: "Saving...",
	StateSaved:  "Saved",
	StateError:  "Error saving",
	StateQueued: "Saved locally",
}

// View is the element the indicator renders into.
type View interface {
	SetText(text string)
	SetClass(class string)
}

// Indicator is the status presenter shared by autosave and preview.
type Indicator struct {
	view   View
	clock  clock.Clock
	revert time.Duration
	logger *zap.Logger
	theme  classTheme

	selector     theme.ThemeSelector
	themeName    string
	themeVariant string

	mu      sync.Mutex
	state   State
	message string
	online  bool
	timer   clock.Timer
	gen     uint64
}

// Option configures an Indicator.
type Option func(*Indicator)

// WithClock overrides the clock driving the saved→idle revert.
func WithClock(c clock.Clock) Option {
	return func(i *Indicator) {
		if c != nil {
			i.clock = c
		}
	}
}

// WithRevertDelay overrides DefaultRevertDelay.
func WithRevertDelay(d time.Duration) Option {
	return func(i *Indicator) {
		if d > 0 {
			i.revert = d
		}
	}
}

// WithLogger sets the indicator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Indicator) {
		if logger != nil {
			i.logger = logger.Named("status")
		}
	}
}

// New binds an indicator to view, which may be nil for headless use.
func New(view View, opts ...Option) *Indicator {
	i := &Indicator{
		view:   view,
		clock:  clock.Real(),
		revert: DefaultRevertDelay,
		logger: zap.NewNop(),
		theme:  defaultClassTheme(),
		state:  StateIdle,
		online: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	if i.selector != nil {
		i.theme = resolveClassTheme(i.selector, i.themeName, i.themeVariant, i.logger)
	}
	i.mu.Lock()
	i.applyLocked()
	i.mu.Unlock()
	return i
}

// Saving marks a save in progress.
func (i *Indicator) Saving() { i.transition(StateSaving, "") }

// Saved marks a completed save; the indicator returns to idle after the
// revert delay unless another transition happens first.
func (i *Indicator) Saved(message string) { i.transition(StateSaved, message) }

// Error marks a failed operation.
func (i *Indicator) Error(message string) { i.transition(StateError, message) }

// Warning shows a non-fatal warning.
func (i *Indicator) Warning(message string) { i.transition(StateWarning, message) }

// Info shows an informational message.
func (i *Indicator) Info(message string) { i.transition(StateInfo, message) }

// Queued marks changes held locally until connectivity returns.
func (i *Indicator) Queued(message string) { i.transition(StateQueued, message) }

// SetOnline updates the orthogonal connectivity dimension.
func (i *Indicator) SetOnline(online bool) {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.online == online {
		return
	}
	i.online = online
	i.applyLocked()
}

// State reports the current state.
func (i *Indicator) State() State {
	if i == nil {
		return StateIdle
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Message reports the text currently shown.
func (i *Indicator) Message() string {
	if i == nil {
		return ""
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.textLocked()
}

// Online reports the connectivity dimension.
func (i *Indicator) Online() bool {
	if i == nil {
		return true
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.online
}

// Class reports the class currently applied to the view.
func (i *Indicator) Class() string {
	if i == nil {
		return ""
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.classLocked()
}

// Close cancels a pending revert.
func (i *Indicator) Close() {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopTimerLocked()
}

func (i *Indicator) transition(state State, message string) {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	i.stopTimerLocked()
	i.state = state
	i.message = sanitizeMessage(message)
	i.applyLocked()
	i.logger.Debug("status", zap.String("state", string(state)), zap.String("message", i.message))

	if state == StateSaved {
		gen := i.gen
		i.timer = i.clock.AfterFunc(i.revert, func() { i.revertToIdle(gen) })
	}
}

func (i *Indicator) revertToIdle(gen uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if gen != i.gen || i.state != StateSaved {
		return
	}
	i.timer = nil
	i.state = StateIdle
	i.message = ""
	i.applyLocked()
}

func (i *Indicator) stopTimerLocked() {
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.gen++
}

func (i *Indicator) applyLocked() {
	if i.view == nil {
		return
	}
	i.view.SetText(i.textLocked())
	i.view.SetClass(i.classLocked())
}

func (i *Indicator) textLocked() string {
	if i.message != "" {
		return i.message
	}
	if !i.online && i.state == StateIdle {
		return "Offline"
	}
	return defaultText[i.state]
}

func (i *Indicator) classLocked() string {
	classes := []string{i.theme.base, i.theme.forState(i.state)}
	if !i.online {
		classes = append(classes, i.theme.offline)
	}
	return strings.Join(strings.Fields(strings.Join(classes, " ")), " ")
}
