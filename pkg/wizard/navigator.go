// Package wizard implements single-question-at-a-time navigation: the
// position state machine, the validation gate, progress persistence and
// keyboard and touch gestures.
package wizard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/clock"
	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/storage"
)

// ErrNoQuestions is returned when a wizard has nothing to show.
var ErrNoQuestions = errors.New("wizard: at least one question is required")

// DefaultAutoAdvance is the delay between choosing an option and moving on.
const DefaultAutoAdvance = 400 * time.Millisecond

// Direction of a transition.
type Direction int

const (
	Forward Direction = iota + 1
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "none"
	}
}

// Transition describes one exit/enter animation. Jumps across several
// cards are a single transition.
type Transition struct {
	From      int
	To        int
	Direction Direction
	// Instant is set when the user prefers reduced motion.
	Instant bool
}

// Animator plays card transitions.
type Animator interface {
	Animate(t Transition)
}

// Focuser moves input focus.
type Focuser interface {
	Focus(in *form.Input)
}

// Presenter shows and clears inline validation errors.
type Presenter interface {
	ShowErrors(index int, missing []string)
	ClearErrors(index int)
}

// Announcer speaks messages to assistive technology.
type Announcer interface {
	Announce(message string)
}

// Haptics gives tactile feedback on rejected steps.
type Haptics interface {
	Pulse()
}

// Navigator is the wizard state machine for one form.
type Navigator struct {
	formCode    string
	questions   []Question
	session     *form.Session
	store       storage.Backend
	bus         *events.Bus
	clock       clock.Clock
	logger      *zap.Logger
	animator    Animator
	focuser     Focuser
	presenter   Presenter
	announcer   Announcer
	haptics     Haptics
	modalOpen   func() bool
	onFinish    func()
	reduced     bool
	autoAdvance time.Duration
	progressTTL time.Duration
	swipeMin    float64

	mu       sync.Mutex
	finished bool
	advance  clock.Timer
	touch    *touchPoint
	unsubs   []func()
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithSession shares the page's form session.
func WithSession(s *form.Session) Option {
	return func(n *Navigator) {
		if s != nil {
			n.session = s
		}
	}
}

// WithStorage sets where progress snapshots live.
func WithStorage(b storage.Backend) Option {
	return func(n *Navigator) {
		n.store = b
	}
}

// WithBus connects the navigator to the page's event bus.
func WithBus(bus *events.Bus) Option {
	return func(n *Navigator) {
		n.bus = bus
	}
}

// WithClock overrides the clock used for timestamps and auto-advance.
func WithClock(c clock.Clock) Option {
	return func(n *Navigator) {
		if c != nil {
			n.clock = c
		}
	}
}

// WithLogger sets the navigator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Navigator) {
		if logger != nil {
			n.logger = logger.Named("wizard")
		}
	}
}

// WithAnimator sets the transition player.
func WithAnimator(a Animator) Option {
	return func(n *Navigator) { n.animator = a }
}

// WithFocuser sets the focus handler.
func WithFocuser(f Focuser) Option {
	return func(n *Navigator) { n.focuser = f }
}

// WithPresenter sets the validation presenter.
func WithPresenter(p Presenter) Option {
	return func(n *Navigator) { n.presenter = p }
}

// WithAnnouncer sets the accessible announcer.
func WithAnnouncer(a Announcer) Option {
	return func(n *Navigator) { n.announcer = a }
}

// WithHaptics sets the haptic feedback handler.
func WithHaptics(h Haptics) Option {
	return func(n *Navigator) { n.haptics = h }
}

// WithModalCheck reports whether a modal dialog is open; Escape is left
// alone while it is.
func WithModalCheck(fn func() bool) Option {
	return func(n *Navigator) { n.modalOpen = fn }
}

// WithOnFinish runs when Next is accepted on the last question.
func WithOnFinish(fn func()) Option {
	return func(n *Navigator) { n.onFinish = fn }
}

// WithReducedMotion makes every transition instant.
func WithReducedMotion(reduced bool) Option {
	return func(n *Navigator) { n.reduced = reduced }
}

// WithAutoAdvance overrides DefaultAutoAdvance.
func WithAutoAdvance(d time.Duration) Option {
	return func(n *Navigator) {
		if d > 0 {
			n.autoAdvance = d
		}
	}
}

// WithProgressTTL overrides DefaultProgressTTL.
func WithProgressTTL(d time.Duration) Option {
	return func(n *Navigator) {
		if d > 0 {
			n.progressTTL = d
		}
	}
}

// WithSwipeDistance overrides DefaultSwipeDistance.
func WithSwipeDistance(px float64) Option {
	return func(n *Navigator) {
		if px > 0 {
			n.swipeMin = px
		}
	}
}

// New builds a navigator over questions.
func New(formCode string, questions []Question, opts ...Option) (*Navigator, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	n := &Navigator{
		formCode:    formCode,
		questions:   questions,
		clock:       clock.Real(),
		logger:      zap.NewNop(),
		autoAdvance: DefaultAutoAdvance,
		progressTTL: DefaultProgressTTL,
		swipeMin:    DefaultSwipeDistance,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	if n.session == nil {
		n.session = form.NewSession(formCode, "", len(questions))
	}
	if n.session.Total() != len(questions) {
		return nil, fmt.Errorf("wizard: session expects %d questions, got %d", n.session.Total(), len(questions))
	}
	return n, nil
}

// Connect restores recent progress, subscribes to view-mode changes and
// shows the current card. It returns the starting index.
func (n *Navigator) Connect() int {
	index, ok := LoadProgress(n.store, n.formCode, len(n.questions), n.progressTTL, n.clock.Now())
	if !ok {
		index = 0
	}
	_ = n.session.SetIndex(index)
	n.logger.Debug("connected", zap.String("form", n.formCode), zap.Int("index", index), zap.Bool("restored", ok))

	unsub := events.Subscribe(n.bus, events.ViewModeChanged, func(e events.ModeChangedEvent) {
		if e.To == form.ModeWizard {
			n.Reenter()
		}
	})
	n.mu.Lock()
	n.unsubs = append(n.unsubs, unsub)
	n.mu.Unlock()

	n.show(Transition{From: index, To: index, Instant: true})
	return index
}

// Index reports the current question.
func (n *Navigator) Index() int { return n.session.CurrentIndex() }

// Total reports the number of questions.
func (n *Navigator) Total() int { return len(n.questions) }

// Current returns the current question.
func (n *Navigator) Current() Question { return n.questions[n.Index()] }

// Question returns the question at index.
func (n *Navigator) Question(index int) (Question, bool) {
	if index < 0 || index >= len(n.questions) {
		return Question{}, false
	}
	return n.questions[index], true
}

// Finished reports whether the last question was accepted.
func (n *Navigator) Finished() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finished
}

// Progress summarises position and answered questions for progress dots.
func (n *Navigator) Progress() State {
	st := State{Current: n.Index(), Total: len(n.questions)}
	for i, q := range n.questions {
		if q.Valid() && !q.HasEmpty() {
			st.Completed = append(st.Completed, i)
		}
	}
	return st
}

// Next validates the current question and advances. On the last question
// it finishes the wizard. A rejected step shows errors and leaves the
// index unchanged.
func (n *Navigator) Next() bool {
	if n.Finished() {
		return false
	}
	n.cancelAdvance()
	index := n.Index()

	before := &events.BeforeNextEvent{FormCode: n.formCode, Index: index}
	events.Publish(n.bus, events.WizardBeforeNext, before)
	if before.Prevented() {
		n.logger.Debug("next prevented", zap.Int("index", index))
		return false
	}

	q := n.questions[index]
	if missing := q.Missing(); len(missing) > 0 {
		n.reject(index, missing)
		return false
	}
	if n.presenter != nil {
		n.presenter.ClearErrors(index)
	}

	if index == len(n.questions)-1 {
		n.finish()
		return true
	}
	n.move(index, index+1)
	return true
}

// Previous steps back without validation.
func (n *Navigator) Previous() bool {
	if n.Finished() {
		return false
	}
	index := n.Index()
	if index == 0 {
		return false
	}
	n.cancelAdvance()
	n.move(index, index-1)
	return true
}

// GoTo jumps to index without validation, as a single transition.
func (n *Navigator) GoTo(index int) bool {
	if n.Finished() || index < 0 || index >= len(n.questions) {
		return false
	}
	current := n.Index()
	if index == current {
		return false
	}
	n.cancelAdvance()
	n.move(current, index)
	return true
}

// Select reacts to a radio or select choice on the current card by
// scheduling an automatic Next. The step only happens if the card still
// validates when the delay elapses.
func (n *Navigator) Select(in *form.Input) bool {
	if in == nil || (in.Kind != form.KindRadio && in.Kind != form.KindSelect) {
		return false
	}
	if n.Finished() || !n.Current().Contains(in) || !n.Current().Valid() {
		return false
	}
	index := n.Index()

	n.mu.Lock()
	if n.advance != nil {
		n.advance.Stop()
	}
	n.advance = n.clock.AfterFunc(n.autoAdvance, func() {
		n.mu.Lock()
		n.advance = nil
		n.mu.Unlock()
		if n.Index() != index || !n.Current().Valid() {
			return
		}
		n.Next()
	})
	n.mu.Unlock()
	return true
}

// Reenter picks the card to show after switching back into wizard mode:
// the first card with an empty required field, else the first card with
// any empty field, else the first card. It returns the chosen index.
func (n *Navigator) Reenter() int {
	target := -1
	for i, q := range n.questions {
		if q.HasEmptyRequired() {
			target = i
			break
		}
	}
	if target < 0 {
		for i, q := range n.questions {
			if q.HasEmpty() {
				target = i
				break
			}
		}
	}
	if target < 0 {
		target = 0
	}

	n.cancelAdvance()
	n.mu.Lock()
	n.finished = false
	n.mu.Unlock()

	current := n.Index()
	if target == current {
		n.show(Transition{From: current, To: target, Instant: true})
		n.persist(target)
		return target
	}
	n.move(current, target)
	return target
}

// ClearProgress forgets the stored position.
func (n *Navigator) ClearProgress() {
	ClearProgress(n.store, n.formCode)
}

// Close cancels a scheduled auto-advance and detaches from the bus.
func (n *Navigator) Close() {
	n.cancelAdvance()
	n.mu.Lock()
	unsubs := n.unsubs
	n.unsubs = nil
	n.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

func (n *Navigator) move(from, to int) {
	if err := n.session.SetIndex(to); err != nil {
		n.logger.Warn("move rejected", zap.Error(err))
		return
	}
	dir := Forward
	if to < from {
		dir = Backward
	}
	n.show(Transition{From: from, To: to, Direction: dir})
	n.persist(to)
	if n.announcer != nil {
		n.announcer.Announce(fmt.Sprintf("Question %d of %d", to+1, len(n.questions)))
	}
}

func (n *Navigator) show(t Transition) {
	if n.reduced {
		t.Instant = true
	}
	if n.animator != nil {
		n.animator.Animate(t)
	}
	if n.focuser != nil {
		if in := n.questions[t.To].firstInput(); in != nil {
			n.focuser.Focus(in)
		}
	}
}

func (n *Navigator) persist(index int) {
	if !SaveProgress(n.store, n.formCode, index, n.clock.Now()) && n.store != nil {
		n.logger.Warn("progress not saved", zap.String("form", n.formCode))
	}
}

func (n *Navigator) reject(index int, missing []string) {
	n.logger.Debug("validation failed", zap.Int("index", index), zap.Strings("missing", missing))
	if n.presenter != nil {
		n.presenter.ShowErrors(index, missing)
	}
	if n.announcer != nil {
		n.announcer.Announce("Please answer this question before continuing")
	}
	if n.haptics != nil {
		n.haptics.Pulse()
	}
	if n.focuser != nil {
		q := n.questions[index]
		for _, in := range q.Inputs {
			if in != nil && in.Name == missing[0] {
				n.focuser.Focus(in)
				break
			}
		}
	}
}

func (n *Navigator) finish() {
	n.mu.Lock()
	n.finished = true
	n.mu.Unlock()
	n.logger.Info("wizard finished", zap.String("form", n.formCode))
	if n.onFinish != nil {
		n.onFinish()
	}
}

func (n *Navigator) cancelAdvance() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.advance != nil {
		n.advance.Stop()
		n.advance = nil
	}
}
