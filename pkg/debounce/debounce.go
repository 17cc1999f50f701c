// Package debounce runs a function at most once per quiet window. Every
// autosave-triggering component schedules its work through a Handler and
// must Cancel it during teardown so a stale invocation never reaches a
// detached form.
package debounce

import (
	"sync"
	"time"

	"github.com/goliatone/go-formwizard/pkg/clock"
)

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the clock used to schedule invocations.
func WithClock(c clock.Clock) Option {
	return func(h *Handler) {
		if c != nil {
			h.clock = c
		}
	}
}

// Handler coalesces calls into a single delayed invocation of fn.
type Handler struct {
	fn    func()
	clock clock.Clock

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// New returns a Handler wrapping fn.
func New(fn func(), opts ...Option) *Handler {
	h := &Handler{
		fn:    fn,
		clock: clock.Real(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h
}

// Call schedules fn to run after delay of inactivity. A pending invocation
// is replaced, so the window restarts on every call.
func (h *Handler) Call(delay time.Duration) {
	if h == nil || h.fn == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
	}
	h.gen++
	gen := h.gen
	h.timer = h.clock.AfterFunc(delay, func() { h.fire(gen) })
}

// Cancel drops any pending invocation. It is a no-op when nothing is
// scheduled.
func (h *Handler) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.gen++
}

// Pending reports whether an invocation is scheduled.
func (h *Handler) Pending() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timer != nil
}

func (h *Handler) fire(gen uint64) {
	h.mu.Lock()
	if gen != h.gen {
		h.mu.Unlock()
		return
	}
	h.timer = nil
	h.mu.Unlock()

	h.fn()
}
