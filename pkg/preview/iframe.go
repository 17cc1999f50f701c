package preview

import (
	"sync"
	"time"

	"github.com/goliatone/go-formwizard/pkg/clock"
)

// DefaultIframeFallback is how long IframeLoader waits for a load event
// before treating the document as loaded. Some browsers never fire one for
// inline PDFs.
const DefaultIframeFallback = 3 * time.Second

// IframeLoader tracks one embedded-document load. OnLoad runs exactly once
// per Start, either on the load event or when the fallback timer expires.
type IframeLoader struct {
	clock    clock.Clock
	fallback time.Duration
	onLoad   func(byFallback bool)

	mu     sync.Mutex
	gen    uint64
	loaded bool
	timer  clock.Timer
}

// NewIframeLoader returns a loader calling onLoad. A zero fallback uses
// DefaultIframeFallback.
func NewIframeLoader(c clock.Clock, fallback time.Duration, onLoad func(byFallback bool)) *IframeLoader {
	if fallback <= 0 {
		fallback = DefaultIframeFallback
	}
	return &IframeLoader{clock: clock.OrReal(c), fallback: fallback, onLoad: onLoad}
}

// Start begins a new load, cancelling any previous fallback timer.
func (l *IframeLoader) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
	l.gen++
	l.loaded = false
	gen := l.gen
	l.timer = l.clock.AfterFunc(l.fallback, func() { l.complete(gen, true) })
}

// LoadEvent records the browser's load event.
func (l *IframeLoader) LoadEvent() {
	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()
	l.complete(gen, false)
}

// Loaded reports whether the current load completed.
func (l *IframeLoader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Stop cancels the fallback timer.
func (l *IframeLoader) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *IframeLoader) complete(gen uint64, byFallback bool) {
	l.mu.Lock()
	if gen != l.gen || l.loaded || l.gen == 0 {
		l.mu.Unlock()
		return
	}
	l.loaded = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()
	if l.onLoad != nil {
		l.onLoad(byFallback)
	}
}
