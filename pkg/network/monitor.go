// Package network tracks the connectivity flag autosave consults before
// every save, the equivalent of navigator.onLine plus its online/offline
// events.
package network

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/events"
)

// Monitor holds the current connectivity flag and publishes transitions on
// the offline:status-change topic.
type Monitor struct {
	bus    *events.Bus
	logger *zap.Logger

	mu     sync.Mutex
	online bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger.Named("network")
		}
	}
}

// NewMonitor starts in the given state.
func NewMonitor(bus *events.Bus, online bool, opts ...Option) *Monitor {
	m := &Monitor{
		bus:    bus,
		online: online,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Online reports the current flag.
func (m *Monitor) Online() bool {
	if m == nil {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set updates the flag. Only real transitions are published.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Debug("connectivity changed", zap.Bool("online", online))
	events.Publish(m.bus, events.OfflineStatus, events.StatusChangeEvent{Online: online})
}

// Probe issues a HEAD request against url every interval and feeds the
// outcome into Set until ctx is done. Any response, whatever its status,
// counts as online.
func (m *Monitor) Probe(ctx context.Context, client *http.Client, url string, interval time.Duration) error {
	if client == nil {
		client = http.DefaultClient
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.Set(m.check(ctx, client, url))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Monitor) check(ctx context.Context, client *http.Client, url string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		m.logger.Warn("probe request", zap.Error(err))
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return m.Online()
		}
		return false
	}
	resp.Body.Close()
	return true
}
