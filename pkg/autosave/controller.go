// Package autosave makes form edits durable: locally first while offline,
// remotely with a short debounce while online, and reconciled with the
// server once connectivity returns.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/clock"
	"github.com/goliatone/go-formwizard/pkg/debounce"
	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/network"
	"github.com/goliatone/go-formwizard/pkg/offline"
	"github.com/goliatone/go-formwizard/pkg/status"
	"github.com/goliatone/go-formwizard/pkg/storage"
)

// DefaultDelay is the quiet period before a remote save.
const DefaultDelay = 300 * time.Millisecond

// LastActivityKey records the time of the latest edit in local storage.
const LastActivityKey = "last_form_activity"

// Sync status values published on offline:sync-status.
const (
	SyncPending = "pending"
	SyncSyncing = "syncing"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// Source yields the merged snapshot of every rendered view.
type Source interface {
	Snapshot() form.Data
}

// Controller serialises saves for one form page. At most one save, local
// or remote, is outstanding at a time; changes made meanwhile are folded
// into a single follow-up save.
type Controller struct {
	source    Source
	saver     Saver
	pageKey   string
	delay     time.Duration
	clock     clock.Clock
	logger    *zap.Logger
	bus       *events.Bus
	store     *offline.Store
	monitor   *network.Monitor
	indicator *status.Indicator
	local     storage.Backend
	session   *form.Session

	ctx      context.Context
	cancel   context.CancelFunc
	debounce *debounce.Handler
	unsubs   []func()

	mu         sync.Mutex
	inFlight   bool
	idle       chan struct{}
	queued     bool
	queuedSync bool
	closed     bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the clock used for debouncing and timestamps.
func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) {
		if c != nil {
			ctrl.clock = c
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(ctrl *Controller) {
		if logger != nil {
			ctrl.logger = logger.Named("autosave")
		}
	}
}

// WithBus connects the controller to the page's event bus.
func WithBus(bus *events.Bus) Option {
	return func(ctrl *Controller) {
		ctrl.bus = bus
	}
}

// WithStore sets the offline store used while disconnected.
func WithStore(store *offline.Store) Option {
	return func(ctrl *Controller) {
		ctrl.store = store
	}
}

// WithMonitor sets the connectivity monitor. Without one the controller
// assumes it is online.
func WithMonitor(m *network.Monitor) Option {
	return func(ctrl *Controller) {
		ctrl.monitor = m
	}
}

// WithIndicator sets the status indicator.
func WithIndicator(ind *status.Indicator) Option {
	return func(ctrl *Controller) {
		ctrl.indicator = ind
	}
}

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(ctrl *Controller) {
		if d > 0 {
			ctrl.delay = d
		}
	}
}

// WithPageKey sets the key of the page's pending record.
func WithPageKey(key string) Option {
	return func(ctrl *Controller) {
		ctrl.pageKey = key
	}
}

// WithLocal sets the backend receiving last_form_activity.
func WithLocal(b storage.Backend) Option {
	return func(ctrl *Controller) {
		ctrl.local = b
	}
}

// WithSession shares the page's form session.
func WithSession(s *form.Session) Option {
	return func(ctrl *Controller) {
		if s != nil {
			ctrl.session = s
		}
	}
}

// New builds a controller saving snapshots of source through saver.
func New(source Source, saver Saver, opts ...Option) *Controller {
	c := &Controller{
		source: source,
		saver:  saver,
		delay:  DefaultDelay,
		clock:  clock.Real(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.session == nil {
		c.session = form.NewSession("", c.pageKey, 1)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.debounce = debounce.New(func() { _ = c.persist(c.ctx) }, debounce.WithClock(c.clock))
	c.indicator.SetOnline(c.online())

	c.unsubs = append(c.unsubs,
		events.Subscribe(c.bus, events.OfflineStatus, c.handleStatusChange),
		events.Subscribe(c.bus, events.FormFieldChanged, func(events.FieldChangedEvent) { c.HandleChange() }),
		events.Subscribe(c.bus, events.AutofillApplied, func(events.AutofillEvent) { c.HandleChange() }),
	)
	return c
}

// Session returns the form session the controller maintains.
func (c *Controller) Session() *form.Session {
	return c.session
}

// HandleChange reacts to a field edit. Offline edits are written locally
// right away; online edits restart the debounce window.
func (c *Controller) HandleChange() {
	if c.isClosed() {
		return
	}
	c.session.MarkPending()
	storage.SetString(c.local, LastActivityKey, c.clock.Now().UTC().Format(time.RFC3339))

	if !c.online() {
		c.debounce.Cancel()
		_ = c.persist(c.ctx)
		return
	}
	c.debounce.Call(c.delay)
}

// SaveNow flushes the current snapshot without waiting for the debounce
// window. It backs the user-facing retry action. When a save is already
// in flight SaveNow waits for it and then saves the latest snapshot.
func (c *Controller) SaveNow(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.debounce.Cancel()
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.finish()
	c.debounce.Cancel()
	return c.save(ctx)
}

// PendingChanges reports whether an edit has not been acknowledged.
func (c *Controller) PendingChanges() bool {
	return c.session.PendingChanges()
}

// SyncOfflineData sends the page's pending record, if any, to the server.
// A failure marks the record as errored and counts the attempt; there is
// no automatic retry.
func (c *Controller) SyncOfflineData(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	if !c.begin(true) {
		return nil
	}
	err := c.syncLocked(ctx)
	c.finish()
	return err
}

// Close cancels pending work and detaches from the bus. It must run on
// page teardown so no stale save fires against a detached form.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.queuedSync = false
	c.mu.Unlock()

	c.debounce.Cancel()
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.cancel()
}

func (c *Controller) handleStatusChange(e events.StatusChangeEvent) {
	c.indicator.SetOnline(e.Online)
	if !e.Online || c.isClosed() {
		return
	}
	if err := c.SyncOfflineData(c.ctx); err != nil {
		c.logger.Warn("sync after reconnect", zap.Error(err))
	}
}

// begin claims the in-flight slot. When it is taken the request is
// recorded as a follow-up and begin reports false.
func (c *Controller) begin(forSync bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.inFlight {
		if forSync {
			c.queuedSync = true
		} else {
			c.queued = true
		}
		return false
	}
	c.inFlight = true
	c.idle = make(chan struct{})
	return true
}

// acquire waits until the in-flight slot is free and claims it. Follow-up
// saves queued so far are absorbed by the caller's save.
func (c *Controller) acquire(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if !c.inFlight {
			c.inFlight = true
			c.idle = make(chan struct{})
			c.queued = false
			c.mu.Unlock()
			return nil
		}
		idle := c.idle
		c.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) finish() {
	c.mu.Lock()
	c.inFlight = false
	followSave := c.queued && !c.closed
	followSync := c.queuedSync && !c.closed
	stranded := c.queued && c.closed
	c.queued = false
	c.queuedSync = false
	if followSave {
		c.debounce.Call(c.delay)
	}
	close(c.idle)
	c.mu.Unlock()

	// Edits queued behind a request that finished after Close are kept
	// in the offline store for the next session.
	if stranded {
		c.saveLocally(c.source.Snapshot())
	}
	if followSync {
		go func() {
			if err := c.SyncOfflineData(c.ctx); err != nil && !errors.Is(err, ErrClosed) {
				c.logger.Warn("queued sync", zap.Error(err))
			}
		}()
	}
}

func (c *Controller) persist(ctx context.Context) error {
	if !c.begin(false) {
		return nil
	}
	defer c.finish()
	return c.save(ctx)
}

// save sends the latest snapshot. The caller holds the in-flight slot.
func (c *Controller) save(ctx context.Context) error {
	data := c.source.Snapshot()
	c.session.Record(data)

	if !c.online() {
		c.saveLocally(data)
		return nil
	}

	requestID := NewRequestID(c.clock.Now())
	c.indicator.Saving()
	err := c.saver.Save(ctx, Submission{Data: data, RequestID: requestID})
	if err == nil {
		c.acknowledge(data)
		return nil
	}

	if !c.online() {
		c.logger.Info("connection lost during save, storing locally", zap.Error(err))
		c.saveLocally(data)
		return nil
	}

	c.logger.Warn("save failed", zap.String("page", c.pageKey), zap.Error(err))
	c.indicator.Error(errorMessage(err))
	return err
}

func (c *Controller) acknowledge(data form.Data) {
	pending := c.settle(data)
	c.indicator.Saved("")
	events.Publish(c.bus, events.FormSaved, events.FormSavedEvent{
		PageKey: c.pageKey,
		SavedAt: c.clock.Now(),
		Values:  data.Clone(),
		Pending: pending,
	})
}

// settle acknowledges data on the session and reports whether edits made
// during the request are still waiting for a follow-up save.
func (c *Controller) settle(data form.Data) bool {
	c.mu.Lock()
	changed := c.queued
	c.mu.Unlock()
	c.session.Acknowledge(data)
	if changed || c.debounce.Pending() {
		c.session.MarkPending()
		return true
	}
	return false
}

func (c *Controller) saveLocally(data form.Data) {
	rec := offline.Record{
		Key:       c.pageKey,
		FormData:  data,
		Status:    offline.StatusPending,
		SavedAt:   c.clock.Now().UTC(),
		RequestID: NewRequestID(c.clock.Now()),
	}
	if !c.store.SaveRecord(rec) {
		c.indicator.Error("Could not save locally")
		return
	}
	c.session.ClearPending()
	c.indicator.Queued("Saved locally")
	c.publishSyncStatus(SyncPending)
}

func (c *Controller) syncLocked(ctx context.Context) error {
	rec := c.store.Load(c.pageKey)
	if rec == nil {
		return nil
	}

	c.store.UpdateStatus(c.pageKey, offline.StatusSyncing, false)
	c.publishSyncStatus(SyncSyncing)
	c.indicator.Saving()

	err := c.saver.Save(ctx, Submission{Data: rec.FormData, RequestID: rec.RequestID})
	if err != nil {
		c.store.UpdateStatus(c.pageKey, offline.StatusError, true)
		c.logger.Warn("sync failed", zap.String("page", c.pageKey), zap.Int("attempts", rec.Attempts+1), zap.Error(err))
		c.indicator.Error("Sync failed")
		c.publishSyncStatus(SyncError)
		return err
	}

	c.store.Delete(c.pageKey)
	now := c.clock.Now()
	pending := c.settle(rec.FormData)
	c.indicator.Saved("Synced")
	c.publishSyncStatus(SyncSynced)
	events.Publish(c.bus, events.OfflineSyncDone, events.SyncCompleteEvent{PageKey: c.pageKey, SyncedAt: now})
	events.Publish(c.bus, events.FormSaved, events.FormSavedEvent{
		PageKey: c.pageKey,
		SavedAt: now,
		Values:  rec.FormData.Clone(),
		Pending: pending,
	})
	return nil
}

func (c *Controller) publishSyncStatus(state string) {
	events.Publish(c.bus, events.OfflineSyncStatus, events.SyncStatusEvent{
		PageKey:      c.pageKey,
		Status:       state,
		PendingCount: c.store.PendingCount(),
	})
}

func (c *Controller) online() bool {
	return c.monitor.Online()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func errorMessage(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if msgs := httpErr.Errors.Messages(); len(msgs) > 0 {
			return msgs[0]
		}
	}
	return "Error saving. Retry?"
}
