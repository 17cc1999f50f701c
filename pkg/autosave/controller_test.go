package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/goliatone/go-formwizard/pkg/clock"
	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/network"
	"github.com/goliatone/go-formwizard/pkg/offline"
	"github.com/goliatone/go-formwizard/pkg/status"
	"github.com/goliatone/go-formwizard/pkg/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const pageKey = "/forms/sc-100/page/1"

type stubSaver struct {
	mu       sync.Mutex
	calls    []Submission
	active   int
	maxSeen  int
	err      error
	block    chan struct{}
	started  chan struct{}
	onSave   func()
	blockOne bool
}

func (s *stubSaver) Save(_ context.Context, sub Submission) error {
	s.mu.Lock()
	s.calls = append(s.calls, sub)
	first := len(s.calls) == 1
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	err := s.err
	hook := s.onSave
	s.mu.Unlock()

	if s.started != nil && first {
		close(s.started)
	}
	if s.block != nil && (first || !s.blockOne) {
		<-s.block
	}
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return err
}

func (s *stubSaver) Calls() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.calls...)
}

type fixture struct {
	clock     *clock.Manual
	bus       *events.Bus
	monitor   *network.Monitor
	store     *offline.Store
	local     *storage.Memory
	indicator *status.Indicator
	input     *form.Input
	page      *form.Page
}

func newFixture(online bool) *fixture {
	clk := clock.NewManual(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	bus := events.NewBus()
	input := form.NewInput("plaintiff_name", form.KindText, "")
	local := storage.NewMemory()
	return &fixture{
		clock:     clk,
		bus:       bus,
		monitor:   network.NewMonitor(bus, online),
		store:     offline.NewStore(local, offline.WithClock(clk)),
		local:     local,
		indicator: status.New(nil, status.WithClock(clk)),
		input:     input,
		page: &form.Page{
			Key:    pageKey,
			Wizard: form.NewContainer(form.ModeWizard, input),
		},
	}
}

func (f *fixture) controller(saver Saver, opts ...Option) *Controller {
	base := []Option{
		WithClock(f.clock),
		WithBus(f.bus),
		WithStore(f.store),
		WithMonitor(f.monitor),
		WithIndicator(f.indicator),
		WithPageKey(pageKey),
		WithLocal(f.local),
	}
	return New(f.page, saver, append(base, opts...)...)
}

func TestController_CoalescesRapidChanges(t *testing.T) {
	f := newFixture(true)
	saver := &stubSaver{}
	ctrl := f.controller(saver)
	defer ctrl.Close()

	var saved []events.FormSavedEvent
	events.Subscribe(f.bus, events.FormSaved, func(e events.FormSavedEvent) { saved = append(saved, e) })

	for _, v := range []string{"J", "Ja", "Jan", "Jane"} {
		f.input.SetValue(v)
		ctrl.HandleChange()
		f.clock.Advance(100 * time.Millisecond)
	}
	if got := len(saver.Calls()); got != 0 {
		t.Fatalf("saved before the quiet period: %d calls", got)
	}
	if !ctrl.PendingChanges() {
		t.Fatalf("expected pending changes before save")
	}

	f.clock.Advance(DefaultDelay)

	calls := saver.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one save, got %d", len(calls))
	}
	if diff := cmp.Diff(form.Data{"plaintiff_name": "Jane"}, calls[0].Data); diff != "" {
		t.Fatalf("saved data mismatch (-want +got):\n%s", diff)
	}
	if calls[0].RequestID == "" {
		t.Fatalf("expected a request id")
	}
	if ctrl.PendingChanges() {
		t.Fatalf("pending changes not cleared after save")
	}
	if f.indicator.State() != status.StateSaved {
		t.Fatalf("indicator state: got %s", f.indicator.State())
	}
	if len(saved) != 1 || saved[0].PageKey != pageKey {
		t.Fatalf("expected one form:saved event, got %+v", saved)
	}
	if _, ok := storage.GetString(f.local, LastActivityKey); !ok {
		t.Fatalf("last_form_activity not recorded")
	}
}

func TestController_AtMostOneInFlight(t *testing.T) {
	f := newFixture(true)
	saver := &stubSaver{
		block:    make(chan struct{}),
		started:  make(chan struct{}),
		blockOne: true,
	}
	ctrl := f.controller(saver)
	defer ctrl.Close()

	f.input.SetValue("Jane")
	done := make(chan error, 1)
	go func() { done <- ctrl.SaveNow(context.Background()) }()
	<-saver.started

	f.input.SetValue("Jane Doe")
	ctrl.HandleChange()
	f.clock.Advance(DefaultDelay)
	ctrl.HandleChange()
	f.clock.Advance(DefaultDelay)

	if got := len(saver.Calls()); got != 1 {
		t.Fatalf("second request issued while one was in flight: %d calls", got)
	}

	close(saver.block)
	if err := <-done; err != nil {
		t.Fatalf("save now: %v", err)
	}
	if !ctrl.PendingChanges() {
		t.Fatalf("edits made during the request must stay pending")
	}

	f.clock.Advance(DefaultDelay)

	calls := saver.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected exactly one follow-up save, got %d calls", len(calls))
	}
	if got := calls[1].Data["plaintiff_name"]; got != "Jane Doe" {
		t.Fatalf("follow-up saved %q", got)
	}
	saver.mu.Lock()
	maxSeen := saver.maxSeen
	saver.mu.Unlock()
	if maxSeen != 1 {
		t.Fatalf("saw %d concurrent saves", maxSeen)
	}
}

func TestController_OfflineFallback(t *testing.T) {
	f := newFixture(false)
	saver := &stubSaver{}
	ctrl := f.controller(saver)
	defer ctrl.Close()

	var statuses []events.SyncStatusEvent
	events.Subscribe(f.bus, events.OfflineSyncStatus, func(e events.SyncStatusEvent) { statuses = append(statuses, e) })

	f.input.SetValue("Jane")
	ctrl.HandleChange()

	if got := len(saver.Calls()); got != 0 {
		t.Fatalf("network call attempted while offline: %d", got)
	}
	rec := f.store.Load(pageKey)
	if rec == nil {
		t.Fatalf("expected pending record")
	}
	if rec.Status != offline.StatusPending {
		t.Fatalf("record status: got %s", rec.Status)
	}
	if diff := cmp.Diff(form.Data{"plaintiff_name": "Jane"}, rec.FormData); diff != "" {
		t.Fatalf("record data mismatch (-want +got):\n%s", diff)
	}
	if ctrl.PendingChanges() {
		t.Fatalf("local save should clear pending changes")
	}
	if f.indicator.State() != status.StateQueued || f.indicator.Message() != "Saved locally" {
		t.Fatalf("indicator: %s %q", f.indicator.State(), f.indicator.Message())
	}
	want := []events.SyncStatusEvent{{PageKey: pageKey, Status: SyncPending, PendingCount: 1}}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Fatalf("sync status mismatch (-want +got):\n%s", diff)
	}

	f.input.SetValue("Jane Doe")
	ctrl.HandleChange()
	if got := f.store.PendingCount(); got != 1 {
		t.Fatalf("expected a single record per page, got %d", got)
	}
}

func TestController_ReconcileOnReconnect(t *testing.T) {
	f := newFixture(false)
	saver := &stubSaver{}
	ctrl := f.controller(saver)
	defer ctrl.Close()

	data := form.Data{"plaintiff_name": "Jane"}
	if !f.store.Save(pageKey, data, offline.StatusPending) {
		t.Fatalf("seed record")
	}

	var done []events.SyncCompleteEvent
	events.Subscribe(f.bus, events.OfflineSyncDone, func(e events.SyncCompleteEvent) { done = append(done, e) })

	f.monitor.Set(true)

	calls := saver.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one sync request, got %d", len(calls))
	}
	if diff := cmp.Diff(data, calls[0].Data); diff != "" {
		t.Fatalf("synced data mismatch (-want +got):\n%s", diff)
	}
	if f.store.Load(pageKey) != nil {
		t.Fatalf("record not deleted after sync")
	}
	if len(done) != 1 || done[0].PageKey != pageKey {
		t.Fatalf("expected one sync-complete event, got %+v", done)
	}
	if !f.indicator.Online() {
		t.Fatalf("indicator not marked online")
	}
}

func TestController_ReconcileFailureCountsAttempt(t *testing.T) {
	f := newFixture(false)
	saver := &stubSaver{err: &HTTPError{StatusCode: 503}}
	ctrl := f.controller(saver)
	defer ctrl.Close()

	f.store.Save(pageKey, form.Data{"plaintiff_name": "Jane"}, offline.StatusPending)

	f.monitor.Set(true)

	rec := f.store.Load(pageKey)
	if rec == nil {
		t.Fatalf("record removed after failed sync")
	}
	if rec.Status != offline.StatusError || rec.Attempts != 1 {
		t.Fatalf("want error/1, got %s/%d", rec.Status, rec.Attempts)
	}
	if got := len(saver.Calls()); got != 1 {
		t.Fatalf("expected exactly one attempt, got %d", got)
	}

	f.clock.Advance(time.Hour)
	if got := len(saver.Calls()); got != 1 {
		t.Fatalf("sync retried without a reconnect: %d calls", got)
	}

	f.monitor.Set(false)
	f.monitor.Set(true)
	if rec := f.store.Load(pageKey); rec == nil || rec.Attempts != 2 {
		t.Fatalf("expected second attempt on next reconnect, got %+v", rec)
	}
}

func TestController_FallsBackWhenConnectionDropsMidSave(t *testing.T) {
	f := newFixture(true)
	saver := &stubSaver{err: errors.New("connection reset")}
	saver.onSave = func() { f.monitor.Set(false) }
	ctrl := f.controller(saver)
	defer ctrl.Close()

	f.input.SetValue("Jane")
	if err := ctrl.SaveNow(context.Background()); err != nil {
		t.Fatalf("save now: %v", err)
	}

	rec := f.store.Load(pageKey)
	if rec == nil || rec.Status != offline.StatusPending {
		t.Fatalf("expected local fallback record, got %+v", rec)
	}
	if f.indicator.State() != status.StateQueued {
		t.Fatalf("indicator state: got %s", f.indicator.State())
	}
}

func TestController_OnlineFailureIsRetryable(t *testing.T) {
	f := newFixture(true)
	saver := &stubSaver{err: &HTTPError{StatusCode: 500, Status: "500 Internal Server Error"}}
	ctrl := f.controller(saver)
	defer ctrl.Close()

	f.input.SetValue("Jane")
	ctrl.HandleChange()
	f.clock.Advance(DefaultDelay)

	if f.indicator.State() != status.StateError {
		t.Fatalf("indicator state: got %s", f.indicator.State())
	}
	if !ctrl.PendingChanges() {
		t.Fatalf("failed save must keep pending changes")
	}
	if f.store.Load(pageKey) != nil {
		t.Fatalf("online failure must not write a local record")
	}

	saver.mu.Lock()
	saver.err = nil
	saver.mu.Unlock()
	if err := ctrl.SaveNow(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if ctrl.PendingChanges() {
		t.Fatalf("retry did not clear pending changes")
	}
}

func TestController_BusTriggersChanges(t *testing.T) {
	f := newFixture(true)
	saver := &stubSaver{}
	ctrl := f.controller(saver)
	defer ctrl.Close()

	f.input.SetValue("Jane")
	events.Publish(f.bus, events.FormFieldChanged, events.FieldChangedEvent{Name: "plaintiff_name", Mode: form.ModeWizard})
	events.Publish(f.bus, events.AutofillApplied, events.AutofillEvent{Source: "profile", Fields: []string{"plaintiff_name"}})
	f.clock.Advance(DefaultDelay)

	if got := len(saver.Calls()); got != 1 {
		t.Fatalf("expected one coalesced save, got %d", got)
	}
}

func TestController_CloseCancelsPendingSave(t *testing.T) {
	f := newFixture(true)
	saver := &stubSaver{}
	ctrl := f.controller(saver)

	f.input.SetValue("Jane")
	ctrl.HandleChange()
	ctrl.Close()
	f.clock.Advance(time.Second)

	if got := len(saver.Calls()); got != 0 {
		t.Fatalf("stale save fired after close: %d", got)
	}
	if err := ctrl.SaveNow(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if n := events.Subscribers(f.bus, events.OfflineStatus); n != 0 {
		t.Fatalf("controller still subscribed: %d", n)
	}
	ctrl.Close()
}

func TestController_EditDuringSyncStaysPending(t *testing.T) {
	f := newFixture(false)
	saver := &stubSaver{}
	var ctrl *Controller
	var once sync.Once
	saver.onSave = func() {
		once.Do(func() {
			f.input.SetValue("Jane Doe")
			ctrl.HandleChange()
		})
	}
	ctrl = f.controller(saver)
	defer ctrl.Close()

	var saved []events.FormSavedEvent
	events.Subscribe(f.bus, events.FormSaved, func(e events.FormSavedEvent) { saved = append(saved, e) })

	f.store.Save(pageKey, form.Data{"plaintiff_name": "Jane"}, offline.StatusPending)
	f.monitor.Set(true)

	if got := len(saver.Calls()); got != 1 {
		t.Fatalf("expected one sync request, got %d", got)
	}
	if !ctrl.PendingChanges() {
		t.Fatalf("edit made during the sync must stay pending")
	}
	if len(saved) != 1 || !saved[0].Pending {
		t.Fatalf("sync acknowledgement should report newer edits, got %+v", saved)
	}

	f.clock.Advance(DefaultDelay)

	calls := saver.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected a follow-up save, got %d calls", len(calls))
	}
	if got := calls[1].Data["plaintiff_name"]; got != "Jane Doe" {
		t.Fatalf("follow-up saved %q", got)
	}
	if ctrl.PendingChanges() {
		t.Fatalf("follow-up save should clear pending changes")
	}
}

func TestController_SaveNowWaitsForInFlightSave(t *testing.T) {
	f := newFixture(true)
	saver := &stubSaver{
		block:    make(chan struct{}),
		started:  make(chan struct{}),
		blockOne: true,
	}
	ctrl := f.controller(saver)
	defer ctrl.Close()

	f.input.SetValue("Jane")
	first := make(chan error, 1)
	go func() { first <- ctrl.SaveNow(context.Background()) }()
	<-saver.started

	f.input.SetValue("Jane Doe")
	ctrl.HandleChange()
	flush := make(chan error, 1)
	go func() { flush <- ctrl.SaveNow(context.Background()) }()

	close(saver.block)
	if err := <-first; err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := <-flush; err != nil {
		t.Fatalf("flush: %v", err)
	}

	calls := saver.Calls()
	if len(calls) != 2 {
		t.Fatalf("flush should send the latest snapshot, got %d calls", len(calls))
	}
	if got := calls[1].Data["plaintiff_name"]; got != "Jane Doe" {
		t.Fatalf("flush saved %q", got)
	}
	if ctrl.PendingChanges() {
		t.Fatalf("flushed edits still reported pending")
	}
}

func TestController_SaveNowHonoursContext(t *testing.T) {
	f := newFixture(true)
	saver := &stubSaver{
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	ctrl := f.controller(saver)
	defer ctrl.Close()

	first := make(chan error, 1)
	go func() { first <- ctrl.SaveNow(context.Background()) }()
	<-saver.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.SaveNow(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(saver.block)
	if err := <-first; err != nil {
		t.Fatalf("first save: %v", err)
	}
}

func TestController_CloseKeepsQueuedEditsLocally(t *testing.T) {
	f := newFixture(true)
	saver := &stubSaver{
		block:    make(chan struct{}),
		started:  make(chan struct{}),
		blockOne: true,
	}
	ctrl := f.controller(saver)

	f.input.SetValue("Jane")
	done := make(chan error, 1)
	go func() { done <- ctrl.SaveNow(context.Background()) }()
	<-saver.started

	f.input.SetValue("Jane Doe")
	ctrl.HandleChange()
	f.clock.Advance(DefaultDelay)
	ctrl.Close()

	close(saver.block)
	if err := <-done; err != nil {
		t.Fatalf("save now: %v", err)
	}

	if got := len(saver.Calls()); got != 1 {
		t.Fatalf("no request may start after close, got %d calls", got)
	}
	rec := f.store.Load(pageKey)
	if rec == nil {
		t.Fatalf("queued edit was dropped")
	}
	if diff := cmp.Diff(form.Data{"plaintiff_name": "Jane Doe"}, rec.FormData); diff != "" {
		t.Fatalf("stored data mismatch (-want +got):\n%s", diff)
	}
}
