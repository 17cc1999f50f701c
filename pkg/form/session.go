package form

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Page groups the views rendered for one form page. Both views stay in the
// DOM at once, so snapshots always merge them.
type Page struct {
	Key         string
	Wizard      *Container
	Traditional *Container
}

// Snapshot merges both views.
func (p *Page) Snapshot() Data {
	if p == nil {
		return Data{}
	}
	return Snapshot(p.Wizard, p.Traditional)
}

// Containers returns the non-nil views.
func (p *Page) Containers() []*Container {
	var out []*Container
	if p.Wizard != nil {
		out = append(out, p.Wizard)
	}
	if p.Traditional != nil {
		out = append(out, p.Traditional)
	}
	return out
}

// Session is one user's in-progress interaction with one form instance.
type Session struct {
	ID       string
	FormCode string
	PageKey  string

	mu             sync.Mutex
	currentIndex   int
	total          int
	values         Data
	pendingChanges bool
	lastKnownGood  Data
}

// NewSession starts a session at question zero.
func NewSession(formCode, pageKey string, total int) *Session {
	if total < 1 {
		total = 1
	}
	return &Session{
		ID:            uuid.NewString(),
		FormCode:      formCode,
		PageKey:       pageKey,
		total:         total,
		values:        Data{},
		lastKnownGood: Data{},
	}
}

// CurrentIndex reports the question position.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// Total reports the number of questions.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// SetIndex moves the position, rejecting values outside [0, total).
func (s *Session) SetIndex(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= s.total {
		return fmt.Errorf("form: index %d out of range [0,%d)", index, s.total)
	}
	s.currentIndex = index
	return nil
}

// Record stores the latest values and flags them as unsaved.
func (s *Session) Record(values Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values.Clone()
	s.pendingChanges = true
}

// MarkPending flags an edit that has not been acknowledged yet.
func (s *Session) MarkPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingChanges = true
}

// Acknowledge records a persisted snapshot as the last known good state and
// clears the pending flag.
func (s *Session) Acknowledge(saved Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKnownGood = saved.Clone()
	s.pendingChanges = false
}

// ClearPending drops the pending flag without changing the last known good
// snapshot; used when a save lands locally rather than on the server.
func (s *Session) ClearPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingChanges = false
}

// PendingChanges reports whether an edit is waiting for acknowledgement.
func (s *Session) PendingChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingChanges
}

// Values returns a copy of the latest recorded values.
func (s *Session) Values() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Clone()
}

// LastKnownGood returns a copy of the last persisted snapshot.
func (s *Session) LastKnownGood() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKnownGood.Clone()
}

// Diff lists the fields changed since the last persisted snapshot.
func (s *Session) Diff() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Diff(s.lastKnownGood)
}
