// Package offline keeps save attempts that could not reach the server. The
// store is a best-effort cache: every storage failure is logged and
// surfaced as false or nil, never returned as an error.
package offline

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/clock"
	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/storage"
)

// KeyPrefix namespaces pending records inside a shared backend.
const KeyPrefix = "offline_form_"

// Status is the sync state of a pending record.
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

// Record is a save attempt waiting for reconciliation. There is at most
// one record per page key.
type Record struct {
	Key       string    `json:"key"`
	FormData  form.Data `json:"formData"`
	Status    Status    `json:"status"`
	Attempts  int       `json:"attempts"`
	SavedAt   time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for swallowed failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger.Named("offline")
		}
	}
}

// WithClock overrides the clock stamping records.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// Store reads and writes pending records. It is created once per page load
// and shared by reference; the autosave controller of a page is the only
// writer of that page's record.
type Store struct {
	backend storage.Backend
	logger  *zap.Logger
	clock   clock.Clock
}

// NewStore wraps backend.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  zap.NewNop(),
		clock:   clock.Real(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Save upserts the record for key. A new save replaces any previous record
// and resets its attempt counter. It reports false when the backend
// rejected the write.
func (s *Store) Save(key string, data form.Data, status Status) bool {
	return s.SaveRecord(Record{
		Key:      key,
		FormData: data,
		Status:   status,
	})
}

// SaveRecord upserts a fully populated record.
func (s *Store) SaveRecord(rec Record) bool {
	if s == nil || s.backend == nil || strings.TrimSpace(rec.Key) == "" {
		return false
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = s.clock.Now().UTC()
	}
	if rec.FormData == nil {
		rec.FormData = form.Data{}
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("encode pending record", zap.String("key", rec.Key), zap.Error(err))
		return false
	}
	if err := s.backend.Set(KeyPrefix+rec.Key, raw); err != nil {
		s.logger.Warn("store pending record", zap.String("key", rec.Key), zap.Error(err))
		return false
	}
	return true
}

// Load returns the record for key, or nil.
func (s *Store) Load(key string) *Record {
	if s == nil || s.backend == nil {
		return nil
	}
	raw, err := s.backend.Get(KeyPrefix + key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("load pending record", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warn("decode pending record", zap.String("key", key), zap.Error(err))
		return nil
	}
	if rec.Key == "" {
		rec.Key = key
	}
	return &rec
}

// UpdateStatus changes the status of an existing record, optionally
// counting a failed attempt. Missing records are ignored.
func (s *Store) UpdateStatus(key string, status Status, incrementAttempts bool) {
	rec := s.Load(key)
	if rec == nil {
		return
	}
	rec.Status = status
	if incrementAttempts {
		rec.Attempts++
	}
	s.SaveRecord(*rec)
}

// Delete removes the record for key.
func (s *Store) Delete(key string) {
	if s == nil || s.backend == nil {
		return
	}
	if err := s.backend.Delete(KeyPrefix + key); err != nil {
		s.logger.Warn("delete pending record", zap.String("key", key), zap.Error(err))
	}
}

// Records lists every stored record ordered by key.
func (s *Store) Records() []Record {
	if s == nil || s.backend == nil {
		return nil
	}
	keys, err := s.backend.Keys(KeyPrefix)
	if err != nil {
		s.logger.Warn("list pending records", zap.Error(err))
		return nil
	}
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		if rec := s.Load(strings.TrimPrefix(k, KeyPrefix)); rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}

// PendingCount counts records in the pending state across all pages.
func (s *Store) PendingCount() int {
	count := 0
	for _, rec := range s.Records() {
		if rec.Status == StatusPending {
			count++
		}
	}
	return count
}
