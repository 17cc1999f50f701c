package wizard

import (
	"time"

	"github.com/goliatone/go-formwizard/pkg/storage"
)

// ProgressKeyPrefix namespaces progress snapshots by form code.
const ProgressKeyPrefix = "wizard_progress_"

// DefaultProgressTTL is how long a progress snapshot stays usable.
const DefaultProgressTTL = 24 * time.Hour

// Progress is the persisted position of a wizard. Timestamp is in Unix
// milliseconds.
type Progress struct {
	CurrentIndex int   `json:"currentIndex"`
	Timestamp    int64 `json:"timestamp"`
}

// ProgressKey returns the storage key for formCode.
func ProgressKey(formCode string) string {
	return ProgressKeyPrefix + formCode
}

// SaveProgress writes a snapshot for formCode. Failures are reported as
// false.
func SaveProgress(b storage.Backend, formCode string, index int, now time.Time) bool {
	return storage.SetJSON(b, ProgressKey(formCode), Progress{
		CurrentIndex: index,
		Timestamp:    now.UnixMilli(),
	})
}

// LoadProgress returns the stored index when a snapshot exists, is no
// older than ttl and lies within [0, total).
func LoadProgress(b storage.Backend, formCode string, total int, ttl time.Duration, now time.Time) (int, bool) {
	var p Progress
	if !storage.GetJSON(b, ProgressKey(formCode), &p) {
		return 0, false
	}
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}
	if now.Sub(time.UnixMilli(p.Timestamp)) > ttl {
		return 0, false
	}
	if p.CurrentIndex < 0 || p.CurrentIndex >= total {
		return 0, false
	}
	return p.CurrentIndex, true
}

// ClearProgress removes the snapshot for formCode.
func ClearProgress(b storage.Backend, formCode string) {
	if b == nil {
		return
	}
	_ = b.Delete(ProgressKey(formCode))
}

// State summarises the progress dots.
type State struct {
	Current   int
	Total     int
	Completed []int
}
