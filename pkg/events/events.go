package events

import (
	"sync/atomic"
	"time"

	"github.com/goliatone/go-formwizard/pkg/form"
)

// Topics shared between page components.
var (
	FormSaved         = NewTopic[FormSavedEvent]("form:saved")
	OfflineStatus     = NewTopic[StatusChangeEvent]("offline:status-change")
	OfflineSyncStatus = NewTopic[SyncStatusEvent]("offline:sync-status")
	OfflineSyncDone   = NewTopic[SyncCompleteEvent]("offline:sync-complete")
	ViewModeChanged   = NewTopic[ModeChangedEvent]("view-toggle:modeChanged")
	WizardBeforeNext  = NewTopic[*BeforeNextEvent]("wizard:beforeNext")
	AutofillApplied   = NewTopic[AutofillEvent]("autofill:applied")
	FormFieldChanged  = NewTopic[FieldChangedEvent]("form:field-changed")
)

// FormSavedEvent fires after the server acknowledged a save.
type FormSavedEvent struct {
	PageKey string
	SavedAt time.Time
	Values  form.Data
	// Pending reports edits made during the request that still await a save.
	Pending bool
}

// StatusChangeEvent fires on connectivity transitions.
type StatusChangeEvent struct {
	Online bool
}

// SyncStatusEvent reports the state of the page's pending record and the
// pending count across all pages.
type SyncStatusEvent struct {
	PageKey      string
	Status       string
	PendingCount int
}

// SyncCompleteEvent fires when a pending record reached the server.
type SyncCompleteEvent struct {
	PageKey  string
	SyncedAt time.Time
}

// ModeChangedEvent fires after the view toggle switched views.
type ModeChangedEvent struct {
	From form.Mode
	To   form.Mode
}

// BeforeNextEvent fires before the wizard validates a forward step.
// Subscribers may call Prevent to veto the step.
type BeforeNextEvent struct {
	FormCode  string
	Index     int
	prevented atomic.Bool
}

// Prevent vetoes the pending step.
func (e *BeforeNextEvent) Prevent() {
	e.prevented.Store(true)
}

// Prevented reports whether a subscriber vetoed the step.
func (e *BeforeNextEvent) Prevented() bool {
	return e.prevented.Load()
}

// AutofillEvent fires after external values were written into the views.
type AutofillEvent struct {
	Source string
	Fields []string
}

// FieldChangedEvent fires on every input/change of a named field.
type FieldChangedEvent struct {
	Name string
	Mode form.Mode
}
