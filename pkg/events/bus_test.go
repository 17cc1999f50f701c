package events

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/form"
)

func TestBus_DeliversTypedPayloadsInOrder(t *testing.T) {
	bus := NewBus()
	var got []string

	Subscribe(bus, ViewModeChanged, func(e ModeChangedEvent) { got = append(got, "first:"+string(e.To)) })
	Subscribe(bus, ViewModeChanged, func(e ModeChangedEvent) { got = append(got, "second:"+string(e.To)) })
	Subscribe(bus, OfflineStatus, func(StatusChangeEvent) { got = append(got, "wrong topic") })

	Publish(bus, ViewModeChanged, ModeChangedEvent{From: form.ModeTraditional, To: form.ModeWizard})

	if diff := cmp.Diff([]string{"first:wizard", "second:wizard"}, got); diff != "" {
		t.Fatalf("delivery mismatch (-want +got):\n%s", diff)
	}
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := Subscribe(bus, FormSaved, func(FormSavedEvent) { calls++ })

	Publish(bus, FormSaved, FormSavedEvent{PageKey: "/a"})
	unsubscribe()
	unsubscribe()
	Publish(bus, FormSaved, FormSavedEvent{PageKey: "/a"})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if n := Subscribers(bus, FormSaved); n != 0 {
		t.Fatalf("subscribers = %d, want 0", n)
	}
}

func TestBus_HandlersMayPublishReentrantly(t *testing.T) {
	bus := NewBus()
	var order []string
	Subscribe(bus, OfflineStatus, func(e StatusChangeEvent) {
		order = append(order, "status")
		Publish(bus, OfflineSyncDone, SyncCompleteEvent{PageKey: "/p"})
	})
	Subscribe(bus, OfflineSyncDone, func(SyncCompleteEvent) { order = append(order, "done") })

	Publish(bus, OfflineStatus, StatusChangeEvent{Online: true})

	if diff := cmp.Diff([]string{"status", "done"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestBeforeNext_Prevent(t *testing.T) {
	bus := NewBus()
	Subscribe(bus, WizardBeforeNext, func(e *BeforeNextEvent) {
		if e.Index == 2 {
			e.Prevent()
		}
	})

	ev := &BeforeNextEvent{FormCode: "SC-100", Index: 2}
	Publish(bus, WizardBeforeNext, ev)
	if !ev.Prevented() {
		t.Fatalf("expected event to be prevented")
	}

	var nilBus *Bus
	Publish(nilBus, WizardBeforeNext, &BeforeNextEvent{})
}
