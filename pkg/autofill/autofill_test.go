package autofill

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/form"
)

func TestFiller_AppliesToBothViews(t *testing.T) {
	wizName := form.NewInput("plaintiff_name", form.KindText, "")
	tradName := form.NewInput("plaintiff_name", form.KindText, "")
	yes := form.NewChoice("is_business", form.KindRadio, "yes", false)
	no := form.NewChoice("is_business", form.KindRadio, "no", true)

	page := &form.Page{
		Key:         "/forms/sc-100",
		Wizard:      form.NewContainer(form.ModeWizard, wizName, yes, no),
		Traditional: form.NewContainer(form.ModeTraditional, tradName),
	}
	bus := events.NewBus()
	var got []events.AutofillEvent
	events.Subscribe(bus, events.AutofillApplied, func(e events.AutofillEvent) { got = append(got, e) })

	fields := New(page, bus).Apply(map[string]string{
		"plaintiff_name": "Jane Doe",
		"is_business":    "yes",
		"unknown":        "x",
	}, " profile ")

	if diff := cmp.Diff([]string{"is_business", "plaintiff_name"}, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if wizName.Value() != "Jane Doe" || tradName.Value() != "Jane Doe" {
		t.Fatalf("values not applied: %q %q", wizName.Value(), tradName.Value())
	}
	if !yes.Checked() || no.Checked() {
		t.Fatalf("radio group not updated")
	}
	want := []events.AutofillEvent{{Source: "profile", Fields: []string{"is_business", "plaintiff_name"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestFiller_NothingToApply(t *testing.T) {
	bus := events.NewBus()
	calls := 0
	events.Subscribe(bus, events.AutofillApplied, func(events.AutofillEvent) { calls++ })

	page := &form.Page{Wizard: form.NewContainer(form.ModeWizard)}
	if fields := New(page, bus).Apply(map[string]string{"a": "1"}, "x"); fields != nil {
		t.Fatalf("expected no fields, got %v", fields)
	}
	if calls != 0 {
		t.Fatalf("published without changes")
	}
}
