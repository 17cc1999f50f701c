package viewtoggle

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/storage"
)

type stubControl struct {
	modes []form.Mode
}

func (c *stubControl) SetMode(mode form.Mode) { c.modes = append(c.modes, mode) }

type views struct {
	wizName  *form.Input
	tradName *form.Input
	wizard   *form.Container
	trad     *form.Container
}

func newViews() views {
	v := views{
		wizName:  form.NewInput("plaintiff_name", form.KindText, ""),
		tradName: form.NewInput("plaintiff_name", form.KindText, ""),
	}
	v.wizard = form.NewContainer(form.ModeWizard, v.wizName)
	v.trad = form.NewContainer(form.ModeTraditional, v.tradName)
	return v
}

func TestToggle_SyncsValuesOnSwitch(t *testing.T) {
	v := newViews()
	bus := events.NewBus()
	store := storage.NewMemory()
	toggle := New(v.wizard, v.trad, WithBus(bus), WithStorage(store))
	defer toggle.Close()

	var changes []events.ModeChangedEvent
	events.Subscribe(bus, events.ViewModeChanged, func(e events.ModeChangedEvent) { changes = append(changes, e) })

	if got := toggle.Connect(); got != form.ModeWizard {
		t.Fatalf("default mode: got %s", got)
	}
	if !v.wizard.Visible() || v.trad.Visible() {
		t.Fatalf("wizard should be the only visible view")
	}

	v.wizName.SetValue("Jane")
	if !toggle.Switch(form.ModeTraditional) {
		t.Fatalf("switch rejected")
	}

	if got := v.tradName.Value(); got != "Jane" {
		t.Fatalf("traditional value: want Jane, got %q", got)
	}
	if v.wizard.Visible() || !v.trad.Visible() {
		t.Fatalf("traditional should be the only visible view")
	}
	if stored, _ := storage.GetString(store, ModeKey); stored != "traditional" {
		t.Fatalf("stored mode: got %q", stored)
	}
	want := []events.ModeChangedEvent{{From: form.ModeWizard, To: form.ModeTraditional}}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestToggle_CopiesChoiceState(t *testing.T) {
	wizYes := form.NewChoice("is_business", form.KindRadio, "yes", false)
	wizNo := form.NewChoice("is_business", form.KindRadio, "no", true)
	tradYes := form.NewChoice("is_business", form.KindRadio, "yes", false)
	tradNo := form.NewChoice("is_business", form.KindRadio, "no", false)

	toggle := New(
		form.NewContainer(form.ModeWizard, wizYes, wizNo),
		form.NewContainer(form.ModeTraditional, tradYes, tradNo),
	)
	toggle.Connect()
	defer toggle.Close()

	wizYes.SetChecked(true)
	wizNo.SetChecked(false)
	toggle.Switch(form.ModeTraditional)

	if !tradYes.Checked() || tradNo.Checked() {
		t.Fatalf("radio state not mirrored: yes=%v no=%v", tradYes.Checked(), tradNo.Checked())
	}
	if tradYes.Value() != "yes" || tradNo.Value() != "no" {
		t.Fatalf("choice values must not change")
	}
}

func TestToggle_RestoresStoredMode(t *testing.T) {
	v := newViews()
	store := storage.NewMemory()
	storage.SetString(store, ModeKey, "traditional")
	control := &stubControl{}

	toggle := New(v.wizard, v.trad, WithStorage(store), WithControl(control))
	defer toggle.Close()
	if got := toggle.Connect(); got != form.ModeTraditional {
		t.Fatalf("restored mode: got %s", got)
	}
	if !v.trad.Visible() {
		t.Fatalf("traditional view hidden after restore")
	}
	if diff := cmp.Diff([]form.Mode{form.ModeTraditional}, control.modes); diff != "" {
		t.Fatalf("control mismatch (-want +got):\n%s", diff)
	}

	storage.SetString(store, ModeKey, "bogus")
	other := New(v.wizard, v.trad, WithStorage(store))
	defer other.Close()
	if got := other.Connect(); got != form.ModeWizard {
		t.Fatalf("invalid stored mode should fall back, got %s", got)
	}
}

func TestToggle_ConfirmsUnsavedChanges(t *testing.T) {
	v := newViews()
	bus := events.NewBus()
	control := &stubControl{}
	answer := false
	asked := 0
	confirmer := ConfirmFunc(func(msg string) bool {
		asked++
		if msg != DefaultConfirmMessage {
			t.Fatalf("unexpected message %q", msg)
		}
		return answer
	})

	toggle := New(v.wizard, v.trad, WithBus(bus), WithConfirmer(confirmer), WithControl(control))
	toggle.Connect()
	defer toggle.Close()

	v.wizName.SetValue("Jane")
	events.Publish(bus, events.FormFieldChanged, events.FieldChangedEvent{Name: "plaintiff_name", Mode: form.ModeWizard})
	if !toggle.Dirty() {
		t.Fatalf("field change should mark dirty")
	}

	if toggle.Switch(form.ModeTraditional) {
		t.Fatalf("declined switch went through")
	}
	if toggle.Mode() != form.ModeWizard || v.tradName.Value() != "" {
		t.Fatalf("declined switch changed state")
	}
	if diff := cmp.Diff([]form.Mode{form.ModeWizard, form.ModeWizard}, control.modes); diff != "" {
		t.Fatalf("control not reverted (-want +got):\n%s", diff)
	}

	answer = true
	if !toggle.Switch(form.ModeTraditional) {
		t.Fatalf("confirmed switch rejected")
	}
	if asked != 2 {
		t.Fatalf("expected two prompts, got %d", asked)
	}

	events.Publish(bus, events.FormSaved, events.FormSavedEvent{PageKey: "/p", Pending: true})
	if !toggle.Dirty() {
		t.Fatalf("a save with newer edits outstanding should keep dirty")
	}

	events.Publish(bus, events.FormSaved, events.FormSavedEvent{PageKey: "/p"})
	if toggle.Dirty() {
		t.Fatalf("form:saved should clear dirty")
	}
	if !toggle.Switch(form.ModeWizard) || asked != 2 {
		t.Fatalf("clean switch should not prompt")
	}
}

func TestToggle_IgnoresNoopAndInvalid(t *testing.T) {
	v := newViews()
	toggle := New(v.wizard, v.trad)
	toggle.Connect()
	defer toggle.Close()
	if toggle.Switch(form.ModeWizard) || toggle.Switch(form.Mode("grid")) {
		t.Fatalf("expected no switch")
	}
}
