package terminal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	multiIdx     [][]int
	confirm      []bool
	textAreas    []string
	infoMessages []string
	selectOpts   [][]string
	inputPos     int
	selectPos    int
	multiPos     int
	confirmPos   int
	textPos      int
	err          error
}

func (s *stubDriver) Input(_ context.Context, _ InputConfig) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	s.selectOpts = append(s.selectOpts, cfg.Options)
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, _ SelectConfig) ([]int, error) {
	if s.multiPos >= len(s.multiIdx) {
		return nil, errors.New("no multiselect scripted")
	}
	val := s.multiIdx[s.multiPos]
	s.multiPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, _ TextAreaConfig) (string, error) {
	if s.textPos >= len(s.textAreas) {
		return "", errors.New("no textarea scripted")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

type fixture struct {
	name    *form.Input
	yes, no *form.Input
	county  *form.Input
	notes   *form.Input
	nav     *wizard.Navigator
	bus     *events.Bus
}

func newFixture(t *testing.T, driver PromptDriver) *fixture {
	t.Helper()
	f := &fixture{bus: events.NewBus()}
	f.name = form.NewInput("plaintiff_name", form.KindText, "")
	f.name.Required = true
	f.name.Label = "Your name"
	f.yes = form.NewChoice("is_business", form.KindRadio, "yes", false)
	f.no = form.NewChoice("is_business", form.KindRadio, "no", false)
	f.yes.Required, f.no.Required = true, true
	f.county = form.NewInput("county", form.KindSelect, "")
	f.county.Options = []string{"Alameda", "Fresno"}
	f.notes = form.NewInput("notes", form.KindTextArea, "")

	nav, err := wizard.New("SC-100", []wizard.Question{
		{ID: "name", Title: "Who are you?", Inputs: []*form.Input{f.name}},
		{ID: "business", Title: "Business?", Inputs: []*form.Input{f.yes, f.no}},
		{ID: "details", Title: "Details", Inputs: []*form.Input{f.county, f.notes}},
	}, wizard.WithBus(f.bus), wizard.WithPresenter(NewFeedback(context.Background(), driver)))
	if err != nil {
		t.Fatalf("new navigator: %v", err)
	}
	t.Cleanup(nav.Close)
	f.nav = nav
	return f
}

func TestRunner_WalksWizard(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"", "Jane", SkipToken},
		selectIdx: []int{2, 0, 1},
		textAreas: []string{"n/a"},
	}
	f := newFixture(t, driver)

	var changed []string
	events.Subscribe(f.bus, events.FormFieldChanged, func(e events.FieldChangedEvent) {
		changed = append(changed, e.Name)
	})

	if err := NewRunner(f.nav, WithPromptDriver(driver), WithBus(f.bus)).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if !f.nav.Finished() {
		t.Fatalf("wizard not finished")
	}
	if f.name.Value() != "Jane" || !f.yes.Checked() || f.no.Checked() {
		t.Fatalf("answers not applied: name=%q yes=%v no=%v", f.name.Value(), f.yes.Checked(), f.no.Checked())
	}
	if f.county.Value() != "Fresno" || f.notes.Value() != "n/a" {
		t.Fatalf("details not applied: %q %q", f.county.Value(), f.notes.Value())
	}
	if diff := cmp.Diff([]string{"plaintiff_name", "is_business", "county", "notes"}, changed); diff != "" {
		t.Fatalf("change events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"yes", "no", BackOption}, driver.selectOpts[0]); diff != "" {
		t.Fatalf("radio options mismatch (-want +got):\n%s", diff)
	}

	var sawError bool
	for _, msg := range driver.infoMessages {
		if strings.Contains(msg, "Please answer: plaintiff_name") {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("validation error not shown: %v", driver.infoMessages)
	}
}

func TestRunner_Checkboxes(t *testing.T) {
	a := form.NewChoice("perks", form.KindCheckbox, "parking", false)
	b := form.NewChoice("perks", form.KindCheckbox, "lunch", true)
	nav, err := wizard.New("SC-200", []wizard.Question{{Inputs: []*form.Input{a, b}}})
	if err != nil {
		t.Fatalf("new navigator: %v", err)
	}
	defer nav.Close()

	driver := &stubDriver{multiIdx: [][]int{{0}}}
	if err := NewRunner(nav, WithPromptDriver(driver)).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !a.Checked() || b.Checked() {
		t.Fatalf("checkbox state: parking=%v lunch=%v", a.Checked(), b.Checked())
	}
}

func TestRunner_StopsOnAbortAndCancel(t *testing.T) {
	driver := &stubDriver{err: ErrAborted}
	f := newFixture(t, driver)
	err := NewRunner(f.nav, WithPromptDriver(driver)).Run(context.Background())
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewRunner(f.nav, WithPromptDriver(&stubDriver{})).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFeedback_Confirm(t *testing.T) {
	driver := &stubDriver{confirm: []bool{true}}
	fb := NewFeedback(context.Background(), driver)
	if !fb.Confirm("Switch?") {
		t.Fatalf("expected yes")
	}
	if fb.Confirm("Again?") {
		t.Fatalf("driver failure must read as no")
	}
}
