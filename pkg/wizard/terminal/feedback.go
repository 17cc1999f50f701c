package terminal

import (
	"context"
	"strings"
)

// Feedback prints validation errors and announcements through a driver
// and asks confirmations. It satisfies wizard.Presenter, wizard.Announcer
// and viewtoggle.Confirmer.
type Feedback struct {
	ctx    context.Context
	driver PromptDriver
}

// NewFeedback returns feedback bound to ctx.
func NewFeedback(ctx context.Context, driver PromptDriver) *Feedback {
	return &Feedback{ctx: ctx, driver: driver}
}

// ShowErrors lists the unanswered required fields.
func (f *Feedback) ShowErrors(_ int, missing []string) {
	_ = f.driver.Info(f.ctx, "! Please answer: "+strings.Join(missing, ", "))
}

// ClearErrors is a no-op; printed lines cannot be withdrawn.
func (f *Feedback) ClearErrors(int) {}

// Announce prints message.
func (f *Feedback) Announce(message string) {
	_ = f.driver.Info(f.ctx, message)
}

// Confirm asks a yes/no question, treating failures as "no".
func (f *Feedback) Confirm(message string) bool {
	ok, err := f.driver.Confirm(f.ctx, ConfirmConfig{Message: message})
	return err == nil && ok
}
