package status

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
)

const markupSource = `<div class="{{ class }}" role="status" aria-live="polite" data-state="{{ state }}"{% if not online %} data-offline="true"{% endif %}>{{ message }}</div>`

var (
	policyOnce    sync.Once
	messagePolicy *bluemonday.Policy

	markupOnce sync.Once
	markupTpl  *pongo2.Template
	markupErr  error
)

// sanitizeMessage reduces caller supplied text to plain text. Server error
// bodies end up here, so any markup is dropped.
func sanitizeMessage(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	policyOnce.Do(func() {
		messagePolicy = bluemonday.StrictPolicy()
	})
	cleaned := html.UnescapeString(messagePolicy.Sanitize(trimmed))
	return strings.Join(strings.Fields(cleaned), " ")
}

func statusTemplate() (*pongo2.Template, error) {
	markupOnce.Do(func() {
		markupTpl, markupErr = pongo2.FromString(markupSource)
	})
	return markupTpl, markupErr
}

// Markup renders the indicator as an HTML fragment for server rendered
// pages.
func (i *Indicator) Markup() (string, error) {
	tpl, err := statusTemplate()
	if err != nil {
		return "", fmt.Errorf("status: compile markup: %w", err)
	}

	i.mu.Lock()
	ctx := pongo2.Context{
		"class":   i.classLocked(),
		"state":   string(i.state),
		"online":  i.online,
		"message": i.textLocked(),
	}
	i.mu.Unlock()

	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(ctx, &buf); err != nil {
		return "", fmt.Errorf("status: render markup: %w", err)
	}
	return buf.String(), nil
}
