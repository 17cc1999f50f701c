package status

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-theme"
	"go.uber.org/zap"
)

// Token keys read from a theme manifest. Variant tokens override the
// manifest's base tokens.
const (
	TokenBase    = "status.base"
	TokenOffline = "status.offline"
	tokenPrefix  = "status."
)

type classTheme struct {
	base    string
	offline string
	states  map[State]string
}

func defaultClassTheme() classTheme {
	states := make(map[State]string, 7)
	for _, s := range []State{StateIdle, StateSaving, StateSaved, StateError, StateWarning, StateInfo, StateQueued} {
		states[s] = "autosave-status--" + string(s)
	}
	return classTheme{
		base:    "autosave-status",
		offline: "autosave-status--offline",
		states:  states,
	}
}

func (t classTheme) forState(s State) string {
	return t.states[s]
}

// WithThemeSelector resolves indicator classes from the named theme and
// variant. Missing tokens keep their default class.
func WithThemeSelector(selector theme.ThemeSelector, name, variant string) Option {
	return func(i *Indicator) {
		i.selector = selector
		i.themeName = name
		i.themeVariant = variant
	}
}

func resolveClassTheme(selector theme.ThemeSelector, name, variant string, logger *zap.Logger) classTheme {
	out := defaultClassTheme()
	selection, err := selector.Select(name, variant)
	if err != nil {
		logger.Warn("theme selection failed, using default classes",
			zap.String("theme", name), zap.String("variant", variant), zap.Error(err))
		return out
	}
	if selection == nil || selection.Manifest == nil {
		return out
	}

	tokens := make(map[string]string, len(selection.Manifest.Tokens))
	for k, v := range selection.Manifest.Tokens {
		tokens[k] = v
	}
	if v, ok := selection.Manifest.Variants[selection.Variant]; ok {
		for k, val := range v.Tokens {
			tokens[k] = val
		}
	}

	for key, value := range tokens {
		value = strings.TrimSpace(value)
		if value == "" || !strings.HasPrefix(key, tokenPrefix) {
			continue
		}
		switch key {
		case TokenBase:
			out.base = value
		case TokenOffline:
			out.offline = value
		default:
			state := State(strings.TrimPrefix(key, tokenPrefix))
			if _, known := out.states[state]; known {
				out.states[state] = value
			}
		}
	}
	return out
}

// ErrUnknownTheme is returned by StaticSelector for unregistered names.
var ErrUnknownTheme = errors.New("status: unknown theme")

// StaticSelector is a theme.ThemeSelector over manifests held in memory,
// keyed by manifest name.
type StaticSelector map[string]*theme.Manifest

// NewStaticSelector indexes manifests by name.
func NewStaticSelector(manifests ...*theme.Manifest) StaticSelector {
	out := make(StaticSelector, len(manifests))
	for _, m := range manifests {
		if m != nil && m.Name != "" {
			out[m.Name] = m
		}
	}
	return out
}

// Select implements theme.ThemeSelector.
func (s StaticSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	manifest, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
	if variant != "" {
		if _, ok := manifest.Variants[variant]; !ok {
			variant = ""
		}
	}
	return &theme.Selection{Theme: name, Variant: variant, Manifest: manifest}, nil
}
