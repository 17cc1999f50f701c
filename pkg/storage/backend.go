// Package storage provides the durable key/value stores that stand in for
// browser local storage. Every consumer treats them as best-effort caches:
// failures are reported as errors here and swallowed at the consumer's
// boundary.
package storage

import (
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned by Get for unknown keys.
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned when a write would exceed the backend's
	// capacity.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("storage: backend closed")
)

// Backend is a flat string-keyed byte store.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Keys lists stored keys starting with prefix, sorted.
	Keys(prefix string) ([]string, error)
}

// GetJSON decodes the value stored under key into v. It reports false when
// the key is missing, the backend fails or the payload does not decode.
func GetJSON(b Backend, key string, v any) bool {
	if b == nil {
		return false
	}
	raw, err := b.Get(key)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// SetJSON encodes v and stores it under key, reporting success.
func SetJSON(b Backend, key string, v any) bool {
	if b == nil {
		return false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return b.Set(key, raw) == nil
}

// GetString returns the raw string stored under key.
func GetString(b Backend, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	raw, err := b.Get(key)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// SetString stores a raw string under key, reporting success.
func SetString(b Backend, key, value string) bool {
	if b == nil {
		return false
	}
	return b.Set(key, []byte(value)) == nil
}
