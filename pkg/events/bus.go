// Package events is the typed message bus shared by independently
// constructed page components. Each custom event has a named Topic whose
// payload type is checked at compile time.
package events

import (
	"sync"
)

// Topic names an event and fixes its payload type.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the wire name of the topic.
func (t Topic[T]) Name() string {
	return t.name
}

type subscriber struct {
	id uint64
	fn func(any)
}

// Bus delivers published payloads synchronously to subscribers in
// subscription order. Handlers run on the publisher's goroutine without any
// bus lock held, so they may publish or unsubscribe themselves.
type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs map[string][]subscriber
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// Subscribe registers fn for topic and returns a function that removes it.
// The returned function is idempotent.
func Subscribe[T any](b *Bus, topic Topic[T], fn func(T)) func() {
	if b == nil || fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[topic.name] = append(b.subs[topic.name], subscriber{
		id: id,
		fn: func(payload any) {
			if typed, ok := payload.(T); ok {
				fn(typed)
			}
		},
	})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic.name, id) })
	}
}

// Publish delivers payload to every subscriber of topic.
func Publish[T any](b *Bus, topic Topic[T], payload T) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]subscriber(nil), b.subs[topic.name]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(payload)
	}
}

// Subscribers reports how many handlers listen on topic.
func Subscribers[T any](b *Bus, topic Topic[T]) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic.name])
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[name]
	for i, sub := range subs {
		if sub.id == id {
			b.subs[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}
