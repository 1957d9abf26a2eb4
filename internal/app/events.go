package app

import (
	"sync"
)

// EventType represents the type of event
type EventType int

const (
	EventMessage EventType = iota
	EventMessageStatus
	EventPresence
	EventStatus
	EventNotice
)

// EventMsg represents an event from the app layer
type EventMsg struct {
	Type EventType
	Data interface{}
}

// EventHandler is a function that handles events
type EventHandler func(event EventMsg)

type subscription struct {
	id      int
	handler EventHandler
}

// EventBus fans app events out to subscribers. Handlers run on their own
// goroutine and must not assume ordering between events.
type EventBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType][]subscription
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe registers handler for eventType and returns a function removing it.
func (b *EventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish publishes an event to all subscribers
func (b *EventBus) Publish(event EventMsg) {
	b.mu.RLock()
	subs := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, s := range subs {
		go s.handler(event)
	}
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]subscription)
}
