// Package bus provides the in-process message bus connecting the bridge
// (notification intake) to the pipeline consumer, plus a broadcast fan-out
// for server-side events.
package bus

import (
	"context"
	"log/slog"
	"sync"
)

// notificationBuffer bounds the intake queue. Notifications arriving while
// the queue is full are dropped with a warning; a stale dispatch message is
// worthless anyway once competitors have had seconds to react.
const notificationBuffer = 64

// MessageBus routes notification events from the bridge to the pipeline and
// broadcasts events to subscribers. Safe for concurrent use.
type MessageBus struct {
	notifications chan NotificationEvent

	mu          sync.RWMutex
	subscribers map[string]EventHandler
}

// New creates a MessageBus.
func New() *MessageBus {
	return &MessageBus{
		notifications: make(chan NotificationEvent, notificationBuffer),
		subscribers:   make(map[string]EventHandler),
	}
}

// PublishNotification enqueues a notification event for the pipeline.
// Non-blocking: if the queue is full the event is dropped.
func (b *MessageBus) PublishNotification(ev NotificationEvent) {
	select {
	case b.notifications <- ev:
	default:
		slog.Warn("bus: notification queue full, dropping event", "title", ev.Title)
	}
}

// ConsumeNotification blocks until a notification is available or the context
// is cancelled. Returns false when the context is done.
func (b *MessageBus) ConsumeNotification(ctx context.Context) (NotificationEvent, bool) {
	select {
	case ev := <-b.notifications:
		return ev, true
	case <-ctx.Done():
		return NotificationEvent{}, false
	}
}

// Subscribe registers an event handler under an ID. Re-subscribing with the
// same ID replaces the previous handler.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = handler
}

// Unsubscribe removes a handler.
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Broadcast delivers an event to all subscribers synchronously.
func (b *MessageBus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
