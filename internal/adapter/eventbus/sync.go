// Package eventbus provides the synchronous EventBus implementation used
// by the playback engine.
package eventbus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/echoforge/echoforge/internal/domain"
	"github.com/echoforge/echoforge/internal/ports"
)

// SyncEventBus delivers events to handlers synchronously, in subscription
// order. Slow handlers therefore block event delivery; handlers that need
// long processing should dispatch to their own goroutine.
//
// Thread-safety: publishing and (un)subscribing are safe from multiple
// goroutines. Handler panics are recovered and logged so one broken
// consumer cannot take the engine down.
type SyncEventBus struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[domain.EventType][]subscription
	closed      bool

	idCounter uint64
}

type subscription struct {
	id      domain.SubscriptionID
	handler domain.EventHandler
}

// NewSyncEventBus creates a new synchronous event bus. The logger may be
// nil; panic recovery then stays silent.
func NewSyncEventBus(logger *slog.Logger) *SyncEventBus {
	return &SyncEventBus{
		logger:      logger,
		subscribers: make(map[domain.EventType][]subscription),
	}
}

// Publish delivers the event to every subscriber of its type. Publishing
// nil or publishing on a closed bus is a no-op.
func (bus *SyncEventBus) Publish(event domain.Event) {
	if event == nil {
		return
	}

	bus.mu.RLock()
	if bus.closed {
		bus.mu.RUnlock()
		return
	}
	// Copy the slice so handlers may (un)subscribe during delivery.
	subs := make([]subscription, len(bus.subscribers[event.Type()]))
	copy(subs, bus.subscribers[event.Type()])
	bus.mu.RUnlock()

	for _, sub := range subs {
		bus.deliver(sub.handler, event)
	}
}

func (bus *SyncEventBus) deliver(handler domain.EventHandler, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			if bus.logger != nil {
				bus.logger.Error("event handler panicked",
					slog.Any("panic", r),
					slog.String("event_type", string(event.Type())))
			}
		}
	}()

	handler(event)
}

// Subscribe registers a handler for events of the given type.
// Returns a unique subscription ID that can be used to unsubscribe.
func (bus *SyncEventBus) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID {
	if handler == nil {
		panic("event handler cannot be nil")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		panic("cannot subscribe to closed event bus")
	}

	id := domain.SubscriptionID(fmt.Sprintf("sub-%d", atomic.AddUint64(&bus.idCounter, 1)))
	bus.subscribers[eventType] = append(bus.subscribers[eventType], subscription{
		id:      id,
		handler: handler,
	})

	return id
}

// Unsubscribe removes a previously registered handler. Unknown IDs are a
// no-op. Removal preserves the delivery order of remaining handlers.
func (bus *SyncEventBus) Unsubscribe(id domain.SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	for eventType, subs := range bus.subscribers {
		for i, sub := range subs {
			if sub.id == id {
				bus.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscriberCount returns the number of active subscriptions, for tests
// and debugging.
func (bus *SyncEventBus) SubscriberCount() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	count := 0
	for _, subs := range bus.subscribers {
		count += len(subs)
	}
	return count
}

// Close shuts down the event bus and clears all subscriptions.
// Returns an error if already closed.
func (bus *SyncEventBus) Close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		return fmt.Errorf("event bus already closed")
	}

	bus.closed = true
	bus.subscribers = make(map[domain.EventType][]subscription)

	return nil
}

// Verify that SyncEventBus implements the EventBus interface
var _ ports.EventBus = (*SyncEventBus)(nil)
