// Package ports defines the EventBus interface for event-driven communication.
package ports

import (
	"github.com/echoforge/echoforge/internal/domain"
)

// EventBus decouples event producers (the state machine, the player
// surface) from consumers (UI layers, media session, logging).
//
// Thread-safety: implementations must be thread-safe; events may be
// published and subscriptions changed from multiple goroutines.
//
// Example:
//
//	subID := bus.Subscribe(domain.EventTrackChanged, func(event domain.Event) {
//	    e := event.(domain.TrackChangedEvent)
//	    view.ShowNowPlaying(e.Track)
//	})
//	defer bus.Unsubscribe(subID)
type EventBus interface {
	// Publish delivers an event to all subscribers of its type, in
	// subscription order for synchronous implementations. Handlers should
	// return quickly; long work belongs on a background goroutine.
	Publish(event domain.Event)

	// Subscribe registers a handler for events of the given type and
	// returns an ID for later removal. The same handler may be registered
	// more than once, yielding multiple deliveries.
	Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID

	// Unsubscribe removes a previous registration. Unknown or already
	// removed IDs are a no-op.
	Unsubscribe(id domain.SubscriptionID)

	// Close shuts the bus down and drops all subscriptions. Publishing to
	// a closed bus is a no-op.
	Close() error
}
