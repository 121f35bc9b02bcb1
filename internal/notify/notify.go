// Package notify carries lifecycle event notifications out of the core.
// Delivery is best-effort and fire-and-forget: the lifecycle engine's
// correctness never depends on a sink seeing an event.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event describes one committed lifecycle mutation.
type Event struct {
	ProjectID uuid.UUID `json:"project_id"`
	Action    string    `json:"action"`
	ActorName string    `json:"actor_name"`
	Remarks   string    `json:"remarks"`
	At        time.Time `json:"at"`
}

// Sink consumes events. Implementations must not block the caller for long;
// anything slow belongs behind a queue.
type Sink interface {
	Publish(event Event)
}

// Bus fans events out to subscribed sinks.
type Bus struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a sink for all future events.
func (b *Bus) Subscribe(sink Sink) {
	if sink == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()
	for _, sink := range sinks {
		sink.Publish(event)
	}
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish implements Sink.
func (f SinkFunc) Publish(event Event) {
	f(event)
}
