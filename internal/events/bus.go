// Package events fans catalog changes out to external sinks.
package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/favorite-places/backend/internal/model/place"
)

// Type names a catalog change.
type Type string

const (
	TypePlaceUpserted Type = "place.upserted"
	TypeCatalogReset  Type = "catalog.reset"
)

// Event describes a single catalog change. Place is set for upserts, Places
// carries the full reloaded catalog for resets.
type Event struct {
	ID       string        `json:"id"`
	Type     Type          `json:"type"`
	Place    *place.Place  `json:"place,omitempty"`
	Places   []place.Place `json:"places,omitempty"`
	Replaced bool          `json:"replaced,omitempty"`
	At       time.Time     `json:"at"`
}

// PlaceUpserted builds the event emitted after a successful upsert.
func PlaceUpserted(p place.Place, replaced bool) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     TypePlaceUpserted,
		Place:    &p,
		Replaced: replaced,
		At:       time.Now().UTC(),
	}
}

// CatalogReset builds the event emitted after a reload.
func CatalogReset(places []place.Place) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   TypeCatalogReset,
		Places: append([]place.Place{}, places...),
		At:     time.Now().UTC(),
	}
}

// Sink receives delivered events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(event Event)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Bus queues events and delivers them to every sink on a single goroutine,
// preserving publish order.
type Bus struct {
	sinks []Sink
	queue chan Event
}

// NewBus creates a bus with the given queue capacity.
func NewBus(capacity int, sinks ...Sink) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{sinks: sinks, queue: make(chan Event, capacity)}
}

// Publish enqueues event. A full queue drops it.
func (b *Bus) Publish(event Event) {
	select {
	case b.queue <- event:
	default:
		log.Printf("[events] queue full, dropping %s event %s", event.Type, event.ID)
	}
}

// Run delivers queued events until ctx is canceled.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.queue:
			b.deliver(ctx, event)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, event Event) {
	for _, sink := range b.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			log.Printf("[events] sink %s failed for %s event %s: %v", sink.Name(), event.Type, event.ID, err)
		}
	}
}
