// Package feed streams catalog change events to live subscribers over
// websocket and server-sent events. It is served on its own listener so the
// places route table stays fixed.
package feed

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/favorite-places/backend/internal/events"
)

// subscriberBuffer is how many undelivered events a subscriber may lag.
const subscriberBuffer = 32

type subscriber struct {
	id   string
	send chan events.Event
}

// Hub fans events out to every connected subscriber. It is an events.Sink.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	upgrader    websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// NewRouter exposes the hub's transports.
func NewRouter(hub *Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	hub.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the websocket and SSE endpoints.
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
	r.Get("/events", h.handleSSE)
}

func (h *Hub) Name() string { return "feed" }

// Deliver hands event to every subscriber. A subscriber whose buffer is full
// misses the event rather than stalling the others.
func (h *Hub) Deliver(_ context.Context, event events.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub.send <- event:
		default:
			log.Printf("[feed] subscriber %s lagging, dropped %s event %s", sub.id, event.Type, event.ID)
		}
	}
	return nil
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) subscribe() *subscriber {
	sub := &subscriber{id: uuid.NewString(), send: make(chan events.Event, subscriberBuffer)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
}
