package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/favorite-places/backend/internal/events"
	"github.com/zhouzirui/favorite-places/backend/internal/model/place"
)

func waitSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, got %d", want, hub.Subscribers())
}

func samplePlace() place.Place {
	return place.Place{ID: "11111111-2222-4333-8444-555555555555", Name: "Quad", Latitude: 40.1, Longitude: -88.2, Description: "green"}
}

func TestWebSocketReceivesEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewRouter(hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial err: %v", err)
	}
	defer conn.Close()
	waitSubscribers(t, hub, 1)

	sent := events.PlaceUpserted(samplePlace(), false)
	if err := hub.Deliver(context.Background(), sent); err != nil {
		t.Fatalf("Deliver err: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON err: %v", err)
	}
	if got.ID != sent.ID || got.Type != events.TypePlaceUpserted || got.Place == nil || got.Place.Name != "Quad" {
		t.Fatalf("unexpected event %+v", got)
	}

	conn.Close()
	waitSubscribers(t, hub, 0)
}

func TestSSEReceivesEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewRouter(hub))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do err: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	waitSubscribers(t, hub, 1)

	sent := events.CatalogReset([]place.Place{samplePlace()})
	if err := hub.Deliver(context.Background(), sent); err != nil {
		t.Fatalf("Deliver err: %v", err)
	}

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var sawEvent bool
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before data arrived")
			}
			if line == "event: catalog.reset" {
				sawEvent = true
			}
			if strings.HasPrefix(line, "data: ") {
				var got events.Event
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &got); err != nil {
					t.Fatalf("Unmarshal err: %v", err)
				}
				if !sawEvent || got.ID != sent.ID || len(got.Places) != 1 {
					t.Fatalf("unexpected event %+v (event line seen: %v)", got, sawEvent)
				}
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for sse data")
		}
	}
}

func TestDeliverDropsForLaggingSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.subscribe()
	defer hub.unsubscribe(sub)

	for i := 0; i < subscriberBuffer+5; i++ {
		if err := hub.Deliver(context.Background(), events.CatalogReset(nil)); err != nil {
			t.Fatalf("Deliver err: %v", err)
		}
	}
	if len(sub.send) != subscriberBuffer {
		t.Fatalf("expected buffer to cap at %d, got %d", subscriberBuffer, len(sub.send))
	}
}
