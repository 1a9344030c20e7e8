package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sandwichproject/coordinator/internal/messaging"
)

type streamEvent struct {
	eventType string
	payload   realtimeEventPayload
}

func TestMessageStreamEmitsMessageCreatedEvents(t *testing.T) {
	fixture := newAPIFixture(t)
	server := httptest.NewServer(fixture.handler)
	t.Cleanup(server.Close)

	listener := mintSessionToken(t, "listener", "listener@example.org", "volunteer")
	author := mintSessionToken(t, "author", "author@example.org", "volunteer")

	streamRequest, err := http.NewRequest(http.MethodGet, server.URL+"/api/messages/stream", http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	streamRequest.Header.Set("Authorization", "Bearer "+listener)
	streamResp, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}
	if contentType := streamResp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		t.Fatalf("unexpected stream content type %q", contentType)
	}

	events := readStreamEvents(t, bufio.NewReader(streamResp.Body))

	// The opening heartbeat confirms the subscription is registered.
	first := nextStreamEvent(t, events)
	if first.eventType != realtimeEventHeartbeat || first.payload.Source != realtimeSourceBackend {
		t.Fatalf("expected opening heartbeat, got %+v", first)
	}

	body, err := json.Marshal(map[string]string{"content": "Van leaves at nine"})
	if err != nil {
		t.Fatalf("failed to encode message: %v", err)
	}
	postRequest, err := http.NewRequest(http.MethodPost, server.URL+"/api/messages", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to construct message request: %v", err)
	}
	postRequest.Header.Set("Authorization", "Bearer "+author)
	postRequest.Header.Set("Content-Type", "application/json")
	postResp, err := http.DefaultClient.Do(postRequest)
	if err != nil {
		t.Fatalf("message request failed: %v", err)
	}
	if postResp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected message status: %d", postResp.StatusCode)
	}
	var created messaging.Message
	if err := json.NewDecoder(postResp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode message response: %v", err)
	}
	_ = postResp.Body.Close()

	event := nextStreamEvent(t, events)
	if event.eventType != RealtimeEventMessageCreated {
		t.Fatalf("expected %s event, got %s", RealtimeEventMessageCreated, event.eventType)
	}
	if event.payload.MessageID != created.ID || event.payload.ThreadID != created.ThreadID {
		t.Fatalf("unexpected event payload %+v for message %+v", event.payload, created)
	}
}

// readStreamEvents parses server-sent events until the body closes.
func readStreamEvents(t *testing.T, reader *bufio.Reader) <-chan streamEvent {
	t.Helper()
	events := make(chan streamEvent, 8)
	go func() {
		defer close(events)
		currentEventType := ""
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "event:"):
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				var payload realtimeEventPayload
				if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &payload); err != nil {
					return
				}
				events <- streamEvent{eventType: currentEventType, payload: payload}
			}
		}
	}()
	return events
}

func nextStreamEvent(t *testing.T, events <-chan streamEvent) streamEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		if !ok {
			t.Fatal("stream closed before the expected event")
		}
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for realtime event")
	}
	return streamEvent{}
}
