package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewPublisher(t *testing.T) {
	pub := NewPublisher("rmf-dispatcher")

	if pub == nil {
		t.Fatal("NewPublisher() returned nil")
	}

	if pub.source != "rmf-dispatcher" {
		t.Errorf("NewPublisher() source = %v, want rmf-dispatcher", pub.source)
	}

	if pub.httpClient == nil {
		t.Error("NewPublisher() did not initialize httpClient")
	}

	if pub.endpoints == nil {
		t.Error("NewPublisher() did not initialize endpoints map")
	}
}

func TestPublish_NoWebhook(t *testing.T) {
	pub := NewPublisher("rmf-dispatcher")
	ctx := context.Background()

	data := map[string]any{
		"task_id":  "task_123",
		"category": "scan_zone",
	}

	// Should not error even without webhook registered
	err := pub.Publish(ctx, EventTaskAnnounced, data)
	if err != nil {
		t.Errorf("Publish() without webhook error: %v", err)
	}
}

func TestPublish_WithWebhook(t *testing.T) {
	receivedEvent := false
	var receivedEnvelope Envelope

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedEvent = true

		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Missing Content-Type header")
		}
		if r.Header.Get("X-Event-Type") == "" {
			t.Errorf("Missing X-Event-Type header")
		}

		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &receivedEnvelope)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pub := NewPublisher("rmf-dispatcher")
	pub.RegisterEndpoint(EventTaskAwarded, server.URL)

	ctx := context.Background()
	data := map[string]any{
		"task_id":    "task_123",
		"fleet_name": "fleet_a",
	}

	err := pub.Publish(ctx, EventTaskAwarded, data)
	if err != nil {
		t.Fatalf("Publish() with webhook error: %v", err)
	}

	if !receivedEvent {
		t.Error("Webhook was not called")
	}

	if receivedEnvelope.EventType != EventTaskAwarded {
		t.Errorf("Envelope EventType = %v, want %v", receivedEnvelope.EventType, EventTaskAwarded)
	}

	if receivedEnvelope.Source != "rmf-dispatcher" {
		t.Errorf("Envelope Source = %v, want rmf-dispatcher", receivedEnvelope.Source)
	}

	if receivedEnvelope.Data["task_id"] != "task_123" {
		t.Errorf("Envelope Data task_id = %v, want task_123", receivedEnvelope.Data["task_id"])
	}
}

func TestPublish_WebhookFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	pub := NewPublisher("rmf-dispatcher")
	pub.RegisterEndpoint(EventTaskFailed, server.URL)

	ctx := context.Background()
	data := map[string]any{
		"task_id": "task_123",
	}

	// Should not error even if webhook fails (logged only)
	err := pub.Publish(ctx, EventTaskFailed, data)
	if err != nil {
		t.Errorf("Publish() should not error on webhook failure, got: %v", err)
	}
}

func TestPublish_AllEventTypes(t *testing.T) {
	eventTypes := []string{
		EventTaskAnnounced,
		EventTaskAwarded,
		EventTaskUnassigned,
		EventTaskCancelled,
		EventTaskCompleted,
		EventTaskFailed,
	}

	pub := NewPublisher("rmf-dispatcher")
	ctx := context.Background()

	for _, eventType := range eventTypes {
		t.Run(eventType, func(t *testing.T) {
			data := map[string]any{
				"task_id": "task_123",
			}

			err := pub.Publish(ctx, eventType, data)
			if err != nil {
				t.Errorf("Publish(%s) error: %v", eventType, err)
			}
		})
	}
}

func TestEnvelope_Structure(t *testing.T) {
	var receivedEnvelope Envelope

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &receivedEnvelope)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pub := NewPublisher("rmf-dispatcher")
	pub.RegisterEndpoint(EventTaskAnnounced, server.URL)

	ctx := context.Background()
	data := map[string]any{
		"task_id": "task_123",
	}

	err := pub.Publish(ctx, EventTaskAnnounced, data)
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	if receivedEnvelope.EventID == "" {
		t.Error("Envelope EventID is empty")
	}

	if receivedEnvelope.SchemaVersion != "1.0" {
		t.Errorf("Envelope SchemaVersion = %v, want 1.0", receivedEnvelope.SchemaVersion)
	}

	if receivedEnvelope.Timestamp.IsZero() {
		t.Error("Envelope Timestamp is zero")
	}

	if receivedEnvelope.IdempotencyKey == "" {
		t.Error("Envelope IdempotencyKey is empty")
	}
}

func TestGenerateEventID(t *testing.T) {
	ids := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id := generateEventID()

		if id == "" {
			t.Error("generateEventID() returned empty string")
		}

		if ids[id] {
			t.Errorf("generateEventID() generated duplicate ID: %v", id)
		}

		ids[id] = true
	}
}
