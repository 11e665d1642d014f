package events

import (
	"context"
	"testing"
)

func TestLocalBusDelivers(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()

	var got []Event
	if err := bus.Subscribe(ctx, StreamAttempts, func(e Event) { got = append(got, e) }); err != nil {
		t.Fatal(err)
	}

	_ = bus.Publish(ctx, StreamAttempts, Event{Type: EventAttemptVerified, Payload: map[string]any{"attempt_id": "99", "success": true}})
	_ = bus.Publish(ctx, StreamLedger, Event{Type: "ignored"})

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Type != EventAttemptVerified {
		t.Errorf("type = %s", got[0].Type)
	}
	if got[0].Payload["attempt_id"] != "99" || got[0].Payload["success"] != true {
		t.Errorf("payload = %v", got[0].Payload)
	}
}

func TestLocalBusRaw(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()

	var raw string
	_ = bus.SubscribeRaw(ctx, StreamLedger, func(b []byte) { raw = string(b) })
	_ = bus.PublishRaw(ctx, StreamLedger, []byte(`{"kind":"created","id":"42"}`))

	if raw != `{"kind":"created","id":"42"}` {
		t.Fatalf("raw = %q", raw)
	}
}
