package events

import "context"

// Streams
const (
	StreamAttempts = "events:attempt"
	StreamLedger   = "events:ledger"
)

// Event types
const (
	EventPotRegistered    = "pot_registered"
	EventAttemptRecorded  = "attempt_recorded"
	EventChallengesIssued = "challenges_issued"
	EventAttemptVerified  = "attempt_verified"
	EventPotExpired       = "pot_expired"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// RawSubscriber delivers message bodies undecoded, for streams that carry
// their own schema (the ledger stream).
type RawSubscriber interface {
	SubscribeRaw(ctx context.Context, stream string, handler func([]byte)) error
}

// Nop drops everything. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
