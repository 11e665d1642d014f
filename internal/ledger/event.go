// Package ledger consumes pot lifecycle events emitted by the on-chain
// watcher and relays verification outcomes back to the chain.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/moneypot/verifier/internal/models"
)

type Kind string

const (
	KindCreated   Kind = "created"
	KindAttempted Kind = "attempted"
	KindExpired   Kind = "expired"
)

var ErrMalformedEvent = errors.New("malformed ledger event")

// Event is the one schema for everything the ledger tells us. ID is the pot id
// for created and expired, and the attempt id for attempted.
type Event struct {
	Kind         Kind            `json:"kind"`
	ID           models.LedgerID `json:"id"`
	PotID        models.LedgerID `json:"pot_id,omitempty"`
	Hunter       string          `json:"hunter,omitempty"`
	Difficulty   int             `json:"difficulty,omitempty"`
	Creator      string          `json:"creator,omitempty"`
	OneFAAddress string          `json:"one_fa_address,omitempty"`
	ExpiresAt    int64           `json:"expires_at,omitempty"` // unix seconds
	Chain        string          `json:"chain,omitempty"`
}

// Decode parses exactly one event. Unknown fields, unknown kinds and
// missing ids are errors.
func Decode(b []byte) (*Event, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var ev Event
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedEvent)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrMalformedEvent)
	}
	switch e.Kind {
	case KindCreated, KindExpired:
		if e.PotID != "" && e.PotID != e.ID {
			return fmt.Errorf("%w: pot_id %s disagrees with id %s", ErrMalformedEvent, e.PotID, e.ID)
		}
	case KindAttempted:
		if e.PotID == "" {
			return fmt.Errorf("%w: attempted event without pot_id", ErrMalformedEvent)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, e.Kind)
	}
	if e.Difficulty < 0 || e.ExpiresAt < 0 {
		return fmt.Errorf("%w: negative field", ErrMalformedEvent)
	}
	return nil
}

// Pot builds the ledger view row for a created event.
func (e *Event) Pot(now time.Time) *models.Pot {
	p := &models.Pot{
		PotID:        string(e.ID),
		Creator:      e.Creator,
		OneFAAddress: e.OneFAAddress,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if e.ExpiresAt > 0 {
		t := time.Unix(e.ExpiresAt, 0).UTC()
		p.ExpiresAt = &t
	}
	return p
}
