package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/metrics"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/services"
)

type PotSink interface {
	Created(ctx context.Context, p *models.Pot) error
	Expire(ctx context.Context, potID, actor string) error
}

type AttemptSink interface {
	Record(ctx context.Context, req services.RecordAttemptRequest) (*models.Attempt, error)
}

// Applier turns ledger events into verifier state. Delivery is at least
// once, so replays of attempted events are accepted as no-ops.
type Applier struct {
	pots     PotSink
	attempts AttemptSink
	actor    string
	now      func() time.Time
	log      *zap.Logger
}

func NewApplier(pots PotSink, attempts AttemptSink, actor string, log *zap.Logger) *Applier {
	return &Applier{pots: pots, attempts: attempts, actor: actor, now: time.Now, log: log}
}

func (a *Applier) Apply(ctx context.Context, ev *Event) error {
	err := a.apply(ctx, ev)
	result := "ok"
	switch {
	case errors.Is(err, services.ErrAttemptExists):
		result, err = "duplicate", nil
	case err != nil:
		result = "error"
	}
	metrics.LedgerEvents.WithLabelValues(string(ev.Kind), result).Inc()
	return err
}

func (a *Applier) apply(ctx context.Context, ev *Event) error {
	switch ev.Kind {
	case KindCreated:
		return a.pots.Created(ctx, ev.Pot(a.now()))
	case KindAttempted:
		_, err := a.attempts.Record(ctx, services.RecordAttemptRequest{
			AttemptID:  string(ev.ID),
			PotID:      string(ev.PotID),
			Difficulty: ev.Difficulty,
			Hunter:     ev.Hunter,
			Chain:      ev.Chain,
			Actor:      a.actor,
		})
		return err
	case KindExpired:
		return a.pots.Expire(ctx, string(ev.ID), a.actor)
	}
	return fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, ev.Kind)
}

// HandleRaw decodes and applies one message off the ledger stream.
// Malformed messages are dropped with a warning.
func (a *Applier) HandleRaw(ctx context.Context) func([]byte) {
	return func(msg []byte) {
		ev, err := Decode(msg)
		if err != nil {
			metrics.LedgerEvents.WithLabelValues("unknown", "rejected").Inc()
			a.log.Warn("dropping malformed ledger event", zap.Error(err), zap.ByteString("raw", msg))
			return
		}
		if err := a.Apply(ctx, ev); err != nil {
			a.log.Error("failed to apply ledger event",
				zap.String("kind", string(ev.Kind)),
				zap.String("id", string(ev.ID)),
				zap.Error(err),
			)
			return
		}
		a.log.Debug("ledger event applied", zap.String("kind", string(ev.Kind)), zap.String("id", string(ev.ID)))
	}
}
