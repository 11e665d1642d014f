package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/events"
	"github.com/moneypot/verifier/internal/middleware"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/services"
)

type fakeAttempts struct {
	recorded services.RecordAttemptRequest
	err      error
}

func (f *fakeAttempts) Record(_ context.Context, req services.RecordAttemptRequest) (*models.Attempt, error) {
	f.recorded = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Attempt{AttemptID: req.AttemptID, PotID: req.PotID, Difficulty: req.Difficulty}, nil
}

func (f *fakeAttempts) Result(_ context.Context, attemptID string) (*models.VerificationResult, error) {
	if attemptID != "7" {
		return nil, services.ErrResultNotFound
	}
	return &models.VerificationResult{AttemptID: "7", PotID: "42", Success: true}, nil
}

type fakeExpirer struct {
	potID, actor string
}

func (f *fakeExpirer) Expire(_ context.Context, potID, actor string) error {
	f.potID, f.actor = potID, actor
	return nil
}

func newAttemptApp(a *fakeAttempts, p *fakeExpirer) *fiber.App {
	app := fiber.New()
	h := NewAttemptHandler(a, p, zap.NewNop())
	// stands in for AuthMiddleware
	asBridge := func(c *fiber.Ctx) error {
		c.Locals(middleware.CtxSubject, "ledger-bridge")
		return c.Next()
	}
	app.Post("/api/attempt", asBridge, h.RecordAttempt)
	app.Get("/api/attempt/:id/result", asBridge, h.GetResult)
	app.Post("/api/pots/expire", asBridge, h.ExpirePot)
	return app
}

func TestRecordAttemptHandler(t *testing.T) {
	a := &fakeAttempts{}
	app := newAttemptApp(a, &fakeExpirer{})

	status, body := post(t, app, "/api/attempt", `{"attempt_id":7,"pot_id":"42","difficulty":5,"hunter":"0xabc"}`)
	if status != 200 {
		t.Fatalf("status = %d: %v", status, body)
	}
	want := services.RecordAttemptRequest{AttemptID: "7", PotID: "42", Difficulty: 5, Hunter: "0xabc", Actor: "ledger-bridge"}
	if a.recorded != want {
		t.Errorf("recorded = %+v", a.recorded)
	}

	dup := newAttemptApp(&fakeAttempts{err: services.ErrAttemptExists}, &fakeExpirer{})
	if status, _ := post(t, dup, "/api/attempt", `{"attempt_id":7,"pot_id":42}`); status != 409 {
		t.Errorf("duplicate: status = %d", status)
	}

	if status, _ := post(t, app, "/api/attempt", `{"attempt_id":-7,"pot_id":42}`); status != 400 {
		t.Errorf("negative id: status = %d", status)
	}
}

func TestGetResultHandler(t *testing.T) {
	app := newAttemptApp(&fakeAttempts{}, &fakeExpirer{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/attempt/7/result", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, raw)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/attempt/8/result", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("missing result: status = %d", resp.StatusCode)
	}
}

func TestExpirePotHandler(t *testing.T) {
	p := &fakeExpirer{}
	app := newAttemptApp(&fakeAttempts{}, p)

	if status, body := post(t, app, "/api/pots/expire", `{"pot_id":42}`); status != 200 {
		t.Fatalf("status = %d: %v", status, body)
	}
	if p.potID != "42" || p.actor != "ledger-bridge" {
		t.Errorf("expired %q by %q", p.potID, p.actor)
	}

	if status, _ := post(t, app, "/api/pots/expire", `{}`); status != 400 {
		t.Errorf("missing pot: status = %d", status)
	}
}

func TestMetaHandler(t *testing.T) {
	app := fiber.New()
	app.Get("/meta", NewMetaHandler(10, 12, models.ChainAptos).GetMeta)

	resp, err := app.Test(httptest.NewRequest("GET", "/meta", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestWSHubDispatchWithoutWatchers(t *testing.T) {
	hub := NewWSHub(nil, nil, zap.NewNop())
	hub.Dispatch(events.Event{
		Type:    events.EventAttemptVerified,
		Payload: map[string]any{"attempt_id": "7", "outcome_token": "tok"},
	})
	if hub.Watchers("7") != 0 {
		t.Fatal("no one is watching")
	}
}
