package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/http/dto"
	"github.com/moneypot/verifier/internal/keyexchange"
	"github.com/moneypot/verifier/internal/middleware"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/services"
)

type fakeRegistrar struct {
	got services.RegisterRequest
	err error
}

func (f *fakeRegistrar) IssueKey(context.Context) (*keyexchange.Key, error) {
	return &keyexchange.Key{KeyID: "k1", PublicKey: "-----BEGIN PUBLIC KEY-----"}, nil
}

func (f *fakeRegistrar) Register(_ context.Context, req services.RegisterRequest) (*models.PotSecret, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.PotSecret{PotID: "42"}, nil
}

type fakeChallenger struct {
	issued    services.IssueRequest
	solutions []string
	err       error
}

func (f *fakeChallenger) Issue(_ context.Context, req services.IssueRequest) (*models.ChallengeSet, error) {
	f.issued = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.ChallengeSet{
		AttemptID: req.AttemptID,
		PotID:     "42",
		Rounds:    []models.Challenge{{TargetChar: "Q"}, {TargetChar: "Q"}, {TargetChar: "Q"}},
		Expiry:    time.Unix(1_750_000_300, 0),
	}, nil
}

func (f *fakeChallenger) Verify(_ context.Context, attemptID string, solutions []string) (*services.Verdict, error) {
	f.solutions = solutions
	if f.err != nil {
		return nil, f.err
	}
	return &services.Verdict{AttemptID: attemptID, Success: true, Token: "tok"}, nil
}

func newTestApp(reg *fakeRegistrar, ch *fakeChallenger) *fiber.App {
	app := fiber.New()
	log := zap.NewNop()
	rh := NewRegisterHandler(reg, log)
	ah := NewAuthenticateHandler(ch, log)

	for prefix, chain := range map[string]string{"": "", "/evm": models.ChainEVM} {
		mw := middleware.ChainMiddleware(chain, models.ChainAptos)
		app.Post(prefix+"/register/options", mw, rh.Options)
		app.Post(prefix+"/register/verify", mw, rh.Verify)
		app.Post(prefix+"/authenticate/options", mw, ah.Options)
		app.Post(prefix+"/authenticate/verify", mw, ah.Verify)
	}
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestRegisterOptions(t *testing.T) {
	app := newTestApp(&fakeRegistrar{}, &fakeChallenger{})

	status, body := post(t, app, "/register/options", "")
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	if body["key_id"] != "k1" {
		t.Errorf("key_id = %v", body["key_id"])
	}
	colors, _ := body["colors"].([]any)
	if len(colors) != 4 {
		t.Errorf("colors = %v", body["colors"])
	}
}

func TestRegisterVerify(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      string
		err       error
		status    int
		wantChain string
	}{
		{"ok default chain", "/register/verify", `{"key_id":"k1","encrypted_payload":"ab","signature":"00"}`, nil, 200, models.ChainAptos},
		{"ok evm prefix", "/evm/register/verify", `{"public_key":"pk","encrypted_payload":"ab","signature":"00"}`, nil, 200, models.ChainEVM},
		{"plain payload", "/register/verify", `{"key_id":"k1","payload":{"pot_id":"42"},"signature":"00"}`, nil, 400, ""},
		{"no key", "/register/verify", `{"encrypted_payload":"ab"}`, nil, 400, ""},
		{"expired", "/register/verify", `{"key_id":"k1","encrypted_payload":"ab"}`, services.ErrExpiredPayload, 400, models.ChainAptos},
		{"bad signature", "/register/verify", `{"key_id":"k1","encrypted_payload":"ab"}`, fmt.Errorf("%w: nope", services.ErrInvalidSignature), 401, models.ChainAptos},
		{"store down", "/register/verify", `{"key_id":"k1","encrypted_payload":"ab"}`, errors.New("connection refused"), 500, models.ChainAptos},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistrar{err: tt.err}
			app := newTestApp(reg, &fakeChallenger{})

			status, body := post(t, app, tt.path, tt.body)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", status, tt.status, body)
			}
			if tt.wantChain != "" && reg.got.Chain != tt.wantChain {
				t.Errorf("chain = %q, want %q", reg.got.Chain, tt.wantChain)
			}
			if status == 200 && body["success"] != true {
				t.Errorf("body = %v", body)
			}
			if status == 500 && body["error"] != "internal error" {
				t.Errorf("server errors must not leak: %v", body)
			}
		})
	}
}

func TestAuthenticateOptions(t *testing.T) {
	ch := &fakeChallenger{}
	app := newTestApp(&fakeRegistrar{}, ch)

	status, body := post(t, app, "/authenticate/options", `{"payload":{"attempt_id":99},"public_key":"0xabc"}`)
	if status != 200 {
		t.Fatalf("status = %d: %v", status, body)
	}
	if ch.issued.AttemptID != "99" || ch.issued.Hunter != "" || ch.issued.PublicKey != "0xabc" {
		t.Errorf("issued = %+v", ch.issued)
	}
	if body["challenge_id"] != "99" {
		t.Errorf("challenge_id = %v", body["challenge_id"])
	}
	rounds, _ := body["challenges"].([]any)
	if len(rounds) != 3 {
		t.Errorf("challenges = %v", body["challenges"])
	}

	status, _ = post(t, app, "/authenticate/options", `{}`)
	if status != 400 {
		t.Errorf("missing attempt: status = %d", status)
	}
}

func TestAuthenticateOptionsAttemptIDAsPublicKey(t *testing.T) {
	ch := &fakeChallenger{}
	app := newTestApp(&fakeRegistrar{}, ch)

	status, body := post(t, app, "/evm/authenticate/options", `{"payload":{"attempt_id":"99"},"public_key":"99"}`)
	if status != 200 {
		t.Fatalf("status = %d: %v", status, body)
	}
	if ch.issued.Hunter != "" || ch.issued.PublicKey != "99" || ch.issued.Chain != "evm" {
		t.Errorf("issued = %+v", ch.issued)
	}
}

func TestAuthenticateOptionsErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{services.ErrAttemptNotFound, 404},
		{services.ErrPotNotRegistered, 404},
		{services.ErrExpiredOrMissing, 409},
		{services.ErrPotInactive, 409},
		{services.ErrHunterMismatch, 403},
	}
	for _, tt := range tests {
		app := newTestApp(&fakeRegistrar{}, &fakeChallenger{err: tt.err})
		status, body := post(t, app, "/authenticate/options", `{"attempt_id":"1"}`)
		if status != tt.status {
			t.Errorf("%v: status = %d, want %d", tt.err, status, tt.status)
		}
		if body["error"] != tt.err.Error() {
			t.Errorf("%v: error = %v", tt.err, body["error"])
		}
	}
}

func TestAuthenticateVerify(t *testing.T) {
	ch := &fakeChallenger{}
	app := newTestApp(&fakeRegistrar{}, ch)

	status, body := post(t, app, "/evm/authenticate/verify",
		`{"attempt_id":"99","wallet":"0x1","solutions":[{"challenge_id":"99","answer":"U"},{"challenge_id":"99","answer":"L"}]}`)
	if status != 200 {
		t.Fatalf("status = %d: %v", status, body)
	}
	if len(ch.solutions) != 2 || ch.solutions[0] != "U" || ch.solutions[1] != "L" {
		t.Errorf("solutions = %v", ch.solutions)
	}
	if body["success"] != true || body["outcome_token"] != "tok" {
		t.Errorf("body = %v", body)
	}

	expired := newTestApp(&fakeRegistrar{}, &fakeChallenger{err: services.ErrChallengeExpired})
	status, _ = post(t, expired, "/authenticate/verify", `{"challenge_id":"99","solutions":["U"]}`)
	if status != 410 {
		t.Errorf("expired: status = %d", status)
	}
}

func TestStatusFor(t *testing.T) {
	if got := StatusFor(fmt.Errorf("wrapped: %w", services.ErrAlreadyVerified)); got != 409 {
		t.Errorf("AlreadyVerified = %d", got)
	}
	if got := StatusFor(errors.New("boom")); got != 500 {
		t.Errorf("unknown = %d", got)
	}
}

func TestVocabularyDirections(t *testing.T) {
	v := dto.NewVocabulary()
	if v.Directions[models.DirSkip] != "Skip" || len(v.Directions) != 5 {
		t.Errorf("directions = %v", v.Directions)
	}
}
