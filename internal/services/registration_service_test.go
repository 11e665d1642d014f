package services

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moneypot/verifier/internal/events"
	"github.com/moneypot/verifier/internal/keyexchange"
	"github.com/moneypot/verifier/internal/models"
)

func TestRegisterStoresSecret(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := h.sealAndSign(t, h.payload("42", "q", testLegend, h.now, h.now.Add(time.Hour)))
	ps, err := h.reg.Register(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "Q", ps.SecretCharacter, "secrets are upper-cased")

	stored, err := h.secrets.GetSecret(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, h.creator, stored.CreatorPrincipal)
	require.Equal(t, testLegend, stored.Legend)
	require.Equal(t, models.ChainAptos, stored.Chain)

	require.Len(t, h.audit.entries, 1)
	require.Len(t, h.pub.ofType(events.EventPotRegistered), 1)
}

func TestRegisterByPublicKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	key, err := h.reg.IssueKey(ctx)
	require.NoError(t, err)
	env, err := keyexchange.Seal(key.PublicKey, h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour)))
	require.NoError(t, err)

	_, err = h.reg.Register(ctx, RegisterRequest{
		Chain:            models.ChainAptos,
		PublicKey:        key.PublicKey,
		EncryptedPayload: env,
		Signature:        hex.EncodeToString(ed25519.Sign(h.creatorPriv, []byte(env))),
		SignerPublicKey:  hex.EncodeToString(h.creatorPub),
	})
	require.NoError(t, err)
}

func TestRegisterOverwrites(t *testing.T) {
	h := newHarness(t)
	h.registerPot(t, "42", "Q", testLegend)
	h.registerPot(t, "42", "Z", testLegend)

	s, err := h.secrets.GetSecret(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "Z", s.SecretCharacter)
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()

	badLegend := models.Legend{
		models.ColorRed:    models.DirUp,
		models.ColorGreen:  models.DirUp,
		models.ColorBlue:   models.DirLeft,
		models.ColorYellow: models.DirRight,
	}

	tests := []struct {
		name  string
		build func(t *testing.T, h *harness) RegisterRequest
		want  error
	}{
		{
			name: "expired",
			build: func(t *testing.T, h *harness) RegisterRequest {
				return h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now.Add(-2*time.Hour), h.now.Add(-time.Hour)))
			},
			want: ErrExpiredPayload,
		},
		{
			name: "exp equals now",
			build: func(t *testing.T, h *harness) RegisterRequest {
				return h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now.Add(-time.Hour), h.now))
			},
			want: ErrExpiredPayload,
		},
		{
			name: "issued in the future",
			build: func(t *testing.T, h *harness) RegisterRequest {
				return h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now.Add(10*time.Minute), h.now.Add(time.Hour)))
			},
			want: ErrInvalidPayload,
		},
		{
			name: "window too long",
			build: func(t *testing.T, h *harness) RegisterRequest {
				return h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now, h.now.Add(48*time.Hour)))
			},
			want: ErrInvalidPayload,
		},
		{
			name: "legend not a bijection",
			build: func(t *testing.T, h *harness) RegisterRequest {
				return h.sealAndSign(t, h.payload("42", "Q", badLegend, h.now, h.now.Add(time.Hour)))
			},
			want: ErrInvalidPayload,
		},
		{
			name: "secret outside alphabet",
			build: func(t *testing.T, h *harness) RegisterRequest {
				return h.sealAndSign(t, h.payload("42", "QQ", testLegend, h.now, h.now.Add(time.Hour)))
			},
			want: ErrInvalidPayload,
		},
		{
			name: "not json",
			build: func(t *testing.T, h *harness) RegisterRequest {
				return h.sealAndSign(t, []byte("definitely not json"))
			},
			want: ErrInvalidPayload,
		},
		{
			name: "plain hex payload",
			build: func(t *testing.T, h *harness) RegisterRequest {
				req := h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour)))
				req.EncryptedPayload = hex.EncodeToString(h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour)))
				req.Signature = hex.EncodeToString(ed25519.Sign(h.creatorPriv, []byte(req.EncryptedPayload)))
				return req
			},
			want: ErrInvalidPayload,
		},
		{
			name: "signed by someone else",
			build: func(t *testing.T, h *harness) RegisterRequest {
				req := h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour)))
				pub, priv, _ := ed25519.GenerateKey(rand.Reader)
				req.Signature = hex.EncodeToString(ed25519.Sign(priv, []byte(req.EncryptedPayload)))
				req.SignerPublicKey = hex.EncodeToString(pub)
				return req
			},
			want: ErrInvalidSignature,
		},
		{
			name: "missing signature",
			build: func(t *testing.T, h *harness) RegisterRequest {
				req := h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour)))
				req.Signature = ""
				return req
			},
			want: ErrInvalidSignature,
		},
		{
			name: "unknown key",
			build: func(t *testing.T, h *harness) RegisterRequest {
				req := h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour)))
				req.KeyID = "does-not-exist"
				return req
			},
			want: ErrUnknownKey,
		},
		{
			name: "issuer is not the creator the ledger knows",
			build: func(t *testing.T, h *harness) RegisterRequest {
				_ = h.pots.UpsertPot(context.Background(), &models.Pot{PotID: "42", Creator: "0xabc"})
				return h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour)))
			},
			want: ErrIssuerMismatch,
		},
		{
			name: "unsupported chain",
			build: func(t *testing.T, h *harness) RegisterRequest {
				req := h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour)))
				req.Chain = "ton"
				return req
			},
			want: ErrUnsupportedChain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.reg.Register(ctx, tt.build(t, h))
			require.ErrorIs(t, err, tt.want)

			_, err = h.secrets.GetSecret(ctx, "42")
			require.Error(t, err, "nothing may be stored on failure")
		})
	}
}

func TestRegisterKeyIsSingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour)))
	_, err := h.reg.Register(ctx, req)
	require.NoError(t, err)

	_, err = h.reg.Register(ctx, req)
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestRegisterBadSignatureSpendsKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	payload := h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour))

	req := h.sealAndSign(t, payload)
	good := req.Signature
	req.Signature = hex.EncodeToString(ed25519.Sign(h.creatorPriv, []byte("something else")))
	_, err := h.reg.Register(ctx, req)
	require.ErrorIs(t, err, ErrInvalidSignature)

	req.Signature = good
	_, err = h.reg.Register(ctx, req)
	require.ErrorIs(t, err, ErrUnknownKey, "a rejected request still spends its key")

	_, err = h.reg.Register(ctx, h.sealAndSign(t, payload))
	require.NoError(t, err)
}

func TestRegisterAcceptsKnownOneFAAddress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.pots.UpsertPot(ctx, &models.Pot{PotID: "42", Creator: "0xabc", OneFAAddress: h.creator}))
	req := h.sealAndSign(t, h.payload("42", "Q", testLegend, h.now, h.now.Add(time.Hour)))
	_, err := h.reg.Register(ctx, req)
	require.NoError(t, err)
}
