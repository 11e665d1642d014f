package dto

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/moneypot/verifier/internal/models"
)

type RegisterVerifyRequest struct {
	KeyID            string          `json:"key_id,omitempty"`
	PublicKey        string          `json:"public_key,omitempty"`
	EncryptedPayload string          `json:"encrypted_payload"`
	Payload          json.RawMessage `json:"payload,omitempty"` // plain payloads are refused
	Signature        string          `json:"signature"`
	SignerPublicKey  string          `json:"signer_public_key,omitempty"`
}

// AuthenticateOptionsRequest accepts both client shapes:
// {payload: {attempt_id}, public_key} and {attempt_id, signature}.
type AuthenticateOptionsRequest struct {
	Payload *struct {
		AttemptID models.LedgerID `json:"attempt_id"`
	} `json:"payload,omitempty"`
	AttemptID       models.LedgerID `json:"attempt_id,omitempty"`
	PublicKey       string          `json:"public_key,omitempty"`
	Hunter          string          `json:"hunter,omitempty"`
	Signature       string          `json:"signature,omitempty"`
	SignerPublicKey string          `json:"signer_public_key,omitempty"`
}

func (r *AuthenticateOptionsRequest) Attempt() string {
	if r.AttemptID != "" {
		return string(r.AttemptID)
	}
	if r.Payload != nil {
		return string(r.Payload.AttemptID)
	}
	return ""
}

type AuthenticateVerifyRequest struct {
	ChallengeID models.LedgerID `json:"challenge_id,omitempty"`
	AttemptID   models.LedgerID `json:"attempt_id,omitempty"`
	Solutions   Solutions       `json:"solutions"`
	Wallet      string          `json:"wallet,omitempty"`
}

func (r *AuthenticateVerifyRequest) Attempt() string {
	if r.ChallengeID != "" {
		return string(r.ChallengeID)
	}
	return string(r.AttemptID)
}

// Solutions is an ordered list of moves. Each element is either a move
// string or an object {"challenge_id": ..., "answer": "..."}.
type Solutions []string

func (s *Solutions) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) > 0 && r[0] == '{' {
			var obj struct {
				Answer string `json:"answer"`
			}
			if err := json.Unmarshal(r, &obj); err != nil {
				return err
			}
			out = append(out, obj.Answer)
			continue
		}
		var str string
		if err := json.Unmarshal(r, &str); err != nil {
			return errors.New("solutions must be strings or {answer} objects")
		}
		out = append(out, str)
	}
	*s = out
	return nil
}

type RecordAttemptRequest struct {
	AttemptID  models.LedgerID `json:"attempt_id"`
	PotID      models.LedgerID `json:"pot_id"`
	Difficulty int             `json:"difficulty,omitempty"`
	Hunter     string          `json:"hunter,omitempty"`
	Chain      string          `json:"chain,omitempty"`
}

type ExpirePotRequest struct {
	PotID models.LedgerID `json:"pot_id"`
}
