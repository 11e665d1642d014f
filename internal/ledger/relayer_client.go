package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RelayerClient talks to the transaction relayer that submits attempt_pot
// and attempt_completed on chain.
type RelayerClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

func NewRelayerClient(baseURL, token string, log *zap.Logger) *RelayerClient {
	return &RelayerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type AttemptTicket struct {
	AttemptID  string `json:"attempt_id"`
	PotID      string `json:"pot_id"`
	Difficulty int    `json:"difficulty"`
	TxHash     string `json:"tx_hash,omitempty"`
}

// Outcome is the verifier's verdict as relayed to the chain.
type Outcome struct {
	AttemptID    string `json:"attempt_id"`
	PotID        string `json:"pot_id"`
	Success      bool   `json:"success"`
	OutcomeToken string `json:"outcome_token"`
}

// AttemptPot pays for an attempt on behalf of hunter.
func (c *RelayerClient) AttemptPot(ctx context.Context, potID, hunter string) (*AttemptTicket, error) {
	var ticket AttemptTicket
	err := c.post(ctx, "/attempts", map[string]string{"pot_id": potID, "hunter": hunter}, &ticket)
	if err != nil {
		return nil, err
	}
	if ticket.AttemptID == "" {
		return nil, fmt.Errorf("relayer returned no attempt id")
	}
	return &ticket, nil
}

// RecordAttemptOutcome submits attempt_completed for a verified attempt.
func (c *RelayerClient) RecordAttemptOutcome(ctx context.Context, o Outcome) error {
	return c.post(ctx, "/attempts/"+url.PathEscape(o.AttemptID)+"/outcome", o, nil)
}

func (c *RelayerClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relayer unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("relayer call failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("relayer returned %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// OutcomeFromEvent extracts an Outcome from an attempt_verified payload.
func OutcomeFromEvent(payload map[string]any) (Outcome, bool) {
	var o Outcome
	o.AttemptID, _ = payload["attempt_id"].(string)
	o.PotID, _ = payload["pot_id"].(string)
	o.OutcomeToken, _ = payload["outcome_token"].(string)
	success, ok := payload["success"].(bool)
	o.Success = success
	return o, ok && o.AttemptID != "" && o.OutcomeToken != ""
}
