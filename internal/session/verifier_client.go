package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/http/dto"
	"github.com/moneypot/verifier/internal/wallet"
)

// SignFunc signs msg with the hunter's wallet key.
type SignFunc func(msg []byte) (signature, signerPublicKey string, err error)

// APIError is a non-200 answer from the verifier.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("verifier returned %d: %s", e.Status, e.Message)
}

// VerifierClient calls the verifier HTTP API for one chain.
type VerifierClient struct {
	rootURL    string
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger

	// Sign, when set, proves wallet ownership on challenge requests.
	Sign SignFunc
}

func NewVerifierClient(baseURL, chain string, log *zap.Logger) *VerifierClient {
	base := strings.TrimRight(baseURL, "/")
	if chain != "" {
		base += "/" + chain
	}
	return &VerifierClient{
		rootURL: strings.TrimRight(baseURL, "/"),
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

// IsAvailable checks if the verifier answers GET /health.
func (c *VerifierClient) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rootURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *VerifierClient) RegisterOptions(ctx context.Context) (*dto.RegisterOptionsResponse, error) {
	var out dto.RegisterOptionsResponse
	if err := c.post(ctx, "/register/options", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *VerifierClient) RegisterVerify(ctx context.Context, req dto.RegisterVerifyRequest) (*dto.RegisterVerifyResponse, error) {
	var out dto.RegisterVerifyResponse
	if err := c.post(ctx, "/register/verify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *VerifierClient) GetChallenges(ctx context.Context, attemptID, hunter string) (*dto.AuthenticateOptionsResponse, error) {
	body := map[string]any{
		"payload":    map[string]string{"attempt_id": attemptID},
		"public_key": hunter,
	}
	if c.Sign != nil {
		sig, pub, err := c.Sign(wallet.AuthenticateMessage(attemptID))
		if err != nil {
			return nil, fmt.Errorf("sign challenge request: %w", err)
		}
		body["signature"] = sig
		if pub != "" {
			body["signer_public_key"] = pub
		}
	}

	var out dto.AuthenticateOptionsResponse
	if err := c.post(ctx, "/authenticate/options", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *VerifierClient) Verify(ctx context.Context, attemptID string, solutions []string) (*dto.AuthenticateVerifyResponse, error) {
	body := map[string]any{
		"challenge_id": attemptID,
		"solutions":    solutions,
	}
	var out dto.AuthenticateVerifyResponse
	if err := c.post(ctx, "/authenticate/verify", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *VerifierClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("verifier unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode, Message: string(raw)}
		var er dto.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
		}
		c.log.Debug("verifier call failed", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("error", apiErr.Message))
		return apiErr
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
