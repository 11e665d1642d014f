package dto

import (
	"time"

	"github.com/moneypot/verifier/internal/models"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// Vocabulary is echoed to clients so they can render the legend picker and move buttons.
type Vocabulary struct {
	Colors     []models.Color              `json:"colors"`
	Directions map[models.Direction]string `json:"directions"`
}

func NewVocabulary() Vocabulary {
	dirs := make(map[models.Direction]string, len(models.Directions)+1)
	for _, d := range append(append([]models.Direction{}, models.Directions...), models.DirSkip) {
		dirs[d] = d.Name()
	}
	return Vocabulary{Colors: models.Colors, Directions: dirs}
}

type RegisterOptionsResponse struct {
	KeyID     string `json:"key_id"`
	PublicKey string `json:"public_key"`
	Vocabulary
}

type RegisterVerifyResponse struct {
	Success bool   `json:"success"`
	PotID   string `json:"pot_id,omitempty"`
}

type AuthenticateOptionsResponse struct {
	ChallengeID string             `json:"challenge_id"`
	Challenges  []models.Challenge `json:"challenges"`
	ExpiresAt   time.Time          `json:"expires_at"`
	Vocabulary
}

type AuthenticateVerifyResponse struct {
	Success      bool   `json:"success"`
	OutcomeToken string `json:"outcome_token,omitempty"`
}

type RecordAttemptResponse struct {
	Success bool            `json:"success"`
	Attempt *models.Attempt `json:"attempt,omitempty"`
}
