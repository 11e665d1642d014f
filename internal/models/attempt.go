package models

import "time"

// DefaultDifficulty is used when the ledger does not report one.
const DefaultDifficulty = 3

// Attempt is one hunter's paid try at a pot. The attempt id is minted by the ledger.
type Attempt struct {
	AttemptID          string     `json:"attempt_id"`
	PotID              string     `json:"pot_id"`
	HunterPrincipal    string     `json:"hunter_principal,omitempty"`
	Difficulty         int        `json:"difficulty"`
	ChallengesIssuedAt *time.Time `json:"challenges_issued_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Terminal reports whether a verification outcome has been recorded.
func (a *Attempt) Terminal() bool {
	return a.CompletedAt != nil
}

type VerificationResult struct {
	AttemptID  string    `json:"attempt_id"`
	PotID      string    `json:"pot_id"`
	Success    bool      `json:"success"`
	VerifiedAt time.Time `json:"verified_at"`
}
