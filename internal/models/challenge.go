package models

import "time"

// Cell is one colored character of a challenge grid.
type Cell struct {
	ID    int    `json:"id"`
	Char  string `json:"char"`
	Color Color  `json:"color"`
}

// Challenge is one round. TargetChar is the pot secret.
type Challenge struct {
	TargetChar  string             `json:"targetChar"`
	Grid        []Cell             `json:"grid"`
	ColorGroups map[Color][]string `json:"colorGroups"`
}

// ChallengeSet is the stored, single-use set of rounds issued for an attempt.
type ChallengeSet struct {
	AttemptID string      `json:"attempt_id"`
	PotID     string      `json:"pot_id"`
	Rounds    []Challenge `json:"rounds"`
	IssuedAt  time.Time   `json:"issued_at"`
	Expiry    time.Time   `json:"expiry"`
}

func (s *ChallengeSet) Expired(now time.Time) bool {
	return !now.Before(s.Expiry)
}
