package onep

import (
	"errors"
	"fmt"

	"github.com/moneypot/verifier/internal/models"
)

var (
	ErrSecretNotInGrid = errors.New("onep: secret character not found in grid")
	ErrSecretRepeated  = errors.New("onep: secret character appears more than once")
)

// ExpectedDirection locates the secret in the round and maps its color through the legend.
func ExpectedDirection(round models.Challenge, secret string, legend models.Legend) (models.Direction, error) {
	var (
		found bool
		color models.Color
	)
	for _, cell := range round.Grid {
		if cell.Char != secret {
			continue
		}
		if found {
			return "", ErrSecretRepeated
		}
		found = true
		color = cell.Color
	}
	if !found {
		return "", ErrSecretNotInGrid
	}
	d, ok := legend[color]
	if !ok || !d.Mappable() {
		return "", fmt.Errorf("onep: legend has no direction for color %q", color)
	}
	return d, nil
}

// ExpectedDirections returns the answer key for all rounds.
func ExpectedDirections(rounds []models.Challenge, secret string, legend models.Legend) ([]models.Direction, error) {
	out := make([]models.Direction, len(rounds))
	for i, r := range rounds {
		d, err := ExpectedDirection(r, secret, legend)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

// Score reports whether solutions answer every round correctly. A length
// mismatch, an unparseable move or a Skip all count as failure.
func Score(rounds []models.Challenge, secret string, legend models.Legend, solutions []string) (bool, error) {
	expected, err := ExpectedDirections(rounds, secret, legend)
	if err != nil {
		return false, err
	}
	if len(solutions) != len(expected) {
		return false, nil
	}
	ok := true
	for i, s := range solutions {
		d, err := models.ParseDirection(s)
		if err != nil || d == models.DirSkip || d != expected[i] {
			ok = false
		}
	}
	return ok, nil
}
