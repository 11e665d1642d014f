package session

import (
	"math/rand/v2"
	"slices"

	"github.com/moneypot/verifier/internal/models"
)

// Strategy picks a move for one round.
type Strategy func(round models.Challenge) models.Direction

// KnownSecret answers like a hunter who knows the secret and the legend:
// find the color group holding the secret and map it. Skip when it is absent.
func KnownSecret(secret string, legend models.Legend) Strategy {
	return func(round models.Challenge) models.Direction {
		for color, chars := range round.ColorGroups {
			if slices.Contains(chars, secret) {
				if d, ok := legend[color]; ok {
					return d
				}
			}
		}
		return models.DirSkip
	}
}

// Guess picks any of the five moves uniformly.
func Guess() Strategy {
	moves := append(append([]models.Direction{}, models.Directions...), models.DirSkip)
	return func(models.Challenge) models.Direction {
		return moves[rand.IntN(len(moves))]
	}
}
