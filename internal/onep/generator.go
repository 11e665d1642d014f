// Package onep implements the 1P challenge scheme: randomized colored grids
// that hide the pot secret, and scoring of a hunter's direction answers
// against the creator's color legend.
package onep

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/moneypot/verifier/internal/models"
)

// DefaultGridSize lays out as 5x5.
const DefaultGridSize = 25

var ErrGridTooSmall = errors.New("onep: grid must have at least one cell")

// Generator derives challenge rounds. Safe for concurrent use.
type Generator struct {
	gridSize int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator seeded from crypto/rand.
func NewGenerator(gridSize int) *Generator {
	var seed [32]byte
	_, _ = crand.Read(seed[:])
	return NewSeededGenerator(gridSize, seed)
}

// NewSeededGenerator returns a deterministic generator, for tests and replays.
func NewSeededGenerator(gridSize int, seed [32]byte) *Generator {
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}
	return &Generator{
		gridSize: gridSize,
		rng:      rand.New(rand.NewChaCha8(seed)),
	}
}

func (g *Generator) GridSize() int { return g.gridSize }

// Rounds generates n independent rounds for secret.
func (g *Generator) Rounds(secret string, n int) ([]models.Challenge, error) {
	if n < 1 {
		return nil, fmt.Errorf("onep: difficulty must be >= 1, got %d", n)
	}
	rounds := make([]models.Challenge, 0, n)
	for i := 0; i < n; i++ {
		r, err := g.Round(secret)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, nil
}

// Round fills a grid with random characters other than the secret, then
// places the secret in one random cell with an independently drawn color.
func (g *Generator) Round(secret string) (models.Challenge, error) {
	secret, err := models.NormalizeSecret(secret)
	if err != nil {
		return models.Challenge{}, err
	}
	filler := strings.ReplaceAll(models.SecretAlphabet, secret, "")

	g.mu.Lock()
	defer g.mu.Unlock()

	grid := make([]models.Cell, g.gridSize)
	for i := range grid {
		grid[i] = models.Cell{
			ID:    i,
			Char:  string(filler[g.rng.IntN(len(filler))]),
			Color: models.Colors[g.rng.IntN(len(models.Colors))],
		}
	}

	pos := g.rng.IntN(g.gridSize)
	grid[pos] = models.Cell{
		ID:    pos,
		Char:  secret,
		Color: models.Colors[g.rng.IntN(len(models.Colors))],
	}

	return models.Challenge{
		TargetChar:  secret,
		Grid:        grid,
		ColorGroups: colorGroups(grid),
	}, nil
}

func colorGroups(grid []models.Cell) map[models.Color][]string {
	groups := make(map[models.Color][]string, len(models.Colors))
	for _, c := range models.Colors {
		groups[c] = []string{}
	}
	for _, cell := range grid {
		groups[cell.Color] = append(groups[cell.Color], cell.Char)
	}
	return groups
}
