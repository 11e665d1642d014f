package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/moneypot/verifier/internal/http/dto"
	"github.com/moneypot/verifier/internal/models"
)

type MetaHandler struct {
	gridSize      int
	maxDifficulty int
	defaultChain  string
}

func NewMetaHandler(gridSize, maxDifficulty int, defaultChain string) *MetaHandler {
	return &MetaHandler{gridSize: gridSize, maxDifficulty: maxDifficulty, defaultChain: defaultChain}
}

type MetaResponse struct {
	dto.Vocabulary
	Chains            []string `json:"chains"`
	DefaultChain      string   `json:"default_chain"`
	SecretAlphabet    string   `json:"secret_alphabet"`
	GridSize          int      `json:"grid_size"`
	DefaultDifficulty int      `json:"default_difficulty"`
	MaxDifficulty     int      `json:"max_difficulty"`
}

// GetMeta returns the fixed protocol vocabulary.
// GET /meta
func (h *MetaHandler) GetMeta(c *fiber.Ctx) error {
	return c.JSON(MetaResponse{
		Vocabulary:        dto.NewVocabulary(),
		Chains:            []string{models.ChainAptos, models.ChainEVM},
		DefaultChain:      h.defaultChain,
		SecretAlphabet:    models.SecretAlphabet,
		GridSize:          h.gridSize,
		DefaultDifficulty: models.DefaultDifficulty,
		MaxDifficulty:     h.maxDifficulty,
	})
}

func (h *MetaHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
