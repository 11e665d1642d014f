package models

import (
	"fmt"
	"strings"
	"time"
)

type Color string

const (
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorYellow Color = "yellow"
)

// Colors is the fixed four-color palette, in display order.
var Colors = []Color{ColorRed, ColorGreen, ColorBlue, ColorYellow}

func (c Color) Valid() bool {
	switch c {
	case ColorRed, ColorGreen, ColorBlue, ColorYellow:
		return true
	}
	return false
}

func (c *Color) UnmarshalText(b []byte) error {
	*c = Color(strings.ToLower(strings.TrimSpace(string(b))))
	return nil
}

// Direction is a hunter move. The wire form is a single letter.
type Direction string

const (
	DirUp    Direction = "U"
	DirDown  Direction = "D"
	DirLeft  Direction = "L"
	DirRight Direction = "R"
	DirSkip  Direction = "S"
)

// Directions are the four mappable directions. Skip is a move, never a legend value.
var Directions = []Direction{DirUp, DirDown, DirLeft, DirRight}

var directionNames = map[Direction]string{
	DirUp:    "Up",
	DirDown:  "Down",
	DirLeft:  "Left",
	DirRight: "Right",
	DirSkip:  "Skip",
}

// ParseDirection accepts the compact (U/D/L/R/S) and long (Up/Down/Left/Right/Skip)
// encodings, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u", "up":
		return DirUp, nil
	case "d", "down":
		return DirDown, nil
	case "l", "left":
		return DirLeft, nil
	case "r", "right":
		return DirRight, nil
	case "s", "skip":
		return DirSkip, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

func (d Direction) Name() string {
	return directionNames[d]
}

func (d Direction) Mappable() bool {
	switch d {
	case DirUp, DirDown, DirLeft, DirRight:
		return true
	}
	return false
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Legend maps each palette color to the direction a hunter must answer
// when the secret shows up in that color.
type Legend map[Color]Direction

// Validate checks that the legend is a complete bijection between Colors and Directions.
func (l Legend) Validate() error {
	if len(l) != len(Colors) {
		return fmt.Errorf("legend must map exactly %d colors, got %d", len(Colors), len(l))
	}
	seen := make(map[Direction]Color, len(Directions))
	for _, c := range Colors {
		d, ok := l[c]
		if !ok {
			return fmt.Errorf("legend is missing color %q", c)
		}
		if !d.Mappable() {
			return fmt.Errorf("color %q maps to %q, which is not a direction", c, d)
		}
		if prev, dup := seen[d]; dup {
			return fmt.Errorf("direction %s is assigned to both %q and %q", d.Name(), prev, c)
		}
		seen[d] = c
	}
	return nil
}

// ColorFor returns the color mapped to d.
func (l Legend) ColorFor(d Direction) (Color, bool) {
	for c, v := range l {
		if v == d {
			return c, true
		}
	}
	return "", false
}

// SecretAlphabet is the fixed domain of secret characters and grid fillers.
const SecretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NormalizeSecret upper-cases s and checks it is a single character of SecretAlphabet.
func NormalizeSecret(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len([]rune(s)) != 1 {
		return "", fmt.Errorf("secret must be exactly one character, got %d", len([]rune(s)))
	}
	if !strings.Contains(SecretAlphabet, s) {
		return "", fmt.Errorf("secret %q is outside the allowed alphabet", s)
	}
	return s, nil
}

// Supported chains.
const (
	ChainAptos = "aptos"
	ChainEVM   = "evm"
)

// PotSecret is the committed 1P secret of a pot. Registering again overwrites it.
type PotSecret struct {
	PotID            string    `json:"pot_id"`
	Chain            string    `json:"chain"`
	SecretCharacter  string    `json:"-"`
	Legend           Legend    `json:"-"`
	CreatorPrincipal string    `json:"creator_principal"`
	RegisteredAt     time.Time `json:"registered_at"`
	ExpiresHint      time.Time `json:"expires_hint"` // payload exp, informational
}

// Pot is the verifier's view of the on-chain pot, fed by ledger events.
type Pot struct {
	PotID        string     `json:"pot_id"`
	Creator      string     `json:"creator"`
	OneFAAddress string     `json:"one_fa_address,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Live reports whether challenges may still be issued for the pot at now.
func (p *Pot) Live(now time.Time) bool {
	if !p.Active {
		return false
	}
	return p.ExpiresAt == nil || now.Before(*p.ExpiresAt)
}

// ParseLegend reads "red=U,green=D,blue=L,yellow=R" and validates the result.
func ParseLegend(s string) (Legend, error) {
	l := make(Legend, len(Colors))
	for _, part := range strings.Split(s, ",") {
		color, dir, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("legend entry %q is not color=direction", part)
		}
		d, err := ParseDirection(dir)
		if err != nil {
			return nil, err
		}
		l[Color(strings.ToLower(strings.TrimSpace(color)))] = d
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}
