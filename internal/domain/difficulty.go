package domain

import "strings"

// Difficulty is the tier of a room. The tier fixes the deck size.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists every tier in ascending order.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// CardCount returns the deck size for the tier: easy=12, medium=20, hard=30.
// Clients lay out their grids from this mapping, so it must not change.
func (d Difficulty) CardCount() int {
	switch d {
	case Easy:
		return 12
	case Medium:
		return 20
	case Hard:
		return 30
	default:
		return 0
	}
}

// Pairs is CardCount/2.
func (d Difficulty) Pairs() int { return d.CardCount() / 2 }

func (d Difficulty) Valid() bool { return d.CardCount() > 0 }

// Order is the position of the tier in Difficulties, -1 when unknown.
func (d Difficulty) Order() int {
	for i, v := range Difficulties {
		if v == d {
			return i
		}
	}
	return -1
}

// ParseDifficulty accepts the tier name case-insensitively. An empty string
// parses to "" with ok=true, meaning "any tier".
func ParseDifficulty(s string) (Difficulty, bool) {
	v := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return "", true
	}
	if !v.Valid() {
		return "", false
	}
	return v, true
}
