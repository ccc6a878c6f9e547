package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Suit is one of the four Spanish suits.
type Suit string

const (
	Oros    Suit = "oros"
	Copas   Suit = "copas"
	Espadas Suit = "espadas"
	Bastos  Suit = "bastos"
)

// Suits lists the suits in canonical deck order.
var Suits = []Suit{Oros, Copas, Espadas, Bastos}

// Valid reports whether s is one of the four suits.
func (s Suit) Valid() bool {
	switch s {
	case Oros, Copas, Espadas, Bastos:
		return true
	}
	return false
}

// Rank is the face number printed on a Spanish card (8 and 9 are not in the deck).
type Rank int

const (
	Ace    Rank = 1
	Two    Rank = 2
	Three  Rank = 3
	Four   Rank = 4
	Five   Rank = 5
	Six    Rank = 6
	Seven  Rank = 7
	Jack   Rank = 10 // sota
	Knight Rank = 11 // caballo
	King   Rank = 12 // rey
)

// Ranks lists the ranks in ascending face order.
var Ranks = []Rank{Ace, Two, Three, Four, Five, Six, Seven, Jack, Knight, King}

// strengthOrder is weakest to strongest within a suit. Ace and three outrank the figures.
var strengthOrder = []Rank{Two, Four, Five, Six, Seven, Jack, Knight, King, Three, Ace}

var strengthIndex = func() map[Rank]int {
	m := make(map[Rank]int, len(strengthOrder))
	for i, r := range strengthOrder {
		m[r] = i
	}
	return m
}()

// Valid reports whether r is a rank present in the 40-card deck.
func (r Rank) Valid() bool {
	_, ok := strengthIndex[r]
	return ok
}

// Strength returns the rank's trick-taking strength, 0 (two) through 9 (ace).
func (r Rank) Strength() int {
	if s, ok := strengthIndex[r]; ok {
		return s
	}
	return -1
}

// Points returns the card-point value of the rank.
func (r Rank) Points() int {
	switch r {
	case Ace:
		return 11
	case Three:
		return 10
	case King:
		return 4
	case Knight:
		return 3
	case Jack:
		return 2
	default:
		return 0
	}
}

// Card is a single immutable card of the Spanish deck.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// ID returns the stable identity string "suit-rank", e.g. "oros-12".
func (c Card) ID() string {
	return string(c.Suit) + "-" + strconv.Itoa(int(c.Rank))
}

func (c Card) String() string { return c.ID() }

// Points returns the card-point value of the card.
func (c Card) Points() int { return c.Rank.Points() }

// Strength returns the in-suit strength of the card.
func (c Card) Strength() int { return c.Rank.Strength() }

// ParseCard converts an identity string back into a Card.
func ParseCard(id string) (Card, error) {
	suit, rank, ok := strings.Cut(id, "-")
	if !ok {
		return Card{}, fmt.Errorf("malformed card id %q", id)
	}
	n, err := strconv.Atoi(rank)
	if err != nil {
		return Card{}, fmt.Errorf("malformed card rank in %q: %w", id, err)
	}
	c := Card{Suit: Suit(suit), Rank: Rank(n)}
	if !c.Suit.Valid() || !c.Rank.Valid() {
		return Card{}, fmt.Errorf("unknown card %q", id)
	}
	return c, nil
}

// MustParseCard is ParseCard for literals in tests and fixtures.
func MustParseCard(id string) Card {
	c, err := ParseCard(id)
	if err != nil {
		panic(err)
	}
	return c
}

// CardIDs maps cards to their identity strings.
func CardIDs(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID()
	}
	return out
}
