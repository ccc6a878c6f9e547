package brain

import (
	"tute/internal/domain"
)

// OpponentProfile tracks what a specific seat has revealed about its hand.
type OpponentProfile struct {
	Seat int
	// Voids lists the suits the seat is known to hold none of.
	Voids map[domain.Suit]bool
	// Ceilings maps a suit to the strength the seat could not overtake: it
	// holds no card of that suit stronger than the value.
	Ceilings map[domain.Suit]int
}

// NewOpponentProfile initializes a profile for a specific seat.
func NewOpponentProfile(seat int) *OpponentProfile {
	return &OpponentProfile{
		Seat:     seat,
		Voids:    make(map[domain.Suit]bool),
		Ceilings: make(map[domain.Suit]int),
	}
}

// RecordVoid notes that the seat showed out of suit.
func (p *OpponentProfile) RecordVoid(suit domain.Suit) {
	p.Voids[suit] = true
}

// RecordCeiling notes that the seat could not beat a card of the given strength.
func (p *OpponentProfile) RecordCeiling(suit domain.Suit, strength int) {
	current, ok := p.Ceilings[suit]
	if !ok || strength < current {
		p.Ceilings[suit] = strength
	}
}

// CanHold returns true if we have no evidence that the seat lacks c.
func (p *OpponentProfile) CanHold(c domain.Card) bool {
	if p.Voids[c.Suit] {
		return false
	}
	if ceiling, ok := p.Ceilings[c.Suit]; ok && c.Strength() > ceiling {
		return false
	}
	return true
}
