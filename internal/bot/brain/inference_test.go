package brain

import (
	"testing"

	"tute/internal/domain"
)

func cardsOf(ids ...string) []domain.Card {
	out := make([]domain.Card, len(ids))
	for i, id := range ids {
		out[i] = domain.MustParseCard(id)
	}
	return out
}

var fullHands = [domain.NumSeats]int{10, 10, 10, 10}

func TestEstimator_BeatProbability(t *testing.T) {
	m := Rebuild(0, cardsOf("oros-1"), nil, nil, domain.Bastos)
	e := NewEstimator(m, 0, fullHands)
	ace := domain.MustParseCard("oros-1")

	// Nothing beats the ace of oros but a trump from a seat void in oros.
	p := e.BeatProbability(1, ace, domain.Oros, domain.Bastos)
	if p <= 0 || p >= 0.1 {
		t.Errorf("Expected small non-zero chance to trump the ace, got %f", p)
	}

	m.Opponents[1].RecordVoid(domain.Oros)
	if p := e.BeatProbability(1, ace, domain.Oros, domain.Bastos); p < 0.9 {
		t.Errorf("Seat void in oros with trumps around should likely trump, got %f", p)
	}

	m.MarkPlayed(domain.CardsOfSuit(domain.NewDeck(), domain.Bastos))
	if p := e.BeatProbability(1, ace, domain.Oros, domain.Bastos); p != 0 {
		t.Errorf("No trumps left, expected 0, got %f", p)
	}
}

func TestEstimator_HoldProbability(t *testing.T) {
	m := Rebuild(0, cardsOf("oros-1"), nil, nil, domain.Bastos)
	m.Opponents[3].RecordVoid(domain.Copas)
	e := NewEstimator(m, 0, fullHands)

	c := domain.MustParseCard("copas-1")
	if p := e.HoldProbability(3, c); p != 0 {
		t.Errorf("Void seat holds copas-1 with p=%f", p)
	}
	if p := e.HoldProbability(1, c); p != 0.5 {
		t.Errorf("Expected 0.5 split between seats 1 and 2, got %f", p)
	}
	if p := e.HoldProbability(1, domain.MustParseCard("oros-1")); p != 0 {
		t.Errorf("Own card held elsewhere with p=%f", p)
	}
}

func TestEstimator_WinProbability_LastToPlay(t *testing.T) {
	trick := domain.Trick{
		{Seat: 3, Card: domain.MustParseCard("oros-12")},
		{Seat: 2, Card: domain.MustParseCard("oros-4")},
		{Seat: 1, Card: domain.MustParseCard("oros-3")},
	}
	hand := cardsOf("oros-1", "oros-2")
	m := Rebuild(0, hand, nil, trick, domain.Bastos)
	e := NewEstimator(m, 0, [domain.NumSeats]int{2, 1, 1, 1})

	if p := e.WinProbability(trick, domain.MustParseCard("oros-1"), domain.Bastos); p != 1 {
		t.Errorf("Ace closes the trick for our team, got %f", p)
	}
	if p := e.WinProbability(trick, domain.MustParseCard("oros-2"), domain.Bastos); p != 0 {
		t.Errorf("Two loses to the opponent's three, got %f", p)
	}
}

func TestEstimator_WinProbability_PartnerHolds(t *testing.T) {
	trick := domain.Trick{
		{Seat: 2, Card: domain.MustParseCard("copas-1")},
		{Seat: 1, Card: domain.MustParseCard("copas-4")},
	}
	m := Rebuild(0, cardsOf("copas-2", "espadas-7"), nil, trick, domain.Bastos)
	m.Opponents[3].RecordVoid(domain.Bastos)
	e := NewEstimator(m, 0, [domain.NumSeats]int{2, 1, 2, 2})

	// Seat 3 has no trumps and nothing beats the ace, so the partner keeps it.
	if p := e.WinProbability(trick, domain.MustParseCard("copas-2"), domain.Bastos); p != 1 {
		t.Errorf("Partner's ace cannot be beaten, got %f", p)
	}
}
