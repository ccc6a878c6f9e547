package bot

import (
	"testing"

	"tute/internal/domain"
)

func TestGodBot_LeadsCertainWinner(t *testing.T) {
	// The ace of trumps cannot lose; low copas almost certainly do.
	s := Situation{
		Seat:      0,
		Hand:      cards("copas-2", "copas-4", "oros-1"),
		Trump:     domain.Oros,
		HandSizes: [domain.NumSeats]int{3, 3, 3, 3},
	}

	good, _ := (&GoodBot{}).ChooseCard(s)
	if good.ID() != "copas-4" {
		t.Fatalf("GoodBot should lead mid strength, played %s", good)
	}

	got, err := (&GodBot{}).ChooseCard(s)
	if err != nil {
		t.Fatalf("ChooseCard failed: %v", err)
	}
	if got.ID() != "oros-1" {
		t.Errorf("GodBot should lead the unbeatable trump, played %s", got)
	}
}

func TestGodBot_CheapestCertainWinner(t *testing.T) {
	s := Situation{
		Seat:      0,
		Hand:      cards("bastos-2", "bastos-1", "oros-5"),
		Trick:     trickOf("3:copas-1", "2:copas-4", "1:copas-5"),
		Trump:     domain.Bastos,
		HandSizes: [domain.NumSeats]int{3, 2, 2, 2},
	}
	got, _ := (&GodBot{}).ChooseCard(s)
	if got.ID() != "bastos-2" {
		t.Errorf("GodBot should trump with its smallest trump when last, played %s", got)
	}
}

func TestGodBot_FeedsPartnerWhenSafe(t *testing.T) {
	// Seat 3 showed out of trumps, so nothing can take the partner's ace.
	history := []domain.CompletedTrick{{
		Plays: []domain.Play{
			{Seat: 1, Card: domain.MustParseCard("bastos-4")},
			{Seat: 0, Card: domain.MustParseCard("bastos-5")},
			{Seat: 3, Card: domain.MustParseCard("espadas-2")},
			{Seat: 2, Card: domain.MustParseCard("bastos-6")},
		},
		Winner: 2,
	}}
	s := Situation{
		Seat:      0,
		Hand:      cards("oros-1", "oros-2"),
		Trick:     trickOf("2:copas-1", "1:copas-4"),
		Trump:     domain.Bastos,
		History:   history,
		HandSizes: [domain.NumSeats]int{2, 1, 1, 2},
	}

	smart, _ := (&SmartBot{}).ChooseCard(s)
	if smart.ID() != "oros-2" {
		t.Fatalf("SmartBot should play low mid-trick, played %s", smart)
	}

	got, err := (&GodBot{}).ChooseCard(s)
	if err != nil {
		t.Fatalf("ChooseCard failed: %v", err)
	}
	if got.ID() != "oros-1" {
		t.Errorf("GodBot should add points when the partner's trick is safe, played %s", got)
	}
}

func TestGodBot_ChooseDeclarationPrefersHigher(t *testing.T) {
	s := Situation{Cantes: []domain.AvailableCante{{Suit: domain.Copas, Points: 20}, {Suit: domain.Oros, Points: 40}}}
	d := (&GodBot{}).ChooseDeclaration(s)
	if !d.Declare || d.Suit != domain.Oros || d.Kind != domain.Cante40 {
		t.Errorf("Expected 40 in oros, got %+v", d)
	}
}
