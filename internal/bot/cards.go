package bot

import (
	"sort"

	"tute/internal/domain"
)

// cost orders cards by how much it hurts to give them up: trumps first, then
// card points, then strength.
func cost(c domain.Card, trump domain.Suit) int {
	v := c.Points()*10 + c.Strength()
	if c.Suit == trump {
		v += 1000
	}
	return v
}

func sortByCost(cards []domain.Card, trump domain.Suit) []domain.Card {
	out := append([]domain.Card{}, cards...)
	sort.SliceStable(out, func(i, j int) bool {
		return cost(out[i], trump) < cost(out[j], trump)
	})
	return out
}

// weakest returns the cheapest card to throw away.
func weakest(cards []domain.Card, trump domain.Suit) domain.Card {
	return sortByCost(cards, trump)[0]
}

// midStrength returns the median card by cost.
func midStrength(cards []domain.Card, trump domain.Suit) domain.Card {
	sorted := sortByCost(cards, trump)
	return sorted[len(sorted)/2]
}

// winners returns the cards that would take the trick from its current best.
func winners(cards []domain.Card, trick domain.Trick, trump domain.Suit) []domain.Card {
	best, ok := trick.Best(trump)
	if !ok {
		return nil
	}
	var out []domain.Card
	for _, c := range cards {
		if domain.Beats(c, best.Card, trick[0].Card.Suit, trump) {
			out = append(out, c)
		}
	}
	return out
}

// cheapestWinner returns the lowest-cost card that takes the trick.
func cheapestWinner(cards []domain.Card, trick domain.Trick, trump domain.Suit) (domain.Card, bool) {
	w := winners(cards, trick, trump)
	if len(w) == 0 {
		return domain.Card{}, false
	}
	return weakest(w, trump), true
}

// richest returns the card worth the most points, sparing trumps when a
// plain card carries points.
func richest(cards []domain.Card, trump domain.Suit) domain.Card {
	var best domain.Card
	found := false
	for _, c := range cards {
		if c.Suit == trump || c.Points() == 0 {
			continue
		}
		if !found || c.Points() > best.Points() {
			best, found = c, true
		}
	}
	if found {
		return best
	}
	return weakest(cards, trump)
}

// partnerWinning reports whether the seat's partner holds the trick now.
func partnerWinning(s Situation) bool {
	best, ok := s.Trick.Best(s.Trump)
	return ok && best.Seat == domain.PartnerOf(s.Seat)
}

// lastToPlay reports whether the seat closes the trick.
func lastToPlay(s Situation) bool {
	return len(s.Trick) == domain.NumSeats-1
}

// bestDeclaration picks tute over 40 over 20, or skips when nothing is available.
func bestDeclaration(s Situation) Decision {
	if s.CanTute {
		return Decision{Declare: true, Kind: domain.Tute}
	}
	if len(s.Cantes) == 0 {
		return Decision{}
	}
	best := s.Cantes[0]
	for _, c := range s.Cantes[1:] {
		if c.Points > best.Points {
			best = c
		}
	}
	kind := domain.Cante20
	if best.Points == 40 {
		kind = domain.Cante40
	}
	return Decision{Declare: true, Kind: kind, Suit: best.Suit}
}
