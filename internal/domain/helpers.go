package domain

// ContainsCard reports whether hand holds c.
func ContainsCard(hand []Card, c Card) bool {
	for _, h := range hand {
		if h == c {
			return true
		}
	}
	return false
}

// RemoveCard returns a copy of hand without c and whether c was present.
func RemoveCard(hand []Card, c Card) ([]Card, bool) {
	out := make([]Card, 0, len(hand))
	found := false
	for _, h := range hand {
		if !found && h == c {
			found = true
			continue
		}
		out = append(out, h)
	}
	if !found {
		return hand, false
	}
	return out, true
}

// CardsOfSuit returns the cards of hand that belong to suit.
func CardsOfSuit(hand []Card, suit Suit) []Card {
	var out []Card
	for _, c := range hand {
		if c.Suit == suit {
			out = append(out, c)
		}
	}
	return out
}

// TeamOf returns the team (0 or 1) of a table position. Even seats and odd seats pair up.
func TeamOf(seat int) int {
	return seat % 2
}

// NextSeat returns the seat that plays after seat. Play runs counter-clockwise,
// so the position decreases modulo the table size.
func NextSeat(seat int) int {
	return (seat + NumSeats - 1) % NumSeats
}

// PartnerOf returns the seat across the table.
func PartnerOf(seat int) int {
	return (seat + 2) % NumSeats
}
