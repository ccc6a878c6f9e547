package domain

// Beats reports whether challenger takes the trick from best, given the lead
// suit and trump. A trump beats any non-trump; otherwise only a stronger card
// of the same suit as best can beat it, and an off-suit discard never wins.
func Beats(challenger, best Card, lead, trump Suit) bool {
	cTrump := challenger.Suit == trump
	bTrump := best.Suit == trump
	switch {
	case cTrump && !bTrump:
		return true
	case !cTrump && bTrump:
		return false
	case challenger.Suit != best.Suit:
		return false
	}
	if !cTrump && challenger.Suit != lead {
		return false
	}
	return challenger.Strength() > best.Strength()
}

// LegalMoves returns the subset of hand that may be played into trick.
//
// The policy, in order: a leader may play anything; a player holding the lead
// suit must follow it and must overtake the current best card when able; a
// player void in the lead suit must trump, overtaking any trump already in the
// trick when able; a player with neither may play anything.
func LegalMoves(hand []Card, trick Trick, trump Suit) []Card {
	if len(hand) == 0 {
		return nil
	}
	lead, ok := trick.LeadSuit()
	if !ok {
		return append([]Card{}, hand...)
	}
	best, _ := trick.Best(trump)

	if follow := CardsOfSuit(hand, lead); len(follow) > 0 {
		if over := overtaking(follow, best.Card, lead, trump); len(over) > 0 {
			return over
		}
		return follow
	}

	if trumps := CardsOfSuit(hand, trump); len(trumps) > 0 {
		if best.Card.Suit == trump {
			if over := overtaking(trumps, best.Card, lead, trump); len(over) > 0 {
				return over
			}
		}
		return trumps
	}

	return append([]Card{}, hand...)
}

func overtaking(cards []Card, best Card, lead, trump Suit) []Card {
	var out []Card
	for _, c := range cards {
		if Beats(c, best, lead, trump) {
			out = append(out, c)
		}
	}
	return out
}

// IsLegalMove reports whether card is among LegalMoves(hand, trick, trump).
func IsLegalMove(hand []Card, trick Trick, trump Suit, card Card) bool {
	return ContainsCard(LegalMoves(hand, trick, trump), card)
}

// TrickWinner returns the seat that wins trick and the card points it holds.
// Resolving an empty trick is a programming error and panics.
func TrickWinner(trick Trick, trump Suit) (int, int) {
	best, ok := trick.Best(trump)
	if !ok {
		panic("domain: trick winner of an empty trick")
	}
	return best.Seat, TotalPoints(trick.Cards())
}
