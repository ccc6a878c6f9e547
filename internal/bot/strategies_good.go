package bot

import "tute/internal/domain"

// GoodBot leads with a mid-strength card and, when following, wins the trick
// as cheaply as possible or throws its weakest card.
type GoodBot struct{}

func (b *GoodBot) ChooseCard(s Situation) (domain.Card, error) {
	legal := s.Legal()
	if len(legal) == 0 {
		return domain.Card{}, errNoLegalMoves
	}
	if s.Leading() {
		return midStrength(legal, s.Trump), nil
	}
	if c, ok := cheapestWinner(legal, s.Trick, s.Trump); ok {
		return c, nil
	}
	return weakest(legal, s.Trump), nil
}

func (b *GoodBot) ChooseDeclaration(s Situation) Decision {
	return bestDeclaration(s)
}
