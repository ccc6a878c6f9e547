package bot

import "tute/internal/domain"

// SmartBot plays like GoodBot but does not fight its partner for a trick.
type SmartBot struct {
	GoodBot
}

func (b *SmartBot) ChooseCard(s Situation) (domain.Card, error) {
	legal := s.Legal()
	if len(legal) == 0 {
		return domain.Card{}, errNoLegalMoves
	}
	if c, ok := feedPartner(s, legal); ok {
		return c, nil
	}
	return b.GoodBot.ChooseCard(s)
}

// feedPartner handles the case where the partner currently holds the trick.
// Closing the trick means the partner has won it, so points are added;
// otherwise the cheapest card goes down.
func feedPartner(s Situation, legal []domain.Card) (domain.Card, bool) {
	if !partnerWinning(s) {
		return domain.Card{}, false
	}
	if lastToPlay(s) {
		return richest(legal, s.Trump), true
	}
	return weakest(legal, s.Trump), true
}
