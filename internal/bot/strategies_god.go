package bot

import (
	"tute/internal/bot/brain"
	"tute/internal/domain"
)

const (
	// winThreshold is the trick-win probability a card must clear to be played for the trick.
	winThreshold = 0.6
	// feedThreshold is how sure the bot must be that its partner keeps the trick before adding points.
	feedThreshold = 0.8
)

// GodBot counts cards: it rebuilds what has been played, infers which suits
// each seat is out of, and plays the cheapest card likely to take the trick.
type GodBot struct {
	SmartBot
}

func (b *GodBot) ChooseCard(s Situation) (domain.Card, error) {
	legal := s.Legal()
	if len(legal) == 0 {
		return domain.Card{}, errNoLegalMoves
	}
	if len(legal) == 1 {
		return legal[0], nil
	}

	mem := brain.Rebuild(s.Seat, s.Hand, s.History, s.Trick, s.Trump)
	est := brain.NewEstimator(mem, s.Seat, s.HandSizes)

	if partnerWinning(s) {
		low := weakest(legal, s.Trump)
		keep := est.WinProbability(s.Trick, low, s.Trump)
		switch {
		case keep >= feedThreshold:
			return richest(legal, s.Trump), nil
		case keep >= winThreshold:
			return low, nil
		}
	}

	var pick domain.Card
	found := false
	for _, c := range sortByCost(legal, s.Trump) {
		if est.WinProbability(s.Trick, c, s.Trump) >= winThreshold {
			pick, found = c, true
			break
		}
	}
	if found {
		return pick, nil
	}
	return weakest(legal, s.Trump), nil
}

func (b *GodBot) ChooseDeclaration(s Situation) Decision {
	return bestDeclaration(s)
}
