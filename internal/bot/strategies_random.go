package bot

import (
	"errors"
	"math/rand"

	"tute/internal/domain"
)

// naiveRate is how often RandomBot falls back to throwing its weakest card.
const naiveRate = 0.25

var errNoLegalMoves = errors.New("no legal moves")

// RandomBot plays a random legal card, now and then the weakest one.
type RandomBot struct {
	rng *rand.Rand
}

func (b *RandomBot) ChooseCard(s Situation) (domain.Card, error) {
	legal := s.Legal()
	if len(legal) == 0 {
		return domain.Card{}, errNoLegalMoves
	}
	if b.rng.Float64() < naiveRate {
		return weakest(legal, s.Trump), nil
	}
	return legal[b.rng.Intn(len(legal))], nil
}

func (b *RandomBot) ChooseDeclaration(s Situation) Decision {
	if s.CanTute {
		return Decision{Declare: true, Kind: domain.Tute}
	}
	if len(s.Cantes) == 0 {
		return Decision{}
	}
	c := s.Cantes[b.rng.Intn(len(s.Cantes))]
	kind := domain.Cante20
	if c.Points == 40 {
		kind = domain.Cante40
	}
	return Decision{Declare: true, Kind: kind, Suit: c.Suit}
}
