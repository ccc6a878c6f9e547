package bot

import (
	"math/rand"

	"tute/internal/domain"
)

// Agent represents an autonomous bot player.
type Agent struct {
	ID       string
	Name     string
	Level    BotLevel
	Strategy Brain
}

// NewAgent creates an agent with the brain for level.
func NewAgent(id, name string, level BotLevel, rng *rand.Rand) (*Agent, error) {
	b, err := NewBrain(level, rng)
	if err != nil {
		return nil, err
	}
	return &Agent{ID: id, Name: name, Level: level, Strategy: b}, nil
}

// Play asks the agent for the card to play from seat. Whatever the strategy
// answers, the returned card is always a legal move.
func (a *Agent) Play(game *domain.Game, seat int) (domain.Card, error) {
	s, err := SituationFor(game, seat)
	if err != nil {
		return domain.Card{}, err
	}
	legal := s.Legal()
	if len(legal) == 0 {
		return domain.Card{}, errNoLegalMoves
	}
	card, err := a.Strategy.ChooseCard(s)
	if err != nil || !domain.ContainsCard(legal, card) {
		return legal[0], nil
	}
	return card, nil
}

// Declaration asks the agent whether to sing from seat. It only ever returns
// a declaration the rule engine currently allows.
func (a *Agent) Declaration(game *domain.Game, seat int) Decision {
	s, err := SituationFor(game, seat)
	if err != nil {
		return Decision{}
	}
	d := a.Strategy.ChooseDeclaration(s)
	if !d.Declare {
		return Decision{}
	}
	if d.Kind == domain.Tute {
		if s.CanTute {
			return d
		}
		return Decision{}
	}
	for _, c := range s.Cantes {
		if c.Suit == d.Suit {
			return d
		}
	}
	return Decision{}
}
