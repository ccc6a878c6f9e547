package bot

import (
	"fmt"
	"strings"

	"tute/internal/domain"
)

// Situation is everything a seat may legitimately know when it has to act:
// its own hand, the table, and the tricks already played this round.
type Situation struct {
	Seat      int
	Hand      []domain.Card
	Trick     domain.Trick
	Trump     domain.Suit
	TrumpCard domain.Card
	History   []domain.CompletedTrick
	// HandSizes is the number of cards each seat still holds.
	HandSizes [domain.NumSeats]int
	// Cantes and CanTute are the declarations the seat may make right now.
	Cantes  []domain.AvailableCante
	CanTute bool
}

// SituationFor extracts the view of seat from a game in play.
func SituationFor(game *domain.Game, seat int) (Situation, error) {
	if game == nil || game.Round == nil {
		return Situation{}, fmt.Errorf("no round in play")
	}
	if seat < 0 || seat >= domain.NumSeats {
		return Situation{}, fmt.Errorf("invalid seat %d", seat)
	}
	r := game.Round
	s := Situation{
		Seat:      seat,
		Hand:      append([]domain.Card{}, r.Hands[seat]...),
		Trick:     append(domain.Trick{}, r.Trick...),
		Trump:     r.Trump,
		TrumpCard: r.TrumpCard,
		History:   append([]domain.CompletedTrick{}, r.Tricks...),
	}
	for i, h := range r.Hands {
		s.HandSizes[i] = len(h)
	}
	if ok, avail := domain.CanDeclareCante(s.Hand, seat, r); ok {
		s.Cantes = avail
	}
	s.CanTute = domain.CanDeclareTute(s.Hand, seat, r)
	return s, nil
}

// Legal returns the cards the seat may play.
func (s Situation) Legal() []domain.Card {
	return domain.LegalMoves(s.Hand, s.Trick, s.Trump)
}

// Leading reports whether the seat opens the trick.
func (s Situation) Leading() bool { return len(s.Trick) == 0 }

// Decision is a declaration choice. Declare=false means skip.
type Decision struct {
	Declare bool
	Kind    domain.DeclarationKind
	Suit    domain.Suit
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	ChooseCard(s Situation) (domain.Card, error)
	ChooseDeclaration(s Situation) Decision
}

// BotLevel is the difficulty tier of a bot.
type BotLevel int

const (
	LevelRandom BotLevel = iota + 1
	LevelGood
	LevelSmart
	LevelGod
)

func (l BotLevel) String() string {
	switch l {
	case LevelRandom:
		return "random"
	case LevelGood:
		return "good"
	case LevelSmart:
		return "smart"
	case LevelGod:
		return "god"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel accepts a tier name ("random", "good", "smart", "god") or its
// number 1-4.
func ParseLevel(s string) (BotLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "random", "easy", "1":
		return LevelRandom, nil
	case "good", "medium", "2":
		return LevelGood, nil
	case "smart", "hard", "3":
		return LevelSmart, nil
	case "god", "expert", "4":
		return LevelGod, nil
	}
	return 0, fmt.Errorf("unknown bot level: %q", s)
}
