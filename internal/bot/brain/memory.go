package brain

import (
	"tute/internal/domain"
)

// CardStatus represents what the bot knows about a specific card.
type CardStatus int

const (
	StatusUnknown CardStatus = iota // In some other seat's hand
	StatusMine                      // In the bot's hand
	StatusPlayed                    // Already on the table or captured
)

// Memory stores the bot's private view of the round.
type Memory struct {
	// DeckStatus tracks all 40 cards. Index = suit*10 + rank position.
	DeckStatus [domain.DeckSize]CardStatus
	// Opponents tracks what each other seat has revealed, by seat index.
	Opponents map[int]*OpponentProfile
	Trump     domain.Suit
}

// NewMemory initializes a fresh memory state.
func NewMemory() *Memory {
	return &Memory{
		Opponents: make(map[int]*OpponentProfile),
	}
}

// Rebuild replays a round from seat's point of view: its hand, the tricks
// already captured and the trick on the table.
func Rebuild(seat int, hand []domain.Card, history []domain.CompletedTrick, trick domain.Trick, trump domain.Suit) *Memory {
	m := NewMemory()
	m.Trump = trump
	for s := 0; s < domain.NumSeats; s++ {
		if s != seat {
			m.Opponents[s] = NewOpponentProfile(s)
		}
	}
	for _, t := range history {
		m.RecordTrick(t.Plays)
	}
	m.RecordTrick(trick)
	m.UpdateHand(hand)
	return m
}

// MarkMine records the cards currently in the bot's hand.
func (m *Memory) MarkMine(cards []domain.Card) {
	for _, c := range cards {
		m.DeckStatus[CardIndex(c)] = StatusMine
	}
}

// MarkPlayed records cards that have been played on the table.
func (m *Memory) MarkPlayed(cards []domain.Card) {
	for _, c := range cards {
		m.DeckStatus[CardIndex(c)] = StatusPlayed
	}
}

// UpdateHand marks the current hand as Mine; cards no longer held and not
// seen on the table revert to Unknown.
func (m *Memory) UpdateHand(hand []domain.Card) {
	for i, status := range m.DeckStatus {
		if status == StatusMine {
			m.DeckStatus[i] = StatusUnknown
		}
	}
	m.MarkMine(hand)
}

// RecordTrick marks the plays as seen and infers voids and ceilings from
// them. A seat that does not follow the lead suit holds none of it; a seat
// that neither follows nor trumps holds no trump either. Since players must
// overtake when able, a seat that follows without beating the best card
// holds nothing stronger in that suit.
func (m *Memory) RecordTrick(plays []domain.Play) {
	if len(plays) == 0 {
		return
	}
	lead := plays[0].Card.Suit
	best := plays[0]
	m.MarkPlayed([]domain.Card{best.Card})

	for _, p := range plays[1:] {
		m.MarkPlayed([]domain.Card{p.Card})
		profile := m.Opponents[p.Seat]
		beats := domain.Beats(p.Card, best.Card, lead, m.Trump)

		if profile != nil {
			switch {
			case p.Card.Suit == lead:
				if !beats && best.Card.Suit == lead {
					profile.RecordCeiling(lead, best.Card.Strength())
				}
			case p.Card.Suit == m.Trump:
				profile.RecordVoid(lead)
				if !beats && best.Card.Suit == m.Trump {
					profile.RecordCeiling(m.Trump, best.Card.Strength())
				}
			default:
				profile.RecordVoid(lead)
				profile.RecordVoid(m.Trump)
			}
		}
		if beats {
			best = p
		}
	}
}

// IsPlayed returns true if the card is already out of the game.
func (m *Memory) IsPlayed(c domain.Card) bool {
	return m.DeckStatus[CardIndex(c)] == StatusPlayed
}

// Unseen returns the cards held by other seats.
func (m *Memory) Unseen() []domain.Card {
	var out []domain.Card
	for _, c := range domain.NewDeck() {
		if m.DeckStatus[CardIndex(c)] == StatusUnknown {
			out = append(out, c)
		}
	}
	return out
}

// CouldHold reports whether seat may still hold c.
func (m *Memory) CouldHold(seat int, c domain.Card) bool {
	if m.DeckStatus[CardIndex(c)] != StatusUnknown {
		return false
	}
	if p, ok := m.Opponents[seat]; ok {
		return p.CanHold(c)
	}
	return false
}

// CardIndex converts a card to a 0-39 index in canonical deck order.
func CardIndex(c domain.Card) int {
	return suitIndex(c.Suit)*len(domain.Ranks) + rankIndex(c.Rank)
}

func suitIndex(s domain.Suit) int {
	for i, x := range domain.Suits {
		if x == s {
			return i
		}
	}
	return 0
}

func rankIndex(r domain.Rank) int {
	for i, x := range domain.Ranks {
		if x == r {
			return i
		}
	}
	return 0
}
