package brain

import (
	"tute/internal/domain"
)

// Estimator provides probabilistic insights based on memory.
type Estimator struct {
	Memory    *Memory
	Seat      int
	HandSizes [domain.NumSeats]int
}

// NewEstimator creates a new reasoning engine for seat.
func NewEstimator(m *Memory, seat int, handSizes [domain.NumSeats]int) *Estimator {
	return &Estimator{Memory: m, Seat: seat, HandSizes: handSizes}
}

// HoldProbability estimates the chance that seat holds card c, spreading
// each unseen card over the seats that could hold it in proportion to their
// hand sizes.
func (e *Estimator) HoldProbability(seat int, c domain.Card) float64 {
	if !e.Memory.CouldHold(seat, c) || e.HandSizes[seat] == 0 {
		return 0
	}
	total := 0
	for s := 0; s < domain.NumSeats; s++ {
		if s == e.Seat {
			continue
		}
		if e.Memory.CouldHold(s, c) {
			total += e.HandSizes[s]
		}
	}
	if total == 0 {
		return 0
	}
	return float64(e.HandSizes[seat]) / float64(total)
}

// anyOf is the chance that seat holds at least one of cards.
func (e *Estimator) anyOf(seat int, cards []domain.Card) float64 {
	none := 1.0
	for _, c := range cards {
		none *= 1 - e.HoldProbability(seat, c)
	}
	return 1 - none
}

// VoidProbability estimates the chance that seat holds no card of suit.
func (e *Estimator) VoidProbability(seat int, suit domain.Suit) float64 {
	if p, ok := e.Memory.Opponents[seat]; ok && p.Voids[suit] {
		return 1
	}
	var suited []domain.Card
	for _, c := range e.Memory.Unseen() {
		if c.Suit == suit {
			suited = append(suited, c)
		}
	}
	return 1 - e.anyOf(seat, suited)
}

// BeatProbability estimates the chance that seat, playing after best was
// laid, takes the trick from it. Following suit is forced, so trumps only
// matter when the seat is void in the lead suit.
func (e *Estimator) BeatProbability(seat int, best domain.Card, lead, trump domain.Suit) float64 {
	var leadBeaters, trumpBeaters []domain.Card
	for _, c := range e.Memory.Unseen() {
		if !domain.Beats(c, best, lead, trump) {
			continue
		}
		switch c.Suit {
		case lead:
			leadBeaters = append(leadBeaters, c)
		case trump:
			trumpBeaters = append(trumpBeaters, c)
		}
	}
	pLead := e.anyOf(seat, leadBeaters)
	if lead == trump {
		return pLead
	}
	pTrump := e.VoidProbability(seat, lead) * e.anyOf(seat, trumpBeaters)
	return 1 - (1-pLead)*(1-pTrump)
}

// WinProbability estimates the chance that the estimator's team takes the
// trick if its seat plays c now.
func (e *Estimator) WinProbability(trick domain.Trick, c domain.Card, trump domain.Suit) float64 {
	after := append(append(domain.Trick{}, trick...), domain.Play{Seat: e.Seat, Card: c})
	best, _ := after.Best(trump)
	lead, _ := after.LeadSuit()
	team := domain.TeamOf(e.Seat)

	var remaining []int
	seat := e.Seat
	for i := len(after); i < domain.NumSeats; i++ {
		seat = domain.NextSeat(seat)
		remaining = append(remaining, seat)
	}

	holding := domain.TeamOf(best.Seat) == team
	p := 1.0
	if !holding {
		p = 0
	}
	for _, s := range remaining {
		beat := e.BeatProbability(s, best.Card, lead, trump)
		if domain.TeamOf(s) == team {
			if !holding {
				p = beat
				holding = true
			}
			continue
		}
		p *= 1 - beat
	}
	if !holding {
		return 0
	}
	return p
}
