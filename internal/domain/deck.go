package domain

import (
	"fmt"
	"math/rand"
	"sort"
)

// DeckSize is the number of cards in the Spanish deck without eights and nines.
const DeckSize = 40

// NewDeck returns the 40-card deck in canonical order: suit by suit, ranks ascending.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// ShuffleDeck returns a shuffled copy of the given deck.
func ShuffleDeck(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Deal splits the deck into seats hands of equal size, hand i taking the i-th
// contiguous packet. The trump card is the last card of the final hand.
// A deck that cannot be split evenly is a programming error and panics.
func Deal(deck []Card, seats int) ([][]Card, Card) {
	if seats <= 0 || len(deck) == 0 || len(deck)%seats != 0 {
		panic(fmt.Sprintf("domain: cannot deal %d cards to %d seats", len(deck), seats))
	}
	n := len(deck) / seats
	hands := make([][]Card, seats)
	for i := range hands {
		hands[i] = append([]Card{}, deck[i*n:(i+1)*n]...)
	}
	last := hands[seats-1]
	return hands, last[len(last)-1]
}

// SortHand orders a hand by suit, then by ascending strength.
func SortHand(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		si, sj := suitOrder(cards[i].Suit), suitOrder(cards[j].Suit)
		if si != sj {
			return si < sj
		}
		return cards[i].Strength() < cards[j].Strength()
	})
}

func suitOrder(s Suit) int {
	for i, x := range Suits {
		if x == s {
			return i
		}
	}
	return len(Suits)
}

// TotalPoints sums the card-point values of cards.
func TotalPoints(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += c.Points()
	}
	return total
}
