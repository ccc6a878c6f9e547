package domain

// AvailableCante is a king+knight pair a seat may sing.
type AvailableCante struct {
	Suit   Suit `json:"suit"`
	Points int  `json:"points"`
}

// CantePoints returns 40 when suit is trump, else 20.
func CantePoints(suit, trump Suit) int {
	if suit == trump {
		return 40
	}
	return 20
}

// DeclarationWindowOpen reports whether seat's team may declare right now: the
// trick on the table is empty and the team either won the previous trick or no
// trick has been played yet this round.
func DeclarationWindowOpen(seat int, round *Round) bool {
	if round == nil || round.Resolving || len(round.Trick) > 0 {
		return false
	}
	team := TeamOf(seat)
	if round.Declined[team] || round.TeamDeclared(team) {
		return false
	}
	if len(round.Tricks) == 0 {
		return true
	}
	return round.LastTrickTeam == team
}

// CanDeclareCante reports whether seat may sing 20 or 40 holding hand, and
// lists every suit in which the hand pairs king and knight.
func CanDeclareCante(hand []Card, seat int, round *Round) (bool, []AvailableCante) {
	if !DeclarationWindowOpen(seat, round) {
		return false, nil
	}
	var out []AvailableCante
	for _, s := range Suits {
		if round.SuitDeclared(s) {
			continue
		}
		if ContainsCard(hand, Card{Suit: s, Rank: King}) && ContainsCard(hand, Card{Suit: s, Rank: Knight}) {
			out = append(out, AvailableCante{Suit: s, Points: CantePoints(s, round.Trump)})
		}
	}
	return len(out) > 0, out
}

// TuteRank returns the rank of which hand holds all four cards, preferring
// kings, or false if the hand holds neither four kings nor four knights.
func TuteRank(hand []Card) (Rank, bool) {
	for _, r := range []Rank{King, Knight} {
		n := 0
		for _, c := range hand {
			if c.Rank == r {
				n++
			}
		}
		if n == len(Suits) {
			return r, true
		}
	}
	return 0, false
}

// CanDeclareTute reports whether seat may claim tute: four kings or four
// knights, and the seat's team has just won its first trick of the round.
func CanDeclareTute(hand []Card, seat int, round *Round) bool {
	if !DeclarationWindowOpen(seat, round) || len(round.Tricks) == 0 {
		return false
	}
	if round.TricksWon[TeamOf(seat)] != 1 {
		return false
	}
	_, ok := TuteRank(hand)
	return ok
}
