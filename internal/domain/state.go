package domain

// Phase represents the lifecycle stage of a game.
type Phase string

const (
	// PhaseWaiting is the lobby state: fewer than four seats or the game not yet started.
	PhaseWaiting Phase = "waiting"
	// PhaseDealing is the transient state while a round is shuffled and dealt.
	PhaseDealing Phase = "dealing"
	// PhasePlaying is the state where tricks are being played.
	PhasePlaying Phase = "playing"
	// PhaseRoundEnd holds the tallied round until the next deal.
	PhaseRoundEnd Phase = "round_end"
	// PhaseGameEnd is terminal: one team reached the target round count.
	PhaseGameEnd Phase = "game_end"
)

const (
	NumSeats           = 4
	NumTeams           = 2
	HandSize           = DeckSize / NumSeats
	LastTrickBonus     = 10
	DefaultRoundsToWin = 3
	// NoTeam marks "no trick won yet" and "no winner yet".
	NoTeam = -1
)

// Play is one card laid into a trick by a seat.
type Play struct {
	Seat int  `json:"seat"`
	Card Card `json:"card"`
}

// Trick is the ordered sequence of plays of the trick in progress.
type Trick []Play

// LeadSuit returns the suit of the first card played, if any.
func (t Trick) LeadSuit() (Suit, bool) {
	if len(t) == 0 {
		return "", false
	}
	return t[0].Card.Suit, true
}

// Best returns the play currently winning the trick.
func (t Trick) Best(trump Suit) (Play, bool) {
	if len(t) == 0 {
		return Play{}, false
	}
	lead := t[0].Card.Suit
	best := t[0]
	for _, p := range t[1:] {
		if Beats(p.Card, best.Card, lead, trump) {
			best = p
		}
	}
	return best, true
}

// Cards returns the cards of the trick in play order.
func (t Trick) Cards() []Card {
	out := make([]Card, len(t))
	for i, p := range t {
		out[i] = p.Card
	}
	return out
}

// CompletedTrick is a resolved trick kept in the round history.
type CompletedTrick struct {
	Plays  []Play `json:"plays"`
	Winner int    `json:"winner"`
	Points int    `json:"points"`
}

// DeclarationKind identifies the cante being claimed.
type DeclarationKind string

const (
	Cante20 DeclarationKind = "20"
	Cante40 DeclarationKind = "40"
	Tute    DeclarationKind = "tute"
)

// Declaration is a cante made during a round.
type Declaration struct {
	Seat   int             `json:"seat"`
	Team   int             `json:"team"`
	Kind   DeclarationKind `json:"kind"`
	Suit   Suit            `json:"suit,omitempty"`
	Points int             `json:"points"`
}

// Round is one deal-to-empty-hands cycle.
type Round struct {
	Number    int              `json:"number"`
	Dealer    int              `json:"dealer"`
	Turn      int              `json:"turn"`
	Trump     Suit             `json:"trump"`
	TrumpCard Card             `json:"trump_card"`
	Hands     [NumSeats][]Card `json:"hands"`
	Trick     Trick            `json:"trick"`
	Tricks    []CompletedTrick `json:"tricks"`
	CardsWon  [NumTeams][]Card `json:"cards_won"`
	TricksWon [NumTeams]int    `json:"tricks_won"`
	Declared  []Declaration    `json:"declared"`
	Declined  [NumTeams]bool   `json:"declined"`
	// Resolving is set while a complete trick waits for its display delay.
	Resolving     bool        `json:"resolving"`
	LastTrickTeam int         `json:"last_trick_team"`
	Score         *RoundScore `json:"score,omitempty"`
}

// TeamDeclared reports whether team already made a cante this round.
func (r *Round) TeamDeclared(team int) bool {
	for _, d := range r.Declared {
		if d.Team == team {
			return true
		}
	}
	return false
}

// SuitDeclared reports whether a cante in suit was already made this round.
func (r *Round) SuitDeclared(suit Suit) bool {
	for _, d := range r.Declared {
		if d.Kind != Tute && d.Suit == suit {
			return true
		}
	}
	return false
}

// DeclarationsByTeam groups the round's declarations per team.
func (r *Round) DeclarationsByTeam() [NumTeams][]Declaration {
	var out [NumTeams][]Declaration
	for _, d := range r.Declared {
		out[d.Team] = append(out[d.Team], d)
	}
	return out
}

// CardCount returns the cards still held, on the table and captured.
func (r *Round) CardCount() int {
	n := len(r.Trick)
	for _, h := range r.Hands {
		n += len(h)
	}
	for _, w := range r.CardsWon {
		n += len(w)
	}
	return n
}

// Game is the cross-round state: phase, current round and round wins per team.
type Game struct {
	Phase       Phase         `json:"phase"`
	RoundsToWin int           `json:"rounds_to_win"`
	RoundWins   [NumTeams]int `json:"round_wins"`
	Round       *Round        `json:"round,omitempty"`
	History     []RoundScore  `json:"history"`
	Winner      int           `json:"winner"`
}
