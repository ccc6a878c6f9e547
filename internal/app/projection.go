package app

import "tute/internal/domain"

// SeatInfo is the roster data the projection needs about one seat.
type SeatInfo struct {
	PlayerID  string
	Name      string
	Position  int
	Connected bool
	IsBot     bool
}

// PlayerView is what every seat may know about a player.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	Team      int    `json:"team"`
	HandSize  int    `json:"handSize"`
	Connected bool   `json:"connected"`
	IsBot     bool   `json:"isBot,omitempty"`
	IsHost    bool   `json:"isHost,omitempty"`
}

// PlayView is a card on the table.
type PlayView struct {
	Position int    `json:"position"`
	PlayerID string `json:"playerId"`
	CardID   string `json:"cardId"`
}

// TrickView is the last resolved trick, kept on screen until the next card.
type TrickView struct {
	Plays    []PlayView `json:"plays"`
	Winner   int        `json:"winner"`
	WinnerID string     `json:"winnerId"`
	Points   int        `json:"points"`
}

// View is the per-seat projection of a room. Only the Hand, LegalMoves,
// Cantes and CanTute fields are private to the seat it was built for.
type View struct {
	Version      int                     `json:"version"`
	Phase        domain.Phase            `json:"phase"`
	You          int                     `json:"you"`
	HostID       string                  `json:"hostId"`
	Players      []PlayerView            `json:"players"`
	Hand         []string                `json:"hand,omitempty"`
	Trick        []PlayView              `json:"trick"`
	LastTrick    *TrickView              `json:"lastTrick,omitempty"`
	Round        int                     `json:"round"`
	Dealer       int                     `json:"dealer"`
	Turn         int                     `json:"turn"`
	Trump        domain.Suit             `json:"trump,omitempty"`
	TrumpCard    string                  `json:"trumpCard,omitempty"`
	Points       [domain.NumTeams]int    `json:"points"`
	RoundWins    [domain.NumTeams]int    `json:"roundWins"`
	RoundsToWin  int                     `json:"roundsToWin"`
	LegalMoves   []string                `json:"legalMoves,omitempty"`
	Cantes       []domain.AvailableCante `json:"cantes,omitempty"`
	CanTute      bool                    `json:"canTute,omitempty"`
	Declarations []domain.Declaration    `json:"declarations"`
	Resolving    bool                    `json:"resolving"`
	RoundScore   *domain.RoundScore      `json:"roundScore,omitempty"`
	Winner       int                     `json:"winner"`
}

// Project builds the view of game for seat. A seat outside 0..3 yields a view
// with no private fields. game may be nil while the room waits for players.
func Project(game *domain.Game, roster [domain.NumSeats]*SeatInfo, host, seat, version int) View {
	v := View{
		Version: version,
		Phase:   domain.PhaseWaiting,
		You:     seat,
		Turn:    -1,
		Dealer:  -1,
		Winner:  domain.NoTeam,
		Trick:   []PlayView{},
	}

	var round *domain.Round
	if game != nil {
		v.Phase = game.Phase
		v.RoundWins = game.RoundWins
		v.RoundsToWin = game.RoundsToWin
		v.Winner = game.Winner
		round = game.Round
	}

	for pos, info := range roster {
		if info == nil {
			continue
		}
		pv := PlayerView{
			ID:        info.PlayerID,
			Name:      info.Name,
			Position:  pos,
			Team:      domain.TeamOf(pos),
			Connected: info.Connected,
			IsBot:     info.IsBot,
			IsHost:    pos == host,
		}
		if round != nil {
			pv.HandSize = len(round.Hands[pos])
		}
		if pv.IsHost {
			v.HostID = info.PlayerID
		}
		v.Players = append(v.Players, pv)
	}

	if round == nil {
		return v
	}

	playerID := func(pos int) string {
		if pos >= 0 && pos < domain.NumSeats && roster[pos] != nil {
			return roster[pos].PlayerID
		}
		return ""
	}

	v.Round = round.Number
	v.Dealer = round.Dealer
	v.Trump = round.Trump
	v.TrumpCard = round.TrumpCard.ID()
	v.Resolving = round.Resolving
	v.RoundScore = round.Score
	v.Declarations = append([]domain.Declaration{}, round.Declared...)
	v.Points = runningPoints(round)
	if game.Phase == domain.PhasePlaying && !round.Resolving {
		v.Turn = round.Turn
	}
	for _, p := range round.Trick {
		v.Trick = append(v.Trick, PlayView{Position: p.Seat, PlayerID: playerID(p.Seat), CardID: p.Card.ID()})
	}
	if n := len(round.Tricks); n > 0 {
		last := round.Tricks[n-1]
		tv := &TrickView{Winner: last.Winner, WinnerID: playerID(last.Winner), Points: last.Points}
		for _, p := range last.Plays {
			tv.Plays = append(tv.Plays, PlayView{Position: p.Seat, PlayerID: playerID(p.Seat), CardID: p.Card.ID()})
		}
		v.LastTrick = tv
	}

	if seat < 0 || seat >= domain.NumSeats {
		return v
	}

	hand := round.Hands[seat]
	v.Hand = domain.CardIDs(hand)
	if game.Phase != domain.PhasePlaying {
		return v
	}
	if v.Turn == seat {
		v.LegalMoves = domain.CardIDs(domain.LegalMoves(hand, round.Trick, round.Trump))
	}
	if ok, avail := domain.CanDeclareCante(hand, seat, round); ok {
		v.Cantes = avail
	}
	v.CanTute = domain.CanDeclareTute(hand, seat, round)
	return v
}

// Public strips every seat-private field so the view can be broadcast.
func (v View) Public() View {
	v.You = -1
	v.Hand = nil
	v.LegalMoves = nil
	v.Cantes = nil
	v.CanTute = false
	return v
}

// runningPoints is the team score so far this round: captured card points
// plus 20/40 cantes.
func runningPoints(round *domain.Round) [domain.NumTeams]int {
	if round.Score != nil {
		return round.Score.Points
	}
	var pts [domain.NumTeams]int
	for team, won := range round.CardsWon {
		pts[team] = domain.TotalPoints(won)
	}
	for _, d := range round.Declared {
		if d.Kind != domain.Tute {
			pts[d.Team] += d.Points
		}
	}
	return pts
}
