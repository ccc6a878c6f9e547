package app

import "tute/internal/domain"

// EventKind identifies emitted domain events for transport dispatch.
type EventKind string

const (
	EventRoundStarted  EventKind = "round_started"
	EventHandDealt     EventKind = "hand_dealt"
	EventCardPlayed    EventKind = "card_played"
	EventTrickComplete EventKind = "trick_complete"
	EventTrickWon      EventKind = "trick_won"
	EventCanteDeclared EventKind = "cante_declared"
	EventCanteSkipped  EventKind = "cante_skipped"
	EventRoundEnded    EventKind = "round_ended"
	EventGameEnded     EventKind = "game_ended"
)

// Event is a domain/app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []int // seats; empty means broadcast
}

type RoundStartedPayload struct {
	Number    int
	Dealer    int
	Leader    int
	TrumpCard domain.Card
}

type HandDealtPayload struct {
	Seat int
	Hand []domain.Card
}

type CardPlayedPayload struct {
	Seat     int
	Card     domain.Card
	NextTurn int
}

type TrickCompletePayload struct {
	Trick domain.Trick
}

type TrickWonPayload struct {
	Winner int
	Team   int
	Points int
}

type CanteDeclaredPayload struct {
	Declaration domain.Declaration
}

type CanteSkippedPayload struct {
	Seat int
}

type RoundEndedPayload struct {
	Score     domain.RoundScore
	RoundWins [domain.NumTeams]int
}

type GameEndedPayload struct {
	WinnerTeam int
	RoundWins  [domain.NumTeams]int
}
