package app

import (
	"math/rand"
	"time"

	"tute/internal/domain"
)

// Service contains the round/game state machine operating on domain state.
// It is not safe for concurrent use; callers serialize access per game.
type Service struct {
	rng *rand.Rand
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{rng: rng}
}

// StartGame initializes a new Game and deals its first round.
// roundsToWin <= 0 selects domain.DefaultRoundsToWin.
func (s *Service) StartGame(roundsToWin int) (*domain.Game, []Event, error) {
	if roundsToWin <= 0 {
		roundsToWin = domain.DefaultRoundsToWin
	}
	game := &domain.Game{
		Phase:       domain.PhaseWaiting,
		RoundsToWin: roundsToWin,
		Winner:      domain.NoTeam,
	}
	events := s.deal(game, 1, FirstDealer, domain.ShuffleDeck(domain.NewDeck(), s.rng))
	return game, events, nil
}

// StartGameWithDeck starts a game dealing the given deck unshuffled.
func (s *Service) StartGameWithDeck(roundsToWin int, deck []domain.Card) (*domain.Game, []Event, error) {
	if roundsToWin <= 0 {
		roundsToWin = domain.DefaultRoundsToWin
	}
	game := &domain.Game{
		Phase:       domain.PhaseWaiting,
		RoundsToWin: roundsToWin,
		Winner:      domain.NoTeam,
	}
	return game, s.deal(game, 1, FirstDealer, deck), nil
}

// NextRound deals the following round once the previous one has been tallied.
// The deal passes to the next seat in turn order.
func (s *Service) NextRound(game *domain.Game) ([]Event, error) {
	if game == nil || game.Phase != domain.PhaseRoundEnd || game.Round == nil {
		return nil, ErrNotRoundEnd
	}
	dealer := domain.NextSeat(game.Round.Dealer)
	return s.deal(game, game.Round.Number+1, dealer, domain.ShuffleDeck(domain.NewDeck(), s.rng)), nil
}

// deal distributes deck starting with the seat after the dealer; the dealer
// receives the last packet and with it the trump card.
func (s *Service) deal(game *domain.Game, number, dealer int, deck []domain.Card) []Event {
	game.Phase = domain.PhaseDealing

	hands, trumpCard := domain.Deal(deck, domain.NumSeats)
	leader := domain.NextSeat(dealer)
	round := &domain.Round{
		Number:        number,
		Dealer:        dealer,
		Turn:          leader,
		Trump:         trumpCard.Suit,
		TrumpCard:     trumpCard,
		LastTrickTeam: domain.NoTeam,
	}

	events := make([]Event, 0, domain.NumSeats+1)
	events = append(events, Event{
		Kind: EventRoundStarted,
		Payload: RoundStartedPayload{
			Number:    number,
			Dealer:    dealer,
			Leader:    leader,
			TrumpCard: trumpCard,
		},
	})

	seat := leader
	for _, hand := range hands {
		domain.SortHand(hand)
		round.Hands[seat] = hand
		events = append(events, Event{
			Kind:       EventHandDealt,
			Payload:    HandDealtPayload{Seat: seat, Hand: append([]domain.Card{}, hand...)},
			Recipients: []int{seat},
		})
		seat = domain.NextSeat(seat)
	}

	game.Round = round
	game.Phase = domain.PhasePlaying
	return events
}

// PlayCard processes a card play and emits resulting events. The fourth card
// of a trick locks the round until ResolveTrick is called.
func (s *Service) PlayCard(game *domain.Game, seat int, card domain.Card) ([]Event, error) {
	if game == nil || game.Phase != domain.PhasePlaying || game.Round == nil {
		return nil, ErrNotPlaying
	}
	round := game.Round
	if round.Resolving {
		return nil, ErrTrickResolving
	}
	if seat < 0 || seat >= domain.NumSeats {
		return nil, ErrUnknownPlayer
	}
	if round.Turn != seat {
		return nil, ErrNotYourTurn
	}
	hand := round.Hands[seat]
	if !domain.ContainsCard(hand, card) {
		return nil, ErrInvalidCard
	}
	if !domain.IsLegalMove(hand, round.Trick, round.Trump, card) {
		return nil, ErrIllegalMove
	}

	round.Hands[seat], _ = domain.RemoveCard(hand, card)
	round.Trick = append(round.Trick, domain.Play{Seat: seat, Card: card})

	next := domain.NextSeat(seat)
	if len(round.Trick) == domain.NumSeats {
		round.Resolving = true
		next = -1
	} else {
		round.Turn = next
	}

	events := []Event{{
		Kind:    EventCardPlayed,
		Payload: CardPlayedPayload{Seat: seat, Card: card, NextTurn: next},
	}}
	if round.Resolving {
		events = append(events, Event{
			Kind:    EventTrickComplete,
			Payload: TrickCompletePayload{Trick: append(domain.Trick{}, round.Trick...)},
		})
	}
	return events, nil
}

// ResolveTrick scores the completed trick, hands the lead to its winner and
// finishes the round when the hands are empty.
func (s *Service) ResolveTrick(game *domain.Game) ([]Event, error) {
	if game == nil || game.Phase != domain.PhasePlaying || game.Round == nil || !game.Round.Resolving {
		return nil, ErrNotPlaying
	}
	round := game.Round

	winner, points := domain.TrickWinner(round.Trick, round.Trump)
	team := domain.TeamOf(winner)

	round.CardsWon[team] = append(round.CardsWon[team], round.Trick.Cards()...)
	round.TricksWon[team]++
	round.Tricks = append(round.Tricks, domain.CompletedTrick{
		Plays:  append([]domain.Play{}, round.Trick...),
		Winner: winner,
		Points: points,
	})
	round.LastTrickTeam = team
	round.Trick = nil
	round.Resolving = false
	round.Declined = [domain.NumTeams]bool{}
	round.Turn = winner

	events := []Event{{
		Kind:    EventTrickWon,
		Payload: TrickWonPayload{Winner: winner, Team: team, Points: points},
	}}

	if handsEmpty(round) {
		events = append(events, s.finishRound(game)...)
	}
	return events, nil
}

// Declare records a cante. A tute ends the round on the spot.
func (s *Service) Declare(game *domain.Game, seat int, kind domain.DeclarationKind, suit domain.Suit) ([]Event, error) {
	if game == nil || game.Phase != domain.PhasePlaying || game.Round == nil {
		return nil, ErrNotPlaying
	}
	if seat < 0 || seat >= domain.NumSeats {
		return nil, ErrUnknownPlayer
	}
	round := game.Round
	hand := round.Hands[seat]
	team := domain.TeamOf(seat)

	var decl domain.Declaration
	switch kind {
	case domain.Tute:
		if !domain.CanDeclareTute(hand, seat, round) {
			return nil, ErrCannotDeclare
		}
		decl = domain.Declaration{Seat: seat, Team: team, Kind: domain.Tute}
	case domain.Cante20, domain.Cante40:
		ok, avail := domain.CanDeclareCante(hand, seat, round)
		if !ok {
			return nil, ErrCannotDeclare
		}
		found := false
		for _, a := range avail {
			if a.Suit == suit {
				// Points follow the trump suit whatever the client labelled the cante.
				decl = domain.Declaration{Seat: seat, Team: team, Suit: suit, Points: a.Points, Kind: domain.Cante20}
				if a.Points == 40 {
					decl.Kind = domain.Cante40
				}
				found = true
				break
			}
		}
		if !found {
			return nil, ErrCannotDeclare
		}
	default:
		return nil, ErrCannotDeclare
	}

	round.Declared = append(round.Declared, decl)
	events := []Event{{
		Kind:    EventCanteDeclared,
		Payload: CanteDeclaredPayload{Declaration: decl},
	}}
	if decl.Kind == domain.Tute {
		events = append(events, s.finishRound(game)...)
	}
	return events, nil
}

// SkipDeclare closes the declaration window for the seat's team until the next trick.
func (s *Service) SkipDeclare(game *domain.Game, seat int) ([]Event, error) {
	if game == nil || game.Phase != domain.PhasePlaying || game.Round == nil {
		return nil, ErrNotPlaying
	}
	if seat < 0 || seat >= domain.NumSeats {
		return nil, ErrUnknownPlayer
	}
	if !domain.DeclarationWindowOpen(seat, game.Round) {
		return nil, ErrCannotDeclare
	}
	game.Round.Declined[domain.TeamOf(seat)] = true
	return []Event{{Kind: EventCanteSkipped, Payload: CanteSkippedPayload{Seat: seat}}}, nil
}

func (s *Service) finishRound(game *domain.Game) []Event {
	round := game.Round
	score := domain.CalculateRoundScore(round.CardsWon, round.DeclarationsByTeam(), round.LastTrickTeam)
	score.Round = round.Number
	round.Score = &score
	round.Resolving = false

	game.History = append(game.History, score)
	if score.Winner >= 0 {
		game.RoundWins[score.Winner]++
	}

	events := []Event{{
		Kind:    EventRoundEnded,
		Payload: RoundEndedPayload{Score: score, RoundWins: game.RoundWins},
	}}

	if score.Winner >= 0 && game.RoundWins[score.Winner] >= game.RoundsToWin {
		game.Phase = domain.PhaseGameEnd
		game.Winner = score.Winner
		events = append(events, Event{
			Kind:    EventGameEnded,
			Payload: GameEndedPayload{WinnerTeam: score.Winner, RoundWins: game.RoundWins},
		})
		return events
	}

	game.Phase = domain.PhaseRoundEnd
	return events
}

func handsEmpty(round *domain.Round) bool {
	for _, h := range round.Hands {
		if len(h) > 0 {
			return false
		}
	}
	return true
}
