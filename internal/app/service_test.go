package app

import (
	"errors"
	"math/rand"
	"testing"

	"tute/internal/domain"
)

func mustCard(t *testing.T, id string) domain.Card {
	t.Helper()
	c, err := domain.ParseCard(id)
	if err != nil {
		t.Fatalf("parse %q: %v", id, err)
	}
	return c
}

// startOrdered deals the canonical deck: seat 0 holds oros, seat 3 copas,
// seat 2 espadas and the dealer, seat 1, bastos with bastos-12 as trump.
func startOrdered(t *testing.T) (*Service, *domain.Game) {
	t.Helper()
	svc := NewService(rand.New(rand.NewSource(1)))
	game, _, err := svc.StartGameWithDeck(0, domain.NewDeck())
	if err != nil {
		t.Fatalf("start game error: %v", err)
	}
	return svc, game
}

func TestStartGameDealsHands(t *testing.T) {
	svc := NewService(rand.New(rand.NewSource(42)))
	game, evs, err := svc.StartGame(0)
	if err != nil {
		t.Fatalf("start game error: %v", err)
	}
	if game.Phase != domain.PhasePlaying {
		t.Fatalf("phase = %s, want playing", game.Phase)
	}
	if game.RoundsToWin != domain.DefaultRoundsToWin {
		t.Fatalf("rounds to win = %d, want %d", game.RoundsToWin, domain.DefaultRoundsToWin)
	}

	handEvents := 0
	for _, ev := range evs {
		if ev.Kind != EventHandDealt {
			continue
		}
		handEvents++
		payload := ev.Payload.(HandDealtPayload)
		if len(payload.Hand) != domain.HandSize {
			t.Fatalf("hand size = %d, want %d", len(payload.Hand), domain.HandSize)
		}
		if len(ev.Recipients) != 1 || ev.Recipients[0] != payload.Seat {
			t.Fatalf("hand for seat %d addressed to %v", payload.Seat, ev.Recipients)
		}
	}
	if handEvents != domain.NumSeats {
		t.Fatalf("hand events = %d, want %d", handEvents, domain.NumSeats)
	}
	if got := game.Round.CardCount(); got != domain.DeckSize {
		t.Fatalf("card count = %d, want %d", got, domain.DeckSize)
	}
}

func TestStartGameWithOrderedDeck(t *testing.T) {
	_, game := startOrdered(t)
	r := game.Round

	if r.Dealer != FirstDealer || r.Turn != 0 {
		t.Fatalf("dealer=%d turn=%d, want dealer %d and seat 0 leading", r.Dealer, r.Turn, FirstDealer)
	}
	if r.Trump != domain.Bastos || r.TrumpCard.ID() != "bastos-12" {
		t.Fatalf("trump = %s (%s), want bastos-12", r.Trump, r.TrumpCard)
	}
	want := map[int]domain.Suit{0: domain.Oros, 3: domain.Copas, 2: domain.Espadas, 1: domain.Bastos}
	for seat, suit := range want {
		if n := len(domain.CardsOfSuit(r.Hands[seat], suit)); n != domain.HandSize {
			t.Fatalf("seat %d holds %d %s cards, want %d", seat, n, suit, domain.HandSize)
		}
	}
}

func TestPlayCard_SameSeatTwiceRejected(t *testing.T) {
	svc, game := startOrdered(t)

	if _, err := svc.PlayCard(game, 0, mustCard(t, "oros-1")); err != nil {
		t.Fatalf("first play: %v", err)
	}
	_, err := svc.PlayCard(game, 0, mustCard(t, "oros-3"))
	if !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("second play err = %v, want %v", err, ErrNotYourTurn)
	}
	if len(game.Round.Trick) != 1 {
		t.Fatalf("trick mutated by rejected play: %v", game.Round.Trick)
	}
	if game.Round.Turn != 3 {
		t.Fatalf("turn = %d, want 3 (counter-clockwise)", game.Round.Turn)
	}
}

func TestPlayCard_Rejections(t *testing.T) {
	svc, game := startOrdered(t)
	if _, err := svc.PlayCard(game, 0, mustCard(t, "oros-1")); err != nil {
		t.Fatalf("lead: %v", err)
	}

	tests := []struct {
		name string
		seat int
		card string
		want error
	}{
		{name: "Card not held", seat: 3, card: "oros-2", want: ErrInvalidCard},
		{name: "Out of turn", seat: 1, card: "bastos-2", want: ErrNotYourTurn},
		{name: "Unknown seat", seat: 7, card: "copas-2", want: ErrUnknownPlayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(game.Round.Trick)
			_, err := svc.PlayCard(game, tt.seat, mustCard(t, tt.card))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(game.Round.Trick) != before {
				t.Fatalf("rejected play mutated the trick")
			}
		})
	}
}

func TestPlayCard_IllegalMove(t *testing.T) {
	svc, game := startOrdered(t)
	r := game.Round
	r.Hands[0] = []domain.Card{mustCard(t, "oros-4")}
	r.Hands[3] = []domain.Card{mustCard(t, "oros-5"), mustCard(t, "oros-2"), mustCard(t, "copas-1")}

	if _, err := svc.PlayCard(game, 0, mustCard(t, "oros-4")); err != nil {
		t.Fatalf("lead: %v", err)
	}
	// Seat 3 can overtake with oros-5 so oros-2 and copas-1 are illegal.
	for _, id := range []string{"oros-2", "copas-1"} {
		if _, err := svc.PlayCard(game, 3, mustCard(t, id)); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("play %s err = %v, want %v", id, err, ErrIllegalMove)
		}
	}
	if _, err := svc.PlayCard(game, 3, mustCard(t, "oros-5")); err != nil {
		t.Fatalf("overtaking play: %v", err)
	}
}

func TestTrickResolution(t *testing.T) {
	svc, game := startOrdered(t)
	plays := []struct {
		seat int
		card string
	}{
		{0, "oros-1"}, {3, "copas-2"}, {2, "espadas-2"}, {1, "bastos-2"},
	}

	var last []Event
	for _, p := range plays {
		evs, err := svc.PlayCard(game, p.seat, mustCard(t, p.card))
		if err != nil {
			t.Fatalf("seat %d play %s: %v", p.seat, p.card, err)
		}
		last = evs
	}

	if !game.Round.Resolving {
		t.Fatalf("round should be resolving after the fourth card")
	}
	if last[len(last)-1].Kind != EventTrickComplete {
		t.Fatalf("last event = %s, want %s", last[len(last)-1].Kind, EventTrickComplete)
	}
	if _, err := svc.PlayCard(game, 1, mustCard(t, "bastos-4")); !errors.Is(err, ErrTrickResolving) {
		t.Fatalf("play during resolution err = %v, want %v", err, ErrTrickResolving)
	}

	evs, err := svc.ResolveTrick(game)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	won := evs[0].Payload.(TrickWonPayload)
	if won.Winner != 1 || won.Team != 1 || won.Points != 11 {
		t.Fatalf("trick won = %+v, want seat 1 team 1 with 11 points", won)
	}
	r := game.Round
	if r.Turn != 1 || r.LastTrickTeam != 1 || r.TricksWon[1] != 1 || len(r.Trick) != 0 {
		t.Fatalf("round after resolve: turn=%d lastTeam=%d tricks=%v trick=%v", r.Turn, r.LastTrickTeam, r.TricksWon, r.Trick)
	}
	if got := r.CardCount(); got != domain.DeckSize {
		t.Fatalf("card count = %d, want %d", got, domain.DeckSize)
	}
	if _, err := svc.ResolveTrick(game); err == nil {
		t.Fatalf("resolving an empty trick should fail")
	}
}

func TestDeclare(t *testing.T) {
	svc, game := startOrdered(t)

	// Oros is not trump, so the cante counts 20 whatever the client asked for.
	evs, err := svc.Declare(game, 0, domain.Cante40, domain.Oros)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	decl := evs[0].Payload.(CanteDeclaredPayload).Declaration
	if decl.Kind != domain.Cante20 || decl.Points != 20 || decl.Team != 0 {
		t.Fatalf("declaration = %+v, want 20 for team 0", decl)
	}

	if _, err := svc.Declare(game, 2, domain.Cante20, domain.Espadas); !errors.Is(err, ErrCannotDeclare) {
		t.Fatalf("second cante by same team err = %v, want %v", err, ErrCannotDeclare)
	}

	if _, err := svc.SkipDeclare(game, 3); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if _, err := svc.Declare(game, 1, domain.Cante40, domain.Bastos); !errors.Is(err, ErrCannotDeclare) {
		t.Fatalf("cante after team skipped err = %v, want %v", err, ErrCannotDeclare)
	}
	if _, err := svc.SkipDeclare(game, 1); !errors.Is(err, ErrCannotDeclare) {
		t.Fatalf("second skip err = %v, want %v", err, ErrCannotDeclare)
	}
	if _, err := svc.Declare(game, 3, domain.Cante20, domain.Espadas); !errors.Is(err, ErrCannotDeclare) {
		t.Fatalf("cante by team that skipped err = %v, want %v", err, ErrCannotDeclare)
	}
}

func TestDeclareTuteEndsRound(t *testing.T) {
	svc, game := startOrdered(t)
	r := game.Round
	r.Hands[2] = []domain.Card{
		mustCard(t, "oros-12"), mustCard(t, "copas-12"), mustCard(t, "espadas-12"), mustCard(t, "bastos-12"),
	}
	r.Tricks = []domain.CompletedTrick{{Winner: 0}}
	r.TricksWon[0] = 1
	r.LastTrickTeam = 0
	game.RoundWins[0] = game.RoundsToWin - 2

	evs, err := svc.Declare(game, 2, domain.Tute, "")
	if err != nil {
		t.Fatalf("tute: %v", err)
	}
	if game.Phase != domain.PhaseRoundEnd {
		t.Fatalf("phase = %s, want %s", game.Phase, domain.PhaseRoundEnd)
	}
	if r.Score == nil || !r.Score.Tute || r.Score.Winner != 0 {
		t.Fatalf("score = %+v, want tute win for team 0", r.Score)
	}
	if evs[len(evs)-1].Kind != EventRoundEnded {
		t.Fatalf("last event = %s, want %s", evs[len(evs)-1].Kind, EventRoundEnded)
	}
	if _, err := svc.PlayCard(game, 0, mustCard(t, "oros-1")); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("play after round end err = %v, want %v", err, ErrNotPlaying)
	}

	if _, err := svc.NextRound(game); err != nil {
		t.Fatalf("next round: %v", err)
	}
	if game.Round.Number != 2 || game.Round.Dealer != 0 || game.Round.Turn != 3 {
		t.Fatalf("round %d dealer %d turn %d, want round 2 dealer 0 turn 3", game.Round.Number, game.Round.Dealer, game.Round.Turn)
	}
}

func TestDeclareTuteEndsGame(t *testing.T) {
	svc, game := startOrdered(t)
	r := game.Round
	r.Hands[1] = []domain.Card{
		mustCard(t, "oros-11"), mustCard(t, "copas-11"), mustCard(t, "espadas-11"), mustCard(t, "bastos-11"),
	}
	r.Tricks = []domain.CompletedTrick{{Winner: 1}}
	r.TricksWon[1] = 1
	r.LastTrickTeam = 1
	game.RoundWins[1] = game.RoundsToWin - 1

	evs, err := svc.Declare(game, 1, domain.Tute, "")
	if err != nil {
		t.Fatalf("tute: %v", err)
	}
	if game.Phase != domain.PhaseGameEnd || game.Winner != 1 {
		t.Fatalf("phase=%s winner=%d, want game_end for team 1", game.Phase, game.Winner)
	}
	if evs[len(evs)-1].Kind != EventGameEnded {
		t.Fatalf("last event = %s, want %s", evs[len(evs)-1].Kind, EventGameEnded)
	}
	if _, err := svc.NextRound(game); !errors.Is(err, ErrNotRoundEnd) {
		t.Fatalf("next round after game end err = %v, want %v", err, ErrNotRoundEnd)
	}
}

func TestFullGameConservesCardsAndPoints(t *testing.T) {
	svc := NewService(rand.New(rand.NewSource(7)))
	game, _, err := svc.StartGame(2)
	if err != nil {
		t.Fatalf("start game error: %v", err)
	}

	for steps := 0; game.Phase != domain.PhaseGameEnd; steps++ {
		if steps > 1000 {
			t.Fatalf("game did not finish")
		}
		switch {
		case game.Phase == domain.PhaseRoundEnd:
			score := game.Round.Score
			if total := score.Points[0] + score.Points[1]; total != 130 {
				t.Fatalf("round %d total = %d, want 130", score.Round, total)
			}
			if _, err := svc.NextRound(game); err != nil {
				t.Fatalf("next round: %v", err)
			}
		case game.Round.Resolving:
			if _, err := svc.ResolveTrick(game); err != nil {
				t.Fatalf("resolve: %v", err)
			}
		default:
			r := game.Round
			if got := r.CardCount(); got != domain.DeckSize {
				t.Fatalf("card count = %d, want %d", got, domain.DeckSize)
			}
			legal := domain.LegalMoves(r.Hands[r.Turn], r.Trick, r.Trump)
			if _, err := svc.PlayCard(game, r.Turn, legal[0]); err != nil {
				t.Fatalf("seat %d play %s: %v", r.Turn, legal[0], err)
			}
		}
	}

	if game.RoundWins[game.Winner] != 2 {
		t.Fatalf("winner %d has %d round wins, want 2", game.Winner, game.RoundWins[game.Winner])
	}
	if len(game.History) != game.RoundWins[0]+game.RoundWins[1] {
		t.Fatalf("history length %d does not match round wins %v", len(game.History), game.RoundWins)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(ErrRoomFull); got != "ROOM_FULL" {
		t.Fatalf("CodeOf(ErrRoomFull) = %s", got)
	}
	if got := CodeOf(errors.New("boom")); got != "INTERNAL" {
		t.Fatalf("CodeOf(plain) = %s", got)
	}
}
