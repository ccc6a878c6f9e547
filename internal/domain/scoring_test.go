package domain

import (
	"math/rand"
	"testing"
)

func TestCalculateRoundScore(t *testing.T) {
	deck := NewDeck()
	// Team 0 takes oros and copas, team 1 espadas and bastos: 60 card points each.
	split := [NumTeams][]Card{deck[:20], deck[20:]}

	tests := []struct {
		name          string
		declarations  [NumTeams][]Declaration
		lastTrickTeam int
		wantPoints    [NumTeams]int
		wantWinner    int
		wantTute      bool
	}{
		{
			name:          "Tie broken by last trick",
			lastTrickTeam: 1,
			wantPoints:    [NumTeams]int{60, 70},
			wantWinner:    1,
		},
		{
			name:          "Cantes count",
			declarations:  [NumTeams][]Declaration{{{Team: 0, Kind: Cante40, Suit: Oros, Points: 40}}, nil},
			lastTrickTeam: 1,
			wantPoints:    [NumTeams]int{100, 70},
			wantWinner:    0,
		},
		{
			name:          "Tute overrides points",
			declarations:  [NumTeams][]Declaration{nil, {{Team: 1, Kind: Tute}}},
			lastTrickTeam: 0,
			wantPoints:    [NumTeams]int{60, 60},
			wantWinner:    1,
			wantTute:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateRoundScore(split, tt.declarations, tt.lastTrickTeam)
			if got.Points != tt.wantPoints {
				t.Errorf("points = %v, want %v", got.Points, tt.wantPoints)
			}
			if got.Winner != tt.wantWinner {
				t.Errorf("winner = %d, want %d", got.Winner, tt.wantWinner)
			}
			if got.Tute != tt.wantTute {
				t.Errorf("tute = %t, want %t", got.Tute, tt.wantTute)
			}
		})
	}
}

func TestCalculateRoundScore_Conserves130(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for iter := 0; iter < 100; iter++ {
		deck := ShuffleDeck(NewDeck(), rng)
		cut := rng.Intn(DeckSize + 1)
		score := CalculateRoundScore([NumTeams][]Card{deck[:cut], deck[cut:]}, [NumTeams][]Declaration{}, rng.Intn(NumTeams))
		if total := score.Points[0] + score.Points[1]; total != 130 {
			t.Fatalf("total points = %d, want 130", total)
		}
	}
}
