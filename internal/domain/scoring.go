package domain

// RoundScore is the canonical per-round score record.
type RoundScore struct {
	Round         int           `json:"round"`
	Points        [NumTeams]int `json:"points"`
	Winner        int           `json:"winner"`
	Tute          bool          `json:"tute"`
	LastTrickTeam int           `json:"last_trick_team"`
}

// CalculateRoundScore totals card points, the last-trick bonus and 20/40
// cantes per team. A tute wins the round outright; an exact tie goes to the
// team that took the last trick.
func CalculateRoundScore(cardsWon [NumTeams][]Card, declarations [NumTeams][]Declaration, lastTrickTeam int) RoundScore {
	score := RoundScore{Winner: NoTeam, LastTrickTeam: lastTrickTeam}
	for team := 0; team < NumTeams; team++ {
		score.Points[team] = TotalPoints(cardsWon[team])
		for _, d := range declarations[team] {
			if d.Kind == Tute {
				score.Tute = true
				score.Winner = team
				continue
			}
			score.Points[team] += d.Points
		}
	}
	// A tute ends the round before the last trick is played, so no bonus applies.
	if score.Tute {
		return score
	}
	if lastTrickTeam >= 0 && lastTrickTeam < NumTeams {
		score.Points[lastTrickTeam] += LastTrickBonus
	}

	switch {
	case score.Points[0] > score.Points[1]:
		score.Winner = 0
	case score.Points[1] > score.Points[0]:
		score.Winner = 1
	default:
		score.Winner = lastTrickTeam
	}
	return score
}
