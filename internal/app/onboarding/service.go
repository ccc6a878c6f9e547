package onboarding

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"tute/internal/ports"
)

// Result captures non-fatal onboarding outcomes.
type Result struct {
	// DisplayName is the name assigned to the new account.
	DisplayName string
}

// Service handles post-auth onboarding for new users.
type Service struct {
	accounts ports.AccountPort
	rng      *rand.Rand
}

// NewService constructs an onboarding service.
// accounts must be non-nil; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts: accounts,
		rng:      rng,
	}
}

// OnboardNewUser gives a newly created account a friendly display name so it
// shows up as something other than a device id at the card table.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (Result, error) {
	if s.accounts == nil {
		return Result{}, fmt.Errorf("onboarding service not configured")
	}
	if userID == "" {
		return Result{}, fmt.Errorf("onboarding requires a user id")
	}

	displayName := s.generateFriendlyName()
	if err := s.accounts.UpdateProfile(ctx, userID, "", displayName); err != nil {
		return Result{}, fmt.Errorf("failed to set display name: %w", err)
	}
	return Result{DisplayName: displayName}, nil
}

func (s *Service) generateFriendlyName() string {
	adjectives := []string{"Bravo", "Listo", "Veloz", "Tranquilo", "Astuto", "Feliz", "Audaz", "Sabio", "Pillo", "Valiente"}
	nouns := []string{"Rey", "Caballo", "Sota", "As", "Tres", "Oros", "Copas", "Espadas", "Bastos", "Triunfo"}

	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000

	return fmt.Sprintf("%s%s%d", noun, adj, num)
}
