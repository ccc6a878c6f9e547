package bot

import (
	"fmt"
	"math/rand"
	"time"
)

// NewBrain creates a new AI brain based on the specified level.
// rng is only used by LevelRandom and may be nil.
func NewBrain(level BotLevel, rng *rand.Rand) (Brain, error) {
	switch level {
	case LevelRandom:
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		return &RandomBot{rng: rng}, nil
	case LevelGood:
		return &GoodBot{}, nil
	case LevelSmart:
		return &SmartBot{}, nil
	case LevelGod:
		return &GodBot{}, nil
	default:
		return nil, fmt.Errorf("unknown bot level: %d", level)
	}
}
