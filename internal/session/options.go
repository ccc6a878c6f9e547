package session

import (
	"time"

	"tute/internal/bot"
	"tute/internal/config"
	"tute/internal/logging"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Options configures a room.
type Options struct {
	RoundsToWin int
	Timing      config.Timing
	BotLevel    bot.BotLevel
	// Seed fixes the room's shuffles and bot delays; zero seeds from the clock.
	Seed   int64
	Logger runtime.Logger
	Clock  func() time.Time
}

// OptionsFrom builds room options from the game configuration.
func OptionsFrom(cfg *config.GameConfig, logger runtime.Logger) Options {
	level, err := bot.ParseLevel(cfg.BotLevel)
	if err != nil {
		level = bot.LevelSmart
	}
	return Options{
		RoundsToWin: cfg.RoundsToWin,
		Timing:      cfg.Timing(),
		BotLevel:    level,
		Logger:      logger,
	}
}

func (o Options) withDefaults() Options {
	if o.RoundsToWin <= 0 {
		o.RoundsToWin = config.Default().RoundsToWin
	}
	if o.BotLevel == 0 {
		o.BotLevel = bot.LevelSmart
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
