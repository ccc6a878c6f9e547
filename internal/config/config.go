package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// GameConfig holds the tunables shared by every session variant.
type GameConfig struct {
	RoundsToWin int `json:"rounds_to_win" toml:"rounds_to_win"`
	// Cosmetic pacing, in milliseconds.
	TrickResolveDelayMs int `json:"trick_resolve_delay_ms" toml:"trick_resolve_delay_ms"`
	NextRoundDelayMs    int `json:"next_round_delay_ms" toml:"next_round_delay_ms"`
	BotMinDelayMs       int `json:"bot_min_delay_ms" toml:"bot_min_delay_ms"`
	BotMaxDelayMs       int `json:"bot_max_delay_ms" toml:"bot_max_delay_ms"`
	// BotLevel is the difficulty used for bot seats: random, good, smart or god.
	BotLevel string `json:"bot_level" toml:"bot_level"`
	// BotsEnabled lets a relay room fill empty seats with bots.
	BotsEnabled bool `json:"bots_enabled" toml:"bots_enabled"`
	// BotAutoFillDelaySeconds configures how long a lobby with a single human waits before bots join.
	BotAutoFillDelaySeconds int    `json:"bot_auto_fill_delay_seconds" toml:"bot_auto_fill_delay_seconds"`
	BotIdentitiesPath       string `json:"bot_identities_path" toml:"bot_identities_path"`
	// Standalone server settings.
	ListenAddr string `json:"listen_addr" toml:"listen_addr"`
	StateDir   string `json:"state_dir" toml:"state_dir"`
}

// Default returns the configuration used when no file is loaded.
func Default() GameConfig {
	return GameConfig{
		RoundsToWin:             3,
		TrickResolveDelayMs:     1500,
		NextRoundDelayMs:        3000,
		BotMinDelayMs:           600,
		BotMaxDelayMs:           1400,
		BotLevel:                "smart",
		BotAutoFillDelaySeconds: 5,
		ListenAddr:              ":8080",
	}
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path. Files
// ending in .toml are decoded as TOML, anything else as JSON. Unset fields
// keep their defaults. Only the first call has an effect.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		c, err := ReadFile(path)
		if err != nil {
			loadErr = err
			return
		}
		cfg = c
	})
	return loadErr
}

// ReadFile decodes a configuration file without touching the global config.
func ReadFile(path string) (*GameConfig, error) {
	c := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, &c); err != nil {
			return nil, fmt.Errorf("failed to decode game config: %w", err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read game config: %w", err)
		}
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
		}
	}
	c.normalize()
	return &c, nil
}

// GetGameConfig returns the global game configuration, or the defaults when
// nothing was loaded.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		d := Default()
		return &d
	}
	return cfg
}

func (c *GameConfig) normalize() {
	d := Default()
	if c.RoundsToWin <= 0 {
		c.RoundsToWin = d.RoundsToWin
	}
	if c.TrickResolveDelayMs < 0 {
		c.TrickResolveDelayMs = 0
	}
	if c.NextRoundDelayMs < 0 {
		c.NextRoundDelayMs = 0
	}
	if c.BotMinDelayMs < 0 {
		c.BotMinDelayMs = 0
	}
	if c.BotMaxDelayMs < c.BotMinDelayMs {
		c.BotMaxDelayMs = c.BotMinDelayMs
	}
	if c.BotLevel == "" {
		c.BotLevel = d.BotLevel
	}
}

// Timing converts the millisecond settings to durations.
func (c *GameConfig) Timing() Timing {
	return Timing{
		TrickResolve: time.Duration(c.TrickResolveDelayMs) * time.Millisecond,
		NextRound:    time.Duration(c.NextRoundDelayMs) * time.Millisecond,
		BotMin:       time.Duration(c.BotMinDelayMs) * time.Millisecond,
		BotMax:       time.Duration(c.BotMaxDelayMs) * time.Millisecond,
	}
}

// Timing is the cosmetic pacing applied by a room.
type Timing struct {
	TrickResolve time.Duration
	NextRound    time.Duration
	BotMin       time.Duration
	BotMax       time.Duration
}
