package nakama

import (
	"context"
	"database/sql"

	"tute/internal/bot"
	"tute/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires RPCs, hooks and the match handler for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := RegisterRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameTute, NewMatch); err != nil {
		return err
	}

	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if path := env[envConfigPath]; path != "" {
		if err := config.LoadGameConfig(path); err != nil {
			logger.Warn("InitModule: Could not load game config: %v", err)
		}
	}
	if path := config.GetGameConfig().BotIdentitiesPath; path != "" {
		if err := bot.LoadIdentities(path); err != nil {
			logger.Warn("InitModule: Could not load bot identities: %v", err)
		} else {
			bot.ProvisionBots(ctx, nk, logger)
		}
	}

	logger.Info("Tute Go module loaded.")
	return nil
}
