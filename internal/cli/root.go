// Package cli is the tute command line: a websocket relay server, a peer-mesh
// host and client, and a single-player table against bots.
package cli

import (
	"context"
	"io"

	"tute/internal/bot"
	"tute/internal/config"
	"tute/internal/logging"
	"tute/internal/protocol"
	"tute/internal/session"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "tute",
	Short: "Play and host Tute, the four-player Spanish trump game",
	Long: `Tute is played by two teams of two with the 40-card Spanish deck.

Run a relay server for many rooms with 'tute serve', host a table for friends
with 'tute host' and let them connect with 'tute join', or practise against
three bots with 'tute solo'.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "game config file (.toml or .json)")
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(hostCmd)
	RootCmd.AddCommand(joinCmd)
	RootCmd.AddCommand(soloCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig reads --config when given and the bot identities it names.
func loadConfig() (*config.GameConfig, error) {
	if configPath != "" {
		if err := config.LoadGameConfig(configPath); err != nil {
			return nil, err
		}
	}
	cfg := config.GetGameConfig()
	if cfg.BotIdentitiesPath != "" {
		if err := bot.LoadIdentities(cfg.BotIdentitiesPath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// tableLogger keeps interactive screens clean unless --debug is set.
func tableLogger() (runtime.Logger, error) {
	if !debug {
		return logging.Nop(), nil
	}
	return logging.NewConsole(true)
}

// runTable drives an in-process table: coordinator messages are rendered and
// typed lines are applied through act until the user quits or ctx ends.
func runTable(ctx context.Context, con *console, in io.Reader, msgs <-chan session.Outbound, act func(context.Context, protocol.Intent) error) error {
	lines := readLines(ctx, in)
	con.printf("%s\n", "type help for commands")
	for {
		select {
		case <-ctx.Done():
			return nil
		case o := <-msgs:
			con.outbound(o)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := con.command(ctx, line, act); err != nil {
				return nil
			}
		}
	}
}
