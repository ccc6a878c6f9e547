package cli

import (
	"context"
	"os"
	"os/signal"

	"tute/internal/bot"
	"tute/internal/protocol"
	"tute/internal/session"

	"github.com/spf13/cobra"
)

var soloCmd = &cobra.Command{
	Use:   "solo",
	Short: "Play against three bots",
	Long: `Solo deals a game on this machine with you and three bots. Your partner
sits across the table at seat 2.

Examples:
  tute solo
  tute solo --name Ana --level god`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		levelFlag, _ := cmd.Flags().GetString("level")
		if levelFlag == "" {
			levelFlag = cfg.BotLevel
		}
		level, err := bot.ParseLevel(levelFlag)
		if err != nil {
			return err
		}
		logger, err := tableLogger()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		local := session.NewLocal(session.OptionsFrom(cfg, logger), level, 256)
		defer local.Close()
		me, err := local.Start(ctx, name)
		if err != nil {
			return err
		}

		con := newConsole(os.Stdout)
		return runTable(ctx, con, os.Stdin, local.Messages(), func(ctx context.Context, in protocol.Intent) error {
			return session.Dispatch(ctx, local, me.PlayerID, in)
		})
	},
}

func init() {
	soloCmd.Flags().String("name", "", "your display name")
	soloCmd.Flags().String("level", "", "bot level: random, good, smart or god (default from config)")
}
