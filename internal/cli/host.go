package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"tute/internal/bot"
	"tute/internal/ports/ws"
	"tute/internal/protocol"
	"tute/internal/session"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Host a table for friends and play at it",
	Long: `Host opens a table on this machine and seats you at it. Friends connect
with 'tute join ws://<your-address>/mesh'. Empty seats can be given to bots.

Examples:
  tute host --name Ana
  tute host --addr :9000 --bots 2 --level god`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		name, _ := cmd.Flags().GetString("name")
		code, _ := cmd.Flags().GetString("code")
		bots, _ := cmd.Flags().GetInt("bots")
		levelFlag, _ := cmd.Flags().GetString("level")

		level, err := bot.ParseLevel(levelFlag)
		if err != nil {
			return err
		}
		if code == "" {
			code = protocol.NewRoomCode(rand.New(rand.NewSource(time.Now().UnixNano())))
		}
		code = protocol.NormalizeRoomCode(code)
		if !protocol.ValidRoomCode(code) {
			return fmt.Errorf("invalid room code %q", code)
		}

		logger, err := tableLogger()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		msgs := make(chan session.Outbound, 256)
		local := session.SinkFunc(func(_ string, o session.Outbound) {
			select {
			case msgs <- o:
			default:
			}
		})

		hub := ws.NewMeshHub(logger)
		host := session.NewMeshHost(code, session.OptionsFrom(cfg, logger), hub, local)
		hub.Attach(host)

		srv := &http.Server{Addr: addr, Handler: hub.Handler(), ReadHeaderTimeout: 10 * time.Second}
		serveErr := make(chan error, 1)
		go func() { serveErr <- srv.ListenAndServe() }()
		defer srv.Close()
		go host.Run(ctx)

		me, err := host.CreateRoom(ctx, name)
		if err != nil {
			return err
		}
		if bots > 0 {
			if err := host.AddBots(ctx, bots, level); err != nil {
				return err
			}
		}

		con := newConsole(os.Stdout)
		con.printf("%s tute join ws://<this-machine>%s/mesh\n", colorize.CyanString("Friends join with:"), addr)

		done := make(chan error, 1)
		go func() {
			done <- runTable(ctx, con, os.Stdin, msgs, func(ctx context.Context, in protocol.Intent) error {
				return session.Dispatch(ctx, host, me.PlayerID, in)
			})
		}()
		select {
		case err := <-done:
			return err
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("mesh listener: %w", err)
		}
	},
}

func init() {
	hostCmd.Flags().String("addr", ":7777", "address peers connect to")
	hostCmd.Flags().String("name", "", "your display name")
	hostCmd.Flags().String("code", "", "room code (random when empty)")
	hostCmd.Flags().Int("bots", 0, "seats to give to bots right away")
	hostCmd.Flags().String("level", "smart", "bot level: random, good, smart or god")
}
