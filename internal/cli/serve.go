package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tute/internal/logging"
	"tute/internal/ports"
	"tute/internal/ports/filestore"
	"tute/internal/ports/ws"
	"tute/internal/session"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket relay server",
	Long: `Serve hosts any number of rooms for websocket clients on /ws.

Rooms are kept in memory unless --state-dir is given, in which case every
room is snapshotted after each change and reopened on restart; players then
come back with RECONNECT.

Examples:
  tute serve --addr :8080
  tute serve --config tute.toml --state-dir ./rooms --origin https://play.example`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.ListenAddr
		}
		stateDir, _ := cmd.Flags().GetString("state-dir")
		if stateDir == "" {
			stateDir = cfg.StateDir
		}
		origins, _ := cmd.Flags().GetStringSlice("origin")

		logger, err := logging.NewConsole(debug)
		if err != nil {
			return err
		}
		defer logger.Sync()

		var store ports.RoomStore
		if stateDir != "" {
			fs, err := filestore.New(stateDir)
			if err != nil {
				return err
			}
			store = fs
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hub := ws.NewHub(logger)
		relay := session.NewRelay(session.OptionsFrom(cfg, logger), hub, store)
		defer relay.Close()
		if err := relay.Restore(ctx); err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           ws.NewServer(hub, relay, logger, origins).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("serve: listening on %s (%d rooms restored)", addr, len(relay.Rooms()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("serve: stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().String("state-dir", "", "directory for room snapshots")
	serveCmd.Flags().StringSlice("origin", nil, "allowed browser origins (repeatable; empty allows any)")
}
