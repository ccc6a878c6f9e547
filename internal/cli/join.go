package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"tute/internal/ports/ws"
	"tute/internal/protocol"
	"tute/internal/session"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join [url]",
	Short: "Join a table hosted with 'tute host'",
	Long: `Join connects to a host's table and takes a free seat. To take your seat
back after losing the connection, pass the player id and secret printed when
you first joined.

Examples:
  tute join ws://192.168.1.20:7777/mesh --name Bea
  tute join ws://192.168.1.20:7777/mesh --player-id <id> --secret <secret>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		playerID, _ := cmd.Flags().GetString("player-id")
		secret, _ := cmd.Flags().GetString("secret")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		pc, err := ws.DialMesh(ctx, args[0])
		if err != nil {
			return err
		}
		defer pc.Close()

		peer := session.NewMeshPeer(pc)
		linkErr := make(chan error, 1)
		go func() { linkErr <- pc.Run(ctx, peer.Handle) }()

		if playerID != "" {
			err = peer.Rejoin(ctx, playerID, secret)
		} else {
			err = peer.Join(ctx, name)
		}
		if err != nil {
			return err
		}

		con := newConsole(os.Stdout)
		con.printf("%s\n", "type help for commands")
		return followPeer(ctx, con, peer, readLines(ctx, os.Stdin), linkErr)
	},
}

// followPeer renders the peer's state as the host updates it and sends typed
// commands to the host.
func followPeer(ctx context.Context, con *console, peer *session.MeshPeer, lines <-chan string, linkErr <-chan error) error {
	announced := false
	act := func(ctx context.Context, in protocol.Intent) error {
		if in.Type == protocol.TypeLeaveRoom {
			return peer.Leave(ctx)
		}
		return peer.Act(ctx, in)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-linkErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("lost connection to host: %w", err)
		case <-peer.Updates():
			if creds, ok := peer.Credentials(); ok && !announced {
				announced = true
				con.joined(creds)
				con.printf("%s --player-id %s --secret %s\n", colorize.CyanString("Rejoin with:"), creds.PlayerID, creds.PlayerSecret)
			}
			for _, env := range peer.DrainEvents() {
				con.envelope(env)
			}
			if e := peer.TakeError(); e != nil {
				con.failure(*e)
			}
			if v, ok := peer.State(); ok {
				con.view(v)
			}
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

func init() {
	joinCmd.Flags().String("name", "", "your display name")
	joinCmd.Flags().String("player-id", "", "player id from an earlier join")
	joinCmd.Flags().String("secret", "", "player secret from an earlier join")
}
