package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tute/internal/app"
	"tute/internal/domain"
	"tute/internal/protocol"
	"tute/internal/session"

	colorize "github.com/fatih/color"
	"golang.org/x/term"
)

var errQuit = errors.New("quit")

const helpText = `commands:
  start                 start the game (host only)
  p <n> | play <card>   play the n-th card of your hand, or a card id like oros-1
  c <20|40> <suit>      sing a cante (cante 40 copas)
  tute                  claim tute
  skip                  let the declaration window pass
  leave                 give up your seat
  help                  show this text
  quit                  exit`

// console renders a table on a terminal and turns typed lines into intents.
type console struct {
	out   io.Writer
	width int
	last  app.View
	has   bool
}

func newConsole(out io.Writer) *console {
	width := 80
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = w
		}
	}
	return &console{out: out, width: width}
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) rule() {
	c.printf("%s\n", strings.Repeat("─", min(c.width, 72)))
}

func (c *console) nameOf(pos int) string {
	for _, p := range c.last.Players {
		if p.Position == pos {
			return p.Name
		}
	}
	return fmt.Sprintf("seat %d", pos)
}

// outbound renders a message from an in-process coordinator.
func (c *console) outbound(o session.Outbound) {
	frame, err := o.Encode()
	if err != nil {
		c.printf("%s\n", colorize.RedString("cannot render %s: %v", o.Type, err))
		return
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		return
	}
	c.envelope(env)
}

// envelope renders one coordinator message.
func (c *console) envelope(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeGameState:
		var gs protocol.GameState
		if env.Into(&gs) == nil {
			c.view(gs.State)
		}
	case protocol.TypeRoomCreated, protocol.TypeJoinedRoom, protocol.TypeRoomJoined:
		var j protocol.RoomJoined
		if env.Into(&j) == nil {
			c.joined(j)
		}
	case protocol.TypeRoomState:
		var rs protocol.RoomState
		if env.Into(&rs) == nil {
			c.roster(rs)
		}
	case protocol.TypePlayerJoined, protocol.TypePlayerLeft, protocol.TypePlayerDisconnected, protocol.TypePlayerReconnected:
		var pe protocol.PlayerEvent
		if env.Into(&pe) == nil {
			name := pe.Name
			if name == "" {
				name = c.nameOf(pe.Position)
			}
			verb := strings.ToLower(strings.TrimPrefix(string(env.Type), "PLAYER_"))
			c.printf("%s %s %s\n", colorize.YellowString("*"), name, verb)
		}
	case protocol.TypeGameStarting:
		var gs protocol.GameStarting
		if env.Into(&gs) == nil {
			c.printf("%s first team to %d rounds wins\n", colorize.HiMagentaString("Game starting:"), gs.RoundsToWin)
		}
	case protocol.TypeCardPlayed:
		var cp protocol.CardPlayed
		if env.Into(&cp) == nil {
			c.printf("  %s plays %s\n", c.nameOf(cp.Position), cardLabel(cp.CardID))
		}
	case protocol.TypeTrickWon:
		var tw protocol.TrickWon
		if env.Into(&tw) == nil {
			c.printf("  %s takes the trick (%d points)\n", colorize.HiWhiteString("%s", c.nameOf(tw.Position)), tw.Points)
		}
	case protocol.TypeCanteDeclared:
		var cd protocol.CanteDeclared
		if env.Into(&cd) == nil {
			what := "tute"
			if cd.CanteType != domain.Tute {
				what = fmt.Sprintf("las %s en %s", cd.CanteType, cd.Suit)
			}
			c.printf("  %s sings %s\n", colorize.HiMagentaString("%s", c.nameOf(cd.Position)), what)
		}
	case protocol.TypeRoundEnd:
		var re protocol.RoundEnd
		if env.Into(&re) == nil {
			c.rule()
			c.printf("%s round %d: team 0 %d, team 1 %d points; rounds %d-%d\n",
				colorize.CyanString("Round over:"), re.Scores.Round,
				re.Scores.Points[0], re.Scores.Points[1], re.RoundWins[0], re.RoundWins[1])
		}
	case protocol.TypeGameEnd:
		var ge protocol.GameEnd
		if env.Into(&ge) == nil {
			c.rule()
			c.printf("%s team %d wins %d-%d\n", colorize.HiGreenString("Game over:"),
				ge.WinnerTeam, ge.RoundWins[0], ge.RoundWins[1])
		}
	case protocol.TypeError:
		var e protocol.Error
		if env.Into(&e) == nil {
			c.failure(e)
		}
	}
}

func (c *console) failure(e protocol.Error) {
	c.printf("%s %s (%s)\n", colorize.RedString("!"), e.Message, e.Code)
}

func (c *console) joined(j protocol.RoomJoined) {
	c.printf("%s %s  %s seat %d\n", colorize.CyanString("Room:"), colorize.HiWhiteString("%s", j.RoomCode),
		colorize.CyanString("You:"), j.Position)
}

func (c *console) roster(rs protocol.RoomState) {
	c.printf("%s %s\n", colorize.CyanString("Room"), colorize.HiWhiteString("%s", rs.RoomCode))
	for _, p := range rs.Players {
		c.printf("  %d %s\n", p.Position, playerLabel(p))
	}
	if rs.CanStart {
		c.printf("%s\n", colorize.GreenString("Table is full, the host can start."))
	}
}

// view draws the table. Identical versions are not redrawn.
func (c *console) view(v app.View) {
	if c.has && v.Version == c.last.Version && v.Phase == c.last.Phase && len(v.LegalMoves) == len(c.last.LegalMoves) {
		return
	}
	c.last, c.has = v, true

	c.rule()
	if v.Phase == domain.PhaseWaiting {
		c.printf("%s waiting for players\n", colorize.CyanString("Lobby:"))
		for _, p := range v.Players {
			c.printf("  %d %s\n", p.Position, playerLabel(p))
		}
		return
	}

	c.printf("%s %d  %s %s (%s)  %s %d-%d  %s %d-%d of %d\n",
		colorize.CyanString("Round"), v.Round,
		colorize.CyanString("Trump"), colorize.HiWhiteString("%s", string(v.Trump)), cardLabel(v.TrumpCard),
		colorize.CyanString("Points"), v.Points[0], v.Points[1],
		colorize.CyanString("Rounds"), v.RoundWins[0], v.RoundWins[1], v.RoundsToWin)
	for _, p := range v.Players {
		marker := " "
		if p.Position == v.Turn {
			marker = colorize.HiYellowString(">")
		}
		c.printf(" %s %d %s  team %d  %d cards\n", marker, p.Position, playerLabel(p), p.Team, p.HandSize)
	}

	if len(v.Trick) > 0 {
		plays := make([]string, 0, len(v.Trick))
		for _, pl := range v.Trick {
			plays = append(plays, fmt.Sprintf("%s:%s", c.nameOf(pl.Position), cardLabel(pl.CardID)))
		}
		c.printf("%s %s\n", colorize.CyanString("Trick:"), strings.Join(plays, "  "))
	}
	for _, d := range v.Declarations {
		c.printf("%s %s %s %s\n", colorize.CyanString("Sung:"), c.nameOf(d.Seat), d.Kind, d.Suit)
	}

	if len(v.Hand) > 0 {
		legal := make(map[string]bool, len(v.LegalMoves))
		for _, id := range v.LegalMoves {
			legal[id] = true
		}
		cards := make([]string, 0, len(v.Hand))
		for i, id := range v.Hand {
			label := fmt.Sprintf("%d:%s", i+1, cardLabel(id))
			if legal[id] {
				label = colorize.HiGreenString("%s", label)
			}
			cards = append(cards, label)
		}
		c.printf("%s %s\n", colorize.CyanString("Hand:"), strings.Join(cards, " "))
	}
	if len(v.Cantes) > 0 || v.CanTute {
		var opts []string
		for _, ct := range v.Cantes {
			opts = append(opts, fmt.Sprintf("c %d %s", ct.Points, ct.Suit))
		}
		if v.CanTute {
			opts = append(opts, "tute")
		}
		c.printf("%s %s or skip\n", colorize.HiMagentaString("You may sing:"), strings.Join(opts, ", "))
	}
	if v.Phase == domain.PhasePlaying && v.Turn == v.You && len(v.LegalMoves) > 0 {
		c.printf("%s\n", colorize.HiYellowString("Your turn."))
	}
}

// parse turns a typed line into an intent. The last rendered view resolves
// hand positions.
func (c *console) parse(line string) (protocol.Intent, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return protocol.Intent{}, errors.New("empty command")
	}
	switch fields[0] {
	case "quit", "exit", "q":
		return protocol.Intent{}, errQuit
	case "start", "s":
		return protocol.Intent{Type: protocol.TypeStartGame}, nil
	case "leave":
		return protocol.Intent{Type: protocol.TypeLeaveRoom}, nil
	case "skip":
		return protocol.Intent{Type: protocol.TypeSkipCante}, nil
	case "tute":
		return protocol.Intent{Type: protocol.TypeDeclareCante, CanteType: domain.Tute}, nil
	case "p", "play":
		if len(fields) != 2 {
			return protocol.Intent{}, errors.New("usage: play <n|card>")
		}
		id, err := c.cardArg(fields[1])
		if err != nil {
			return protocol.Intent{}, err
		}
		return protocol.Intent{Type: protocol.TypePlayCard, CardID: id}, nil
	case "c", "cante":
		if len(fields) != 3 {
			return protocol.Intent{}, errors.New("usage: cante <20|40> <suit>")
		}
		kind := domain.DeclarationKind(fields[1])
		if kind != domain.Cante20 && kind != domain.Cante40 {
			return protocol.Intent{}, fmt.Errorf("unknown cante %q", fields[1])
		}
		suit := domain.Suit(fields[2])
		if !suit.Valid() {
			return protocol.Intent{}, fmt.Errorf("unknown suit %q", fields[2])
		}
		return protocol.Intent{Type: protocol.TypeDeclareCante, CanteType: kind, Suit: suit}, nil
	}
	return protocol.Intent{}, fmt.Errorf("unknown command %q, try help", fields[0])
}

func (c *console) cardArg(arg string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if !c.has || n < 1 || n > len(c.last.Hand) {
			return "", fmt.Errorf("no card %d in hand", n)
		}
		return c.last.Hand[n-1], nil
	}
	card, err := domain.ParseCard(arg)
	if err != nil {
		return "", err
	}
	return card.ID(), nil
}

func playerLabel(p app.PlayerView) string {
	name := colorize.HiWhiteString("%s", p.Name)
	var tags []string
	if p.IsHost {
		tags = append(tags, "host")
	}
	if p.IsBot {
		tags = append(tags, "bot")
	}
	if !p.Connected {
		tags = append(tags, colorize.RedString("away"))
	}
	if len(tags) == 0 {
		return name
	}
	return name + " [" + strings.Join(tags, ", ") + "]"
}

var suitColors = map[domain.Suit]func(format string, a ...interface{}) string{
	domain.Oros:    colorize.YellowString,
	domain.Copas:   colorize.RedString,
	domain.Espadas: colorize.BlueString,
	domain.Bastos:  colorize.GreenString,
}

func cardLabel(id string) string {
	card, err := domain.ParseCard(id)
	if err != nil {
		return id
	}
	if paint, ok := suitColors[card.Suit]; ok {
		return paint("%s", card.ID())
	}
	return card.ID()
}

// readLines streams stdin lines until ctx ends or input closes.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// command handles one typed line: help and parse errors are answered locally,
// intents go to act. It returns errQuit when the user asks to leave.
func (c *console) command(ctx context.Context, line string, act func(context.Context, protocol.Intent) error) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if line == "help" || line == "?" {
		c.printf("%s\n", helpText)
		return nil
	}
	in, err := c.parse(line)
	if errors.Is(err, errQuit) {
		return errQuit
	}
	if err != nil {
		c.printf("%s %v\n", colorize.RedString("!"), err)
		return nil
	}
	if err := act(ctx, in); err != nil {
		c.failure(protocol.ErrorFrom(err))
	}
	return nil
}
