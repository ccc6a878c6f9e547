package session

import (
	"fmt"
	"math/rand"
	"time"

	"tute/internal/app"
	"tute/internal/bot"
	"tute/internal/domain"
	"tute/internal/protocol"

	"github.com/google/uuid"
)

// Seat is one of the four places at the table.
type Seat struct {
	PlayerID  string       `json:"player_id"`
	Name      string       `json:"name"`
	Position  int          `json:"position"`
	Secret    string       `json:"secret"`
	Connected bool         `json:"connected"`
	IsBot     bool         `json:"is_bot"`
	BotLevel  bot.BotLevel `json:"bot_level,omitempty"`
}

// Outbound is a message for the listed players.
type Outbound struct {
	To      []string
	Type    protocol.Type
	Payload any
}

// Encode frames the message for the wire.
func (o Outbound) Encode() ([]byte, error) {
	return protocol.Encode(o.Type, o.Payload)
}

// TaskKind names deferred room work.
type TaskKind string

const (
	TaskResolveTrick TaskKind = "resolve_trick"
	TaskNextRound    TaskKind = "next_round"
	TaskBotTurn      TaskKind = "bot_turn"
)

type task struct {
	kind TaskKind
	due  time.Time
	seat int
}

// Room is the single-writer core shared by every session variant. It is not
// safe for concurrent use; each variant serializes calls into it.
type Room struct {
	Code string

	seats   [domain.NumSeats]*Seat
	host    int
	game    *domain.Game
	version int
	tasks   []task
	closed  bool

	svc    *app.Service
	rng    *rand.Rand
	agents map[int]*bot.Agent
	opts   Options
}

// NewRoom creates an empty room.
func NewRoom(code string, opts Options) *Room {
	opts = opts.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	return &Room{
		Code:   code,
		host:   -1,
		svc:    app.NewService(rng),
		rng:    rng,
		agents: make(map[int]*bot.Agent),
		opts:   opts,
	}
}

// Version increases with every state change broadcast to the seats.
func (r *Room) Version() int { return r.version }

// Game returns the game in play, or nil in the lobby before the first deal.
func (r *Room) Game() *domain.Game { return r.game }

// Seats returns a copy of the roster.
func (r *Room) Seats() [domain.NumSeats]*Seat {
	var out [domain.NumSeats]*Seat
	for i, s := range r.seats {
		if s != nil {
			c := *s
			out[i] = &c
		}
	}
	return out
}

// HostID returns the host's player id, empty when no human is seated.
func (r *Room) HostID() string {
	if r.host < 0 || r.seats[r.host] == nil {
		return ""
	}
	return r.seats[r.host].PlayerID
}

// Phase reports the room's lifecycle stage.
func (r *Room) Phase() domain.Phase {
	if r.game == nil {
		return domain.PhaseWaiting
	}
	return r.game.Phase
}

// Occupied counts the taken seats.
func (r *Room) Occupied() int {
	n := 0
	for _, s := range r.seats {
		if s != nil {
			n++
		}
	}
	return n
}

// Humans counts the seats taken by people.
func (r *Room) Humans() int {
	n := 0
	for _, s := range r.seats {
		if s != nil && !s.IsBot {
			n++
		}
	}
	return n
}

// Abandoned reports whether nobody can come back to the room: no human is
// seated, or the game is over and every human has dropped.
func (r *Room) Abandoned() bool {
	if r.Humans() == 0 {
		return true
	}
	if r.game == nil || r.game.Phase != domain.PhaseGameEnd {
		return false
	}
	for _, s := range r.seats {
		if s != nil && !s.IsBot && s.Connected {
			return false
		}
	}
	return true
}

// Has reports whether playerID holds a seat.
func (r *Room) Has(playerID string) bool {
	_, ok := r.seatOf(playerID)
	return ok
}

// lobby reports whether seats may change hands.
func (r *Room) lobby() bool {
	return r.game == nil || r.game.Phase == domain.PhaseGameEnd
}

func (r *Room) seatOf(playerID string) (int, bool) {
	if playerID == "" {
		return -1, false
	}
	for i, s := range r.seats {
		if s != nil && s.PlayerID == playerID {
			return i, true
		}
	}
	return -1, false
}

func (r *Room) freeSeat() int {
	for i, s := range r.seats {
		if s == nil {
			return i
		}
	}
	return -1
}

func (r *Room) lowestHuman() int {
	for i, s := range r.seats {
		if s != nil && !s.IsBot {
			return i
		}
	}
	return -1
}

// humans lists the player ids of seated people, optionally leaving one out.
func (r *Room) humans(except string) []string {
	var out []string
	for _, s := range r.seats {
		if s != nil && !s.IsBot && s.PlayerID != except {
			out = append(out, s.PlayerID)
		}
	}
	return out
}

func (r *Room) idAt(pos int) string {
	if pos < 0 || pos >= domain.NumSeats || r.seats[pos] == nil {
		return ""
	}
	return r.seats[pos].PlayerID
}

// Join seats a new player at the lowest free position. ack is the type of the
// acknowledgement sent to the joiner (ROOM_CREATED or JOINED_ROOM).
func (r *Room) Join(name string, ack protocol.Type) (JoinResult, []Outbound, error) {
	if r.closed {
		return JoinResult{}, nil, app.ErrRoomNotFound
	}
	if !r.lobby() {
		return JoinResult{}, nil, app.ErrGameInProgress
	}
	pos := r.freeSeat()
	if pos < 0 {
		return JoinResult{}, nil, app.ErrRoomFull
	}
	if name == "" {
		name = fmt.Sprintf("Player %d", pos+1)
	}
	seat := &Seat{
		PlayerID:  uuid.NewString(),
		Name:      name,
		Position:  pos,
		Secret:    uuid.NewString(),
		Connected: true,
	}
	r.seats[pos] = seat
	if r.host < 0 || r.seats[r.host] == nil || r.seats[r.host].IsBot {
		r.host = pos
	}

	res := JoinResult{RoomCode: r.Code, PlayerID: seat.PlayerID, Secret: seat.Secret, Position: pos}
	r.opts.Logger.Info("Room %s: %s joined at seat %d", r.Code, seat.PlayerID, pos)

	out := []Outbound{{
		To:      []string{seat.PlayerID},
		Type:    ack,
		Payload: protocol.RoomJoined{RoomCode: r.Code, PlayerID: seat.PlayerID, PlayerSecret: seat.Secret, Position: pos},
	}}
	out = append(out, r.playerEvent(protocol.TypePlayerJoined, pos, seat.PlayerID))
	out = append(out, r.roomState())
	return res, compact(out), nil
}

// AddBot seats a bot of the given level.
func (r *Room) AddBot(level bot.BotLevel) (int, []Outbound, error) {
	if r.closed {
		return -1, nil, app.ErrRoomNotFound
	}
	if !r.lobby() {
		return -1, nil, app.ErrGameInProgress
	}
	pos := r.freeSeat()
	if pos < 0 {
		return -1, nil, app.ErrRoomFull
	}
	if level == 0 {
		level = r.opts.BotLevel
	}
	identity := bot.GetBotIdentity(pos)
	id := identity.UserID
	if _, taken := r.seatOf(id); taken || id == "" {
		id = bot.BotIDPrefix + uuid.NewString()
	}
	level = identity.Level(level)
	agent, err := bot.NewAgent(id, identity.DisplayName, level, r.rng)
	if err != nil {
		return -1, nil, err
	}
	r.seats[pos] = &Seat{
		PlayerID:  id,
		Name:      identity.DisplayName,
		Position:  pos,
		Connected: true,
		IsBot:     true,
		BotLevel:  level,
	}
	r.agents[pos] = agent
	r.opts.Logger.Info("Room %s: bot %s (%s) joined at seat %d", r.Code, id, level, pos)

	out := []Outbound{r.playerEvent(protocol.TypePlayerJoined, pos, id), r.roomState()}
	return pos, compact(out), nil
}

// Leave frees the seat in the lobby. During a game leaving is a disconnect.
func (r *Room) Leave(playerID string) ([]Outbound, error) {
	pos, ok := r.seatOf(playerID)
	if !ok {
		return nil, app.ErrUnknownPlayer
	}
	if !r.lobby() {
		return r.Disconnect(playerID)
	}
	r.seats[pos] = nil
	delete(r.agents, pos)
	if pos == r.host {
		r.host = r.lowestHuman()
	}
	r.opts.Logger.Info("Room %s: %s left seat %d", r.Code, playerID, pos)

	out := []Outbound{r.playerEvent(protocol.TypePlayerLeft, pos, playerID), r.roomState()}
	return compact(out), nil
}

// Disconnect marks the seat as dropped. Turns wait for it; nothing is played
// on its behalf.
func (r *Room) Disconnect(playerID string) ([]Outbound, error) {
	pos, ok := r.seatOf(playerID)
	if !ok {
		return nil, app.ErrUnknownPlayer
	}
	seat := r.seats[pos]
	if !seat.Connected {
		return nil, nil
	}
	seat.Connected = false
	r.opts.Logger.Info("Room %s: %s disconnected", r.Code, playerID)

	out := []Outbound{r.playerEvent(protocol.TypePlayerDisconnected, pos, playerID)}
	if r.game == nil {
		out = append(out, r.roomState())
	} else {
		out = append(out, r.states()...)
	}
	return compact(out), nil
}

// Authenticate checks a reconnect credential pair without touching the seat.
func (r *Room) Authenticate(playerID, secret string) (int, error) {
	pos, ok := r.seatOf(playerID)
	if !ok || r.seats[pos].IsBot || r.seats[pos].Secret != secret {
		return -1, app.ErrReconnectFailed
	}
	return pos, nil
}

// Reconnect restores a seat from its credentials. Calling it on a connected
// seat just resends the state.
func (r *Room) Reconnect(playerID, secret string) (app.View, []Outbound, error) {
	pos, err := r.Authenticate(playerID, secret)
	if err != nil {
		return app.View{}, nil, err
	}
	seat := r.seats[pos]
	was := seat.Connected
	seat.Connected = true

	out := []Outbound{{
		To:      []string{playerID},
		Type:    protocol.TypeRoomJoined,
		Payload: protocol.RoomJoined{RoomCode: r.Code, PlayerID: playerID, PlayerSecret: secret, Position: pos},
	}}
	if !was {
		r.opts.Logger.Info("Room %s: %s reconnected", r.Code, playerID)
		out = append(out, r.playerEvent(protocol.TypePlayerReconnected, pos, playerID))
	}
	if r.game == nil {
		out = append(out, r.roomState())
	} else {
		out = append(out, r.states()...)
	}
	return r.viewAt(pos), compact(out), nil
}

// StartGame deals the first round. Only the host may start, with all four
// seats taken. After a finished game it starts a rematch.
func (r *Room) StartGame(playerID string) ([]Outbound, error) {
	pos, ok := r.seatOf(playerID)
	if !ok {
		return nil, app.ErrUnknownPlayer
	}
	if pos != r.host {
		return nil, app.ErrNotHost
	}
	if !r.lobby() {
		return nil, app.ErrGameInProgress
	}
	if r.Occupied() < app.PlayersToStartGame {
		return nil, app.ErrNotEnoughPlayers
	}

	game, events, err := r.svc.StartGame(r.opts.RoundsToWin)
	if err != nil {
		return nil, err
	}
	r.game = game
	r.tasks = nil
	r.opts.Logger.Info("Room %s: game started by %s, first to %d rounds", r.Code, playerID, game.RoundsToWin)

	out := []Outbound{{
		To:      r.humans(""),
		Type:    protocol.TypeGameStarting,
		Payload: protocol.GameStarting{RoundsToWin: game.RoundsToWin},
	}}
	out = append(out, r.translate(events)...)
	r.schedule()
	out = append(out, r.states()...)
	return compact(out), nil
}

// PlayCard plays cardID from the player's hand.
func (r *Room) PlayCard(playerID, cardID string) ([]Outbound, error) {
	pos, ok := r.seatOf(playerID)
	if !ok {
		return nil, app.ErrUnknownPlayer
	}
	card, err := domain.ParseCard(cardID)
	if err != nil {
		return nil, app.ErrInvalidCard
	}
	return r.apply(func() ([]app.Event, error) { return r.svc.PlayCard(r.game, pos, card) })
}

// Declare sings a cante or claims tute.
func (r *Room) Declare(playerID string, kind domain.DeclarationKind, suit domain.Suit) ([]Outbound, error) {
	pos, ok := r.seatOf(playerID)
	if !ok {
		return nil, app.ErrUnknownPlayer
	}
	return r.apply(func() ([]app.Event, error) { return r.svc.Declare(r.game, pos, kind, suit) })
}

// SkipDeclare passes on the team's declaration window.
func (r *Room) SkipDeclare(playerID string) ([]Outbound, error) {
	pos, ok := r.seatOf(playerID)
	if !ok {
		return nil, app.ErrUnknownPlayer
	}
	return r.apply(func() ([]app.Event, error) { return r.svc.SkipDeclare(r.game, pos) })
}

// View returns the player's projection.
func (r *Room) View(playerID string) (app.View, error) {
	pos, ok := r.seatOf(playerID)
	if !ok {
		return app.View{}, app.ErrUnknownPlayer
	}
	return r.viewAt(pos), nil
}

// PublicView is the projection without any seat's private fields.
func (r *Room) PublicView() app.View {
	return r.viewAt(-1).Public()
}

// Advance runs every task due at now, in due order.
func (r *Room) Advance(now time.Time) []Outbound {
	var out []Outbound
	for !r.closed {
		i := r.nextTask(now)
		if i < 0 {
			break
		}
		t := r.tasks[i]
		r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
		out = append(out, r.run(t)...)
	}
	return compact(out)
}

// NextDue returns when the earliest task is due.
func (r *Room) NextDue() (time.Time, bool) {
	if len(r.tasks) == 0 {
		return time.Time{}, false
	}
	due := r.tasks[0].due
	for _, t := range r.tasks[1:] {
		if t.due.Before(due) {
			due = t.due
		}
	}
	return due, true
}

// Pending reports whether a task of kind is scheduled.
func (r *Room) Pending(kind TaskKind) bool {
	for _, t := range r.tasks {
		if t.kind == kind {
			return true
		}
	}
	return false
}

// Close cancels every scheduled task. A closed room accepts no new players.
func (r *Room) Close() {
	r.tasks = nil
	r.closed = true
}

func (r *Room) nextTask(now time.Time) int {
	best := -1
	for i, t := range r.tasks {
		if t.due.After(now) {
			continue
		}
		if best < 0 || t.due.Before(r.tasks[best].due) {
			best = i
		}
	}
	return best
}

func (r *Room) run(t task) []Outbound {
	if r.game == nil {
		return nil
	}
	var (
		out []Outbound
		err error
	)
	switch t.kind {
	case TaskResolveTrick:
		out, err = r.apply(func() ([]app.Event, error) { return r.svc.ResolveTrick(r.game) })
	case TaskNextRound:
		out, err = r.apply(func() ([]app.Event, error) { return r.svc.NextRound(r.game) })
	case TaskBotTurn:
		out, err = r.botTurn(t.seat)
	}
	if err != nil {
		r.opts.Logger.Warn("Room %s: task %s failed: %v", r.Code, t.kind, err)
	}
	return out
}

func (r *Room) botTurn(seat int) ([]Outbound, error) {
	agent, ok := r.agents[seat]
	round := r.game.Round
	if !ok || r.game.Phase != domain.PhasePlaying || round == nil || round.Resolving || round.Turn != seat {
		return nil, nil
	}
	if d := agent.Declaration(r.game, seat); d.Declare {
		return r.apply(func() ([]app.Event, error) { return r.svc.Declare(r.game, seat, d.Kind, d.Suit) })
	}
	card, err := agent.Play(r.game, seat)
	if err != nil {
		return nil, err
	}
	return r.apply(func() ([]app.Event, error) { return r.svc.PlayCard(r.game, seat, card) })
}

// apply runs a game mutation and, when it succeeds, turns its events into
// messages, schedules follow-up work and sends every seat its new view.
func (r *Room) apply(mutate func() ([]app.Event, error)) ([]Outbound, error) {
	if r.game == nil {
		return nil, app.ErrNotPlaying
	}
	events, err := mutate()
	if err != nil {
		return nil, err
	}
	out := r.translate(events)
	r.schedule()
	out = append(out, r.states()...)
	return compact(out), nil
}

// schedule queues the work the current state calls for.
func (r *Room) schedule() {
	if r.game == nil {
		return
	}
	now := r.opts.Clock()
	switch r.game.Phase {
	case domain.PhasePlaying:
		round := r.game.Round
		if round.Resolving {
			r.addTask(TaskResolveTrick, now.Add(r.opts.Timing.TrickResolve), -1)
			return
		}
		if s := r.seats[round.Turn]; s != nil && s.IsBot {
			r.addTask(TaskBotTurn, now.Add(r.botDelay()), round.Turn)
		}
	case domain.PhaseRoundEnd:
		r.addTask(TaskNextRound, now.Add(r.opts.Timing.NextRound), -1)
	}
}

func (r *Room) addTask(kind TaskKind, due time.Time, seat int) {
	for _, t := range r.tasks {
		if t.kind == kind && t.seat == seat {
			return
		}
	}
	r.tasks = append(r.tasks, task{kind: kind, due: due, seat: seat})
}

func (r *Room) botDelay() time.Duration {
	lo, hi := r.opts.Timing.BotMin, r.opts.Timing.BotMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.rng.Int63n(int64(hi-lo)))
}

// translate maps service events to the informational messages clients see.
// Dealt hands and trick locks reach clients through GAME_STATE.
func (r *Room) translate(events []app.Event) []Outbound {
	to := r.humans("")
	var out []Outbound
	for _, ev := range events {
		var msg Outbound
		switch p := ev.Payload.(type) {
		case app.CardPlayedPayload:
			msg = Outbound{Type: protocol.TypeCardPlayed, Payload: protocol.CardPlayed{
				PlayerID: r.idAt(p.Seat), Position: p.Seat, CardID: p.Card.ID(),
			}}
		case app.TrickWonPayload:
			msg = Outbound{Type: protocol.TypeTrickWon, Payload: protocol.TrickWon{
				WinnerID: r.idAt(p.Winner), Position: p.Winner, Team: p.Team, Points: p.Points,
			}}
		case app.CanteDeclaredPayload:
			d := p.Declaration
			msg = Outbound{Type: protocol.TypeCanteDeclared, Payload: protocol.CanteDeclared{
				PlayerID: r.idAt(d.Seat), Position: d.Seat, CanteType: d.Kind, Suit: d.Suit, Points: d.Points,
			}}
		case app.RoundEndedPayload:
			msg = Outbound{Type: protocol.TypeRoundEnd, Payload: protocol.RoundEnd{Scores: p.Score, RoundWins: p.RoundWins}}
			r.opts.Logger.Info("Room %s: round %d won by team %d %v", r.Code, p.Score.Round, p.Score.Winner, p.Score.Points)
		case app.GameEndedPayload:
			msg = Outbound{Type: protocol.TypeGameEnd, Payload: protocol.GameEnd{WinnerTeam: p.WinnerTeam, RoundWins: p.RoundWins}}
			r.opts.Logger.Info("Room %s: game won by team %d", r.Code, p.WinnerTeam)
		default:
			continue
		}
		msg.To = to
		out = append(out, msg)
	}
	return out
}

// states bumps the version and sends each person their own view.
func (r *Room) states() []Outbound {
	r.version++
	var out []Outbound
	for pos, s := range r.seats {
		if s == nil || s.IsBot {
			continue
		}
		out = append(out, Outbound{
			To:      []string{s.PlayerID},
			Type:    protocol.TypeGameState,
			Payload: protocol.GameState{State: r.viewAt(pos)},
		})
	}
	return out
}

func (r *Room) roster() [domain.NumSeats]*app.SeatInfo {
	var out [domain.NumSeats]*app.SeatInfo
	for i, s := range r.seats {
		if s == nil {
			continue
		}
		out[i] = &app.SeatInfo{PlayerID: s.PlayerID, Name: s.Name, Position: i, Connected: s.Connected, IsBot: s.IsBot}
	}
	return out
}

func (r *Room) viewAt(pos int) app.View {
	return app.Project(r.game, r.roster(), r.host, pos, r.version)
}

func (r *Room) roomState() Outbound {
	r.version++
	v := r.viewAt(-1)
	return Outbound{
		To:   r.humans(""),
		Type: protocol.TypeRoomState,
		Payload: protocol.RoomState{
			RoomCode: r.Code,
			Players:  v.Players,
			HostID:   v.HostID,
			CanStart: r.lobby() && r.Occupied() == domain.NumSeats,
		},
	}
}

func (r *Room) playerEvent(t protocol.Type, pos int, playerID string) Outbound {
	name := ""
	if s := r.seats[pos]; s != nil {
		name = s.Name
	}
	return Outbound{
		To:      r.humans(playerID),
		Type:    t,
		Payload: protocol.PlayerEvent{PlayerID: playerID, Name: name, Position: pos},
	}
}

// compact drops messages nobody would receive.
func compact(out []Outbound) []Outbound {
	kept := out[:0]
	for _, o := range out {
		if len(o.To) > 0 {
			kept = append(kept, o)
		}
	}
	return kept
}
