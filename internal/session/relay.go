package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"tute/internal/app"
	"tute/internal/bot"
	"tute/internal/domain"
	"tute/internal/ports"
	"tute/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Sink delivers messages to connected players. Deliver must not block.
type Sink interface {
	Deliver(playerID string, msg Outbound)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(playerID string, msg Outbound)

func (f SinkFunc) Deliver(playerID string, msg Outbound) { f(playerID, msg) }

const maxCodeAttempts = 64

// Relay hosts many rooms. Each room is owned by one goroutine that applies
// intents one at a time and runs the room's scheduled tasks.
type Relay struct {
	opts   Options
	sink   Sink
	store  ports.RoomStore
	logger runtime.Logger

	mu      sync.Mutex
	rooms   map[string]*actor
	players map[string]string // player id -> room code
	rng     *rand.Rand
	wg      sync.WaitGroup
}

type request struct {
	fn    func(r *Room) ([]Outbound, error)
	reply chan error
}

type actor struct {
	room     *Room
	requests chan request
	stop     chan struct{}
	done     chan struct{}
}

// NewRelay creates a relay. store may be nil to keep rooms in memory only.
func NewRelay(opts Options, sink Sink, store ports.RoomStore) *Relay {
	opts = opts.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Relay{
		opts:    opts,
		sink:    sink,
		store:   store,
		logger:  opts.Logger,
		rooms:   make(map[string]*actor),
		players: make(map[string]string),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// CreateRoom opens a room under a fresh code with the caller as host.
func (rl *Relay) CreateRoom(ctx context.Context, displayName string) (JoinResult, error) {
	rl.mu.Lock()
	code := ""
	for i := 0; i < maxCodeAttempts; i++ {
		c := protocol.NewRoomCode(rl.rng)
		if _, taken := rl.rooms[c]; !taken {
			code = c
			break
		}
	}
	if code == "" {
		rl.mu.Unlock()
		return JoinResult{}, app.ErrRoomExists
	}
	rl.spawn(NewRoom(code, rl.opts))
	rl.mu.Unlock()

	return rl.join(ctx, code, displayName, protocol.TypeRoomCreated)
}

// CreateRoomWithCode opens a room under code. It fails with ROOM_EXISTS when
// a person is already seated there; an empty room under the code is taken over.
func (rl *Relay) CreateRoomWithCode(ctx context.Context, code, displayName string) (JoinResult, error) {
	code = protocol.NormalizeRoomCode(code)
	if !protocol.ValidRoomCode(code) {
		return JoinResult{}, app.ErrBadRequest
	}
	return rl.open(ctx, code, displayName, protocol.TypeRoomCreated)
}

// JoinRoom seats the caller in the room under code, opening it if absent.
func (rl *Relay) JoinRoom(ctx context.Context, code, displayName string) (JoinResult, error) {
	code = protocol.NormalizeRoomCode(code)
	if !protocol.ValidRoomCode(code) {
		return JoinResult{}, app.ErrBadRequest
	}
	return rl.open(ctx, code, displayName, protocol.TypeJoinedRoom)
}

// open seats the caller in the room under code, starting the room when it is
// absent. A room torn down between the lookup and the join is started again.
func (rl *Relay) open(ctx context.Context, code, displayName string, ack protocol.Type) (JoinResult, error) {
	for attempt := 0; ; attempt++ {
		rl.mu.Lock()
		a, ok := rl.rooms[code]
		if !ok {
			rl.logger.Info("Relay: opening room %s on join", code)
			a = rl.spawn(NewRoom(code, rl.opts))
		}
		rl.mu.Unlock()

		res, err := rl.join(ctx, code, displayName, ack)
		if attempt > 0 || !errors.Is(err, app.ErrRoomNotFound) {
			return res, err
		}
		// The room closed under the join. Its goroutine is on the way out.
		rl.logger.Debug("Relay: room %s closed during join, reopening", code)
		select {
		case <-a.done:
		case <-ctx.Done():
			return JoinResult{}, ctx.Err()
		}
	}
}

func (rl *Relay) join(ctx context.Context, code, displayName string, ack protocol.Type) (JoinResult, error) {
	var res JoinResult
	err := rl.do(ctx, code, func(r *Room) ([]Outbound, error) {
		if ack == protocol.TypeRoomCreated && r.Humans() > 0 {
			return nil, app.ErrRoomExists
		}
		jr, out, err := r.Join(displayName, ack)
		if err != nil {
			return nil, err
		}
		res = jr
		rl.track(jr.PlayerID, code)
		return out, nil
	})
	return res, err
}

// AddBots fills up to n free seats of the room with bots.
func (rl *Relay) AddBots(ctx context.Context, code string, n int, level bot.BotLevel) error {
	return rl.do(ctx, code, func(r *Room) ([]Outbound, error) {
		var out []Outbound
		for i := 0; i < n; i++ {
			_, more, err := r.AddBot(level)
			if err != nil {
				if len(out) > 0 {
					return out, nil
				}
				return nil, err
			}
			out = append(out, more...)
		}
		return out, nil
	})
}

func (rl *Relay) LeaveRoom(ctx context.Context, playerID string) error {
	code, err := rl.roomOf(playerID, app.ErrUnknownPlayer)
	if err != nil {
		return err
	}
	return rl.do(ctx, code, func(r *Room) ([]Outbound, error) {
		out, err := r.Leave(playerID)
		if err == nil && !r.Has(playerID) {
			rl.untrack(playerID)
		}
		return out, err
	})
}

func (rl *Relay) StartGame(ctx context.Context, playerID string) error {
	return rl.act(ctx, playerID, func(r *Room) ([]Outbound, error) { return r.StartGame(playerID) })
}

func (rl *Relay) PlayCard(ctx context.Context, playerID, cardID string) error {
	return rl.act(ctx, playerID, func(r *Room) ([]Outbound, error) { return r.PlayCard(playerID, cardID) })
}

func (rl *Relay) Declare(ctx context.Context, playerID string, kind domain.DeclarationKind, suit domain.Suit) error {
	return rl.act(ctx, playerID, func(r *Room) ([]Outbound, error) { return r.Declare(playerID, kind, suit) })
}

func (rl *Relay) SkipDeclare(ctx context.Context, playerID string) error {
	return rl.act(ctx, playerID, func(r *Room) ([]Outbound, error) { return r.SkipDeclare(playerID) })
}

func (rl *Relay) Disconnect(ctx context.Context, playerID string) error {
	return rl.act(ctx, playerID, func(r *Room) ([]Outbound, error) { return r.Disconnect(playerID) })
}

// Authenticate checks the player's reconnect credentials on the room's
// goroutine and changes nothing.
func (rl *Relay) Authenticate(ctx context.Context, playerID, secret string) error {
	code, err := rl.roomOf(playerID, app.ErrReconnectFailed)
	if err != nil {
		return err
	}
	err = rl.do(ctx, code, func(r *Room) ([]Outbound, error) {
		_, err := r.Authenticate(playerID, secret)
		return nil, err
	})
	if errors.Is(err, app.ErrRoomNotFound) {
		return app.ErrReconnectFailed
	}
	return err
}

func (rl *Relay) Reconnect(ctx context.Context, playerID, secret string) (app.View, error) {
	code, err := rl.roomOf(playerID, app.ErrReconnectFailed)
	if err != nil {
		return app.View{}, err
	}
	var view app.View
	err = rl.do(ctx, code, func(r *Room) ([]Outbound, error) {
		v, out, err := r.Reconnect(playerID, secret)
		view = v
		return out, err
	})
	return view, err
}

// View returns the player's current projection without changing anything.
func (rl *Relay) View(ctx context.Context, playerID string) (app.View, error) {
	var view app.View
	err := rl.act(ctx, playerID, func(r *Room) ([]Outbound, error) {
		v, err := r.View(playerID)
		view = v
		return nil, err
	})
	return view, err
}

// RoomOf returns the code of the room the player is seated in.
func (rl *Relay) RoomOf(playerID string) (string, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	code, ok := rl.players[playerID]
	return code, ok
}

// Rooms returns the codes of the open rooms.
func (rl *Relay) Rooms() []string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	codes := make([]string, 0, len(rl.rooms))
	for code := range rl.rooms {
		codes = append(codes, code)
	}
	return codes
}

// Restore reopens every room in the store. Restored players must reconnect.
func (rl *Relay) Restore(ctx context.Context) error {
	if rl.store == nil {
		return nil
	}
	codes, err := rl.store.List(ctx)
	if err != nil {
		return err
	}
	for _, code := range codes {
		data, err := rl.store.Load(ctx, code)
		if err != nil {
			rl.logger.Warn("Relay: failed to load room %s: %v", code, err)
			continue
		}
		room, err := RestoreRoom(data, rl.opts)
		if err != nil {
			rl.logger.Warn("Relay: failed to restore room %s: %v", code, err)
			continue
		}
		rl.mu.Lock()
		if _, exists := rl.rooms[room.Code]; !exists {
			rl.spawn(room)
			for _, s := range room.Seats() {
				if s != nil && !s.IsBot {
					rl.players[s.PlayerID] = room.Code
				}
			}
		}
		rl.mu.Unlock()
		rl.logger.Info("Relay: restored room %s at version %d", room.Code, room.Version())
	}
	return nil
}

// Close stops every room goroutine. Snapshots stay in the store.
func (rl *Relay) Close() {
	rl.mu.Lock()
	for _, a := range rl.rooms {
		close(a.stop)
	}
	rl.rooms = make(map[string]*actor)
	rl.mu.Unlock()
	rl.wg.Wait()
}

func (rl *Relay) act(ctx context.Context, playerID string, fn func(r *Room) ([]Outbound, error)) error {
	code, err := rl.roomOf(playerID, app.ErrUnknownPlayer)
	if err != nil {
		return err
	}
	return rl.do(ctx, code, fn)
}

func (rl *Relay) roomOf(playerID string, missing error) (string, error) {
	code, ok := rl.RoomOf(playerID)
	if !ok {
		return "", missing
	}
	return code, nil
}

func (rl *Relay) track(playerID, code string) {
	rl.mu.Lock()
	rl.players[playerID] = code
	rl.mu.Unlock()
}

func (rl *Relay) untrack(playerID string) {
	rl.mu.Lock()
	delete(rl.players, playerID)
	rl.mu.Unlock()
}

// do hands fn to the room's goroutine and waits for it to be applied.
func (rl *Relay) do(ctx context.Context, code string, fn func(r *Room) ([]Outbound, error)) error {
	rl.mu.Lock()
	a, ok := rl.rooms[code]
	rl.mu.Unlock()
	if !ok {
		return app.ErrRoomNotFound
	}

	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case a.requests <- req:
	case <-a.done:
		return app.ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn starts the goroutine owning room. Callers hold rl.mu.
func (rl *Relay) spawn(room *Room) *actor {
	a := &actor{
		room:     room,
		requests: make(chan request),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	rl.rooms[room.Code] = a
	rl.wg.Add(1)
	go rl.loop(a)
	return a
}

func (rl *Relay) loop(a *actor) {
	defer rl.wg.Done()
	defer close(a.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	rearm := func() {
		if due, ok := a.room.NextDue(); ok {
			wait := due.Sub(rl.opts.Clock())
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
			return
		}
		timer.Stop()
	}
	rearm()

	for {
		select {
		case req := <-a.requests:
			out, err := req.fn(a.room)
			if err == nil {
				rl.deliver(out)
				if len(out) > 0 {
					rl.persist(a.room)
				}
			}
			req.reply <- err
			if a.room.Abandoned() {
				rl.teardown(a)
				return
			}
			rearm()
		case <-timer.C:
			out := a.room.Advance(rl.opts.Clock())
			if len(out) > 0 {
				rl.deliver(out)
				rl.persist(a.room)
			}
			rearm()
		case <-a.stop:
			timer.Stop()
			a.room.Close()
			return
		}
	}
}

func (rl *Relay) teardown(a *actor) {
	a.room.Close()
	code := a.room.Code
	rl.mu.Lock()
	if rl.rooms[code] == a {
		delete(rl.rooms, code)
	}
	for id, c := range rl.players {
		if c == code {
			delete(rl.players, id)
		}
	}
	rl.mu.Unlock()
	if rl.store != nil {
		if err := rl.store.Delete(context.Background(), code); err != nil {
			rl.logger.Warn("Relay: failed to delete snapshot of room %s: %v", code, err)
		}
	}
	rl.logger.Info("Relay: room %s closed", code)
}

func (rl *Relay) deliver(out []Outbound) {
	if rl.sink == nil {
		return
	}
	for _, o := range out {
		for _, id := range o.To {
			rl.sink.Deliver(id, o)
		}
	}
}

func (rl *Relay) persist(room *Room) {
	if rl.store == nil {
		return
	}
	data, err := room.MarshalSnapshot()
	if err != nil {
		rl.logger.Error("Relay: failed to encode room %s: %v", room.Code, err)
		return
	}
	if err := rl.store.Save(context.Background(), room.Code, data); err != nil {
		rl.logger.Warn("Relay: failed to save room %s: %v", room.Code, err)
	}
}

var _ Coordinator = (*Relay)(nil)
