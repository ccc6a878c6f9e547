package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"tute/internal/app"
	"tute/internal/bot"
	"tute/internal/config"
	"tute/internal/ports"
	"tute/internal/protocol"
)

// recordingSink keeps every delivered message per player.
type recordingSink struct {
	mu   sync.Mutex
	msgs map[string][]Outbound
}

func newRecordingSink() *recordingSink {
	return &recordingSink{msgs: make(map[string][]Outbound)}
}

func (s *recordingSink) Deliver(playerID string, msg Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[playerID] = append(s.msgs[playerID], msg)
}

func (s *recordingSink) count(playerID string, t protocol.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs[playerID] {
		if m.Type == t {
			n++
		}
	}
	return n
}

// memStore is an in-memory RoomStore.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Save(_ context.Context, code string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[code] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Load(_ context.Context, code string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[code]
	if !ok {
		return nil, ports.ErrSnapshotNotFound
	}
	return d, nil
}

func (m *memStore) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, code)
	return nil
}

func (m *memStore) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var codes []string
	for c := range m.data {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes, nil
}

func (m *memStore) has(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[code]
	return ok
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fastOptions() Options {
	return Options{RoundsToWin: 1, Timing: config.Timing{}, Seed: 3, BotLevel: bot.LevelGood}
}

func fillRelayRoom(t *testing.T, ctx context.Context, rl *Relay) []JoinResult {
	t.Helper()
	host, err := rl.CreateRoom(ctx, "Ana")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	players := []JoinResult{host}
	for _, name := range []string{"Bea", "Carla", "Dani"} {
		jr, err := rl.JoinRoom(ctx, host.RoomCode, name)
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		players = append(players, jr)
	}
	return players
}

func TestRelay_CreateJoinStart(t *testing.T) {
	ctx := context.Background()
	sink := newRecordingSink()
	rl := NewRelay(fastOptions(), sink, nil)
	defer rl.Close()

	players := fillRelayRoom(t, ctx, rl)
	code := players[0].RoomCode
	if !protocol.ValidRoomCode(code) {
		t.Fatalf("invalid generated code %q", code)
	}
	if sink.count(players[0].PlayerID, protocol.TypeRoomCreated) != 1 {
		t.Fatalf("host got no ROOM_CREATED")
	}
	if sink.count(players[1].PlayerID, protocol.TypeJoinedRoom) != 1 {
		t.Fatalf("guest got no JOINED_ROOM")
	}

	if _, err := rl.JoinRoom(ctx, code, "Eve"); !errors.Is(err, app.ErrRoomFull) {
		t.Fatalf("fifth join err = %v", err)
	}
	if err := rl.StartGame(ctx, players[1].PlayerID); !errors.Is(err, app.ErrNotHost) {
		t.Fatalf("guest start err = %v", err)
	}
	if err := rl.StartGame(ctx, players[0].PlayerID); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, p := range players {
		if sink.count(p.PlayerID, protocol.TypeGameStarting) != 1 || sink.count(p.PlayerID, protocol.TypeGameState) == 0 {
			t.Fatalf("player %d missed the start", p.Position)
		}
	}

	v, err := rl.View(ctx, players[2].PlayerID)
	if err != nil || v.You != 2 || len(v.Hand) != 10 {
		t.Fatalf("view = %+v, err %v", v, err)
	}
	if _, err := rl.View(ctx, "ghost"); !errors.Is(err, app.ErrUnknownPlayer) {
		t.Fatalf("ghost view err = %v", err)
	}
}

func TestRelay_JoinOpensAbsentRoom(t *testing.T) {
	ctx := context.Background()
	rl := NewRelay(fastOptions(), newRecordingSink(), nil)
	defer rl.Close()

	jr, err := rl.JoinRoom(ctx, " zq7k ", "Ana")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if jr.RoomCode != "ZQ7K" || jr.Position != 0 {
		t.Fatalf("join result = %+v", jr)
	}
	if err := rl.StartGame(ctx, jr.PlayerID); !errors.Is(err, app.ErrNotEnoughPlayers) {
		t.Fatalf("joiner should be host, start err = %v", err)
	}

	if _, err := rl.CreateRoomWithCode(ctx, "ZQ7K", "Bea"); !errors.Is(err, app.ErrRoomExists) {
		t.Fatalf("create over live room err = %v", err)
	}
	if _, err := rl.JoinRoom(ctx, "no!", "Bea"); !errors.Is(err, app.ErrBadRequest) {
		t.Fatalf("bad code err = %v", err)
	}
}

func TestRelay_TimersResolveTricks(t *testing.T) {
	ctx := context.Background()
	sink := newRecordingSink()
	rl := NewRelay(fastOptions(), sink, nil)
	defer rl.Close()

	players := fillRelayRoom(t, ctx, rl)
	if err := rl.StartGame(ctx, players[0].PlayerID); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 4; i++ {
		var played bool
		for _, p := range players {
			v, _ := rl.View(ctx, p.PlayerID)
			if v.Turn == v.You && len(v.LegalMoves) > 0 {
				if err := rl.PlayCard(ctx, p.PlayerID, v.LegalMoves[0]); err != nil {
					t.Fatalf("play: %v", err)
				}
				played = true
				break
			}
		}
		if !played {
			t.Fatalf("nobody had the turn at card %d", i)
		}
	}
	eventually(t, "TRICK_WON", func() bool { return sink.count(players[0].PlayerID, protocol.TypeTrickWon) == 1 })
}

func TestRelay_PersistRestoreAndTeardown(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	rl := NewRelay(fastOptions(), newRecordingSink(), store)

	players := fillRelayRoom(t, ctx, rl)
	code := players[0].RoomCode
	if err := rl.StartGame(ctx, players[0].PlayerID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !store.has(code) {
		t.Fatalf("no snapshot saved")
	}
	rl.Close()

	sink := newRecordingSink()
	restored := NewRelay(fastOptions(), sink, store)
	defer restored.Close()
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := restored.Reconnect(ctx, players[1].PlayerID, "bad"); !errors.Is(err, app.ErrReconnectFailed) {
		t.Fatalf("bad secret err = %v", err)
	}
	if _, err := restored.Reconnect(ctx, "ghost", "x"); !errors.Is(err, app.ErrReconnectFailed) {
		t.Fatalf("unknown player err = %v", err)
	}
	v, err := restored.Reconnect(ctx, players[1].PlayerID, players[1].Secret)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if v.You != 1 || len(v.Hand) != 10 {
		t.Fatalf("restored view = %+v", v)
	}
	if sink.count(players[1].PlayerID, protocol.TypeRoomJoined) != 1 {
		t.Fatalf("reconnect not acknowledged")
	}
}

func TestRelay_EmptyRoomIsTornDown(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	rl := NewRelay(fastOptions(), newRecordingSink(), store)
	defer rl.Close()

	host, err := rl.CreateRoom(ctx, "Ana")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := rl.AddBots(ctx, host.RoomCode, 2, bot.LevelRandom); err != nil {
		t.Fatalf("add bots: %v", err)
	}
	if !store.has(host.RoomCode) {
		t.Fatalf("no snapshot saved")
	}
	if err := rl.LeaveRoom(ctx, host.PlayerID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	eventually(t, "teardown", func() bool { return len(rl.Rooms()) == 0 })
	if store.has(host.RoomCode) {
		t.Fatalf("snapshot of closed room kept")
	}
	if err := rl.StartGame(ctx, host.PlayerID); !errors.Is(err, app.ErrUnknownPlayer) {
		t.Fatalf("player of closed room err = %v", err)
	}
}

func TestRelay_JoinReopensRoomClosingUnderIt(t *testing.T) {
	ctx := context.Background()
	rl := NewRelay(fastOptions(), newRecordingSink(), nil)
	defer rl.Close()

	// A room caught by teardown: still registered, already closed.
	closing := NewRoom("ZQ7K", rl.opts)
	closing.Close()
	rl.mu.Lock()
	old := rl.spawn(closing)
	rl.mu.Unlock()

	jr, err := rl.JoinRoom(ctx, "ZQ7K", "Ana")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if jr.RoomCode != "ZQ7K" || jr.Position != 0 {
		t.Fatalf("join result = %+v", jr)
	}
	rl.mu.Lock()
	current := rl.rooms["ZQ7K"]
	rl.mu.Unlock()
	if current == nil || current == old {
		t.Fatalf("room was not opened again")
	}
	if code, ok := rl.RoomOf(jr.PlayerID); !ok || code != "ZQ7K" {
		t.Fatalf("player tracked in %q", code)
	}
}

func TestRelay_CreateWithCodeTakesOverEmptyRoom(t *testing.T) {
	ctx := context.Background()
	sink := newRecordingSink()
	rl := NewRelay(fastOptions(), sink, nil)
	defer rl.Close()

	rl.mu.Lock()
	rl.spawn(NewRoom("ZQ7K", rl.opts))
	rl.mu.Unlock()

	host, err := rl.CreateRoomWithCode(ctx, "zq7k", "Ana")
	if err != nil {
		t.Fatalf("create over empty room: %v", err)
	}
	if host.Position != 0 || sink.count(host.PlayerID, protocol.TypeRoomCreated) != 1 {
		t.Fatalf("creator not seated as host: %+v", host)
	}
	if _, err := rl.CreateRoomWithCode(ctx, "ZQ7K", "Bea"); !errors.Is(err, app.ErrRoomExists) {
		t.Fatalf("create over seated room err = %v", err)
	}
	if _, err := rl.JoinRoom(ctx, "ZQ7K", "Bea"); err != nil {
		t.Fatalf("join after create: %v", err)
	}
}

func TestRelay_AuthenticateChangesNothing(t *testing.T) {
	ctx := context.Background()
	sink := newRecordingSink()
	rl := NewRelay(fastOptions(), sink, nil)
	defer rl.Close()

	players := fillRelayRoom(t, ctx, rl)
	if err := rl.Disconnect(ctx, players[1].PlayerID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	tests := []struct {
		name     string
		playerID string
		secret   string
		want     error
	}{
		{"wrong secret", players[1].PlayerID, "wrong", app.ErrReconnectFailed},
		{"unknown player", "ghost", players[1].Secret, app.ErrReconnectFailed},
		{"someone else's secret", players[1].PlayerID, players[2].Secret, app.ErrReconnectFailed},
		{"valid", players[1].PlayerID, players[1].Secret, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := rl.Authenticate(ctx, tt.playerID, tt.secret); !errors.Is(err, tt.want) {
				t.Fatalf("Authenticate err = %v, want %v", err, tt.want)
			}
		})
	}

	if n := sink.count(players[1].PlayerID, protocol.TypeRoomJoined); n != 0 {
		t.Fatalf("authenticate sent %d acks", n)
	}
	var connected bool
	rl.do(ctx, players[0].RoomCode, func(r *Room) ([]Outbound, error) {
		connected = r.Seats()[1].Connected
		return nil, nil
	})
	if connected {
		t.Fatalf("authenticate reconnected the seat")
	}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	rl := NewRelay(fastOptions(), newRecordingSink(), nil)
	defer rl.Close()
	players := fillRelayRoom(t, ctx, rl)

	if err := Dispatch(ctx, rl, players[0].PlayerID, protocol.Intent{Type: protocol.TypeStartGame}); err != nil {
		t.Fatalf("dispatch start: %v", err)
	}
	err := Dispatch(ctx, rl, players[1].PlayerID, protocol.Intent{Type: protocol.TypePlayCard, CardID: "oros-1"})
	if app.CodeOf(err) == "INTERNAL" {
		t.Fatalf("play dispatch returned uncoded error %v", err)
	}
	if err := Dispatch(ctx, rl, players[0].PlayerID, protocol.Intent{Type: protocol.TypeCreateRoom}); !errors.Is(err, app.ErrBadRequest) {
		t.Fatalf("create through dispatch err = %v", err)
	}
}
