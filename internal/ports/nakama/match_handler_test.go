package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"tute/internal/config"
	"tute/internal/domain"
	"tute/internal/ports"
	"tute/internal/protocol"

	"github.com/form3tech-oss/jwt-go"
	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sent struct {
	opCode int64
	data   []byte
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	byUser       map[string][]sent
	labels       []string
	kicked       []string
	broadcastAll int
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{byUser: make(map[string][]sent)}
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	if len(presences) == 0 {
		md.broadcastAll++
	}
	for _, p := range presences {
		md.byUser[p.GetUserId()] = append(md.byUser[p.GetUserId()], sent{opCode: opCode, data: append([]byte(nil), data...)})
	}
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	for _, p := range presences {
		md.kicked = append(md.kicked, p.GetUserId())
	}
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labels = append(md.labels, label)
	return nil
}

// last returns the newest message of opCode sent to userID.
func (md *mockDispatcher) last(userID string, opCode int64) ([]byte, bool) {
	msgs := md.byUser[userID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].opCode == opCode {
			return msgs[i].data, true
		}
	}
	return nil, false
}

func (md *mockDispatcher) count(userID string, opCode int64) int {
	n := 0
	for _, m := range md.byUser[userID] {
		if m.opCode == opCode {
			n++
		}
	}
	return n
}

type fakePresence struct {
	userID   string
	username string
}

func (p fakePresence) GetHidden() bool                   { return false }
func (p fakePresence) GetPersistence() bool              { return false }
func (p fakePresence) GetUsername() string               { return p.username }
func (p fakePresence) GetStatus() string                 { return "" }
func (p fakePresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }
func (p fakePresence) GetUserId() string                 { return p.userID }
func (p fakePresence) GetSessionId() string              { return "session-" + p.userID }
func (p fakePresence) GetNodeId() string                 { return "node" }

type fakeMatchData struct {
	fakePresence
	opCode int64
	data   []byte
}

func (d fakeMatchData) GetOpCode() int64      { return d.opCode }
func (d fakeMatchData) GetData() []byte       { return d.data }
func (d fakeMatchData) GetReliable() bool     { return true }
func (d fakeMatchData) GetReceiveTime() int64 { return 0 }

// memStore is an in-memory ports.RoomStore.
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

type harness struct {
	t          *testing.T
	ctx        context.Context
	handler    *matchHandler
	dispatcher *mockDispatcher
	store      *memStore
	state      *MatchState
	tick       int64
	now        time.Time
}

func fastEnv() map[string]string {
	return map[string]string{
		envTrickDelayMs:     "0",
		envNextRoundDelayMs: "0",
		envBotMinDelayMs:    "0",
		envBotMaxDelayMs:    "0",
		envRoundsToWin:      "1",
	}
}

func newHarness(t *testing.T, store *memStore, env map[string]string) *harness {
	t.Helper()
	h := &harness{
		t:          t,
		ctx:        context.WithValue(context.Background(), runtime.RUNTIME_CTX_ENV, env),
		dispatcher: newMockDispatcher(),
		store:      store,
		now:        time.Unix(1_700_000_000, 0),
	}
	h.handler = &matchHandler{now: func() time.Time { return h.now }}
	if store != nil {
		h.handler.store = store
	}
	state, rate, label := h.handler.MatchInit(h.ctx, noopLogger{}, nil, nil, map[string]interface{}{"code": "abcd"})
	if rate != tickRate || label == "" {
		t.Fatalf("MatchInit rate %d label %q", rate, label)
	}
	h.state = state.(*MatchState)
	return h
}

func (h *harness) attempt(userID string) (bool, string) {
	_, ok, reason := h.handler.MatchJoinAttempt(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, fakePresence{userID: userID}, nil)
	return ok, reason
}

func (h *harness) join(userIDs ...string) {
	h.t.Helper()
	var ps []runtime.Presence
	for _, id := range userIDs {
		if ok, reason := h.attempt(id); !ok {
			h.t.Fatalf("join attempt of %s rejected: %s", id, reason)
		}
		ps = append(ps, fakePresence{userID: id, username: "name-" + id})
	}
	h.handler.MatchJoin(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, ps)
}

// loop runs one MatchLoop call and reports whether the match goes on.
func (h *harness) loop(msgs ...runtime.MatchData) bool {
	h.tick++
	h.now = h.now.Add(time.Second / tickRate)
	return h.handler.MatchLoop(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, msgs) != nil
}

func (h *harness) send(userID string, opCode int64, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.t.Fatalf("marshal: %v", err)
	}
	return h.loop(fakeMatchData{fakePresence: fakePresence{userID: userID}, opCode: opCode, data: data})
}

func (h *harness) lastError(userID string) string {
	data, ok := h.dispatcher.last(userID, protocol.OpError)
	if !ok {
		return ""
	}
	var e protocol.Error
	if err := json.Unmarshal(data, &e); err != nil {
		h.t.Fatalf("error payload: %v", err)
	}
	return e.Code
}

func (h *harness) view(userID string) protocol.GameState {
	data, ok := h.dispatcher.last(userID, protocol.OpGameState)
	if !ok {
		h.t.Fatalf("%s got no GAME_STATE", userID)
	}
	var gs protocol.GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		h.t.Fatalf("state payload: %v", err)
	}
	return gs
}

func TestMatchLabel(t *testing.T) {
	h := newHarness(t, nil, fastEnv())
	label, err := matchLabel(h.state)
	if err != nil {
		t.Fatalf("matchLabel: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(label), &fields); err != nil {
		t.Fatalf("label is not JSON: %v", err)
	}
	want := map[string]interface{}{"game": "tute", "code": "ABCD", "phase": "waiting", "open": float64(4)}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("label[%s] = %v, want %v", k, fields[k], v)
		}
	}
	code, err := labelCode(label)
	if err != nil || code != "ABCD" {
		t.Fatalf("labelCode = %q, %v", code, err)
	}
	if _, err := labelCode(`{"game":"tute"}`); err == nil {
		t.Fatalf("label without code accepted")
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(c config.GameConfig) bool
	}{
		{
			name:  "Delays",
			env:   map[string]string{envTrickDelayMs: "10", envNextRoundDelayMs: "20"},
			check: func(c config.GameConfig) bool { return c.TrickResolveDelayMs == 10 && c.NextRoundDelayMs == 20 },
		},
		{
			name:  "BotRangeFixed",
			env:   map[string]string{envBotMinDelayMs: "900", envBotMaxDelayMs: "100"},
			check: func(c config.GameConfig) bool { return c.BotMinDelayMs == 900 && c.BotMaxDelayMs == 900 },
		},
		{
			name:  "BadValuesIgnored",
			env:   map[string]string{envRoundsToWin: "many", envBotLevel: "expert"},
			check: func(c config.GameConfig) bool { return c.RoundsToWin == 3 && c.BotLevel == "smart" },
		},
		{
			name:  "BotSwitches",
			env:   map[string]string{envBotsEnabled: "true", envBotLevel: "god", envAutoFillDelaySec: "2"},
			check: func(c config.GameConfig) bool { return c.BotsEnabled && c.BotLevel == "god" && c.BotAutoFillDelaySeconds == 2 },
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := config.Default()
			applyEnv(&cfg, test.env, noopLogger{})
			if !test.check(cfg) {
				t.Fatalf("config after env = %+v", cfg)
			}
		})
	}
}

func TestMatch_JoinAndStart(t *testing.T) {
	store := newMemStore()
	h := newHarness(t, store, fastEnv())
	h.join("u1")
	h.join("u2", "u3", "u4")

	if h.dispatcher.count("u1", protocol.OpRoomCreated) != 1 {
		t.Fatalf("first player got no ROOM_CREATED")
	}
	if h.dispatcher.count("u2", protocol.OpJoinedRoom) != 1 {
		t.Fatalf("second player got no JOINED_ROOM")
	}
	if ok, reason := h.attempt("u5"); ok || reason != "ROOM_FULL" {
		t.Fatalf("fifth attempt = %t %q", ok, reason)
	}

	h.send("u2", protocol.OpStartGame, struct{}{})
	if code := h.lastError("u2"); code != "NOT_HOST" {
		t.Fatalf("guest start error = %q", code)
	}
	h.send("u1", protocol.OpStartGame, struct{}{})
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		if h.dispatcher.count(u, protocol.OpGameStarting) != 1 {
			t.Fatalf("%s missed GAME_STARTING", u)
		}
		gs := h.view(u)
		if len(gs.State.Hand) != domain.HandSize {
			t.Fatalf("%s hand = %v", u, gs.State.Hand)
		}
	}
	if h.dispatcher.broadcastAll != 0 {
		t.Fatalf("%d messages went to every presence", h.dispatcher.broadcastAll)
	}
	if n := len(h.dispatcher.labels); n == 0 {
		t.Fatalf("label never updated")
	} else if code, _ := labelCode(h.dispatcher.labels[n-1]); code != "ABCD" {
		t.Fatalf("label lost the code: %s", h.dispatcher.labels[n-1])
	}
	if _, err := store.Load(h.ctx, "ABCD"); err != nil {
		t.Fatalf("no snapshot: %v", err)
	}
	if ok, reason := h.attempt("u5"); ok || reason != "GAME_IN_PROGRESS" {
		t.Fatalf("attempt during game = %t %q", ok, reason)
	}

	h.loop(fakeMatchData{fakePresence: fakePresence{userID: "u1"}, opCode: 999})
	if code := h.lastError("u1"); code != "BAD_REQUEST" {
		t.Fatalf("unknown opcode error = %q", code)
	}
	h.send("u3", protocol.OpCreateRoom, protocol.CreateRoom{PlayerName: "x"})
	if code := h.lastError("u3"); code != "BAD_REQUEST" {
		t.Fatalf("create over match data error = %q", code)
	}
}

func TestMatch_PlayTurns(t *testing.T) {
	h := newHarness(t, nil, fastEnv())
	h.join("u1", "u2", "u3", "u4")
	h.send("u1", protocol.OpStartGame, struct{}{})

	users := []string{"u1", "u2", "u3", "u4"}
	played := 0
	for ticks := 0; played < 8; ticks++ {
		if ticks > 100 {
			t.Fatalf("stuck after %d cards", played)
		}
		var mover, card string
		for _, u := range users {
			v := h.view(u).State
			if v.Turn == v.You && len(v.LegalMoves) > 0 {
				mover, card = u, v.LegalMoves[0]
				break
			}
		}
		if mover == "" {
			// The trick is waiting for its resolution task.
			h.loop()
			continue
		}
		played++
		h.send(mover, protocol.OpPlayCard, protocol.PlayCard{CardID: card})
		if code := h.lastError(mover); code != "" {
			t.Fatalf("%s play of %s rejected: %s", mover, card, code)
		}
	}
	if h.dispatcher.count("u1", protocol.OpTrickWon) < 1 {
		t.Fatalf("no trick resolved")
	}
}

func TestMatch_LeaveAndRejoin(t *testing.T) {
	store := newMemStore()
	h := newHarness(t, store, fastEnv())
	h.join("u1", "u2", "u3", "u4")
	h.send("u1", protocol.OpStartGame, struct{}{})

	h.handler.MatchLeave(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, []runtime.Presence{fakePresence{userID: "u2"}})
	if h.dispatcher.count("u1", protocol.OpPlayerDisconnected) != 1 {
		t.Fatalf("others not told about the drop")
	}
	if _, seated := h.state.Players["u2"]; !seated {
		t.Fatalf("dropped player lost the seat mid-game")
	}

	h.join("u2")
	if h.dispatcher.count("u2", protocol.OpRoomJoined) != 1 {
		t.Fatalf("returning player got no ROOM_JOINED")
	}
	if len(h.view("u2").State.Hand) != domain.HandSize {
		t.Fatalf("returning player got no hand")
	}

	// A fresh match for the same code picks the room up from storage.
	again := newHarness(t, store, fastEnv())
	if got := again.state.Room.Phase(); got != domain.PhasePlaying {
		t.Fatalf("restored phase = %s", got)
	}
	again.join("u3")
	if again.dispatcher.count("u3", protocol.OpRoomJoined) != 1 {
		t.Fatalf("restored room did not recognise u3")
	}
}

func TestMatch_ReconnectFromNewUser(t *testing.T) {
	h := newHarness(t, nil, fastEnv())
	h.join("u1", "u2")

	data, ok := h.dispatcher.last("u2", protocol.OpJoinedRoom)
	if !ok {
		t.Fatalf("no JOINED_ROOM")
	}
	var creds protocol.RoomJoined
	if err := json.Unmarshal(data, &creds); err != nil {
		t.Fatalf("credentials: %v", err)
	}

	h.send("u9", protocol.OpReconnect, protocol.Reconnect{PlayerID: creds.PlayerID, PlayerSecret: "wrong"})
	if code := h.lastError("u9"); code != "RECONNECT_FAILED" {
		t.Fatalf("bad secret error = %q", code)
	}
	h.send("u9", protocol.OpReconnect, protocol.Reconnect{PlayerID: creds.PlayerID, PlayerSecret: creds.PlayerSecret})
	if h.state.Players["u9"] != creds.PlayerID {
		t.Fatalf("seat not moved to the new user")
	}
	if _, still := h.state.Players["u2"]; still {
		t.Fatalf("old user still owns the seat")
	}

	h.send("u9", protocol.OpLeaveRoom, struct{}{})
	if len(h.dispatcher.kicked) != 1 || h.dispatcher.kicked[0] != "u9" {
		t.Fatalf("leaver not kicked: %v", h.dispatcher.kicked)
	}
	if h.state.Room.Occupied() != 1 {
		t.Fatalf("seat not freed in the lobby")
	}
}

func TestMatch_BotsFillLonePlayer(t *testing.T) {
	env := fastEnv()
	env[envBotsEnabled] = "true"
	env[envAutoFillDelaySec] = "1"
	h := newHarness(t, nil, env)
	h.join("u1")

	for i := 0; i < tickRate+1; i++ {
		h.loop()
	}
	if got := h.state.Room.Occupied(); got != domain.NumSeats {
		t.Fatalf("seats after auto-fill = %d", got)
	}
	if h.state.Room.Humans() != 1 {
		t.Fatalf("humans = %d", h.state.Room.Humans())
	}
}

func TestMatch_Termination(t *testing.T) {
	store := newMemStore()
	h := newHarness(t, store, fastEnv())
	h.join("u1")
	if _, err := store.Load(h.ctx, "ABCD"); err != nil {
		t.Fatalf("no snapshot: %v", err)
	}
	next := h.handler.MatchLeave(h.ctx, noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, []runtime.Presence{fakePresence{userID: "u1"}})
	if next != nil {
		t.Fatalf("empty match kept running")
	}
	if _, err := store.Load(h.ctx, "ABCD"); err == nil {
		t.Fatalf("snapshot of finished room kept")
	}

	// Nobody ever joins: the match gives up after the grace period.
	idle := newHarness(t, nil, fastEnv())
	running := true
	for i := 0; i < emptyGraceTicks && running; i++ {
		running = idle.loop()
	}
	if running {
		t.Fatalf("unused match still running after %d ticks", emptyGraceTicks)
	}
}

func TestExtractUserIDFromToken(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"uid": "user-42", "usn": "ana"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noUID, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"usn": "ana"}).SignedString([]byte("secret"))

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{name: "Valid", token: signed, want: "user-42"},
		{name: "MissingUID", token: noUID, wantErr: true},
		{name: "Garbage", token: "not.a.token", wantErr: true},
		{name: "TwoParts", token: "a.b", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := extractUserIDFromToken(test.token)
			if (err != nil) != test.wantErr {
				t.Fatalf("err = %v, wantErr %t", err, test.wantErr)
			}
			if got != test.want {
				t.Fatalf("uid = %q, want %q", got, test.want)
			}
		})
	}
}

func ExampleRoomResponse() {
	out, _ := roomResponse("ABCD", "match.node", true)
	fmt.Println(out)
	// Output: {"roomCode":"ABCD","matchId":"match.node","isNew":true}
}
