package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"tute/internal/app"
	"tute/internal/bot"
	"tute/internal/config"
	"tute/internal/domain"
	"tute/internal/ports"
	"tute/internal/protocol"
	"tute/internal/session"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// tickRate is the number of MatchLoop calls per second. Room tasks are due
// at millisecond precision, so the loop runs often enough for the pacing
// delays to feel right.
const tickRate = 10

// emptyGraceTicks is how long a room nobody sits in may wait for its
// creator; idleTicks is how long a room may run with nobody connected
// before it is suspended. A suspended room keeps its snapshot and reopens
// under the same code.
const (
	emptyGraceTicks = 30 * tickRate
	idleTicks       = 10 * 60 * tickRate
)

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	Code      string                      `json:"code"`
	Room      *session.Room               `json:"-"`
	Presences map[string]runtime.Presence `json:"-"`       // player id -> presence for targeted messaging
	Players   map[string]string           `json:"players"` // Nakama user id -> room player id
	Store     ports.RoomStore             `json:"-"`
	Now       func() time.Time            `json:"-"`
	Tick      int64                       `json:"tick"`

	BotsEnabled          bool  `json:"bots_enabled"`
	BotAutoFillTicks     int64 `json:"bot_auto_fill_ticks"`     // ticks a lone human waits before bots join
	LastSinglePlayerTick int64 `json:"last_single_player_tick"` // tick when a single player started waiting
	IdleTicks            int64 `json:"idle_ticks"`              // consecutive ticks without a connected presence

	savedVersion int
	label        string
}

// matchSnapshot is what the handler persists: the room plus the Nakama
// users owning its seats.
type matchSnapshot struct {
	Room    json.RawMessage   `json:"room"`
	Players map[string]string `json:"players"`
}

// seatSecret returns the reconnect secret of a seated player.
func (ms *MatchState) seatSecret(playerID string) string {
	for _, s := range ms.Room.Seats() {
		if s != nil && s.PlayerID == playerID {
			return s.Secret
		}
	}
	return ""
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{store: NewNakamaRoomStore(nk)}, nil
}

type matchHandler struct {
	store ports.RoomStore
	now   func() time.Time
}

// MatchInit is called when the match is created. params carries the room
// code chosen by the RPC that created it.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	if path := env[envConfigPath]; path != "" {
		if err := config.LoadGameConfig(path); err != nil {
			logger.Warn("MatchInit: Could not load game config: %v", err)
		}
	}
	cfg := *config.GetGameConfig()
	applyEnv(&cfg, env, logger)
	if cfg.BotIdentitiesPath != "" {
		if err := bot.LoadIdentities(cfg.BotIdentitiesPath); err != nil {
			logger.Warn("MatchInit: Could not load bot identities: %v", err)
		}
	}

	code, _ := params["code"].(string)
	code = protocol.NormalizeRoomCode(code)
	if !protocol.ValidRoomCode(code) {
		code = protocol.NewRoomCode(rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	now := mh.now
	if now == nil {
		now = time.Now
	}
	opts := session.OptionsFrom(&cfg, logger)
	opts.Clock = now

	state := &MatchState{
		Code:             code,
		Presences:        make(map[string]runtime.Presence),
		Players:          make(map[string]string),
		Store:            mh.store,
		Now:              now,
		BotsEnabled:      cfg.BotsEnabled,
		BotAutoFillTicks: int64(cfg.BotAutoFillDelaySeconds) * tickRate,
	}
	state.Room = mh.restore(ctx, state, opts, logger)
	state.savedVersion = state.Room.Version()

	label, err := matchLabel(state)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	state.label = label
	logger.Info("MatchInit: Room %s ready.", code)
	return state, tickRate, label
}

// restore loads the room's snapshot when the match is recreated for a code
// that was in play before, or opens a fresh room.
func (mh *matchHandler) restore(ctx context.Context, state *MatchState, opts session.Options, logger runtime.Logger) *session.Room {
	if state.Store == nil {
		return session.NewRoom(state.Code, opts)
	}
	data, err := state.Store.Load(ctx, state.Code)
	if err != nil {
		if !errors.Is(err, ports.ErrSnapshotNotFound) {
			logger.Warn("MatchInit: Could not load room %s: %v", state.Code, err)
		}
		return session.NewRoom(state.Code, opts)
	}
	var snap matchSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("MatchInit: Discarding unreadable snapshot of %s: %v", state.Code, err)
		return session.NewRoom(state.Code, opts)
	}
	room, err := session.RestoreRoom(snap.Room, opts)
	if err != nil {
		logger.Warn("MatchInit: Discarding snapshot of %s: %v", state.Code, err)
		return session.NewRoom(state.Code, opts)
	}
	for userID, pid := range snap.Players {
		if room.Has(pid) {
			state.Players[userID] = pid
		}
	}
	logger.Info("MatchInit: Restored room %s at version %d.", state.Code, room.Version())
	return room
}

// applyEnv overrides configuration with the runtime env, as set in the
// Nakama config file.
func applyEnv(cfg *config.GameConfig, env map[string]string, logger runtime.Logger) {
	ints := map[string]*int{
		envBotMinDelayMs:    &cfg.BotMinDelayMs,
		envBotMaxDelayMs:    &cfg.BotMaxDelayMs,
		envAutoFillDelaySec: &cfg.BotAutoFillDelaySeconds,
		envTrickDelayMs:     &cfg.TrickResolveDelayMs,
		envNextRoundDelayMs: &cfg.NextRoundDelayMs,
		envRoundsToWin:      &cfg.RoundsToWin,
	}
	for key, dst := range ints {
		val, ok := env[key]
		if !ok {
			continue
		}
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			logger.Warn("MatchInit: Ignoring %s=%q", key, val)
			continue
		}
		*dst = i
	}
	if val, ok := env[envBotsEnabled]; ok {
		cfg.BotsEnabled = val == "true"
	}
	if val, ok := env[envBotLevel]; ok {
		if _, err := bot.ParseLevel(val); err == nil {
			cfg.BotLevel = val
		} else {
			logger.Warn("MatchInit: Ignoring %s=%q", envBotLevel, val)
		}
	}
	if cfg.BotMaxDelayMs < cfg.BotMinDelayMs {
		cfg.BotMaxDelayMs = cfg.BotMinDelayMs
	}
	if cfg.RoundsToWin == 0 {
		cfg.RoundsToWin = config.Default().RoundsToWin
	}
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	// Returning players always get back in.
	if _, seated := matchState.Players[presence.GetUserId()]; seated {
		return state, true, ""
	}
	if matchState.Room.Phase() != domain.PhaseWaiting {
		return state, false, app.ErrGameInProgress.Code
	}
	if matchState.Room.Occupied() >= domain.NumSeats {
		return state, false, app.ErrRoomFull.Code
	}
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	var out []session.Outbound
	for _, p := range presences {
		userID := p.GetUserId()
		if pid, seated := matchState.Players[userID]; seated {
			_, more, err := matchState.Room.Reconnect(pid, matchState.seatSecret(pid))
			if err != nil {
				logger.Warn("MatchJoin: User %s could not take back seat: %v", userID, err)
				continue
			}
			matchState.Presences[pid] = p
			out = append(out, more...)
			logger.Info("MatchJoin: User %s is back as %s.", userID, pid)
			continue
		}

		ack := protocol.TypeJoinedRoom
		if matchState.Room.Occupied() == 0 {
			ack = protocol.TypeRoomCreated
		}
		res, more, err := matchState.Room.Join(p.GetUsername(), ack)
		if err != nil {
			logger.Warn("MatchJoin: User %s joined but got no seat: %v", userID, err)
			continue
		}
		matchState.Players[userID] = res.PlayerID
		matchState.Presences[res.PlayerID] = p
		out = append(out, more...)
		logger.Debug("MatchJoin: User %s seated at %d.", userID, res.Position)
	}

	mh.commit(ctx, matchState, dispatcher, logger, out)
	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	var out []session.Outbound
	for _, p := range presences {
		userID := p.GetUserId()
		pid, seated := matchState.Players[userID]
		if !seated {
			continue
		}
		delete(matchState.Presences, pid)
		more, err := matchState.Room.Leave(pid)
		if err != nil {
			logger.Warn("MatchLeave: User %s: %v", userID, err)
			continue
		}
		if !matchState.Room.Has(pid) {
			delete(matchState.Players, userID)
			logger.Debug("MatchLeave: User %s left, seat freed.", userID)
		}
		out = append(out, more...)
	}

	mh.commit(ctx, matchState, dispatcher, logger, out)
	if matchState.Room.Abandoned() {
		logger.Info("MatchLeave: Terminating room %s with no humans.", matchState.Code)
		mh.shutdown(ctx, nk, matchState, logger)
		return nil
	}
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	var out []session.Outbound
	for _, msg := range messages {
		out = append(out, mh.handleMessage(matchState, dispatcher, logger, msg)...)
	}

	if matchState.BotsEnabled {
		out = append(out, mh.processBots(matchState, logger)...)
	}

	out = append(out, matchState.Room.Advance(matchState.Now())...)
	mh.commit(ctx, matchState, dispatcher, logger, out)

	if len(matchState.Presences) == 0 {
		matchState.IdleTicks++
	} else {
		matchState.IdleTicks = 0
	}
	if matchState.Room.Abandoned() && matchState.IdleTicks >= emptyGraceTicks {
		logger.Info("MatchLoop: Terminating abandoned room %s.", matchState.Code)
		mh.shutdown(ctx, nk, matchState, logger)
		return nil
	}
	if matchState.IdleTicks >= idleTicks {
		logger.Info("MatchLoop: Suspending idle room %s.", matchState.Code)
		matchState.Room.Close()
		return nil
	}
	return matchState
}

// handleMessage applies one client message. Rejections go back to the sender only.
func (mh *matchHandler) handleMessage(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) []session.Outbound {
	userID := msg.GetUserId()

	t, ok := protocol.TypeOf(msg.GetOpCode())
	if !ok {
		logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		mh.sendError(dispatcher, logger, msg, app.ErrBadRequest)
		return nil
	}
	in, err := protocol.IntentFrom(protocol.Envelope{Type: t, Payload: msg.GetData()})
	if err != nil {
		mh.sendError(dispatcher, logger, msg, err)
		return nil
	}

	if in.Type == protocol.TypeReconnect {
		return mh.handleReconnect(state, dispatcher, logger, msg, in)
	}

	pid, seated := state.Players[userID]
	if !seated {
		mh.sendError(dispatcher, logger, msg, app.ErrUnknownPlayer)
		return nil
	}
	out, err := session.DispatchRoom(state.Room, pid, in)
	if err != nil {
		logger.Debug("MatchLoop: %s from %s rejected: %v", in.Type, userID, err)
		mh.sendError(dispatcher, logger, msg, err)
		return nil
	}

	if in.Type == protocol.TypeLeaveRoom && !state.Room.Has(pid) {
		delete(state.Players, userID)
		delete(state.Presences, pid)
		if err := dispatcher.MatchKick([]runtime.Presence{msg}); err != nil {
			logger.Warn("MatchLoop: Failed to kick %s: %v", userID, err)
		}
	}
	return out
}

// handleReconnect lets a user take over a seat with its credentials, for
// example from a new device.
func (mh *matchHandler) handleReconnect(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData, in protocol.Intent) []session.Outbound {
	_, out, err := state.Room.Reconnect(in.PlayerID, in.PlayerSecret)
	if err != nil {
		mh.sendError(dispatcher, logger, msg, err)
		return nil
	}
	userID := msg.GetUserId()
	for other, pid := range state.Players {
		if pid == in.PlayerID && other != userID {
			delete(state.Players, other)
		}
	}
	if old, seated := state.Players[userID]; seated && old != in.PlayerID {
		logger.Warn("MatchLoop: User %s switched seat from %s to %s", userID, old, in.PlayerID)
	}
	state.Players[userID] = in.PlayerID
	state.Presences[in.PlayerID] = msg
	return out
}

// processBots fills a lobby with bots after a single human waited long enough.
func (mh *matchHandler) processBots(state *MatchState, logger runtime.Logger) []session.Outbound {
	room := state.Room
	if room.Phase() != domain.PhaseWaiting || room.Humans() != 1 || room.Occupied() >= domain.NumSeats {
		state.LastSinglePlayerTick = 0
		return nil
	}
	if state.LastSinglePlayerTick == 0 {
		state.LastSinglePlayerTick = state.Tick
		logger.Debug("processBots: Single player detected, starting auto-fill timer.")
		return nil
	}
	if state.Tick-state.LastSinglePlayerTick < state.BotAutoFillTicks {
		return nil
	}

	var out []session.Outbound
	for room.Occupied() < domain.NumSeats {
		pos, more, err := room.AddBot(0)
		if err != nil {
			logger.Error("processBots: Failed to add bot: %v", err)
			break
		}
		logger.Info("processBots: Added bot to seat %d", pos)
		out = append(out, more...)
	}
	state.LastSinglePlayerTick = 0
	return out
}

// commit delivers the room's messages, persists the room when it changed and
// refreshes the label.
func (mh *matchHandler) commit(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, out []session.Outbound) {
	for _, o := range out {
		mh.deliver(state, dispatcher, logger, o)
	}
	if state.Room.Version() != state.savedVersion {
		mh.persist(ctx, state, logger)
	}
	mh.updateLabel(state, dispatcher, logger)
}

// deliver sends one room message to the connected recipients.
func (mh *matchHandler) deliver(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, o session.Outbound) {
	opCode, ok := protocol.OpCode(o.Type)
	if !ok {
		logger.Warn("deliver: No op code for %s", o.Type)
		return
	}
	var recipients []runtime.Presence
	for _, pid := range o.To {
		if p, ok := state.Presences[pid]; ok {
			recipients = append(recipients, p)
		}
	}
	// Intended recipients that are not connected must not turn this into a
	// broadcast to everyone else.
	if len(recipients) == 0 {
		return
	}
	data, err := json.Marshal(o.Payload)
	if err != nil {
		logger.Error("deliver: Failed to marshal %s: %v", o.Type, err)
		return
	}
	if err := dispatcher.BroadcastMessage(opCode, data, recipients, nil, true); err != nil {
		logger.Warn("deliver: Failed to send %s: %v", o.Type, err)
	}
}

// sendError sends an ERROR message to the sender of msg.
func (mh *matchHandler) sendError(dispatcher runtime.MatchDispatcher, logger runtime.Logger, sender runtime.Presence, cause error) {
	data, err := json.Marshal(protocol.ErrorFrom(cause))
	if err != nil {
		logger.Error("sendError: Failed to marshal error: %v", err)
		return
	}
	if err := dispatcher.BroadcastMessage(protocol.OpError, data, []runtime.Presence{sender}, nil, true); err != nil {
		logger.Warn("sendError: Failed to send error to %s: %v", sender.GetUserId(), err)
	}
}

func (mh *matchHandler) persist(ctx context.Context, state *MatchState, logger runtime.Logger) {
	if state.Store == nil {
		state.savedVersion = state.Room.Version()
		return
	}
	room, err := state.Room.MarshalSnapshot()
	if err != nil {
		logger.Error("persist: Failed to snapshot room %s: %v", state.Code, err)
		return
	}
	data, err := json.Marshal(matchSnapshot{Room: room, Players: state.Players})
	if err != nil {
		logger.Error("persist: Failed to marshal room %s: %v", state.Code, err)
		return
	}
	if err := state.Store.Save(ctx, state.Code, data); err != nil {
		logger.Warn("persist: %v", err)
		return
	}
	state.savedVersion = state.Room.Version()
}

// shutdown cancels the room's tasks and forgets its code and snapshot.
func (mh *matchHandler) shutdown(ctx context.Context, nk runtime.NakamaModule, state *MatchState, logger runtime.Logger) {
	state.Room.Close()
	if state.Store != nil {
		if err := state.Store.Delete(ctx, state.Code); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}
	if nk != nil {
		if err := releaseRoomCode(ctx, nk, state.Code); err != nil {
			logger.Warn("shutdown: Failed to release room code %s: %v", state.Code, err)
		}
	}
}

// matchLabel renders the label RPCs query: game, code, phase and open seats.
func matchLabel(state *MatchState) (string, error) {
	label, err := structpb.NewStruct(map[string]interface{}{
		MatchLabelKey_Game:      gameLabel,
		MatchLabelKey_Code:      state.Code,
		MatchLabelKey_Phase:     string(state.Room.Phase()),
		MatchLabelKey_OpenSeats: domain.NumSeats - state.Room.Occupied(),
	})
	if err != nil {
		return "", err
	}
	b, err := protojson.Marshal(label)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// labelCode extracts the room code from a match label.
func labelCode(label string) (string, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal([]byte(label), &s); err != nil {
		return "", fmt.Errorf("failed to parse label: %w", err)
	}
	code := s.GetFields()[MatchLabelKey_Code].GetStringValue()
	if !protocol.ValidRoomCode(code) {
		return "", fmt.Errorf("label has no room code")
	}
	return code, nil
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := matchLabel(state)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if label == state.label {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	state.label = label
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated, grace %d seconds", graceSeconds)
	if matchState, ok := state.(*MatchState); ok {
		// The snapshot is kept so the room can be reopened under its code.
		matchState.Room.Close()
	}
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
