package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"tute/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
)

// gRPC status codes used for RPC errors.
const (
	codeInvalidArgument = 3
	codeAlreadyExists   = 6
	codeInternal        = 13
)

const maxCodeAttempts = 32

var (
	errBadPayload  = runtime.NewError("invalid payload", codeInvalidArgument)
	errBadRoomCode = runtime.NewError("invalid room code", codeInvalidArgument)
	errNoFreeCode  = runtime.NewError("no free room code", codeAlreadyExists)
	errInternal    = runtime.NewError("internal error", codeInternal)
)

var (
	codeMu  sync.Mutex
	codeRng = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func nextRoomCode() string {
	codeMu.Lock()
	defer codeMu.Unlock()
	return protocol.NewRoomCode(codeRng)
}

// RoomResponse is returned by the room RPCs. Clients join MatchID with the
// realtime socket; the room code is what they share with friends.
type RoomResponse struct {
	RoomCode string `json:"roomCode"`
	MatchID  string `json:"matchId"`
	IsNew    bool   `json:"isNew"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcCreateRoom, RpcCreateRoomFn); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcJoinRoom, RpcJoinRoomFn); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcQuickMatch, rpcQuickMatch)
}

// RpcCreateRoomFn opens a match under a code that no live room uses.
//
// Payload: unused.
// Returns: RoomResponse JSON.
func RpcCreateRoomFn(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	for i := 0; i < maxCodeAttempts; i++ {
		code := nextRoomCode()
		live, err := liveMatch(ctx, nk, code)
		if err != nil {
			logger.Error("RpcCreateRoom [User:%s]: %v", userID, err)
			return "", errInternal
		}
		if live != "" {
			continue
		}
		matchID, err := openRoom(ctx, nk, code)
		if errors.Is(err, errCodeTaken) {
			continue
		}
		if err != nil {
			logger.Error("RpcCreateRoom [User:%s]: %v", userID, err)
			return "", errInternal
		}
		logger.Info("RpcCreateRoom [User:%s]: Created room %s as match %s", userID, code, matchID)
		return roomResponse(code, matchID, true)
	}
	return "", errNoFreeCode
}

// RpcJoinRoomFn resolves a room code to its match. A code with no live
// match opens a new room under it.
//
// Payload: {"roomCode": "ABCD"}.
// Returns: RoomResponse JSON.
func RpcJoinRoomFn(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var req protocol.JoinRoom
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", errBadPayload
	}
	code := protocol.NormalizeRoomCode(req.RoomCode)
	if !protocol.ValidRoomCode(code) {
		return "", errBadRoomCode
	}

	matchID, err := liveMatch(ctx, nk, code)
	if err != nil {
		logger.Error("RpcJoinRoom [User:%s]: %v", userID, err)
		return "", errInternal
	}
	if matchID != "" {
		return roomResponse(code, matchID, false)
	}

	matchID, err = openRoom(ctx, nk, code)
	if errors.Is(err, errCodeTaken) {
		// Someone opened it between the lookup and the write.
		matchID, err = lookupRoomCode(ctx, nk, code)
		if err == nil && matchID != "" {
			return roomResponse(code, matchID, false)
		}
		if err == nil {
			err = errCodeTaken
		}
	}
	if err != nil {
		logger.Error("RpcJoinRoom [User:%s]: %v", userID, err)
		return "", errInternal
	}
	logger.Info("RpcJoinRoom [User:%s]: Opened room %s as match %s", userID, code, matchID)
	return roomResponse(code, matchID, true)
}

// liveMatch returns the match id registered for code when that match is
// still running.
func liveMatch(ctx context.Context, nk runtime.NakamaModule, code string) (string, error) {
	matchID, err := lookupRoomCode(ctx, nk, code)
	if err != nil || matchID == "" {
		return "", err
	}
	match, err := nk.MatchGet(ctx, matchID)
	if err != nil || match == nil {
		return "", nil
	}
	return matchID, nil
}

// openRoom creates the match for code and registers it. A stale entry left
// by a finished match is replaced; a fresh code fails with errCodeTaken when
// another creator registered it first, and the extra match idles out.
func openRoom(ctx context.Context, nk runtime.NakamaModule, code string) (string, error) {
	stale, err := lookupRoomCode(ctx, nk, code)
	if err != nil {
		return "", err
	}
	matchID, err := nk.MatchCreate(ctx, MatchNameTute, map[string]interface{}{"code": code})
	if err != nil {
		return "", err
	}
	if err := registerRoomCode(ctx, nk, code, matchID, stale == ""); err != nil {
		return "", err
	}
	return matchID, nil
}

func roomResponse(code, matchID string, isNew bool) (string, error) {
	b, err := json.Marshal(RoomResponse{RoomCode: code, MatchID: matchID, IsNew: isNew})
	if err != nil {
		return "", errInternal
	}
	return string(b), nil
}
