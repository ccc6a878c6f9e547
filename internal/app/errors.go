package app

import "errors"

// Error is a rejected intent. Code is the stable identifier sent to clients.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Room lifecycle errors.
var (
	ErrRoomNotFound     = newError("ROOM_NOT_FOUND", "room not found")
	ErrRoomExists       = newError("ROOM_EXISTS", "room code already in use")
	ErrRoomFull         = newError("ROOM_FULL", "room is full")
	ErrGameInProgress   = newError("GAME_IN_PROGRESS", "game already in progress")
	ErrNotHost          = newError("NOT_HOST", "only the host can start the game")
	ErrNotEnoughPlayers = newError("NOT_ENOUGH_PLAYERS", "four players are required to start")
	ErrUnknownPlayer    = newError("UNKNOWN_PLAYER", "player not found in room")
)

// Turn legality errors.
var (
	ErrNotPlaying     = newError("NOT_PLAYING", "no round in play")
	ErrNotYourTurn    = newError("NOT_YOUR_TURN", "it is not your turn")
	ErrInvalidCard    = newError("INVALID_CARD", "card not in hand")
	ErrIllegalMove    = newError("ILLEGAL_MOVE", "card is not a legal move")
	ErrTrickResolving = newError("TRICK_RESOLVING", "trick is being resolved")
	ErrCannotDeclare  = newError("CANNOT_DECLARE", "declaration not allowed")
	ErrNotRoundEnd    = newError("NOT_ROUND_END", "round has not ended")
)

// Reconnection and malformed-input errors.
var (
	ErrReconnectFailed = newError("RECONNECT_FAILED", "unknown player or secret")
	ErrBadRequest      = newError("BAD_REQUEST", "malformed request")
)

// CodeOf extracts the client-facing code of err, falling back to INTERNAL.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL"
}
