package session

import (
	"context"

	"tute/internal/app"
	"tute/internal/protocol"
)

// Dispatch applies an in-room intent through a coordinator. Creating,
// joining and reconnecting bind a connection to a player and are handled by
// the transport itself.
func Dispatch(ctx context.Context, c Coordinator, playerID string, in protocol.Intent) error {
	switch in.Type {
	case protocol.TypeLeaveRoom:
		return c.LeaveRoom(ctx, playerID)
	case protocol.TypeStartGame:
		return c.StartGame(ctx, playerID)
	case protocol.TypePlayCard:
		return c.PlayCard(ctx, playerID, in.CardID)
	case protocol.TypeDeclareCante:
		return c.Declare(ctx, playerID, in.CanteType, in.Suit)
	case protocol.TypeSkipCante:
		return c.SkipDeclare(ctx, playerID)
	}
	return app.ErrBadRequest
}

// DispatchRoom applies an in-room intent directly to a room.
func DispatchRoom(r *Room, playerID string, in protocol.Intent) ([]Outbound, error) {
	switch in.Type {
	case protocol.TypeLeaveRoom:
		return r.Leave(playerID)
	case protocol.TypeStartGame:
		return r.StartGame(playerID)
	case protocol.TypePlayCard:
		return r.PlayCard(playerID, in.CardID)
	case protocol.TypeDeclareCante:
		return r.Declare(playerID, in.CanteType, in.Suit)
	case protocol.TypeSkipCante:
		return r.SkipDeclare(playerID)
	}
	return nil, app.ErrBadRequest
}
