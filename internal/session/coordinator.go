package session

import (
	"context"

	"tute/internal/app"
	"tute/internal/domain"
)

// JoinResult is what a player needs to act in a room and to reconnect later.
type JoinResult struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Secret   string `json:"playerSecret"`
	Position int    `json:"position"`
}

// Coordinator is the contract every session variant honours. Errors are
// *app.Error values (possibly wrapped) meant for the requester only; a
// rejected intent never changes room state.
type Coordinator interface {
	CreateRoom(ctx context.Context, displayName string) (JoinResult, error)
	JoinRoom(ctx context.Context, code, displayName string) (JoinResult, error)
	LeaveRoom(ctx context.Context, playerID string) error
	StartGame(ctx context.Context, playerID string) error
	PlayCard(ctx context.Context, playerID, cardID string) error
	Declare(ctx context.Context, playerID string, kind domain.DeclarationKind, suit domain.Suit) error
	SkipDeclare(ctx context.Context, playerID string) error
	Reconnect(ctx context.Context, playerID, secret string) (app.View, error)
	Disconnect(ctx context.Context, playerID string) error
}
