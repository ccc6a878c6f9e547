package protocol

import (
	"tute/internal/app"
	"tute/internal/domain"
)

// Type names a client or server message.
type Type string

// Client -> coordinator
const (
	TypeCreateRoom   Type = "CREATE_ROOM"
	TypeJoinRoom     Type = "JOIN_ROOM"
	TypeLeaveRoom    Type = "LEAVE_ROOM"
	TypeStartGame    Type = "START_GAME"
	TypePlayCard     Type = "PLAY_CARD"
	TypeDeclareCante Type = "DECLARE_CANTE"
	TypeSkipCante    Type = "SKIP_CANTE"
	TypeReconnect    Type = "RECONNECT"
)

// Coordinator -> client
const (
	TypeRoomCreated        Type = "ROOM_CREATED"
	TypeJoinedRoom         Type = "JOINED_ROOM"
	TypeRoomJoined         Type = "ROOM_JOINED" // older clients expect this name
	TypeRoomState          Type = "ROOM_STATE"
	TypePlayerJoined       Type = "PLAYER_JOINED"
	TypePlayerLeft         Type = "PLAYER_LEFT"
	TypePlayerDisconnected Type = "PLAYER_DISCONNECTED"
	TypePlayerReconnected  Type = "PLAYER_RECONNECTED"
	TypeGameStarting       Type = "GAME_STARTING"
	TypeGameState          Type = "GAME_STATE"
	TypeCardPlayed         Type = "CARD_PLAYED"
	TypeTrickWon           Type = "TRICK_WON"
	TypeCanteDeclared      Type = "CANTE_DECLARED"
	TypeRoundEnd           Type = "ROUND_END"
	TypeGameEnd            Type = "GAME_END"
	TypeError              Type = "ERROR"
)

// IsJoinAck reports whether t acknowledges a create or join.
func IsJoinAck(t Type) bool {
	return t == TypeRoomCreated || t == TypeJoinedRoom || t == TypeRoomJoined
}

type CreateRoom struct {
	PlayerName string `json:"playerName"`
}

type JoinRoom struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type PlayCard struct {
	CardID string `json:"cardId"`
}

type DeclareCante struct {
	CanteType domain.DeclarationKind `json:"canteType"`
	Suit      domain.Suit            `json:"suit,omitempty"`
}

type Reconnect struct {
	PlayerID     string `json:"playerId"`
	PlayerSecret string `json:"playerSecret"`
}

// RoomJoined carries the credentials a client needs to reconnect later.
type RoomJoined struct {
	RoomCode     string `json:"roomCode"`
	PlayerID     string `json:"playerId"`
	PlayerSecret string `json:"playerSecret"`
	Position     int    `json:"position"`
}

type RoomState struct {
	RoomCode string           `json:"roomCode"`
	Players  []app.PlayerView `json:"players"`
	HostID   string           `json:"hostId"`
	CanStart bool             `json:"canStart"`
}

// PlayerEvent is the payload of the PLAYER_* notifications.
type PlayerEvent struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
	Position int    `json:"position"`
}

type GameStarting struct {
	RoundsToWin int `json:"roundsToWin"`
}

type GameState struct {
	State app.View `json:"state"`
}

type CardPlayed struct {
	PlayerID string `json:"playerId"`
	Position int    `json:"position"`
	CardID   string `json:"cardId"`
}

type TrickWon struct {
	WinnerID string `json:"winnerId"`
	Position int    `json:"position"`
	Team     int    `json:"team"`
	Points   int    `json:"points"`
}

type CanteDeclared struct {
	PlayerID  string                 `json:"playerId"`
	Position  int                    `json:"position"`
	CanteType domain.DeclarationKind `json:"canteType"`
	Suit      domain.Suit            `json:"suit,omitempty"`
	Points    int                    `json:"points"`
}

type RoundEnd struct {
	Scores    domain.RoundScore    `json:"scores"`
	RoundWins [domain.NumTeams]int `json:"roundWins"`
}

type GameEnd struct {
	WinnerTeam int                  `json:"winnerTeam"`
	RoundWins  [domain.NumTeams]int `json:"roundWins"`
}

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ErrorFrom converts a rejected intent into its ERROR payload.
func ErrorFrom(err error) Error {
	return Error{Message: err.Error(), Code: app.CodeOf(err)}
}
