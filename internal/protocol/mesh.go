package protocol

import (
	"encoding/json"
	"fmt"

	"tute/internal/domain"
)

// MeshType names a peer-mesh message.
type MeshType string

const (
	MeshGameState    MeshType = "game_state"
	MeshPlayerAction MeshType = "player_action"
	MeshPlayerJoined MeshType = "player_joined"
	MeshPlayerLeft   MeshType = "player_left"
	MeshSyncRequest  MeshType = "sync_request"
	MeshPing         MeshType = "ping"
	MeshPong         MeshType = "pong"
)

// MeshMessage is the frame exchanged between the mesh host and its peers.
// Version orders game_state broadcasts; peers keep the highest seen.
type MeshMessage struct {
	Type    MeshType        `json:"type"`
	Version int             `json:"version,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// MeshJoin is what a peer announces on player_joined. A returning peer sends
// the credentials it was given to take its seat back.
type MeshJoin struct {
	PlayerName   string `json:"playerName"`
	PlayerID     string `json:"playerId,omitempty"`
	PlayerSecret string `json:"playerSecret,omitempty"`
}

// MeshPrivate is the host's private player_action delivery to one peer.
// Event carries a framed coordinator message (CARD_PLAYED, ERROR, ...).
type MeshPrivate struct {
	Joined     *RoomJoined             `json:"joined,omitempty"`
	Event      json.RawMessage         `json:"event,omitempty"`
	Hand       []string                `json:"hand,omitempty"`
	LegalMoves []string                `json:"legalMoves,omitempty"`
	Cantes     []domain.AvailableCante `json:"cantes,omitempty"`
	CanTute    bool                    `json:"canTute,omitempty"`
	Error      *Error                  `json:"error,omitempty"`
}

// EncodeMesh frames data under t.
func EncodeMesh(t MeshType, version int, data any) ([]byte, error) {
	msg := MeshMessage{Type: t, Version: version}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode mesh %s: %w", t, err)
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

// DecodeMesh reads a mesh frame. Malformed input is reported as app.ErrBadRequest.
func DecodeMesh(data []byte) (MeshMessage, error) {
	var msg MeshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return MeshMessage{}, badRequest("invalid mesh frame: %v", err)
	}
	switch msg.Type {
	case MeshGameState, MeshPlayerAction, MeshPlayerJoined, MeshPlayerLeft, MeshSyncRequest, MeshPing, MeshPong:
		return msg, nil
	}
	return MeshMessage{}, badRequest("unknown mesh type %q", msg.Type)
}

// Into unmarshals the data into v.
func (m MeshMessage) Into(v any) error {
	if len(m.Data) == 0 {
		return badRequest("%s: missing data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return badRequest("%s: %v", m.Type, err)
	}
	return nil
}
