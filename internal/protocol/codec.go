package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"tute/internal/app"
	"tute/internal/domain"
)

// Envelope is the frame every message travels in.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode frames payload under t. A nil payload produces a bare type frame.
func Encode(t Type, payload any) ([]byte, error) {
	env := Envelope{Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode reads a frame. Malformed input is reported as app.ErrBadRequest.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, badRequest("invalid frame: %v", err)
	}
	if env.Type == "" {
		return Envelope{}, badRequest("missing message type")
	}
	return env, nil
}

// Into unmarshals the payload into v.
func (e Envelope) Into(v any) error {
	if len(e.Payload) == 0 {
		return badRequest("%s: missing payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return badRequest("%s: %v", e.Type, err)
	}
	return nil
}

// Intent is a decoded client request with only the fields its type uses set.
type Intent struct {
	Type         Type
	PlayerName   string
	RoomCode     string
	CardID       string
	CanteType    domain.DeclarationKind
	Suit         domain.Suit
	PlayerID     string
	PlayerSecret string
}

// ParseIntent decodes and validates a client frame.
func ParseIntent(data []byte) (Intent, error) {
	env, err := Decode(data)
	if err != nil {
		return Intent{}, err
	}
	return IntentFrom(env)
}

// IntentFrom validates an already framed client request. Transports that
// carry the type out of band (Nakama op codes) build the envelope themselves.
func IntentFrom(env Envelope) (Intent, error) {
	in := Intent{Type: env.Type}

	switch env.Type {
	case TypeCreateRoom:
		var p CreateRoom
		if err := env.Into(&p); err != nil {
			return Intent{}, err
		}
		in.PlayerName = strings.TrimSpace(p.PlayerName)
	case TypeJoinRoom:
		var p JoinRoom
		if err := env.Into(&p); err != nil {
			return Intent{}, err
		}
		in.RoomCode = NormalizeRoomCode(p.RoomCode)
		in.PlayerName = strings.TrimSpace(p.PlayerName)
		if in.RoomCode == "" {
			return Intent{}, badRequest("JOIN_ROOM: missing roomCode")
		}
	case TypePlayCard:
		var p PlayCard
		if err := env.Into(&p); err != nil {
			return Intent{}, err
		}
		if p.CardID == "" {
			return Intent{}, badRequest("PLAY_CARD: missing cardId")
		}
		in.CardID = p.CardID
	case TypeDeclareCante:
		var p DeclareCante
		if err := env.Into(&p); err != nil {
			return Intent{}, err
		}
		if p.CanteType == "" {
			return Intent{}, badRequest("DECLARE_CANTE: missing canteType")
		}
		in.CanteType, in.Suit = p.CanteType, p.Suit
	case TypeReconnect:
		var p Reconnect
		if err := env.Into(&p); err != nil {
			return Intent{}, err
		}
		if p.PlayerID == "" || p.PlayerSecret == "" {
			return Intent{}, badRequest("RECONNECT: missing credentials")
		}
		in.PlayerID, in.PlayerSecret = p.PlayerID, p.PlayerSecret
	case TypeLeaveRoom, TypeStartGame, TypeSkipCante:
	default:
		return Intent{}, badRequest("unknown message type %q", env.Type)
	}
	return in, nil
}

// EncodeIntent frames a client request; the inverse of ParseIntent.
func EncodeIntent(in Intent) ([]byte, error) {
	switch in.Type {
	case TypeCreateRoom:
		return Encode(in.Type, CreateRoom{PlayerName: in.PlayerName})
	case TypeJoinRoom:
		return Encode(in.Type, JoinRoom{RoomCode: in.RoomCode, PlayerName: in.PlayerName})
	case TypePlayCard:
		return Encode(in.Type, PlayCard{CardID: in.CardID})
	case TypeDeclareCante:
		return Encode(in.Type, DeclareCante{CanteType: in.CanteType, Suit: in.Suit})
	case TypeReconnect:
		return Encode(in.Type, Reconnect{PlayerID: in.PlayerID, PlayerSecret: in.PlayerSecret})
	default:
		return Encode(in.Type, nil)
	}
}

// badRequest wraps app.ErrBadRequest with detail.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), app.ErrBadRequest)
}
