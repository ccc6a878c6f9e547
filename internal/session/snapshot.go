package session

import (
	"encoding/json"
	"fmt"

	"tute/internal/bot"
	"tute/internal/domain"
)

// Snapshot is the persisted form of a room. Scheduled tasks are not stored;
// they are rebuilt from the game state on restore.
type Snapshot struct {
	Code    string                 `json:"code"`
	Seats   [domain.NumSeats]*Seat `json:"seats"`
	Host    int                    `json:"host"`
	Version int                    `json:"version"`
	Game    *domain.Game           `json:"game,omitempty"`
}

// Snapshot captures the room's state.
func (r *Room) Snapshot() Snapshot {
	return Snapshot{
		Code:    r.Code,
		Seats:   r.Seats(),
		Host:    r.host,
		Version: r.version,
		Game:    r.game,
	}
}

// MarshalSnapshot encodes the room for a RoomStore.
func (r *Room) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}

// RestoreRoom rebuilds a room from data. Every person starts disconnected
// and has to reconnect with their credentials.
func RestoreRoom(data []byte, opts Options) (*Room, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room snapshot: %w", err)
	}
	if snap.Code == "" {
		return nil, fmt.Errorf("room snapshot has no code")
	}

	r := NewRoom(snap.Code, opts)
	r.host = snap.Host
	r.version = snap.Version
	r.game = snap.Game
	for pos, s := range snap.Seats {
		if s == nil {
			continue
		}
		seat := *s
		seat.Position = pos
		if seat.IsBot {
			agent, err := bot.NewAgent(seat.PlayerID, seat.Name, seat.BotLevel, r.rng)
			if err != nil {
				return nil, fmt.Errorf("restore bot at seat %d: %w", pos, err)
			}
			r.agents[pos] = agent
			seat.Connected = true
		} else {
			seat.Connected = false
		}
		r.seats[pos] = &seat
	}
	r.schedule()
	return r, nil
}
