package session

import (
	"context"

	"tute/internal/app"
	"tute/internal/bot"
	"tute/internal/domain"
)

// Local is a single-player table: one person against three bots, with the
// bots' thinking time scheduled on the room like any other task.
type Local struct {
	*Relay
	level bot.BotLevel
	out   chan Outbound
}

// NewLocal creates a local table. Messages for the player are buffered on a
// channel of the given size; when it is full the oldest pending update is lost
// to the newest, so a slow reader only ever misses intermediate states.
func NewLocal(opts Options, level bot.BotLevel, buffer int) *Local {
	if buffer <= 0 {
		buffer = 64
	}
	l := &Local{level: level, out: make(chan Outbound, buffer)}
	l.Relay = NewRelay(opts, SinkFunc(l.deliver), nil)
	return l
}

// Messages streams everything addressed to the local player.
func (l *Local) Messages() <-chan Outbound { return l.out }

func (l *Local) deliver(_ string, msg Outbound) {
	for {
		select {
		case l.out <- msg:
			return
		default:
		}
		select {
		case <-l.out:
		default:
		}
	}
}

// CreateRoom seats the player and fills the table with bots.
func (l *Local) CreateRoom(ctx context.Context, displayName string) (JoinResult, error) {
	if len(l.Rooms()) > 0 {
		return JoinResult{}, app.ErrRoomExists
	}
	res, err := l.Relay.CreateRoom(ctx, displayName)
	if err != nil {
		return JoinResult{}, err
	}
	if err := l.AddBots(ctx, res.RoomCode, domain.NumSeats-1, l.level); err != nil {
		return JoinResult{}, err
	}
	return res, nil
}

// JoinRoom is refused: the bots hold every other seat.
func (l *Local) JoinRoom(ctx context.Context, code, displayName string) (JoinResult, error) {
	return JoinResult{}, app.ErrRoomFull
}

// Start creates the table and deals the first round.
func (l *Local) Start(ctx context.Context, displayName string) (JoinResult, error) {
	res, err := l.CreateRoom(ctx, displayName)
	if err != nil {
		return JoinResult{}, err
	}
	if err := l.StartGame(ctx, res.PlayerID); err != nil {
		return JoinResult{}, err
	}
	return res, nil
}

var _ Coordinator = (*Local)(nil)
