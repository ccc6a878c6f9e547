package protocol

// Op codes carry the message type on Nakama match data.
const (
	// Client -> Server
	OpCreateRoom   int64 = 1
	OpJoinRoom     int64 = 2
	OpLeaveRoom    int64 = 3
	OpStartGame    int64 = 4
	OpPlayCard     int64 = 5
	OpDeclareCante int64 = 6
	OpSkipCante    int64 = 7
	OpReconnect    int64 = 8

	// Server -> Client events
	OpRoomCreated        int64 = 101
	OpJoinedRoom         int64 = 102
	OpRoomState          int64 = 103
	OpPlayerJoined       int64 = 104
	OpPlayerLeft         int64 = 105
	OpPlayerDisconnected int64 = 106
	OpPlayerReconnected  int64 = 107
	OpGameStarting       int64 = 108
	OpGameState          int64 = 109 // send privately
	OpCardPlayed         int64 = 110
	OpTrickWon           int64 = 111
	OpCanteDeclared      int64 = 112
	OpRoundEnd           int64 = 113
	OpGameEnd            int64 = 114
	OpError              int64 = 115
	OpRoomJoined         int64 = 116
)

var opcodes = map[Type]int64{
	TypeCreateRoom:         OpCreateRoom,
	TypeJoinRoom:           OpJoinRoom,
	TypeLeaveRoom:          OpLeaveRoom,
	TypeStartGame:          OpStartGame,
	TypePlayCard:           OpPlayCard,
	TypeDeclareCante:       OpDeclareCante,
	TypeSkipCante:          OpSkipCante,
	TypeReconnect:          OpReconnect,
	TypeRoomCreated:        OpRoomCreated,
	TypeJoinedRoom:         OpJoinedRoom,
	TypeRoomJoined:         OpRoomJoined,
	TypeRoomState:          OpRoomState,
	TypePlayerJoined:       OpPlayerJoined,
	TypePlayerLeft:         OpPlayerLeft,
	TypePlayerDisconnected: OpPlayerDisconnected,
	TypePlayerReconnected:  OpPlayerReconnected,
	TypeGameStarting:       OpGameStarting,
	TypeGameState:          OpGameState,
	TypeCardPlayed:         OpCardPlayed,
	TypeTrickWon:           OpTrickWon,
	TypeCanteDeclared:      OpCanteDeclared,
	TypeRoundEnd:           OpRoundEnd,
	TypeGameEnd:            OpGameEnd,
	TypeError:              OpError,
}

var types = func() map[int64]Type {
	m := make(map[int64]Type, len(opcodes))
	for t, op := range opcodes {
		m[op] = t
	}
	return m
}()

// OpCode returns the op code for t.
func OpCode(t Type) (int64, bool) {
	op, ok := opcodes[t]
	return op, ok
}

// TypeOf returns the message type carried by op.
func TypeOf(op int64) (Type, bool) {
	t, ok := types[op]
	return t, ok
}
