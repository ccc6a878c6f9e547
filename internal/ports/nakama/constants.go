package nakama

const (
	// RpcCreateRoom opens a room under a fresh code and returns its match id.
	RpcCreateRoom = "create_room"
	// RpcJoinRoom resolves a room code to a match id, opening the room when absent.
	RpcJoinRoom = "join_room"
	// RpcQuickMatch is the Nakama RPC id clients call to find or create a lobby-capable match.
	RpcQuickMatch = "quick_match"

	// MatchNameTute is the authoritative match handler name registered with Nakama.
	MatchNameTute = "tute_match"
)

// Storage collections. Objects are owned by the system user.
const (
	roomCodeCollection = "room_codes"
	snapshotCollection = "room_snapshots"
	systemUserID       = ""
)

// Match label keys, queried by the RPCs.
const (
	MatchLabelKey_OpenSeats = "open"
	MatchLabelKey_Phase     = "phase"
	MatchLabelKey_Code      = "code"
	MatchLabelKey_Game      = "game"

	gameLabel = "tute"
)

// Env keys read in MatchInit.
const (
	envBotsEnabled      = "tute_bots_enabled"
	envBotLevel         = "tute_bot_level"
	envBotMinDelayMs    = "tute_bot_min_delay_ms"
	envBotMaxDelayMs    = "tute_bot_max_delay_ms"
	envAutoFillDelaySec = "tute_bot_auto_fill_delay_sec"
	envTrickDelayMs     = "tute_trick_resolve_delay_ms"
	envNextRoundDelayMs = "tute_next_round_delay_ms"
	envRoundsToWin      = "tute_rounds_to_win"
	envConfigPath       = "tute_config_path"
)
