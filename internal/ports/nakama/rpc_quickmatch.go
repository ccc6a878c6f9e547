package nakama

import (
	"context"
	"database/sql"
	"fmt"

	"tute/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

func rpcQuickMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	// Any of our rooms still in the lobby with a free seat.
	query := fmt.Sprintf("+label.%s:%s +label.%s:%s +label.%s:>=1",
		MatchLabelKey_Game, gameLabel,
		MatchLabelKey_Phase, domain.PhaseWaiting,
		MatchLabelKey_OpenSeats)

	limit := 10
	authoritative := true
	minSize := 1
	maxSize := domain.NumSeats - 1

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, query)
	if err != nil {
		logger.Error("RpcQuickMatch [User:%s]: MatchList error: %v", userID, err)
		return "", errInternal
	}

	for _, m := range matches {
		code, err := labelCode(m.GetLabel().GetValue())
		if err != nil {
			logger.Warn("RpcQuickMatch [User:%s]: Skipping match %s: %v", userID, m.GetMatchId(), err)
			continue
		}
		logger.Info("RpcQuickMatch [User:%s]: Found room %s", userID, code)
		return roomResponse(code, m.GetMatchId(), false)
	}

	return RpcCreateRoomFn(ctx, logger, db, nk, payload)
}
