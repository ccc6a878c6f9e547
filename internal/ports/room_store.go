package ports

import (
	"context"
	"errors"
)

// ErrSnapshotNotFound is returned by RoomStore.Load for an unknown room code.
var ErrSnapshotNotFound = errors.New("room snapshot not found")

// RoomStore persists encoded room snapshots keyed by room code.
type RoomStore interface {
	Save(ctx context.Context, code string, data []byte) error
	Load(ctx context.Context, code string) ([]byte, error)
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]string, error)
}
