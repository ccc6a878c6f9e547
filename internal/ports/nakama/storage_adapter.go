package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tute/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaRoomStore implements ports.RoomStore on Nakama storage.
type NakamaRoomStore struct {
	nk runtime.NakamaModule
}

// NewNakamaRoomStore creates a new snapshot store.
func NewNakamaRoomStore(nk runtime.NakamaModule) *NakamaRoomStore {
	return &NakamaRoomStore{nk: nk}
}

// Save writes the snapshot of a room, replacing any earlier one.
func (s *NakamaRoomStore) Save(ctx context.Context, code string, data []byte) error {
	_, err := s.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      snapshotCollection,
		Key:             code,
		UserID:          systemUserID,
		Value:           string(data),
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}})
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", code, err)
	}
	return nil
}

func (s *NakamaRoomStore) Load(ctx context.Context, code string) ([]byte, error) {
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: snapshotCollection,
		Key:        code,
		UserID:     systemUserID,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", code, err)
	}
	if len(objects) == 0 {
		return nil, ports.ErrSnapshotNotFound
	}
	return []byte(objects[0].GetValue()), nil
}

func (s *NakamaRoomStore) Delete(ctx context.Context, code string) error {
	err := s.nk.StorageDelete(ctx, []*runtime.StorageDelete{{
		Collection: snapshotCollection,
		Key:        code,
		UserID:     systemUserID,
	}})
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", code, err)
	}
	return nil
}

// List returns the codes of every stored room.
func (s *NakamaRoomStore) List(ctx context.Context) ([]string, error) {
	var (
		codes  []string
		cursor string
	)
	for {
		objects, next, err := s.nk.StorageList(ctx, systemUserID, systemUserID, snapshotCollection, 100, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list rooms: %w", err)
		}
		for _, o := range objects {
			codes = append(codes, o.GetKey())
		}
		if next == "" {
			return codes, nil
		}
		cursor = next
	}
}

var _ ports.RoomStore = (*NakamaRoomStore)(nil)

// roomEntry maps a room code to the match hosting it.
type roomEntry struct {
	MatchID string `json:"match_id"`
}

var errCodeTaken = errors.New("room code already registered")

// registerRoomCode records code -> matchID. With create set the write only
// succeeds when no entry exists yet.
func registerRoomCode(ctx context.Context, nk runtime.NakamaModule, code, matchID string, create bool) error {
	value, err := json.Marshal(roomEntry{MatchID: matchID})
	if err != nil {
		return fmt.Errorf("failed to marshal room entry: %w", err)
	}
	write := &runtime.StorageWrite{
		Collection:      roomCodeCollection,
		Key:             code,
		UserID:          systemUserID,
		Value:           string(value),
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}
	if create {
		write.Version = "*"
	}
	if _, err := nk.StorageWrite(ctx, []*runtime.StorageWrite{write}); err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return errCodeTaken
		}
		return fmt.Errorf("failed to register room %s: %w", code, err)
	}
	return nil
}

// lookupRoomCode returns the match id recorded for code, or "" when none is.
func lookupRoomCode(ctx context.Context, nk runtime.NakamaModule, code string) (string, error) {
	objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: roomCodeCollection,
		Key:        code,
		UserID:     systemUserID,
	}})
	if err != nil {
		return "", fmt.Errorf("failed to read room %s: %w", code, err)
	}
	if len(objects) == 0 {
		return "", nil
	}
	var entry roomEntry
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &entry); err != nil {
		return "", fmt.Errorf("failed to unmarshal room entry: %w", err)
	}
	return entry.MatchID, nil
}

func releaseRoomCode(ctx context.Context, nk runtime.NakamaModule, code string) error {
	return nk.StorageDelete(ctx, []*runtime.StorageDelete{{
		Collection: roomCodeCollection,
		Key:        code,
		UserID:     systemUserID,
	}})
}
