// Package filestore keeps room snapshots as JSON files in a directory, one
// file per room code.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tute/internal/ports"
	"tute/internal/protocol"
)

const ext = ".json"

// FileRoomStore implements ports.RoomStore on a directory.
type FileRoomStore struct {
	dir string
}

// New creates the directory when missing.
func New(dir string) (*FileRoomStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return &FileRoomStore{dir: dir}, nil
}

// Save writes through a temporary file so a crash never leaves half a snapshot.
func (s *FileRoomStore) Save(_ context.Context, code string, data []byte) error {
	path, err := s.path(code)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, code+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", code, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save room %s: %w", code, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save room %s: %w", code, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save room %s: %w", code, err)
	}
	return nil
}

func (s *FileRoomStore) Load(_ context.Context, code string) ([]byte, error) {
	path, err := s.path(code)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", code, err)
	}
	return data, nil
}

func (s *FileRoomStore) Delete(_ context.Context, code string) error {
	path, err := s.path(code)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete room %s: %w", code, err)
	}
	return nil
}

// List returns the stored codes in order.
func (s *FileRoomStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	var codes []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		code := strings.TrimSuffix(name, ext)
		if protocol.ValidRoomCode(code) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// path maps a code to its file. Codes are validated so they cannot name
// anything outside the directory.
func (s *FileRoomStore) path(code string) (string, error) {
	if !protocol.ValidRoomCode(code) {
		return "", fmt.Errorf("invalid room code %q", code)
	}
	return filepath.Join(s.dir, code+ext), nil
}

var _ ports.RoomStore = (*FileRoomStore)(nil)
