// Package state persists sync resume state as one JSON file per generation.
package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"ccm_server/core/domain"
	"ccm_server/core/port/out"
)

// FileStore writes each generation's state to <dir>/<generation_date>.json.
// Saves go through a temp file and rename so readers never see a partial
// write.
type FileStore struct {
	dir string
}

var _ out.SyncStateStore = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Load(_ context.Context, generationDate string) (*domain.SyncState, error) {
	data, err := os.ReadFile(s.path(generationDate))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state %s: %w", generationDate, err)
	}

	var state domain.SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", generationDate, err)
	}
	return &state, nil
}

func (s *FileStore) Save(_ context.Context, state *domain.SyncState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", state.GenerationDate, err)
	}

	path := s.path(state.GenerationDate)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state %s: %w", state.GenerationDate, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace state %s: %w", state.GenerationDate, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, generationDate string) error {
	err := os.Remove(s.path(generationDate))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete state %s: %w", generationDate, err)
	}
	return nil
}

func (s *FileStore) path(generationDate string) string {
	return filepath.Join(s.dir, generationDate+".json")
}
