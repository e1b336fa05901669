package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"my-history/domain/model"
	"my-history/infrastructure/logger"
)

// SyncStateStore persists one JSON state file per platform under dir.
// States are written at the end of every sync attempt and never rolled
// back.
type SyncStateStore struct {
	dir string
	mu  sync.Mutex
}

func NewSyncStateStore(dir string) *SyncStateStore {
	return &SyncStateStore{dir: dir}
}

func (s *SyncStateStore) path(platform string) string {
	return filepath.Join(s.dir, fmt.Sprintf("sync_state_%s.json", platform))
}

// Load returns the persisted state, or a zero state (LastSyncTime == 0,
// first-sync policy) when no file exists yet.
func (s *SyncStateStore) Load(platform string) (*model.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(platform))
	if err != nil {
		if os.IsNotExist(err) {
			return &model.SyncState{}, nil
		}
		return nil, err
	}
	st := &model.SyncState{}
	if err := json.Unmarshal(data, st); err != nil {
		logger.GetLogger().WithField("platform", platform).WithField("error", err).Warn("Sync state file malformed, starting from scratch")
		return &model.SyncState{}, nil
	}
	return st, nil
}

func (s *SyncStateStore) Save(platform string, st *model.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(platform), data, 0o644)
}
