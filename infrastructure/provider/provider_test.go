package provider

import (
	"context"
	"sync"

	"my-history/domain/dto"
	"my-history/domain/model"
)

// memHistory is an in-memory IHistory used across the provider tests.
type memHistory struct {
	mu   sync.Mutex
	recs map[string]model.HistoryRecord
}

func newMemHistory() *memHistory {
	return &memHistory{recs: map[string]model.HistoryRecord{}}
}

func hkey(id, platform string) string { return id + "|" + platform }

func (m *memHistory) seed(rec model.HistoryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[hkey(rec.ID, rec.Platform)] = rec
}

func (m *memHistory) Exists(ctx context.Context, id, platform string) (*model.HistoryKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.recs[hkey(id, platform)]; ok {
		return &model.HistoryKey{ID: rec.ID, ViewTime: rec.ViewTime}, nil
	}
	return nil, nil
}

func (m *memHistory) InsertIfAbsent(ctx context.Context, rec *model.HistoryRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := hkey(rec.ID, rec.Platform)
	if _, ok := m.recs[k]; ok {
		return false, nil
	}
	m.recs[k] = *rec
	return true, nil
}

func (m *memHistory) InsertOrUpdateViewTime(ctx context.Context, rec *model.HistoryRecord) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := hkey(rec.ID, rec.Platform)
	stored, ok := m.recs[k]
	if !ok {
		m.recs[k] = *rec
		return true, false, nil
	}
	if stored.ViewTime == rec.ViewTime {
		return false, false, nil
	}
	stored.ViewTime = rec.ViewTime
	stored.RecordedAt = rec.RecordedAt
	m.recs[k] = stored
	return false, true, nil
}

func (m *memHistory) ApplyBatch(ctx context.Context, recs []model.HistoryRecord, updateViewTime bool) (int, int, error) {
	var newCount, updateCount int
	for i := range recs {
		if updateViewTime {
			inserted, updated, err := m.InsertOrUpdateViewTime(ctx, &recs[i])
			if err != nil {
				return 0, 0, err
			}
			if inserted {
				newCount++
			}
			if updated {
				updateCount++
			}
		} else {
			inserted, err := m.InsertIfAbsent(ctx, &recs[i])
			if err != nil {
				return 0, 0, err
			}
			if inserted {
				newCount++
			}
		}
	}
	return newCount, updateCount, nil
}

func (m *memHistory) Delete(ctx context.Context, id, platform string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, hkey(id, platform))
	return nil
}

func (m *memHistory) List(ctx context.Context, req *dto.HistoryListRequest) ([]model.HistoryRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.HistoryRecord{}
	for _, rec := range m.recs {
		if req.Platform != "" && rec.Platform != req.Platform {
			continue
		}
		out = append(out, rec)
	}
	return out, int64(len(out)), nil
}

func (m *memHistory) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

// memSyncState is an in-memory ISyncState.
type memSyncState struct {
	mu     sync.Mutex
	states map[string]model.SyncState
}

func newMemSyncState() *memSyncState {
	return &memSyncState{states: map[string]model.SyncState{}}
}

func (m *memSyncState) Load(platform string) (*model.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.states[platform]
	return &st, nil
}

func (m *memSyncState) Save(platform string, st *model.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[platform] = *st
	return nil
}

// fakeCredStore serves a fixed cookie and counts forced refreshes.
type fakeCredStore struct {
	cookie string
	err    error
	forced int
}

func (f *fakeCredStore) GetCredential(ctx context.Context, platform string) (string, error) {
	return f.cookie, f.err
}

func (f *fakeCredStore) RefreshCredential(ctx context.Context, platform string, force bool) (string, error) {
	if force {
		f.forced++
	}
	return f.cookie, f.err
}

func (f *fakeCredStore) Invalidate(ctx context.Context, platform string) error { return nil }
