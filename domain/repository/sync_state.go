package repository

import "my-history/domain/model"

// ISyncState persists per-platform sync resumption state. Load returns a
// zero state when the platform has never been synced.
type ISyncState interface {
	Load(platform string) (*model.SyncState, error)
	Save(platform string, st *model.SyncState) error
}
