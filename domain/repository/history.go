package repository

import (
	"context"

	"my-history/domain/dto"
	"my-history/domain/model"
)

// IHistory defines the persistence contract for watch-history records.
// Records are keyed by the composite (id, platform).
type IHistory interface {
	// Exists returns the stored key (id + view time) or nil when absent.
	Exists(ctx context.Context, id, platform string) (*model.HistoryKey, error)
	// InsertIfAbsent inserts the record unless the key already exists.
	// Returns true when a row was inserted.
	InsertIfAbsent(ctx context.Context, rec *model.HistoryRecord) (bool, error)
	// InsertOrUpdateViewTime inserts the record, or updates view_time and
	// recorded_at when the key exists with a different view time.
	InsertOrUpdateViewTime(ctx context.Context, rec *model.HistoryRecord) (inserted, updated bool, err error)
	// ApplyBatch applies one page of records atomically. With
	// updateViewTime false existing keys are left untouched.
	ApplyBatch(ctx context.Context, recs []model.HistoryRecord, updateViewTime bool) (newCount, updateCount int, err error)
	// Delete removes a single record.
	Delete(ctx context.Context, id, platform string) error
	// List returns a filtered page ordered by view_time descending plus the
	// total match count.
	List(ctx context.Context, req *dto.HistoryListRequest) ([]model.HistoryRecord, int64, error)
}
