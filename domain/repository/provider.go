package repository

import (
	"context"

	"my-history/domain/dto"
	"my-history/domain/model"
)

// IProvider is the per-platform sync capability. Implementations own their
// pagination protocol, incremental stop policy and auth lifecycle.
type IProvider interface {
	// Name is the registry name; distinct registry entries may report the
	// same Platform value.
	Name() string
	// Platform is the value stamped on stored records.
	Platform() string
	// ValidateConfig reports whether the provider is enabled and its
	// credential material is resolvable. Never returns an error.
	ValidateConfig() bool
	// Sync walks the remote history and upserts into the local store. Safe
	// to call repeatedly.
	Sync(ctx context.Context) (*dto.SyncResult, error)
	// DeleteRemote removes the record on the remote platform, best effort.
	// Variants without remote deletion return false without an error.
	DeleteRemote(ctx context.Context, rec *model.HistoryRecord) (bool, error)
}
