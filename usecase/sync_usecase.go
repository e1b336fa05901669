package usecase

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"my-history/domain/dto"
	"my-history/domain/model"
	"my-history/domain/repository"
	"my-history/infrastructure/logger"
)

type ISyncUsecase interface {
	// SyncHistory runs the named provider, or every enabled provider when
	// platformFilter is empty. One provider's failure never aborts the
	// others; each outcome lands in the summary independently.
	SyncHistory(ctx context.Context, platformFilter string) (*dto.SyncSummary, error)
	// DeleteHistory attempts remote deletion best-effort, then always
	// deletes locally. Returns whether the remote delete succeeded.
	DeleteHistory(ctx context.Context, platform, id, business string) (bool, error)
	DeleteRemoteHistory(ctx context.Context, rec *model.HistoryRecord) (bool, error)
	ListHistory(ctx context.Context, req *dto.HistoryListRequest) (*dto.HistoryListResponse, error)
	// ExportHistory pages through every record matching the filter.
	ExportHistory(ctx context.Context, req *dto.HistoryListRequest) ([]model.HistoryRecord, error)
	GetEnabledProviders() map[string]repository.IProvider
}

type syncUsecase struct {
	// The registry is built once at startup and never mutated afterwards,
	// so concurrent syncs read it without locking.
	providers map[string]repository.IProvider
	history   repository.IHistory
}

func NewSyncUsecase(history repository.IHistory, providers ...repository.IProvider) ISyncUsecase {
	m := make(map[string]repository.IProvider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &syncUsecase{providers: m, history: history}
}

func (u *syncUsecase) SyncHistory(ctx context.Context, platformFilter string) (*dto.SyncSummary, error) {
	targets := map[string]repository.IProvider{}
	if platformFilter != "" {
		p, ok := u.providers[platformFilter]
		if !ok {
			return nil, &model.ProviderNotFoundError{Platform: platformFilter}
		}
		targets[platformFilter] = p
	} else {
		for name, p := range u.providers {
			if p.ValidateConfig() {
				targets[name] = p
			}
		}
	}

	summary := &dto.SyncSummary{Results: map[string]dto.SyncOutcome{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, p := range targets {
		name, p := name, p
		g.Go(func() error {
			res, err := p.Sync(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.GetLogger().WithField("provider", name).WithField("error", err).Error("Provider sync failed")
				summary.Results[name] = dto.SyncOutcome{Error: err.Error()}
				return nil
			}
			logger.GetLogger().WithField("provider", name).WithField("new", res.NewCount).WithField("updated", res.UpdateCount).Info("Provider sync finished")
			summary.Results[name] = dto.SyncOutcome{NewCount: res.NewCount, UpdateCount: res.UpdateCount}
			summary.TotalNew += res.NewCount
			summary.TotalUpdate += res.UpdateCount
			return nil
		})
	}
	_ = g.Wait()
	return summary, nil
}

// DeleteRemoteHistory resolves the provider by the platform value stamped
// on the record. Registry names and platform values can differ, so the
// lookup goes through Platform(), not the registry key.
func (u *syncUsecase) DeleteRemoteHistory(ctx context.Context, rec *model.HistoryRecord) (bool, error) {
	for _, p := range u.providers {
		if p.Platform() == rec.Platform {
			return p.DeleteRemote(ctx, rec)
		}
	}
	return false, &model.ProviderNotFoundError{Platform: rec.Platform}
}

func (u *syncUsecase) DeleteHistory(ctx context.Context, platform, id, business string) (bool, error) {
	rec := &model.HistoryRecord{ID: id, Platform: platform, Business: business}
	remoteOK, err := u.DeleteRemoteHistory(ctx, rec)
	if err != nil {
		var notFound *model.ProviderNotFoundError
		if !errors.As(err, &notFound) {
			logger.GetLogger().WithField("platform", platform).WithField("id", id).WithField("error", err).Warn("Remote delete failed, deleting locally only")
		}
		remoteOK = false
	}
	if err := u.history.Delete(ctx, id, platform); err != nil {
		return remoteOK, err
	}
	return remoteOK, nil
}

func (u *syncUsecase) ListHistory(ctx context.Context, req *dto.HistoryListRequest) (*dto.HistoryListResponse, error) {
	items, total, err := u.history.List(ctx, req)
	if err != nil {
		return nil, err
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}
	return &dto.HistoryListResponse{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (u *syncUsecase) ExportHistory(ctx context.Context, req *dto.HistoryListRequest) ([]model.HistoryRecord, error) {
	out := []model.HistoryRecord{}
	page := *req
	page.PageSize = 200
	for page.Page = 1; ; page.Page++ {
		items, _, err := u.history.List(ctx, &page)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < page.PageSize {
			return out, nil
		}
	}
}

func (u *syncUsecase) GetEnabledProviders() map[string]repository.IProvider {
	out := map[string]repository.IProvider{}
	for name, p := range u.providers {
		if p.ValidateConfig() {
			out[name] = p
		}
	}
	return out
}
