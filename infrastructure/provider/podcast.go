package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"my-history/domain/dto"
	"my-history/domain/model"
	"my-history/domain/repository"
	"my-history/infrastructure/configuration"
	"my-history/infrastructure/credential"
	"my-history/infrastructure/logger"
)

const (
	podcastHistoryPath = "/v1/episode-played/list-history"
	podcastRemovePath  = "/v1/episode-played/remove"

	defaultPodcastMaxPages = 20
	defaultPodcastPageSize = 25
)

// PodcastProvider pages through the podcast app's played-episode history.
// The server returns an opaque loadMoreKey with every page; an empty key
// means no more data. Auth is an access/refresh token pair owned by the
// token store.
type PodcastProvider struct {
	cfg     configuration.Podcast
	tokens  *credential.TokenStore
	history repository.IHistory
	states  repository.ISyncState
	client  *http.Client
	delay   time.Duration
	now     func() time.Time
}

func NewPodcastProvider(cfg configuration.Podcast, delay time.Duration, tokens *credential.TokenStore, history repository.IHistory, states repository.ISyncState) *PodcastProvider {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultPodcastMaxPages
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPodcastPageSize
	}
	return &PodcastProvider{
		cfg:     cfg,
		tokens:  tokens,
		history: history,
		states:  states,
		client:  &http.Client{Timeout: 30 * time.Second},
		delay:   delay,
		now:     time.Now,
	}
}

func (p *PodcastProvider) Name() string { return model.PlatformPodcast }

func (p *PodcastProvider) Platform() string { return model.PlatformPodcast }

func (p *PodcastProvider) ValidateConfig() bool {
	return p.cfg.Enabled && p.tokens.HasCredentials()
}

// Sync pages through the played history. On a 401 the token pair is
// refreshed and the whole walk re-invoked exactly once more; a second auth
// failure, or a failed refresh, aborts the run.
func (p *PodcastProvider) Sync(ctx context.Context) (*dto.SyncResult, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := p.syncOnce(ctx)
		if err != nil {
			var authErr *model.AuthError
			if errors.As(err, &authErr) && attempt == 0 {
				logger.GetLogger().Warn("Podcast access token rejected, refreshing token pair and retrying")
				if !p.tokens.RefreshTokens(ctx) {
					return nil, &model.AuthError{Platform: p.Name(), Err: fmt.Errorf("token refresh failed")}
				}
				continue
			}
			return nil, err
		}
		return res, nil
	}
	return nil, &model.AuthError{Platform: p.Name(), Err: fmt.Errorf("access token still rejected after refresh")}
}

func (p *PodcastProvider) syncOnce(ctx context.Context) (*dto.SyncResult, error) {
	st, err := p.states.Load(p.Platform())
	if err != nil {
		return nil, err
	}
	firstSync := st.LastSyncTime == 0
	startedAt := p.now().Unix()

	result := &dto.SyncResult{}
	loadMoreKey := ""
	persistedPages := 0
	newestID := st.LastSeenID

	for page := 0; ; page++ {
		if firstSync && page >= p.cfg.MaxPages {
			break
		}
		resp, err := p.fetchPage(ctx, loadMoreKey)
		if err != nil {
			if persistedPages > 0 {
				p.saveState(startedAt, newestID)
			}
			return nil, err
		}
		if len(resp.Data) == 0 {
			break
		}
		if page == 0 {
			newestID = resp.Data[0].Eid
		}

		batch := make([]model.HistoryRecord, 0, len(resp.Data))
		stopped := false
		for i := range resp.Data {
			rec := p.normalizeItem(&resp.Data[i])
			key, err := p.history.Exists(ctx, rec.ID, p.Platform())
			if err != nil {
				return nil, err
			}
			if key != nil {
				// First sync keeps paging past known episodes to fill the
				// page cap; an incremental pass stops at the first one.
				if firstSync {
					continue
				}
				stopped = true
				break
			}
			batch = append(batch, rec)
		}

		newCount, _, err := p.history.ApplyBatch(ctx, batch, false)
		if err != nil {
			return nil, err
		}
		result.NewCount += newCount
		persistedPages++

		if stopped {
			break
		}
		loadMoreKey = resp.LoadMoreKey
		if loadMoreKey == "" {
			break
		}
		if err := sleepCtx(ctx, p.delay); err != nil {
			return nil, err
		}
	}

	p.saveState(startedAt, newestID)
	return result, nil
}

func (p *PodcastProvider) saveState(syncTime int64, lastSeenID string) {
	st := &model.SyncState{LastSyncTime: syncTime, LastSeenID: lastSeenID}
	if err := p.states.Save(p.Platform(), st); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Failed saving podcast sync state")
	}
}

func (p *PodcastProvider) fetchPage(ctx context.Context, loadMoreKey string) (*dto.PodcastHistoryResponse, error) {
	body, err := json.Marshal(dto.PodcastHistoryRequest{LoadMoreKey: loadMoreKey, Limit: p.cfg.PageSize})
	if err != nil {
		return nil, err
	}

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.cfg.BaseURL+podcastHistoryPath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		p.setHeaders(req)
		return req, nil
	})
	if err != nil {
		return nil, &model.TransportError{Platform: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &model.AuthError{Platform: p.Name(), Err: fmt.Errorf("status 401")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &model.TransportError{Platform: p.Name(), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	var page dto.PodcastHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &model.ProtocolError{Platform: p.Name(), Reason: fmt.Sprintf("decode history page: %v", err)}
	}
	return &page, nil
}

func (p *PodcastProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-jike-access-token", p.tokens.AccessToken())
	req.Header.Set("x-jike-device-id", p.tokens.DeviceID())
}

func (p *PodcastProvider) normalizeItem(ep *dto.PodcastEpisode) model.HistoryRecord {
	viewTime := p.now().Unix()
	if ep.PlayedAt != "" {
		if t, err := time.Parse(time.RFC3339, ep.PlayedAt); err == nil {
			viewTime = t.Unix()
		}
	}
	return model.HistoryRecord{
		ID:          ep.Eid,
		Platform:    p.Platform(),
		Business:    "podcast",
		ExternalRef: ep.Podcast.Pid,
		Title:       ep.Title,
		CoverURL:    ep.Image.PicURL,
		ViewTime:    viewTime,
		AuthorName:  ep.Podcast.Title,
		RecordedAt:  p.now().UnixMilli(),
	}
}

// DeleteRemote removes one played-history entry on the podcast app.
func (p *PodcastProvider) DeleteRemote(ctx context.Context, rec *model.HistoryRecord) (bool, error) {
	body, err := json.Marshal(map[string]string{"eid": rec.ID})
	if err != nil {
		return false, err
	}
	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.cfg.BaseURL+podcastRemovePath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		p.setHeaders(req)
		return req, nil
	})
	if err != nil {
		return false, &model.TransportError{Platform: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return false, &model.AuthError{Platform: p.Name(), Err: fmt.Errorf("status 401")}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		logger.GetLogger().WithField("status", resp.StatusCode).Warn("Podcast remote delete refused")
		return false, nil
	}
	return true, nil
}
