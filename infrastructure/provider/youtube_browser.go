package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"my-history/domain/dto"
	"my-history/domain/model"
	"my-history/domain/repository"
	"my-history/infrastructure/configuration"
	"my-history/infrastructure/logger"
)

const (
	defaultMaxScrolls   = 20
	youtubeHistoryFeed  = "https://www.youtube.com/feed/history"
	browserNavigatePath = "/session/navigate"
	browserScrollPath   = "/session/scroll"
	browserExtractPath  = "/session/extract"
)

// YouTubeBrowserProvider drives a remote browser-automation service over
// HTTP. The history feed has no cursor; new entries appear as the page is
// scrolled, so one session is navigate, scroll until the bottom or the
// scroll cap, then extract the whole rendered feed at once.
type YouTubeBrowserProvider struct {
	cfg     configuration.YouTubeBrowser
	history repository.IHistory
	states  repository.ISyncState
	client  *http.Client
	delay   time.Duration
	now     func() time.Time
}

func NewYouTubeBrowserProvider(cfg configuration.YouTubeBrowser, delay time.Duration, history repository.IHistory, states repository.ISyncState) *YouTubeBrowserProvider {
	if cfg.MaxScrolls <= 0 {
		cfg.MaxScrolls = defaultMaxScrolls
	}
	return &YouTubeBrowserProvider{
		cfg:     cfg,
		history: history,
		states:  states,
		client:  &http.Client{Timeout: 60 * time.Second},
		delay:   delay,
		now:     time.Now,
	}
}

func (p *YouTubeBrowserProvider) Name() string { return model.PlatformYouTubeBrowser }

func (p *YouTubeBrowserProvider) Platform() string { return model.PlatformYouTubeBrowser }

func (p *YouTubeBrowserProvider) ValidateConfig() bool {
	return p.cfg.Enabled && p.cfg.Endpoint != ""
}

func (p *YouTubeBrowserProvider) Sync(ctx context.Context) (*dto.SyncResult, error) {
	st, err := p.states.Load(p.Platform())
	if err != nil {
		return nil, err
	}
	firstSync := st.LastSyncTime == 0
	startedAt := p.now().Unix()

	if err := p.post(ctx, browserNavigatePath, dto.BrowserNavigateRequest{URL: youtubeHistoryFeed}, nil); err != nil {
		return nil, err
	}
	for i := 0; i < p.cfg.MaxScrolls; i++ {
		var scroll dto.BrowserScrollResponse
		if err := p.post(ctx, browserScrollPath, nil, &scroll); err != nil {
			return nil, err
		}
		if scroll.AtBottom {
			break
		}
		if err := sleepCtx(ctx, p.delay); err != nil {
			return nil, err
		}
	}
	var extract dto.BrowserExtractResponse
	if err := p.post(ctx, browserExtractPath, nil, &extract); err != nil {
		return nil, err
	}

	batch := make([]model.HistoryRecord, 0, len(extract.Items))
	for i := range extract.Items {
		rec := p.normalizeItem(&extract.Items[i])
		if rec.ID == "" {
			continue
		}
		if !firstSync {
			key, err := p.history.Exists(ctx, rec.ID, p.Platform())
			if err != nil {
				return nil, err
			}
			if key != nil && key.ViewTime >= st.LastSyncTime {
				break
			}
			if key != nil {
				continue
			}
		}
		batch = append(batch, rec)
	}

	newCount, _, err := p.history.ApplyBatch(ctx, batch, false)
	if err != nil {
		return nil, err
	}

	st.LastSyncTime = startedAt
	if len(extract.Items) > 0 {
		st.LastSeenID = extract.Items[0].VideoID
	}
	if err := p.states.Save(p.Platform(), st); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Failed saving youtube-browser sync state")
	}
	return &dto.SyncResult{NewCount: newCount}, nil
}

// DeleteRemote is not supported through the browser session.
func (p *YouTubeBrowserProvider) DeleteRemote(ctx context.Context, rec *model.HistoryRecord) (bool, error) {
	logger.GetLogger().WithField("id", rec.ID).Info("Remote deletion not supported for youtube-browser, local delete only")
	return false, nil
}

func (p *YouTubeBrowserProvider) post(ctx context.Context, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return err
		}
	} else {
		payload = []byte("{}")
	}

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.cfg.Endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if p.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
		}
		return req, nil
	})
	if err != nil {
		return &model.TransportError{Platform: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &model.AuthError{Platform: p.Name(), Err: fmt.Errorf("automation service rejected token, status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return &model.TransportError{Platform: p.Name(), Err: fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &model.ProtocolError{Platform: p.Name(), Reason: fmt.Sprintf("decode %s response: %v", path, err)}
		}
	}
	return nil
}

func (p *YouTubeBrowserProvider) normalizeItem(item *dto.BrowserHistoryItem) model.HistoryRecord {
	id := item.VideoID
	uri := item.URL
	if id == "" && uri != "" {
		if u, err := url.Parse(uri); err == nil {
			id = u.Query().Get("v")
		}
	}
	if uri == "" && id != "" {
		uri = "https://www.youtube.com/watch?v=" + id
	}

	viewTime, ok := ParseDateHeader(item.DateHeader, p.cfg.TzOffsetHours, p.now())
	if !ok {
		logger.GetLogger().WithField("header", item.DateHeader).Warn("Unparseable date header, falling back to current time")
		viewTime = p.now().Unix()
	}
	return model.HistoryRecord{
		ID:         id,
		Platform:   p.Platform(),
		Business:   "video",
		Title:      item.Title,
		CoverURL:   item.Thumbnail,
		ViewTime:   viewTime,
		URI:        uri,
		AuthorName: item.Channel,
		RecordedAt: p.now().UnixMilli(),
	}
}
