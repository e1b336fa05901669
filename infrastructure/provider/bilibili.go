package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"my-history/domain/dto"
	"my-history/domain/model"
	"my-history/domain/repository"
	"my-history/infrastructure/configuration"
	"my-history/infrastructure/logger"
)

const (
	biliHistoryPath = "/x/web-interface/history/cursor"
	biliDeletePath  = "/x/v2/history/delete"

	defaultBiliPageSize       = 30
	defaultBiliStaleThreshold = 30
)

// Codes bilibili returns when the session cookie is invalid or expired.
var biliAuthCodes = map[int]bool{-101: true, -111: true}

// BilibiliProvider walks the bilibili watch-history cursor API. The server
// hands back an opaque (max, view_at) pair with every page; both values are
// fed back verbatim to request the next page.
type BilibiliProvider struct {
	cfg     configuration.Bilibili
	creds   repository.ICredentialStore
	history repository.IHistory
	states  repository.ISyncState
	client  *http.Client
	delay   time.Duration
	now     func() time.Time
}

func NewBilibiliProvider(cfg configuration.Bilibili, delay time.Duration, creds repository.ICredentialStore, history repository.IHistory, states repository.ISyncState) *BilibiliProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.bilibili.com"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultBiliPageSize
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = defaultBiliStaleThreshold
	}
	return &BilibiliProvider{
		cfg:     cfg,
		creds:   creds,
		history: history,
		states:  states,
		client:  &http.Client{Timeout: 30 * time.Second},
		delay:   delay,
		now:     time.Now,
	}
}

func (p *BilibiliProvider) Name() string { return model.PlatformBilibili }

func (p *BilibiliProvider) Platform() string { return model.PlatformBilibili }

func (p *BilibiliProvider) ValidateConfig() bool {
	if !p.cfg.Enabled {
		return false
	}
	_, err := p.creds.GetCredential(context.Background(), p.Name())
	return err == nil
}

// Sync runs the cursor walk. On a detected auth failure the credential is
// force-refreshed and the whole walk is re-invoked exactly once more; a
// second auth failure aborts the run.
func (p *BilibiliProvider) Sync(ctx context.Context) (*dto.SyncResult, error) {
	var lastAuthErr error
	for attempt := 0; attempt < 2; attempt++ {
		cookie, err := p.creds.RefreshCredential(ctx, p.Name(), attempt > 0)
		if err != nil {
			return nil, err
		}
		res, err := p.syncOnce(ctx, cookie)
		if err != nil {
			var authErr *model.AuthError
			if errors.As(err, &authErr) && attempt == 0 {
				logger.GetLogger().WithField("error", err).Warn("Bilibili auth failed, refreshing credential and retrying")
				lastAuthErr = err
				continue
			}
			return nil, err
		}
		return res, nil
	}
	return nil, lastAuthErr
}

func (p *BilibiliProvider) syncOnce(ctx context.Context, cookie string) (*dto.SyncResult, error) {
	st, err := p.states.Load(p.Platform())
	if err != nil {
		return nil, err
	}
	firstSync := st.LastSyncTime == 0
	startedAt := p.now().Unix()

	// The server may repeat ids across pages, so dedup spans the whole run.
	seen := map[string]struct{}{}
	result := &dto.SyncResult{}
	var cursor dto.BiliCursor
	staleStreak := 0
	persistedPages := 0
	newestID := st.LastSeenID
	first := true

	for {
		page, err := p.fetchPage(ctx, cookie, cursor)
		if err != nil {
			if persistedPages > 0 {
				p.saveState(startedAt, newestID)
			}
			return nil, err
		}
		if len(page.Data.List) == 0 {
			break
		}

		batch := make([]model.HistoryRecord, 0, len(page.Data.List))
		stopped := false
		for i := range page.Data.List {
			rec := p.normalizeItem(&page.Data.List[i])
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			if first {
				newestID = rec.ID
				first = false
			}

			key, err := p.history.Exists(ctx, rec.ID, p.Platform())
			if err != nil {
				return nil, err
			}
			if key != nil && key.ViewTime == rec.ViewTime {
				// Fetched but neither new nor updated. A single duplicate is
				// not a stop signal since re-watches legitimately move
				// view_time forward; only a long stale streak is.
				staleStreak++
				if !firstSync && staleStreak >= p.cfg.StaleThreshold {
					stopped = true
					break
				}
				continue
			}
			staleStreak = 0
			batch = append(batch, rec)
		}

		newCount, updateCount, err := p.history.ApplyBatch(ctx, batch, true)
		if err != nil {
			return nil, err
		}
		result.NewCount += newCount
		result.UpdateCount += updateCount
		persistedPages++

		if stopped {
			logger.GetLogger().WithField("streak", staleStreak).Info("Bilibili stale streak reached, stopping")
			break
		}
		cursor = page.Data.Cursor
		if cursor.Max == 0 && cursor.ViewAt == 0 {
			break
		}
		if err := sleepCtx(ctx, p.delay); err != nil {
			return nil, err
		}
	}

	p.saveState(startedAt, newestID)
	return result, nil
}

func (p *BilibiliProvider) saveState(syncTime int64, lastSeenID string) {
	st := &model.SyncState{LastSyncTime: syncTime, LastSeenID: lastSeenID}
	if err := p.states.Save(p.Platform(), st); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Failed saving bilibili sync state")
	}
}

func (p *BilibiliProvider) fetchPage(ctx context.Context, cookie string, cursor dto.BiliCursor) (*dto.BiliHistoryResponse, error) {
	q := dto.BiliHistoryQuery{Max: cursor.Max, ViewAt: cursor.ViewAt, Ps: p.cfg.PageSize}
	values, err := query.Values(q)
	if err != nil {
		return nil, err
	}
	endpoint := p.cfg.BaseURL + biliHistoryPath + "?" + values.Encode()

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Cookie", cookie)
		req.Header.Set("User-Agent", "Mozilla/5.0")
		req.Header.Set("Referer", "https://www.bilibili.com")
		return req, nil
	})
	if err != nil {
		return nil, &model.TransportError{Platform: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.TransportError{Platform: p.Name(), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	var page dto.BiliHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &model.ProtocolError{Platform: p.Name(), Reason: fmt.Sprintf("decode history page: %v", err)}
	}
	if page.Code != 0 {
		if biliAuthCodes[page.Code] || strings.Contains(strings.ToLower(page.Message), "not logged in") {
			return nil, &model.AuthError{Platform: p.Name(), Err: fmt.Errorf("code %d: %s", page.Code, page.Message)}
		}
		return nil, &model.ProtocolError{Platform: p.Name(), Reason: fmt.Sprintf("code %d: %s", page.Code, page.Message)}
	}
	return &page, nil
}

// normalizeItem maps a raw history entry to a HistoryRecord. Missing
// optional fields become empty-string/zero defaults.
func (p *BilibiliProvider) normalizeItem(item *dto.BiliHistoryItem) model.HistoryRecord {
	id := strconv.FormatInt(item.History.Oid, 10)
	if item.History.Business == "pgc" && item.History.Epid != 0 {
		id = strconv.FormatInt(item.History.Epid, 10)
	}
	uri := item.URI
	if uri == "" && item.History.Bvid != "" {
		uri = "https://www.bilibili.com/video/" + item.History.Bvid
	}
	return model.HistoryRecord{
		ID:          id,
		Platform:    p.Platform(),
		Business:    item.History.Business,
		ExternalRef: item.History.Bvid,
		ContentRef:  item.History.Cid,
		Title:       item.Title,
		CategoryTag: item.TagName,
		CoverURL:    item.Cover,
		ViewTime:    item.ViewAt,
		URI:         uri,
		AuthorName:  item.AuthorName,
		AuthorID:    item.AuthorMid,
		RecordedAt:  p.now().UnixMilli(),
	}
}

// DeleteRemote removes one record from the remote watch history. The kid
// parameter is "<business>_<oid>" and the csrf token is the bili_jct cookie.
func (p *BilibiliProvider) DeleteRemote(ctx context.Context, rec *model.HistoryRecord) (bool, error) {
	cookie, err := p.creds.GetCredential(ctx, p.Name())
	if err != nil {
		return false, err
	}
	csrf := cookiePart(cookie, "bili_jct")
	if csrf == "" {
		return false, &model.CredentialError{Platform: p.Name(), Reason: "bili_jct cookie missing, cannot build csrf token"}
	}

	business := rec.Business
	if business == "" {
		business = "archive"
	}
	form := url.Values{}
	form.Set("kid", fmt.Sprintf("%s_%s", business, rec.ID))
	form.Set("csrf", csrf)
	body := form.Encode()

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.cfg.BaseURL+biliDeletePath, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Cookie", cookie)
		req.Header.Set("User-Agent", "Mozilla/5.0")
		return req, nil
	})
	if err != nil {
		return false, &model.TransportError{Platform: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	var out dto.BiliResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, &model.ProtocolError{Platform: p.Name(), Reason: fmt.Sprintf("decode delete response: %v", err)}
	}
	if out.Code != 0 {
		logger.GetLogger().WithField("code", out.Code).WithField("message", out.Message).Warn("Bilibili remote delete refused")
		return false, nil
	}
	return true, nil
}

// cookiePart extracts one value from a "k=v; k2=v2" cookie string.
func cookiePart(cookie, name string) string {
	for _, part := range strings.Split(cookie, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 && kv[0] == name {
			return kv[1]
		}
	}
	return ""
}
