package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"my-history/domain/dto"
	"my-history/domain/model"
	"my-history/domain/repository"
	"my-history/infrastructure/configuration"
	"my-history/infrastructure/logger"
)

const (
	defaultYouTubeFirstSyncLimit = 100
	defaultYouTubeToolTimeout    = 300 * time.Second
)

// YouTubeProvider shells out to an external scraping tool that prints the
// watch history as JSON lines, newest first. There is no cursor; the tool
// emits one flat bounded list per invocation.
type YouTubeProvider struct {
	cfg     configuration.YouTube
	history repository.IHistory
	states  repository.ISyncState
	runTool func(ctx context.Context) ([]byte, error)
	now     func() time.Time
}

func NewYouTubeProvider(cfg configuration.YouTube, history repository.IHistory, states repository.ISyncState) *YouTubeProvider {
	if cfg.FirstSyncLimit <= 0 {
		cfg.FirstSyncLimit = defaultYouTubeFirstSyncLimit
	}
	p := &YouTubeProvider{
		cfg:     cfg,
		history: history,
		states:  states,
		now:     time.Now,
	}
	p.runTool = p.execTool
	return p
}

func (p *YouTubeProvider) Name() string { return model.PlatformYouTube }

func (p *YouTubeProvider) Platform() string { return model.PlatformYouTube }

func (p *YouTubeProvider) ValidateConfig() bool {
	return p.cfg.Enabled && p.cfg.Tool != ""
}

func (p *YouTubeProvider) Sync(ctx context.Context) (*dto.SyncResult, error) {
	st, err := p.states.Load(p.Platform())
	if err != nil {
		return nil, err
	}
	firstSync := st.LastSyncTime == 0
	startedAt := p.now().Unix()

	out, err := p.runTool(ctx)
	if err != nil {
		return nil, &model.TransportError{Platform: p.Name(), Err: err}
	}
	items, err := p.parseLines(out)
	if err != nil {
		return nil, err
	}

	batch := make([]model.HistoryRecord, 0, len(items))
	for i := range items {
		rec := p.normalizeItem(&items[i])
		if firstSync {
			if len(batch) >= p.cfg.FirstSyncLimit {
				break
			}
			batch = append(batch, rec)
			continue
		}
		key, err := p.history.Exists(ctx, rec.ID, p.Platform())
		if err != nil {
			return nil, err
		}
		// An already-stored record that predates the last successful sync
		// marks the boundary of new data in a newest-first list.
		if key != nil && key.ViewTime >= st.LastSyncTime {
			break
		}
		if key != nil {
			continue
		}
		batch = append(batch, rec)
	}

	newCount, _, err := p.history.ApplyBatch(ctx, batch, false)
	if err != nil {
		return nil, err
	}

	st.LastSyncTime = startedAt
	if len(items) > 0 {
		st.LastSeenID = items[0].ID
	}
	if err := p.states.Save(p.Platform(), st); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Failed saving youtube sync state")
	}
	return &dto.SyncResult{NewCount: newCount}, nil
}

// DeleteRemote is not supported by the scraper tool.
func (p *YouTubeProvider) DeleteRemote(ctx context.Context, rec *model.HistoryRecord) (bool, error) {
	logger.GetLogger().WithField("id", rec.ID).Info("Remote deletion not supported for youtube, local delete only")
	return false, nil
}

func (p *YouTubeProvider) execTool(ctx context.Context) ([]byte, error) {
	timeout := defaultYouTubeToolTimeout
	if p.cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(p.cfg.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.cfg.Tool, p.cfg.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w (stderr: %s)", p.cfg.Tool, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// parseLines decodes the tool's JSON-lines output. Diagnostic lines that are
// not JSON objects are skipped; a JSON object that fails to decode is a
// protocol error.
func (p *YouTubeProvider) parseLines(out []byte) ([]dto.YouTubeToolItem, error) {
	items := []dto.YouTubeToolItem{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}
		var item dto.YouTubeToolItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, &model.ProtocolError{Platform: p.Name(), Reason: fmt.Sprintf("decode tool output line: %v", err)}
		}
		if item.ID == "" {
			return nil, &model.ProtocolError{Platform: p.Name(), Reason: "tool output item missing id"}
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, &model.ProtocolError{Platform: p.Name(), Reason: fmt.Sprintf("scan tool output: %v", err)}
	}
	return items, nil
}

func (p *YouTubeProvider) normalizeItem(item *dto.YouTubeToolItem) model.HistoryRecord {
	uri := item.URL
	if uri == "" {
		uri = "https://www.youtube.com/watch?v=" + item.ID
	}
	viewTime := item.ViewedAt
	if viewTime == 0 {
		viewTime = p.now().Unix()
	}
	return model.HistoryRecord{
		ID:         item.ID,
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
