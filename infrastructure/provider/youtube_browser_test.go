package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"my-history/domain/dto"
	"my-history/domain/model"
	"my-history/infrastructure/configuration"
)

type browserFixture struct {
	navigates    int
	scrolls      int
	bottomAfter  int // scrolls until atBottom
	extractItems []dto.BrowserHistoryItem
}

func (f *browserFixture) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case browserNavigatePath:
			f.navigates++
			var req dto.BrowserNavigateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, youtubeHistoryFeed, req.URL)
			w.Write([]byte("{}"))
		case browserScrollPath:
			f.scrolls++
			resp := dto.BrowserScrollResponse{AtBottom: f.scrolls >= f.bottomAfter}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		case browserExtractPath:
			require.NoError(t, json.NewEncoder(w).Encode(dto.BrowserExtractResponse{Items: f.extractItems}))
		default:
			http.NotFound(w, r)
		}
	}
}

func newBrowserProvider(url string, maxScrolls int, hist *memHistory, states *memSyncState) *YouTubeBrowserProvider {
	cfg := configuration.YouTubeBrowser{Enabled: true, Endpoint: url, Token: "secret", MaxScrolls: maxScrolls, TzOffsetHours: 8}
	return NewYouTubeBrowserProvider(cfg, 0, hist, states)
}

func TestYouTubeBrowserSync_ExtractsRenderedFeed(t *testing.T) {
	f := &browserFixture{
		bottomAfter: 2,
		extractItems: []dto.BrowserHistoryItem{
			{VideoID: "a1", Title: "first", Channel: "ch", DateHeader: "Today"},
			{VideoID: "a2", Title: "second", DateHeader: "Yesterday"},
			{URL: "https://www.youtube.com/watch?v=a3", Title: "from url", DateHeader: "Yesterday"},
		},
	}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	hist := newMemHistory()
	states := newMemSyncState()
	p := newBrowserProvider(srv.URL, 10, hist, states)

	res, err := p.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewCount)
	assert.Equal(t, 1, f.navigates)
	assert.Equal(t, 2, f.scrolls)

	// The id is recovered from the watch URL when missing.
	key, err := hist.Exists(context.Background(), "a3", model.PlatformYouTubeBrowser)
	require.NoError(t, err)
	require.NotNil(t, key)

	st, err := states.Load(model.PlatformYouTubeBrowser)
	require.NoError(t, err)
	assert.NotZero(t, st.LastSyncTime)
}

func TestYouTubeBrowserSync_ScrollCap(t *testing.T) {
	f := &browserFixture{bottomAfter: 1000}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	p := newBrowserProvider(srv.URL, 5, newMemHistory(), newMemSyncState())

	_, err := p.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, f.scrolls)
}

func TestYouTubeBrowserSync_IncrementalStopsAtKnownRecord(t *testing.T) {
	hist := newMemHistory()
	states := newMemSyncState()
	require.NoError(t, states.Save(model.PlatformYouTubeBrowser, &model.SyncState{LastSyncTime: 1000}))
	hist.seed(model.HistoryRecord{ID: "b2", Platform: model.PlatformYouTubeBrowser, ViewTime: 1000})

	f := &browserFixture{
		bottomAfter: 1,
		extractItems: []dto.BrowserHistoryItem{
			{VideoID: "b1", DateHeader: "Today"},
			{VideoID: "b2", DateHeader: "Jan 3, 2024"},
			{VideoID: "b3", DateHeader: "Jan 2, 2024"},
		},
	}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	p := newBrowserProvider(srv.URL, 10, hist, states)

	res, err := p.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewCount)

	key, err := hist.Exists(context.Background(), "b3", model.PlatformYouTubeBrowser)
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestYouTubeBrowserSync_RejectedTokenIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newBrowserProvider(srv.URL, 5, newMemHistory(), newMemSyncState())

	_, err := p.Sync(context.Background())
	var authErr *model.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestYouTubeBrowserDeleteRemote_Unsupported(t *testing.T) {
	p := newBrowserProvider("http://unused", 5, newMemHistory(), newMemSyncState())

	ok, err := p.DeleteRemote(context.Background(), &model.HistoryRecord{ID: "b1"})
	require.NoError(t, err)
	assert.False(t, ok)
}
