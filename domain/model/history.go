package model

// Platform identifies the remote service a history record came from.
const (
	PlatformBilibili       = "bilibili"
	PlatformYouTube        = "youtube"
	PlatformYouTubeBrowser = "youtube-browser"
	PlatformPodcast        = "podcast-app"
)

// HistoryRecord represents one watched/listened unit from any platform.
// (ID, Platform) is the composite key; ID never changes once assigned,
// ViewTime may be corrected upward by later re-syncs.
type HistoryRecord struct {
	ID          string `json:"id"`
	Platform    string `json:"platform"`
	Business    string `json:"business"` // platform content type: archive/pgc/live/article/podcast/...
	ExternalRef string `json:"external_ref"`
	ContentRef  int64  `json:"content_ref"`
	Title       string `json:"title"`
	CategoryTag string `json:"category_tag"`
	CoverURL    string `json:"cover_url"`
	ViewTime    int64  `json:"view_time"` // unix seconds, as reported by the platform
	URI         string `json:"uri"`
	AuthorName  string `json:"author_name"`
	AuthorID    int64  `json:"author_id"`
	RecordedAt  int64  `json:"recorded_at"` // unix millis, when this system observed the record
}

// SyncState is the per-platform resumption state persisted between runs.
// LastSyncTime == 0 means the platform has never been synced and the
// first-sync policy applies.
type SyncState struct {
	LastSyncTime int64  `json:"last_sync_time"`
	LastSeenID   string `json:"last_seen_id,omitempty"`
}

// HistoryKey is the stored identity of a record returned by existence checks.
type HistoryKey struct {
	ID       string `json:"id"`
	ViewTime int64  `json:"view_time"`
}
