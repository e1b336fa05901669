package dto

// YouTubeToolItem is one line of the scraper tool's JSON-lines output.
// ViewedAt is unix seconds; 0 when the tool could not determine it.
type YouTubeToolItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Channel   string `json:"channel"`
	ChannelID string `json:"channel_id"`
	Thumbnail string `json:"thumbnail"`
	ViewedAt  int64  `json:"viewed_at"`
}

// BrowserNavigateRequest starts a rendering session on the automation
// service and points it at a URL.
type BrowserNavigateRequest struct {
	URL string `json:"url"`
}

// BrowserScrollResponse reports whether the lazy-loaded page reached its
// bottom after one scroll step.
type BrowserScrollResponse struct {
	AtBottom bool `json:"atBottom"`
}

// BrowserExtractResponse is the automation service's extraction of the
// rendered history feed, newest first.
type BrowserExtractResponse struct {
	Items []BrowserHistoryItem `json:"items"`
}

// BrowserHistoryItem is one rendered history entry. DateHeader is the raw
// section header text the entry appeared under ("Today", "Jan 26", ...).
type BrowserHistoryItem struct {
	VideoID    string `json:"videoId"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Channel    string `json:"channel"`
	ChannelID  string `json:"channelId"`
	Thumbnail  string `json:"thumbnail"`
	DateHeader string `json:"dateHeader"`
}
