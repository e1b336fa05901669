package dto

// PodcastHistoryRequest is the body of the played-history listing call.
// LoadMoreKey is the opaque cursor from the previous page; empty on the
// first page.
type PodcastHistoryRequest struct {
	LoadMoreKey string `json:"loadMoreKey,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// PodcastHistoryResponse is one page of played episodes.
type PodcastHistoryResponse struct {
	Data        []PodcastEpisode `json:"data"`
	LoadMoreKey string           `json:"loadMoreKey"`
}

type PodcastEpisode struct {
	Eid      string       `json:"eid"`
	Title    string       `json:"title"`
	Duration int          `json:"duration"`
	PlayedAt string       `json:"playedAt"` // RFC3339; may be absent
	Image    PodcastImage `json:"image"`
	Podcast  PodcastShow  `json:"podcast"`
}

type PodcastImage struct {
	PicURL string `json:"picUrl"`
}

type PodcastShow struct {
	Pid   string `json:"pid"`
	Title string `json:"title"`
}

// PodcastRefreshResponse is the body returned by the token refresh endpoint.
type PodcastRefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Success      bool   `json:"success"`
}
