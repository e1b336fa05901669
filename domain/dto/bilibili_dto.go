package dto

// BiliHistoryQuery holds the cursor query parameters for the bilibili
// history endpoint. Encoded with go-querystring.
type BiliHistoryQuery struct {
	Max      int64  `url:"max"`
	ViewAt   int64  `url:"view_at"`
	Business string `url:"business,omitempty"`
	Ps       int    `url:"ps"`
}

// BiliResponse is the common bilibili API envelope.
type BiliResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BiliHistoryResponse is the payload of the history cursor endpoint.
type BiliHistoryResponse struct {
	BiliResponse
	Data BiliHistoryData `json:"data"`
}

type BiliHistoryData struct {
	Cursor BiliCursor        `json:"cursor"`
	List   []BiliHistoryItem `json:"list"`
}

// BiliCursor is the opaque server cursor returned with every page; both
// values are fed back verbatim to request the next page.
type BiliCursor struct {
	Max    int64 `json:"max"`
	ViewAt int64 `json:"view_at"`
	Ps     int   `json:"ps"`
}

type BiliHistoryItem struct {
	Title      string       `json:"title"`
	Cover      string       `json:"cover"`
	URI        string       `json:"uri"`
	History    BiliHistoryRef `json:"history"`
	AuthorName string       `json:"author_name"`
	AuthorMid  int64        `json:"author_mid"`
	ViewAt     int64        `json:"view_at"`
	Kid        int64        `json:"kid"`
	TagName    string       `json:"tag_name"`
	Badge      string       `json:"badge"`
	Progress   int          `json:"progress"`
	Duration   int          `json:"duration"`
}

// BiliHistoryRef identifies the watched object inside a history item.
type BiliHistoryRef struct {
	Oid      int64  `json:"oid"`
	Epid     int64  `json:"epid"`
	Bvid     string `json:"bvid"`
	Cid      int64  `json:"cid"`
	Page     int    `json:"page"`
	Part     string `json:"part"`
	Business string `json:"business"`
}
