package dto

// SyncResult represents the outcome of one provider's sync run.
type SyncResult struct {
	NewCount    int `json:"new_count"`
	UpdateCount int `json:"update_count"`
}

// SyncOutcome captures one provider's result or error inside a summary.
// Error is the message string only; stack traces stay in the logs.
type SyncOutcome struct {
	NewCount    int    `json:"new_count"`
	UpdateCount int    `json:"update_count"`
	Error       string `json:"error,omitempty"`
}

// SyncSummary aggregates outcomes across providers for one syncHistory call.
type SyncSummary struct {
	Results     map[string]SyncOutcome `json:"results"`
	TotalNew    int                    `json:"total_new"`
	TotalUpdate int                    `json:"total_update"`
}

// HistoryListRequest represents the query parameters of the history listing
// endpoint.
type HistoryListRequest struct {
	Platform string `form:"platform"`
	Business string `form:"business"`
	Keyword  string `form:"keyword"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// HistoryListResponse is a single page of stored history records.
type HistoryListResponse struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}
