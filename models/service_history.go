package models

// HistoryParams pages through the local run history.
type HistoryParams struct {
	Symbol string `json:"symbol"`
	Limit  int    `json:"limit"` // default 20, max 200
}
