package models

import "time"

// Strategy is a saved natural-language strategy and its generated code.
type Strategy struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code,omitempty"`
	Indicators  []string  `json:"indicators,omitempty"`
	Timeframe   string    `json:"timeframe,omitempty"`
	IsValid     bool      `json:"is_valid"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StrategyInput is the body for create and update.
type StrategyInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Code        string   `json:"code,omitempty"`
	Indicators  []string `json:"indicators,omitempty"`
	Timeframe   string   `json:"timeframe,omitempty"`
}
