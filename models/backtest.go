package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// the backtest engine expects plain JSON numbers for money fields
	decimal.MarshalJSONWithoutQuotes = true
}

// BacktestConfig is the run configuration sent with start_backtest and the
// REST run endpoints. It is forwarded as given; only required-field
// presence is checked client-side.
type BacktestConfig struct {
	Symbol         string          `json:"symbol"`
	Period         string          `json:"period,omitempty"`
	StartDate      string          `json:"start_date,omitempty"`
	EndDate        string          `json:"end_date,omitempty"`
	Timeframe      string          `json:"timeframe,omitempty"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Commission     decimal.Decimal `json:"commission"`
	Slippage       decimal.Decimal `json:"slippage"`
	StrategyID     int64           `json:"strategy_id,omitempty"`
	StrategyCode   string          `json:"strategy_code,omitempty"`
	Indicators     []string        `json:"indicators,omitempty"`
}

// MissingFields lists required fields that are empty.
func (c BacktestConfig) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(c.Symbol) == "" {
		missing = append(missing, "symbol")
	}
	if strings.TrimSpace(c.Period) == "" {
		if strings.TrimSpace(c.StartDate) == "" {
			missing = append(missing, "start_date")
		}
		if strings.TrimSpace(c.EndDate) == "" {
			missing = append(missing, "end_date")
		}
	}
	return missing
}

// StartCommand is the single client->server frame of a stream session.
type StartCommand struct {
	Action string         `json:"action"`
	Config BacktestConfig `json:"config"`
}

// StreamMetadata announces the size of the run.
type StreamMetadata struct {
	TotalCandles int    `json:"total_candles"`
	Symbol       string `json:"symbol,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	Timeframe    string `json:"timeframe,omitempty"`
}

// CandleEvent carries one candle and, when the backend reports it, the
// zero-based position of the candle in the run.
type CandleEvent struct {
	Candle Candle
	Index  *int
}

// Metrics are the authoritative final figures of a completed run.
type Metrics struct {
	TotalTrades   int      `json:"total_trades"`
	WinningTrades int      `json:"winning_trades"`
	LosingTrades  int      `json:"losing_trades"`
	PnL           float64  `json:"total_pnl"`
	MaxDrawdown   *float64 `json:"max_drawdown,omitempty"`
	SharpeRatio   *float64 `json:"sharpe_ratio,omitempty"`
	FinalEquity   *float64 `json:"final_equity,omitempty"`
}

// CompletePayload is the body of the complete event.
type CompletePayload struct {
	Metrics *Metrics   `json:"metrics,omitempty"`
	Trades  []RawTrade `json:"trades,omitempty"`
}

// StreamError is the body of the error event.
type StreamError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// BacktestResults is what the completion callback receives.
type BacktestResults struct {
	TotalTrades   int              `json:"total_trades"`
	WinningTrades int              `json:"winning_trades"`
	LosingTrades  int              `json:"losing_trades"`
	WinRate       float64          `json:"win_rate"`
	PnL           float64          `json:"pnl"`
	MaxDrawdown   *float64         `json:"max_drawdown,omitempty"`
	SharpeRatio   *float64         `json:"sharpe_ratio,omitempty"`
	FinalEquity   *float64         `json:"final_equity,omitempty"`
	Trades        []CompletedTrade `json:"trades"`
}

// BacktestReport is the response of the REST run and quick-run endpoints.
type BacktestReport struct {
	ID      int64          `json:"id,omitempty"`
	Symbol  string         `json:"symbol"`
	Metrics Metrics        `json:"metrics"`
	Trades  []RawTrade     `json:"trades,omitempty"`
	Equity  []EquityPoint  `json:"equity_curve,omitempty"`
	Candles []Candle       `json:"candles,omitempty"`
	Signals []TradeSignal  `json:"signals,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// EquityPoint is one sample of the account equity curve.
type EquityPoint struct {
	Timestamp Timestamp `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// RunRecord is a completed stream run kept in the local history.
type RunRecord struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Status    string          `json:"status"`
	Config    BacktestConfig  `json:"config"`
	Results   BacktestResults `json:"results"`
	Candles   int             `json:"candles"`
	Signals   int             `json:"signals"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
