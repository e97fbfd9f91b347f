// Package export writes a finished run's candles and trades to disk as
// CSV, JSON or Parquet.
package export

import (
	"github.com/dyike/QuantDesk/models"
)

// CandleRow is the flat, file-friendly form of a candle.
type CandleRow struct {
	Timestamp string  `json:"timestamp" parquet:"timestamp"`
	Open      float64 `json:"open" parquet:"open"`
	High      float64 `json:"high" parquet:"high"`
	Low       float64 `json:"low" parquet:"low"`
	Close     float64 `json:"close" parquet:"close"`
	Volume    float64 `json:"volume" parquet:"volume"`
}

// TradeRow is the flat form of a completed trade.
type TradeRow struct {
	EntryTime  string  `json:"entry_time" parquet:"entry_time"`
	ExitTime   string  `json:"exit_time" parquet:"exit_time"`
	Side       string  `json:"side" parquet:"side"`
	EntryPrice float64 `json:"entry_price" parquet:"entry_price"`
	ExitPrice  float64 `json:"exit_price" parquet:"exit_price"`
	Size       float64 `json:"size" parquet:"size"`
	PnL        float64 `json:"pnl" parquet:"pnl"`
}

// Run is what gets exported for one backtest.
type Run struct {
	ID      string                  `json:"id"`
	Symbol  string                  `json:"symbol"`
	Results *models.BacktestResults `json:"results,omitempty"`
	Candles []CandleRow             `json:"candles"`
	Trades  []TradeRow              `json:"trades"`
}

func NewRun(id, symbol string, candles []models.Candle, trades []models.CompletedTrade, results *models.BacktestResults) Run {
	r := Run{
		ID:      id,
		Symbol:  symbol,
		Results: results,
		Candles: make([]CandleRow, 0, len(candles)),
		Trades:  make([]TradeRow, 0, len(trades)),
	}
	for _, c := range candles {
		r.Candles = append(r.Candles, CandleRow{
			Timestamp: string(c.Timestamp),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	for _, t := range trades {
		r.Trades = append(r.Trades, TradeRow{
			EntryTime:  string(t.EntryTime),
			ExitTime:   string(t.ExitTime),
			Side:       t.Side,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Size:       t.Size,
			PnL:        t.PnL,
		})
	}
	return r
}
