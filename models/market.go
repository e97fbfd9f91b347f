package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// LabelLayout is the minute-resolution label used on chart axes.
const LabelLayout = "2006-01-02 15:04"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Timestamp keeps the backend's raw time value exactly as received.
// Numbers are kept in their decimal text form.
type Timestamp string

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*t = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		*t = Timestamp(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = Timestamp(n.String())
	return nil
}

// Time parses the raw value. Unix values above 1e12 are treated as milliseconds.
func (t Timestamp) Time() (time.Time, bool) {
	s := strings.TrimSpace(string(t))
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && !strings.Contains(s, "-") {
		if n >= 1e12 {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		sec, frac := math.Modf(n)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
	for _, layout := range timestampLayouts {
		if tm, err := time.Parse(layout, s); err == nil {
			return tm.UTC(), true
		}
	}
	return time.Time{}, false
}

// Label formats the timestamp for display. Unparseable values are returned raw.
func (t Timestamp) Label() string {
	if tm, ok := t.Time(); ok {
		return tm.Format(LabelLayout)
	}
	return string(t)
}

// Candle is one OHLCV bar pushed by the backtest stream.
type Candle struct {
	Timestamp Timestamp `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// UnmarshalJSON accepts "date" or "time" when "timestamp" is absent.
func (c *Candle) UnmarshalJSON(b []byte) error {
	type alias Candle
	var aux struct {
		alias
		Date Timestamp `json:"date"`
		Time Timestamp `json:"time"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = Candle(aux.alias)
	if c.Timestamp == "" {
		c.Timestamp = aux.Date
	}
	if c.Timestamp == "" {
		c.Timestamp = aux.Time
	}
	return nil
}

// Bullish reports whether the candle closed at or above its open.
func (c Candle) Bullish() bool {
	return c.Close >= c.Open
}

// TradeSignal is an entry or exit emitted by the strategy during a run.
type TradeSignal struct {
	Timestamp Timestamp `json:"timestamp"`
	Type      string    `json:"type"` // entry | exit
	Side      string    `json:"side"` // buy | sell
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
}

// CompletedTrade is a matched entry/exit pair reported at stream completion.
type CompletedTrade struct {
	EntryTime  Timestamp `json:"entry_time"`
	ExitTime   Timestamp `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	PnL        float64   `json:"pnl"`
	Side       string    `json:"side"`
}

// Win reports whether the trade realised a profit.
func (t CompletedTrade) Win() bool {
	return t.PnL > 0
}

// RawTrade is the trade shape sent by the backend in the complete event.
// Older engines use entry_date/exit_date, quantity and direction.
type RawTrade struct {
	EntryTime  Timestamp `json:"entry_time"`
	EntryDate  Timestamp `json:"entry_date"`
	ExitTime   Timestamp `json:"exit_time"`
	ExitDate   Timestamp `json:"exit_date"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	Side       string    `json:"side"`
	Direction  string    `json:"direction"`
}

// Completed converts the raw backend trade into a CompletedTrade.
func (r RawTrade) Completed() CompletedTrade {
	t := CompletedTrade{
		EntryTime:  r.EntryTime,
		ExitTime:   r.ExitTime,
		EntryPrice: r.EntryPrice,
		ExitPrice:  r.ExitPrice,
		Size:       r.Size,
		PnL:        r.PnL,
		Side:       NormalizeSide(r.Side),
	}
	if t.EntryTime == "" {
		t.EntryTime = r.EntryDate
	}
	if t.ExitTime == "" {
		t.ExitTime = r.ExitDate
	}
	if t.Size == 0 {
		t.Size = r.Quantity
	}
	if t.Side == "" {
		t.Side = NormalizeSide(r.Direction)
	}
	return t
}

// NormalizeSide maps long/short vocabularies onto buy/sell.
func NormalizeSide(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return "buy"
	case "sell", "short":
		return "sell"
	default:
		return strings.ToLower(strings.TrimSpace(s))
	}
}

// Stats is the aggregate the backend pushes during a run.
type Stats struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	PnL           float64 `json:"pnl"`
}

// Symbol is one tradable instrument returned by the market-data listing.
type Symbol struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Exchange  string `json:"exchange,omitempty"`
	AssetType string `json:"asset_type,omitempty"`
}
