// Package chart derives candlestick plot geometry from accumulated stream
// state and renders it to the terminal.
package chart

import (
	"time"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/models"
)

// Domain is the visible price range.
type Domain struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (d Domain) Span() float64 {
	return d.Max - d.Min
}

var emptyDomain = Domain{Min: 0, Max: 100}

// YDomain pads the low/high range by 10% on each side. A flat range gets
// a fixed pad of 1.
func YDomain(candles []models.Candle) Domain {
	if len(candles) == 0 {
		return emptyDomain
	}
	lo, hi := candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
	}
	pad := (hi - lo) * 0.1
	if hi == lo {
		pad = 1
	}
	return Domain{Min: lo - pad, Max: hi + pad}
}

// Bar is the drawable shape of one candle.
type Bar struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	BodyTop    float64 `json:"body_top"`
	BodyBottom float64 `json:"body_bottom"`
	WickHigh   float64 `json:"wick_high"`
	WickLow    float64 `json:"wick_low"`
	Bullish    bool    `json:"bullish"`
}

func Bars(candles []models.Candle) []Bar {
	bars := make([]Bar, 0, len(candles))
	for i, c := range candles {
		top, bottom := c.Open, c.Close
		if c.Close > c.Open {
			top, bottom = c.Close, c.Open
		}
		bars = append(bars, Bar{
			Index:      i,
			Label:      c.Timestamp.Label(),
			BodyTop:    top,
			BodyBottom: bottom,
			WickHigh:   c.High,
			WickLow:    c.Low,
			Bullish:    c.Bullish(),
		})
	}
	return bars
}

type MarkerKind int

const (
	MarkerBuyEntry MarkerKind = iota
	MarkerSellEntry
	MarkerExit
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerBuyEntry:
		return "buy_entry"
	case MarkerSellEntry:
		return "sell_entry"
	default:
		return "exit"
	}
}

// Marker places a trade signal on the candle it belongs to.
type Marker struct {
	Index  int                `json:"index"`
	Price  float64            `json:"price"`
	Kind   MarkerKind         `json:"kind"`
	Signal models.TradeSignal `json:"signal"`
}

// markerOffset is the gap between a marker and its candle, relative to the high.
const markerOffset = 0.005

// Markers matches each signal to the candle with the identical raw
// timestamp. Signals without such a candle are dropped.
func Markers(candles []models.Candle, signals []models.TradeSignal) []Marker {
	if len(candles) == 0 || len(signals) == 0 {
		return nil
	}
	byTS := make(map[models.Timestamp]int, len(candles))
	for i, c := range candles {
		if _, seen := byTS[c.Timestamp]; !seen {
			byTS[c.Timestamp] = i
		}
	}

	var out []Marker
	for _, s := range signals {
		i, ok := byTS[s.Timestamp]
		if !ok {
			continue
		}
		c := candles[i]
		off := c.High * markerOffset
		m := Marker{Index: i, Signal: s}
		switch {
		case s.Type == consts.Signal_Exit:
			m.Kind, m.Price = MarkerExit, c.High+off
		case s.Type == consts.Signal_Entry && s.Side == consts.Side_Buy:
			m.Kind, m.Price = MarkerBuyEntry, c.Low-off
		case s.Type == consts.Signal_Entry && s.Side == consts.Side_Sell:
			m.Kind, m.Price = MarkerSellEntry, c.High+off
		default:
			continue
		}
		out = append(out, m)
	}
	return out
}

// Zone spans a completed trade from its entry candle to its exit candle.
type Zone struct {
	EntryIndex int                   `json:"entry_index"`
	ExitIndex  int                   `json:"exit_index"`
	EntryPrice float64               `json:"entry_price"`
	ExitPrice  float64               `json:"exit_price"`
	Win        bool                  `json:"win"`
	Trade      models.CompletedTrade `json:"trade"`
}

// zoneTolerance is how far a trade time may be from a candle and still land on it.
const zoneTolerance = 60 * time.Second

// Zones resolves both ends of each trade to a candle. Trades with an end
// that cannot be resolved are skipped.
func Zones(candles []models.Candle, trades []models.CompletedTrade) []Zone {
	var out []Zone
	for _, t := range trades {
		entry, ok := locate(candles, t.EntryTime)
		if !ok {
			continue
		}
		exit, ok := locate(candles, t.ExitTime)
		if !ok {
			continue
		}
		out = append(out, Zone{
			EntryIndex: entry,
			ExitIndex:  exit,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Win:        t.Win(),
			Trade:      t,
		})
	}
	return out
}

// locate tries the raw value, then the same instant in any format, then the
// first candle within zoneTolerance. An exact raw match always wins.
func locate(candles []models.Candle, ts models.Timestamp) (int, bool) {
	if ts == "" {
		return -1, false
	}
	for i, c := range candles {
		if c.Timestamp == ts {
			return i, true
		}
	}
	want, parsed := ts.Time()
	if parsed {
		for i, c := range candles {
			if ct, ok := c.Timestamp.Time(); ok && ct.Equal(want) {
				return i, true
			}
		}
	}
	if !parsed {
		return -1, false
	}
	for i, c := range candles {
		ct, ok := c.Timestamp.Time()
		if !ok {
			continue
		}
		d := ct.Sub(want)
		if d < 0 {
			d = -d
		}
		if d <= zoneTolerance {
			return i, true
		}
	}
	return -1, false
}

const (
	ZoomStep = 1.25
	MinZoom  = 0.5
	MaxZoom  = 5.0
)

// Zoom is a multiplicative width factor. It never changes which data is kept.
type Zoom float64

func DefaultZoom() Zoom { return 1 }

func (z Zoom) In() Zoom  { return clampZoom(float64(z) * ZoomStep) }
func (z Zoom) Out() Zoom { return clampZoom(float64(z) / ZoomStep) }

func clampZoom(v float64) Zoom {
	switch {
	case v < MinZoom:
		return MinZoom
	case v > MaxZoom:
		return MaxZoom
	default:
		return Zoom(v)
	}
}

// Apply zooms in for positive steps and out for negative ones.
func (z Zoom) Apply(steps int) Zoom {
	if z <= 0 {
		z = DefaultZoom()
	}
	for ; steps > 0; steps-- {
		z = z.In()
	}
	for ; steps < 0; steps++ {
		z = z.Out()
	}
	return z
}
