// Package demo replays a synthetic backtest so the terminal views can be
// exercised without a backend.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/internal/stream"
	"github.com/dyike/QuantDesk/models"
)

type Scenario string

const (
	Trend    Scenario = "trend"
	Range    Scenario = "range"
	Volatile Scenario = "volatile"
)

func ParseScenario(s string) (Scenario, error) {
	switch Scenario(strings.ToLower(strings.TrimSpace(s))) {
	case "", Trend:
		return Trend, nil
	case Range:
		return Range, nil
	case Volatile:
		return Volatile, nil
	default:
		return "", fmt.Errorf("unknown demo scenario %q (trend, range, volatile)", s)
	}
}

// Steps of the guided demo, indexed by Context.Step.
var Steps = []string{
	"Connecting to demo backend",
	"Streaming candles",
	"Strategy signals",
	"Run complete",
}

const (
	StepConnect = iota
	StepCandles
	StepSignals
	StepComplete
)

// Context is the demo state handed to every component that behaves
// differently in demo mode.
type Context struct {
	Scenario Scenario
	Step     int
}

func (c Context) Title() string {
	if c.Step < 0 || c.Step >= len(Steps) {
		return ""
	}
	return Steps[c.Step]
}

func (c Context) at(step int) Context {
	c.Step = step
	return c
}

type Options struct {
	Candles int           // default 120
	Delay   time.Duration // pause between candles
	Symbol  string
	OnStep  func(Context)
}

// Replay pushes metadata, candles, signals, stats and a final complete
// event into h, encoded as wire frames. It returns the final Context.
func Replay(ctx context.Context, dc Context, h stream.Handler, opts Options) (Context, error) {
	if opts.Candles <= 0 {
		opts.Candles = 120
	}
	if opts.Symbol == "" {
		opts.Symbol = "DEMO"
	}
	step := func(s int) {
		dc = dc.at(s)
		if opts.OnStep != nil {
			opts.OnStep(dc)
		}
	}

	candles := Generate(dc.Scenario, opts.Candles)
	run := simulate(candles)

	step(StepConnect)
	if err := emit(h, consts.Event_Metadata, models.StreamMetadata{
		TotalCandles: len(candles),
		Symbol:       opts.Symbol,
		Timeframe:    "1d",
	}, nil); err != nil {
		return dc, err
	}

	step(StepCandles)
	signalsSeen := false
	for i, c := range candles {
		if err := sleep(ctx, opts.Delay); err != nil {
			return dc, err
		}
		idx := i
		if err := emit(h, consts.Event_Candle, c, &idx); err != nil {
			return dc, err
		}
		for _, s := range run.signalsAt[i] {
			if !signalsSeen {
				step(StepSignals)
				signalsSeen = true
			}
			if err := emit(h, consts.Event_Signal, s, nil); err != nil {
				return dc, err
			}
		}
		if st, ok := run.statsAt[i]; ok {
			if err := emit(h, consts.Event_Stats, st, nil); err != nil {
				return dc, err
			}
		}
	}

	step(StepComplete)
	err := emit(h, consts.Event_Complete, models.CompletePayload{Metrics: &run.metrics, Trades: run.trades}, nil)
	return dc, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func emit(h stream.Handler, kind string, data any, index *int) error {
	frame := struct {
		Type  string `json:"type"`
		Data  any    `json:"data"`
		Index *int   `json:"index,omitempty"`
	}{kind, data, index}
	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return stream.Dispatch(h, raw)
}

var demoStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// Generate builds a deterministic price series for the scenario.
func Generate(sc Scenario, n int) []models.Candle {
	rng := rand.New(rand.NewPCG(42, seed(sc)))
	price := 100.0
	out := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		var drift, noise float64
		switch sc {
		case Range:
			drift = math.Sin(float64(i)/8) * 0.9
			noise = 0.6
		case Volatile:
			drift = 0.05
			noise = 3.5
		default:
			drift = 0.35
			noise = 1.0
		}
		open := price
		closeP := math.Max(1, open+drift+rng.NormFloat64()*noise)
		high := math.Max(open, closeP) + rng.Float64()*noise
		low := math.Max(0.5, math.Min(open, closeP)-rng.Float64()*noise)
		out = append(out, models.Candle{
			Timestamp: models.Timestamp(demoStart.AddDate(0, 0, i).Format("2006-01-02T15:04:05")),
			Open:      round2(open),
			High:      round2(high),
			Low:       round2(low),
			Close:     round2(closeP),
			Volume:    float64(100000 + rng.IntN(50000)),
		})
		price = closeP
	}
	return out
}

func seed(sc Scenario) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sc))
	return h.Sum64()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
