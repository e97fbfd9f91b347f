package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantDesk/internal/backtest"
	"github.com/dyike/QuantDesk/internal/chart"
	"github.com/dyike/QuantDesk/internal/logx"
	"github.com/dyike/QuantDesk/models"
)

func TestParseScenario(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Scenario{"": Trend, "trend": Trend, "RANGE": Range, " volatile ": Volatile} {
		got, err := ParseScenario(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseScenario("sideways")
	assert.Error(t, err)
}

func TestGenerateIsDeterministic(t *testing.T) {
	t.Parallel()

	for _, sc := range []Scenario{Trend, Range, Volatile} {
		a := Generate(sc, 60)
		b := Generate(sc, 60)
		require.Len(t, a, 60)
		assert.Equal(t, a, b, sc)
		for _, c := range a {
			assert.LessOrEqual(t, c.Low, c.High)
			assert.GreaterOrEqual(t, c.High, c.Open)
			assert.GreaterOrEqual(t, c.High, c.Close)
		}
	}
	assert.NotEqual(t, Generate(Trend, 30), Generate(Volatile, 30))
}

func TestReplayIntoAccumulator(t *testing.T) {
	t.Parallel()

	acc := backtest.NewAccumulator(logx.Discard())
	var results int
	acc.OnResults(func(models.BacktestResults) { results++ })

	var steps []int
	final, err := Replay(context.Background(), Context{Scenario: Trend}, acc, Options{
		Candles: 90,
		OnStep:  func(c Context) { steps = append(steps, c.Step) },
	})
	require.NoError(t, err)

	assert.Equal(t, StepComplete, final.Step)
	assert.Equal(t, "Run complete", final.Title())
	assert.Equal(t, StepConnect, steps[0])
	assert.Equal(t, StepComplete, steps[len(steps)-1])
	assert.IsIncreasing(t, steps)

	st := acc.Snapshot()
	assert.Equal(t, "DEMO", st.Symbol)
	assert.Equal(t, 90, st.TotalCandles)
	assert.Len(t, st.Candles, 90)
	assert.Equal(t, 100.0, st.Progress())
	assert.True(t, st.Complete)
	require.NotNil(t, st.Metrics)
	assert.Len(t, st.Trades, st.Stats.TotalTrades)
	assert.Equal(t, st.Stats.TotalTrades, st.Stats.WinningTrades+st.Stats.LosingTrades)
	assert.Equal(t, 1, results)

	// every trade and signal lands on a generated candle
	assert.Len(t, chart.Markers(st.Candles, st.Signals), len(st.Signals))
	assert.Len(t, chart.Zones(st.Candles, st.Trades), len(st.Trades))
}

func TestReplayStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	acc := backtest.NewAccumulator(logx.Discard())
	acc.OnChange(func() {
		if len(acc.Snapshot().Candles) == 5 {
			cancel()
		}
	})

	dc, err := Replay(ctx, Context{Scenario: Range}, acc, Options{Candles: 50, Delay: time.Millisecond})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StepCandles, dc.Step)
	assert.False(t, acc.Snapshot().Complete)
	assert.Less(t, len(acc.Snapshot().Candles), 50)
}

func TestContextTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Connecting to demo backend", Context{}.Title())
	assert.Empty(t, Context{Step: 42}.Title())
}
