package backtest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantDesk/models"
)

func candle(i int) models.Candle {
	base := float64(100 + i)
	return models.Candle{
		Timestamp: models.Timestamp(fmt.Sprintf("2024-01-%02dT00:00:00", i+1)),
		Open:      base,
		High:      base + 2,
		Low:       base - 2,
		Close:     base + 1,
		Volume:    1000,
	}
}

func intPtr(i int) *int { return &i }

func TestWinRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		winners, total int
		want           float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 4, 0},
		{1, 4, 25},
		{3, 3, 100},
		{2, 3, 200.0 / 3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, WinRate(tt.winners, tt.total), 1e-9, "WinRate(%d, %d)", tt.winners, tt.total)
	}
}

func TestProgressPercent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, ProgressPercent(10, 0))
	assert.Equal(t, 50.0, ProgressPercent(5, 10))
	assert.Equal(t, 100.0, ProgressPercent(10, 10))
}

func TestCandlesAppendInArrivalOrder(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	acc.OnMetadata(models.StreamMetadata{TotalCandles: 20, Symbol: "MSFT"})
	for i := 0; i < 10; i++ {
		acc.OnCandle(models.CandleEvent{Candle: candle(i)})
	}

	s := acc.Snapshot()
	require.Len(t, s.Candles, 10)
	for i, c := range s.Candles {
		assert.Equal(t, candle(i).Timestamp, c.Timestamp)
	}
	assert.Equal(t, 10, s.Processed)
	assert.Equal(t, 50.0, s.Progress())
	assert.Equal(t, "MSFT", s.Symbol)
}

func TestIndexedCandleDrivesProgress(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	acc.OnMetadata(models.StreamMetadata{TotalCandles: 100})
	acc.OnCandle(models.CandleEvent{Candle: candle(0), Index: intPtr(49)})

	s := acc.Snapshot()
	assert.Len(t, s.Candles, 1)
	assert.Equal(t, 50, s.Processed)
	assert.Equal(t, 50.0, s.Progress())
}

func TestStatsOverwritten(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	acc.OnStats(models.Stats{TotalTrades: 2, WinningTrades: 1, PnL: 10})
	acc.OnStats(models.Stats{TotalTrades: 4, WinningTrades: 3, LosingTrades: 1, PnL: 30})

	s := acc.Snapshot()
	assert.Equal(t, models.Stats{TotalTrades: 4, WinningTrades: 3, LosingTrades: 1, PnL: 30}, s.Stats)
	assert.Equal(t, 75.0, s.WinRate())
}

func TestCompletePrefersMetricsAndFiresOnce(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	var calls []models.BacktestResults
	acc.OnResults(func(r models.BacktestResults) { calls = append(calls, r) })

	acc.OnStats(models.Stats{TotalTrades: 1, WinningTrades: 1, PnL: 5})
	dd := 0.12
	payload := models.CompletePayload{
		Metrics: &models.Metrics{TotalTrades: 4, WinningTrades: 1, LosingTrades: 3, PnL: -20, MaxDrawdown: &dd},
		Trades: []models.RawTrade{
			{EntryDate: "2024-01-01", ExitDate: "2024-01-03", EntryPrice: 10, ExitPrice: 12, Quantity: 2, PnL: 4, Direction: "long"},
		},
	}
	acc.OnComplete(payload)
	acc.OnComplete(payload)

	require.Len(t, calls, 1)
	r := calls[0]
	assert.Equal(t, 4, r.TotalTrades)
	assert.Equal(t, 25.0, r.WinRate)
	assert.Equal(t, -20.0, r.PnL)
	require.NotNil(t, r.MaxDrawdown)
	assert.Equal(t, 0.12, *r.MaxDrawdown)
	require.Len(t, r.Trades, 1)
	assert.Equal(t, models.Timestamp("2024-01-01"), r.Trades[0].EntryTime)
	assert.Equal(t, "buy", r.Trades[0].Side)
	assert.Equal(t, 2.0, r.Trades[0].Size)

	s := acc.Snapshot()
	assert.True(t, s.Complete)
	assert.Equal(t, 4, s.Stats.TotalTrades)

	acc.Reset()
	acc.OnComplete(models.CompletePayload{})
	assert.Len(t, calls, 2)
}

func TestCompleteWithoutMetricsUsesStreamedStats(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	var got models.BacktestResults
	acc.OnResults(func(r models.BacktestResults) { got = r })
	acc.OnStats(models.Stats{TotalTrades: 2, WinningTrades: 2, PnL: 8})
	acc.OnComplete(models.CompletePayload{})

	assert.Equal(t, 2, got.TotalTrades)
	assert.Equal(t, 100.0, got.WinRate)
	assert.Empty(t, got.Trades)
}

func TestErrorEventRecordsMessageOnly(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	acc.OnCandle(models.CandleEvent{Candle: candle(0)})
	acc.OnError(models.StreamError{Message: "engine crashed"})

	s := acc.Snapshot()
	assert.Equal(t, "engine crashed", s.LastError)
	assert.Len(t, s.Candles, 1)
	assert.False(t, s.Complete)
}

func TestResetClearsEverything(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	acc.OnCandle(models.CandleEvent{Candle: candle(0)})
	acc.OnSignal(models.TradeSignal{Timestamp: candle(0).Timestamp, Type: "entry", Side: "buy"})
	acc.OnStats(models.Stats{TotalTrades: 1})
	acc.OnComplete(models.CompletePayload{Trades: []models.RawTrade{{PnL: 1}}})

	acc.Reset()
	s := acc.Snapshot()
	assert.Empty(t, s.Candles)
	assert.Empty(t, s.Signals)
	assert.Empty(t, s.Trades)
	assert.Equal(t, models.Stats{}, s.Stats)
	assert.False(t, s.Complete)
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	acc.OnCandle(models.CandleEvent{Candle: candle(0)})
	s := acc.Snapshot()
	s.Candles[0].Close = -1

	assert.Equal(t, candle(0).Close, acc.Snapshot().Candles[0].Close)
}

func TestConcurrentSnapshotDuringWrites(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			acc.OnCandle(models.CandleEvent{Candle: candle(i % 28)})
		}
	}()
	for i := 0; i < 50; i++ {
		s := acc.Snapshot()
		assert.Equal(t, len(s.Candles), s.Processed)
	}
	wg.Wait()
	assert.Len(t, acc.Snapshot().Candles, 200)
}
