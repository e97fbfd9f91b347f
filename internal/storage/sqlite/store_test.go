package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testConfig(symbol string) models.BacktestConfig {
	return models.BacktestConfig{
		Symbol:         symbol,
		Period:         "6mo",
		Timeframe:      "1d",
		InitialBalance: decimal.NewFromInt(10000),
		Commission:     decimal.RequireFromString("0.001"),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open("  ")
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, models.RunRecord{Config: testConfig("AAPL")})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "AAPL", run.Symbol)
	assert.Equal(t, consts.Run_Streaming, run.Status)

	dd := 0.08
	results := models.BacktestResults{
		TotalTrades:   2,
		WinningTrades: 1,
		LosingTrades:  1,
		WinRate:       50,
		PnL:           12.5,
		MaxDrawdown:   &dd,
		Trades: []models.CompletedTrade{
			{EntryTime: "2024-01-02", ExitTime: "2024-01-05", EntryPrice: 100, ExitPrice: 110, Size: 1, PnL: 10, Side: "buy"},
			{EntryTime: "1704844800", ExitTime: "1705017600", EntryPrice: 110, ExitPrice: 107.5, Size: 1, PnL: -2.5, Side: "sell"},
		},
	}
	require.NoError(t, s.FinishRun(ctx, run.ID, results, 120, 4))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, consts.Run_Done, got.Status)
	assert.Equal(t, 120, got.Candles)
	assert.Equal(t, 4, got.Signals)
	assert.Equal(t, results, got.Results)
	assert.True(t, got.Config.InitialBalance.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, "6mo", got.Config.Period)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

	require.NoError(t, s.DeleteRun(ctx, run.ID))
	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFinishUnknownRun(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	err := s.FinishRun(context.Background(), "missing", models.BacktestResults{}, 0, 0)
	assert.Error(t, err)
}

func TestFailRun(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	run, err := s.CreateRun(ctx, models.RunRecord{Config: testConfig("TSLA")})
	require.NoError(t, err)

	require.NoError(t, s.FailRun(ctx, run.ID, "symbol not found"))
	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, consts.Run_Error, got.Status)
	assert.Equal(t, "symbol not found", got.Error)
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	for _, sym := range []string{"AAPL", "MSFT", "AAPL"} {
		_, err := s.CreateRun(ctx, models.RunRecord{Config: testConfig(sym)})
		require.NoError(t, err)
	}

	all, err := s.ListRuns(ctx, models.HistoryParams{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "AAPL", all[0].Symbol)
	assert.Equal(t, "MSFT", all[1].Symbol)

	aapl, err := s.ListRuns(ctx, models.HistoryParams{Symbol: "aapl"})
	require.NoError(t, err)
	assert.Len(t, aapl, 2)

	one, err := s.ListRuns(ctx, models.HistoryParams{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	rec, err := NewRecorder(ctx, s, testConfig("NVDA"), nil)
	require.NoError(t, err)
	rec.Complete(models.BacktestResults{TotalTrades: 1, WinningTrades: 1, WinRate: 100}, 10, 2)
	rec.Close()
	rec.Fail("ignored after close")

	got, err := s.GetRun(ctx, rec.RunID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, consts.Run_Done, got.Status)
	assert.Equal(t, 10, got.Candles)
	assert.Equal(t, 100.0, got.Results.WinRate)

	_, err = NewRecorder(ctx, nil, testConfig("NVDA"), nil)
	assert.Error(t, err)
}
