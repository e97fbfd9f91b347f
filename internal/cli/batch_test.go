package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantDesk/models"
)

func TestRunBatchLimitsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fn := func(ctx context.Context, symbol string) (*models.BacktestReport, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		if symbol == "BAD" {
			return nil, errors.New("no data")
		}
		return &models.BacktestReport{Symbol: symbol}, nil
	}

	p := newBatchProgress([]string{"AAPL", "MSFT", "BAD", "NVDA", "TSLA"})
	runBatch(context.Background(), p, 2, fn)

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 4, p.completed)
	assert.Equal(t, 1, p.failed)
	results := p.snapshot()
	assert.Equal(t, batchFailed, results[2].Status)
	assert.Equal(t, "Error: no data", results[2].Error)
	assert.Equal(t, batchCompleted, results[0].Status)
	assert.Contains(t, p.line(), "4/5 completed, 0 running, 1 failed")
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newBatchProgress([]string{"AAPL", "MSFT"})
	runBatch(ctx, p, 1, func(ctx context.Context, symbol string) (*models.BacktestReport, error) {
		return nil, ctx.Err()
	})
	for _, r := range p.snapshot() {
		assert.Equal(t, batchFailed, r.Status)
		assert.Equal(t, "Cancelled.", r.Error)
	}
}

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, 3, clampConcurrency(0))
	assert.Equal(t, 3, clampConcurrency(-2))
	assert.Equal(t, 1, clampConcurrency(1))
	assert.Equal(t, 10, clampConcurrency(10))
	assert.Equal(t, 10, clampConcurrency(25))
}

func TestSplitSymbols(t *testing.T) {
	valid, invalid := splitSymbols([]string{"aapl", "AAPL", "brk.b", "bad symbol", ""})
	assert.Equal(t, []string{"AAPL", "BRK.B"}, valid)
	assert.Equal(t, []string{"BAD SYMBOL", ""}, invalid)
}

func TestLoadSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.txt")
	require.NoError(t, os.WriteFile(path, []byte("# tech\nAAPL\n\n msft \n"), 0o644))
	got, err := loadSymbols(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "msft"}, got)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0o644))
	_, err = loadSymbols(empty)
	assert.Error(t, err)
}

func TestBatchCommandQuick(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/backtests/quick_run/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"X","metrics":{"total_trades":4,"winning_trades":3,"losing_trades":1,"total_pnl":120.5}}`))
	}))
	defer srv.Close()

	out, stderr, err := execute(t, t.TempDir(), "--api-url", srv.URL,
		"backtest", "batch", "aapl", "msft", "not valid", "--quick", "--concurrent", "25")
	require.NoError(t, err)
	assert.Contains(t, stderr, "skipping invalid symbols: NOT VALID")
	assert.Contains(t, stderr, "--concurrent 25 out of range 1-10, using 10")
	assert.Contains(t, out, "(10 concurrent)")
	assert.Contains(t, out, "Completed: 2")
	assert.Contains(t, out, "+120.50")
	assert.Contains(t, out, "75.0%")
}
