package display

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/internal/api"
	"github.com/dyike/QuantDesk/internal/backtest"
	"github.com/dyike/QuantDesk/internal/stream"
	"github.com/dyike/QuantDesk/models"
)

func TestToastText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unreachable",
			err:  fmt.Errorf("%w: cannot connect to http://x", api.ErrServerUnreachable),
			want: "server unreachable: cannot connect to http://x",
		},
		{name: "unauthorized", err: api.ErrUnauthorized, want: "Not logged in. Run `quantdesk auth login` first."},
		{name: "api error", err: &api.Error{Status: 400, Message: "name: required"}, want: "Error 400: name: required"},
		{name: "expired", err: &api.Error{Status: 401, Message: "token"}, want: "Session expired. Run `quantdesk auth login` again."},
		{name: "config", err: fmt.Errorf("%w: missing symbol", stream.ErrInvalidConfig), want: "invalid backtest config: missing symbol"},
		{name: "cancelled", err: context.Canceled, want: "Cancelled."},
		{name: "plain multi-line", err: errors.New("boom\nstack"), want: "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToastText(tt.err))
		})
	}
	assert.Empty(t, Toast(nil))
}

func TestErrorWritesOneLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	Error(&buf, errors.New("x\ny"))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Contains(t, buf.String(), "Error: x")
}

func TestProgressBar(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "░░░░░░░░░░", ProgressBar(0, 10))
	assert.Equal(t, "█████░░░░░", ProgressBar(50, 10))
	assert.Equal(t, "██████████", ProgressBar(140, 10))
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(-3, 10))
}

func TestMoney(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "+12.35", Money(12.345))
	assert.Equal(t, "-3.10", Money(-3.1))
	assert.Equal(t, "0.00", Money(0))
	assert.Equal(t, "66.7%", Percent(200.0/3))
}

func TestStreamPanel(t *testing.T) {
	t.Parallel()

	st := backtest.State{
		Symbol:       "AAPL",
		TotalCandles: 4,
		Processed:    2,
		Signals:      []models.TradeSignal{{Type: consts.Signal_Entry}},
		Stats:        models.Stats{TotalTrades: 4, WinningTrades: 1, LosingTrades: 3, PnL: -20},
	}
	out := StreamPanel(st, "Streaming candles")
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "Streaming candles")
	assert.Contains(t, out, "50.0% (2/4)")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "-20.00")
	assert.Contains(t, out, "streaming")

	st.LastError = "engine crashed"
	assert.Contains(t, StreamPanel(st, ""), "error: engine crashed")
}

func TestResultsPanelLimitsTrades(t *testing.T) {
	t.Parallel()

	var trades []models.CompletedTrade
	for i := 0; i < 12; i++ {
		trades = append(trades, models.CompletedTrade{
			EntryTime: models.Timestamp(fmt.Sprintf("2024-01-%02d", i+1)),
			ExitTime:  models.Timestamp(fmt.Sprintf("2024-01-%02d", i+2)),
			PnL:       float64(i - 5),
			Side:      consts.Side_Buy,
		})
	}
	dd := 0.125
	out := ResultsPanel(models.BacktestResults{TotalTrades: 12, WinRate: 50, MaxDrawdown: &dd, Trades: trades})
	assert.Contains(t, out, "12.5%")
	assert.Contains(t, out, "2 earlier trades")
	assert.Contains(t, out, "n/a")
}

func TestCodegenPanel(t *testing.T) {
	t.Parallel()

	out := CodegenPanel(models.CodeGenerationProgress{
		Status:             consts.Gen_FixingErrors,
		CurrentStep:        "Fixing errors (attempt 2/3)",
		ProgressPercentage: 73,
		CurrentAttempt:     2,
		MaxAttempts:        3,
		Attempts: []models.FixAttempt{
			{Attempt: 1, Errors: []string{"NameError: sma"}},
		},
	})
	assert.Contains(t, out, "73%")
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "attempt 1")
	assert.Contains(t, out, "NameError: sma")
}

func TestTables(t *testing.T) {
	t.Parallel()

	assert.Contains(t, StrategyTable(nil), "No strategies")
	assert.Contains(t, StrategyTable([]models.Strategy{{ID: 7, Name: "Golden cross", IsValid: true}}), "Golden cross")
	assert.Contains(t, SymbolTable([]models.Symbol{{Symbol: "MSFT", Name: "Microsoft"}}), "MSFT")
	assert.Contains(t, HistoryTable(nil), "No runs")
	assert.Contains(t, HistoryTable([]models.RunRecord{{ID: "r1", Symbol: "AAPL", Status: consts.Run_Done}}), "AAPL")
}

func TestWrapAndTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "  aa bb\n  cc", wrap("aa bb cc", "  ", 8))
	assert.Empty(t, wrap("   ", "  ", 8))
	assert.Equal(t, "abc...", truncate("abcdefgh", 6))
	assert.Equal(t, "abc", truncate("abc", 6))
}
