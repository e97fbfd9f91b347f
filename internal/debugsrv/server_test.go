package debugsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantDesk/internal/backtest"
	"github.com/dyike/QuantDesk/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func filledAccumulator() *backtest.Accumulator {
	acc := backtest.NewAccumulator(nil)
	acc.OnMetadata(models.StreamMetadata{TotalCandles: 4, Symbol: "AAPL"})
	acc.OnCandle(models.CandleEvent{Candle: models.Candle{Timestamp: "2024-01-02", Open: 10, High: 12, Low: 9, Close: 11}})
	acc.OnCandle(models.CandleEvent{Candle: models.Candle{Timestamp: "2024-01-03", Open: 11, High: 13, Low: 10, Close: 12}})
	acc.OnSignal(models.TradeSignal{Timestamp: "2024-01-02", Type: "entry", Side: "buy"})
	acc.OnStats(models.Stats{TotalTrades: 2, WinningTrades: 1})
	return acc
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	router := NewRouter(filledAccumulator())
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, "/debug/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code, method)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	}
}

func TestState(t *testing.T) {
	t.Parallel()

	router := NewRouter(filledAccumulator())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/state", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		State    backtest.State `json:"state"`
		Progress float64        `json:"progress"`
		WinRate  float64        `json:"win_rate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.State.Candles, 2)
	assert.Equal(t, "AAPL", body.State.Symbol)
	assert.Equal(t, 50.0, body.Progress)
	assert.Equal(t, 50.0, body.WinRate)
}

func TestChart(t *testing.T) {
	t.Parallel()

	router := NewRouter(filledAccumulator())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/chart", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		YDomain struct{ Min, Max float64 } `json:"y_domain"`
		Bars    []json.RawMessage         `json:"bars"`
		Markers []json.RawMessage         `json:"markers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.InDelta(t, 8.6, body.YDomain.Min, 1e-9)
	assert.InDelta(t, 13.4, body.YDomain.Max, 1e-9)
	assert.Len(t, body.Bars, 2)
	assert.Len(t, body.Markers, 1)
}

func TestStartAndShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := Start(ctx, "127.0.0.1:0", filledAccumulator(), nil)
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/debug/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
}
