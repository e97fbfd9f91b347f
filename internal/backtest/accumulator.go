package backtest

import (
	"log/slog"
	"sync"

	"github.com/dyike/QuantDesk/models"
)

// State is a point-in-time copy of everything a run has accumulated.
type State struct {
	Symbol       string                  `json:"symbol"`
	TotalCandles int                     `json:"total_candles"`
	Processed    int                     `json:"processed"`
	Candles      []models.Candle         `json:"candles"`
	Signals      []models.TradeSignal    `json:"signals"`
	Trades       []models.CompletedTrade `json:"trades"`
	Stats        models.Stats            `json:"stats"`
	Metrics      *models.Metrics         `json:"metrics,omitempty"`
	Complete     bool                    `json:"complete"`
	LastError    string                  `json:"last_error,omitempty"`
}

// Progress is the share of expected candles received, in percent.
func (s State) Progress() float64 {
	return ProgressPercent(s.Processed, s.TotalCandles)
}

// WinRate of the current stats record, in percent.
func (s State) WinRate() float64 {
	return WinRate(s.Stats.WinningTrades, s.Stats.TotalTrades)
}

func ProgressPercent(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(processed) / float64(total) * 100
}

func WinRate(winners, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(winners) / float64(total) * 100
}

// Accumulator folds stream events into State. Writes arrive from a single
// stream goroutine; Snapshot may be called from any goroutine.
type Accumulator struct {
	mu         sync.RWMutex
	state      State
	onComplete func(models.BacktestResults)
	fired      bool
	onChange   func()
	logger     *slog.Logger
}

func NewAccumulator(logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{logger: logger}
}

// OnResults registers the callback invoked once per session on completion.
func (a *Accumulator) OnResults(fn func(models.BacktestResults)) {
	a.mu.Lock()
	a.onComplete = fn
	a.mu.Unlock()
}

// OnChange registers a callback invoked after every applied event, for redraws.
func (a *Accumulator) OnChange(fn func()) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// Reset clears candles, signals, trades and stats in one step and re-arms
// the completion callback.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.state = State{}
	a.fired = false
	a.mu.Unlock()
}

func (a *Accumulator) Snapshot() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.state
	s.Candles = append([]models.Candle(nil), a.state.Candles...)
	s.Signals = append([]models.TradeSignal(nil), a.state.Signals...)
	s.Trades = append([]models.CompletedTrade(nil), a.state.Trades...)
	if a.state.Metrics != nil {
		m := *a.state.Metrics
		s.Metrics = &m
	}
	return s
}

func (a *Accumulator) changed() {
	a.mu.RLock()
	fn := a.onChange
	a.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (a *Accumulator) OnMetadata(md models.StreamMetadata) {
	a.mu.Lock()
	a.state.TotalCandles = md.TotalCandles
	if md.Symbol != "" {
		a.state.Symbol = md.Symbol
	}
	a.mu.Unlock()
	a.changed()
}

func (a *Accumulator) OnCandle(ev models.CandleEvent) {
	a.mu.Lock()
	a.state.Candles = append(a.state.Candles, ev.Candle)
	if ev.Index != nil {
		a.state.Processed = *ev.Index + 1
	} else {
		a.state.Processed = len(a.state.Candles)
	}
	a.mu.Unlock()
	a.changed()
}

func (a *Accumulator) OnSignal(sig models.TradeSignal) {
	a.mu.Lock()
	a.state.Signals = append(a.state.Signals, sig)
	a.mu.Unlock()
	a.changed()
}

func (a *Accumulator) OnStats(st models.Stats) {
	a.mu.Lock()
	a.state.Stats = st
	a.mu.Unlock()
	a.changed()
}

func (a *Accumulator) OnComplete(p models.CompletePayload) {
	a.mu.Lock()
	if p.Metrics != nil {
		m := *p.Metrics
		a.state.Metrics = &m
		a.state.Stats = models.Stats{
			TotalTrades:   m.TotalTrades,
			WinningTrades: m.WinningTrades,
			LosingTrades:  m.LosingTrades,
			PnL:           m.PnL,
		}
	}
	trades := make([]models.CompletedTrade, 0, len(p.Trades))
	for _, rt := range p.Trades {
		trades = append(trades, rt.Completed())
	}
	a.state.Trades = trades
	a.state.Complete = true

	results := buildResults(a.state.Stats, a.state.Metrics, trades)
	cb := a.onComplete
	fire := !a.fired
	a.fired = true
	a.mu.Unlock()

	if fire && cb != nil {
		cb(results)
	}
	a.changed()
}

func (a *Accumulator) OnError(e models.StreamError) {
	a.logger.Error("backtest stream error", "message", e.Message, "code", e.Code)
	a.mu.Lock()
	a.state.LastError = e.Message
	a.mu.Unlock()
	a.changed()
}

func buildResults(st models.Stats, m *models.Metrics, trades []models.CompletedTrade) models.BacktestResults {
	res := models.BacktestResults{
		TotalTrades:   st.TotalTrades,
		WinningTrades: st.WinningTrades,
		LosingTrades:  st.LosingTrades,
		WinRate:       WinRate(st.WinningTrades, st.TotalTrades),
		PnL:           st.PnL,
		Trades:        append([]models.CompletedTrade(nil), trades...),
	}
	if m != nil {
		res.MaxDrawdown = m.MaxDrawdown
		res.SharpeRatio = m.SharpeRatio
		res.FinalEquity = m.FinalEquity
	}
	return res
}
