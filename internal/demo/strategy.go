package demo

import (
	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/models"
)

const (
	fastWindow = 5
	slowWindow = 20
	startCash  = 10000.0
)

type simulation struct {
	signalsAt map[int][]models.TradeSignal
	statsAt   map[int]models.Stats
	trades    []models.RawTrade
	metrics   models.Metrics
}

// simulate runs a long-only moving-average crossover over candles and
// precomputes the events a backend would have sent.
func simulate(candles []models.Candle) simulation {
	sim := simulation{
		signalsAt: make(map[int][]models.TradeSignal),
		statsAt:   make(map[int]models.Stats),
	}

	var (
		inPos     bool
		entryIdx  int
		size      float64
		cash      = startCash
		peak      = startCash
		maxDD     float64
		stats     models.Stats
		prevAbove bool
	)
	for i, c := range candles {
		if i >= slowWindow {
			above := sma(candles, i, fastWindow) > sma(candles, i, slowWindow)
			switch {
			case above && !prevAbove && !inPos:
				inPos, entryIdx = true, i
				size = float64(int(cash / c.Close))
				sim.signalsAt[i] = append(sim.signalsAt[i], models.TradeSignal{
					Timestamp: c.Timestamp, Type: consts.Signal_Entry, Side: consts.Side_Buy, Price: c.Close, Size: size,
				})
			case !above && prevAbove && inPos:
				inPos = false
				entry := candles[entryIdx]
				pnl := (c.Close - entry.Close) * size
				cash += pnl
				sim.signalsAt[i] = append(sim.signalsAt[i], models.TradeSignal{
					Timestamp: c.Timestamp, Type: consts.Signal_Exit, Side: consts.Side_Sell, Price: c.Close, Size: size,
				})
				sim.trades = append(sim.trades, models.RawTrade{
					EntryTime: entry.Timestamp, ExitTime: c.Timestamp,
					EntryPrice: entry.Close, ExitPrice: c.Close,
					Size: size, PnL: pnl, Side: consts.Side_Buy,
				})
				stats.TotalTrades++
				if pnl > 0 {
					stats.WinningTrades++
				} else {
					stats.LosingTrades++
				}
				stats.PnL += pnl
				sim.statsAt[i] = stats
			}
			prevAbove = above
		}

		equity := cash
		if inPos {
			equity += (c.Close - candles[entryIdx].Close) * size
		}
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	finalEquity := cash
	sim.metrics = models.Metrics{
		TotalTrades:   stats.TotalTrades,
		WinningTrades: stats.WinningTrades,
		LosingTrades:  stats.LosingTrades,
		PnL:           stats.PnL,
		MaxDrawdown:   &maxDD,
		FinalEquity:   &finalEquity,
	}
	return sim
}

func sma(candles []models.Candle, end, window int) float64 {
	var sum float64
	for i := end - window + 1; i <= end; i++ {
		sum += candles[i].Close
	}
	return sum / float64(window)
}
