package api

import (
	"context"
	"encoding/json"

	"github.com/dyike/QuantDesk/models"
)

// RunBacktest runs a full backtest synchronously and returns the report.
func (c *Client) RunBacktest(ctx context.Context, cfg models.BacktestConfig) (*models.BacktestReport, error) {
	var rep models.BacktestReport
	if err := c.post(ctx, "/backtests/run/", cfg, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// QuickBacktest runs a reduced backtest intended for previews.
func (c *Client) QuickBacktest(ctx context.Context, cfg models.BacktestConfig) (*models.BacktestReport, error) {
	var rep models.BacktestReport
	if err := c.post(ctx, "/backtests/quick_run/", cfg, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *Client) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/market-data/symbols/", &raw); err != nil {
		return nil, err
	}
	return decodeList[models.Symbol](raw)
}
