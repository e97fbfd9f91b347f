package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/internal/backtest"
	"github.com/dyike/QuantDesk/internal/debugsrv"
	"github.com/dyike/QuantDesk/internal/display"
	"github.com/dyike/QuantDesk/internal/export"
	"github.com/dyike/QuantDesk/internal/storage/sqlite"
	"github.com/dyike/QuantDesk/models"
)

type backtestFlags struct {
	period       string
	start        string
	end          string
	timeframe    string
	balance      string
	commission   string
	slippage     string
	strategyID   int64
	strategyFile string
	indicators   []string
}

func (f *backtestFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.period, "period", "", "Lookback period, e.g. 1y or 6mo (instead of --start/--end)")
	fs.StringVar(&f.start, "start", "", "Start date YYYY-MM-DD")
	fs.StringVar(&f.end, "end", "", "End date YYYY-MM-DD")
	fs.StringVar(&f.timeframe, "timeframe", "", "Candle timeframe, e.g. 1d or 1h")
	fs.StringVar(&f.balance, "balance", "", "Initial balance (config default_balance if empty)")
	fs.StringVar(&f.commission, "commission", "", "Commission rate, e.g. 0.001")
	fs.StringVar(&f.slippage, "slippage", "", "Slippage rate, e.g. 0.0005")
	fs.Int64Var(&f.strategyID, "strategy", 0, "Saved strategy ID")
	fs.StringVar(&f.strategyFile, "strategy-file", "", "File with strategy code to run")
	fs.StringSliceVar(&f.indicators, "indicators", nil, "Indicators to compute, comma separated")
}

func decimalOr(raw string, def float64, name string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.NewFromFloat(def), nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid --%s %q", name, raw)
	}
	return d, nil
}

// config builds the run configuration for symbol. Money flags fall back to
// the configured defaults.
func (f *backtestFlags) config(a *app, symbol string) (models.BacktestConfig, error) {
	cfg := models.BacktestConfig{
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		Period:     f.period,
		StartDate:  f.start,
		EndDate:    f.end,
		Timeframe:  f.timeframe,
		StrategyID: f.strategyID,
		Indicators: f.indicators,
	}
	var err error
	if cfg.InitialBalance, err = decimalOr(f.balance, a.cfg.DefaultBalance, "balance"); err != nil {
		return cfg, err
	}
	if cfg.Commission, err = decimalOr(f.commission, a.cfg.DefaultCommission, "commission"); err != nil {
		return cfg, err
	}
	if cfg.Slippage, err = decimalOr(f.slippage, a.cfg.DefaultSlippage, "slippage"); err != nil {
		return cfg, err
	}
	if f.strategyFile != "" {
		code, err := os.ReadFile(f.strategyFile)
		if err != nil {
			return cfg, fmt.Errorf("read strategy file: %w", err)
		}
		cfg.StrategyCode = string(code)
	}
	return cfg, nil
}

func newBacktestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run backtests",
	}
	cmd.AddCommand(newStreamCmd(a))
	cmd.AddCommand(newRunCmd(a, "run", "Run a full backtest and print the report", false))
	cmd.AddCommand(newRunCmd(a, "quick", "Run a quick backtest with server defaults", true))
	cmd.AddCommand(newBatchCmd(a))
	return cmd
}

func newStreamCmd(a *app) *cobra.Command {
	var (
		flags       backtestFlags
		view        viewOptions
		exportPath  string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "stream [SYMBOL]",
		Short: "Stream a backtest and draw it live",
		Long: `Stream a backtest over WebSocket. Candles, signals and trade zones are drawn
as they arrive; the final results are stored in the local history.
Example: quantdesk backtest stream AAPL --period 1y --export runs/aapl.parquet`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var (
				cfg models.BacktestConfig
				err error
			)
			switch {
			case interactive:
				cfg, err = promptForBacktestConfig(a.cfg)
			case len(args) == 1:
				cfg, err = flags.config(a, args[0])
			default:
				return fmt.Errorf("symbol is required (or use --interactive)")
			}
			if err != nil {
				return err
			}
			return a.streamBacktest(cmd.Context(), cfg, view, exportPath)
		}),
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&exportPath, "export", "", "Write candles and trades to a .csv, .json or .parquet file")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for the run configuration")
	cmd.Flags().IntVar(&view.zoom, "zoom", 0, "Zoom steps: positive widens candles, negative fits more")
	cmd.Flags().IntVar(&view.width, "width", 80, "Chart width in columns")
	cmd.Flags().IntVar(&view.height, "height", 20, "Chart height in rows")
	cmd.Flags().BoolVar(&view.noChart, "no-chart", false, "Only show the stats panel")
	cmd.Flags().BoolVar(&view.noClear, "no-clear", os.Getenv("QUANTDESK_NO_CLEAR") != "", "Do not clear the screen between frames")
	return cmd
}

// streamBacktest runs one stream session to completion, recording it in
// the history and optionally exporting it.
func (a *app) streamBacktest(ctx context.Context, cfg models.BacktestConfig, view viewOptions, exportPath string) error {
	acc := backtest.NewAccumulator(a.logger)

	rec := a.newRecorder(ctx, cfg)
	if rec != nil {
		defer rec.Close()
	}

	var results *models.BacktestResults
	acc.OnResults(func(res models.BacktestResults) {
		results = &res
		if rec != nil {
			st := acc.Snapshot()
			rec.Complete(res, len(st.Candles), len(st.Signals))
		}
	})

	if a.cfg.DebugAddr != "" {
		srv, err := debugsrv.Start(ctx, a.cfg.DebugAddr, acc, a.logger)
		if err != nil {
			display.Warning(a.errOut, fmt.Sprintf("debug server not started: %v", err))
		} else {
			defer srv.Shutdown(context.Background())
		}
	}

	live := newLiveView(a.out, acc, view)
	sess := backtest.NewSession(a.cfg.WSURL, acc,
		backtest.WithDebug(a.cfg.Debug),
		backtest.WithLogger(a.logger),
	)
	if err := sess.Start(ctx, cfg); err != nil {
		if rec != nil {
			rec.Fail(err.Error())
		}
		return err
	}
	live.wait(ctx, sess.Done())
	sess.Stop()

	st := acc.Snapshot()
	switch {
	case st.Complete:
	case ctx.Err() != nil:
		if rec != nil {
			rec.Fail("cancelled")
		}
		return ctx.Err()
	case st.LastError != "":
		if rec != nil {
			rec.Fail(st.LastError)
		}
		return fmt.Errorf("backtest failed: %s", st.LastError)
	default:
		if rec != nil {
			rec.Fail("stream closed before completion")
		}
		display.Warning(a.errOut, "stream closed before the run completed")
	}

	if results != nil {
		fmt.Fprintln(a.out, display.ResultsPanel(*results))
	}
	if rec != nil {
		display.Info(a.out, "Saved to history as "+rec.RunID())
	}
	if exportPath != "" {
		id := ""
		if rec != nil {
			id = rec.RunID()
		}
		files, err := export.Write(export.NewRun(id, cfg.Symbol, st.Candles, st.Trades, results), exportPath)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		display.Success(a.out, "Exported "+strings.Join(files, ", "))
	}
	return nil
}

// newRecorder opens the history for this run. History is best effort: a
// failure is reported and the stream goes ahead without it.
func (a *app) newRecorder(ctx context.Context, cfg models.BacktestConfig) *sqlite.Recorder {
	store, err := a.history()
	if err != nil {
		display.Warning(a.errOut, err.Error())
		return nil
	}
	rec, err := sqlite.NewRecorder(ctx, store, cfg, a.logger)
	if err != nil {
		display.Warning(a.errOut, fmt.Sprintf("history disabled for this run: %v", err))
		return nil
	}
	return rec
}

func newRunCmd(a *app, use, short string, quick bool) *cobra.Command {
	var flags backtestFlags
	cmd := &cobra.Command{
		Use:   use + " SYMBOL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config(a, args[0])
			if err != nil {
				return err
			}
			var report *models.BacktestReport
			if quick {
				report, err = a.api().QuickBacktest(cmd.Context(), cfg)
			} else {
				if missing := cfg.MissingFields(); len(missing) > 0 {
					return fmt.Errorf("missing %s", strings.Join(missing, ", "))
				}
				report, err = a.api().RunBacktest(cmd.Context(), cfg)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, display.Header(fmt.Sprintf("📊 %s backtest", cfg.Symbol)))
			fmt.Fprintln(a.out, display.ReportPanel(report))
			return nil
		}),
	}
	flags.register(cmd)
	return cmd
}
