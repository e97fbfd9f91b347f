package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/internal/backtest"
	"github.com/dyike/QuantDesk/internal/debugsrv"
	"github.com/dyike/QuantDesk/internal/demo"
	"github.com/dyike/QuantDesk/internal/display"
	"github.com/dyike/QuantDesk/internal/export"
	"github.com/dyike/QuantDesk/models"
)

func newDemoCmd(a *app) *cobra.Command {
	var (
		scenario    string
		interactive bool
		candles     int
		delay       time.Duration
		view        viewOptions
		exportPath  string
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Replay a synthetic backtest without a backend",
		Long: `Replay a deterministic synthetic backtest through the same accumulator and
chart used for live streams. No network access is needed.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var (
				sc  demo.Scenario
				err error
			)
			if interactive {
				sc, err = promptForScenario()
			} else {
				sc, err = demo.ParseScenario(scenario)
			}
			if err != nil {
				return err
			}
			return a.runDemo(cmd.Context(), demo.Context{Scenario: sc}, demo.Options{
				Candles: candles,
				Delay:   delay,
			}, view, exportPath)
		}),
	}
	fs := cmd.Flags()
	fs.StringVar(&scenario, "scenario", string(demo.Trend), "Market scenario: trend, range or volatile")
	fs.BoolVarP(&interactive, "interactive", "i", false, "Choose the scenario interactively")
	fs.IntVar(&candles, "candles", 120, "Number of candles to replay")
	fs.DurationVar(&delay, "delay", 40*time.Millisecond, "Pause between candles")
	fs.StringVar(&exportPath, "export", "", "Write candles and trades to a .csv, .json or .parquet file")
	fs.IntVar(&view.zoom, "zoom", 0, "Zoom steps: positive widens candles, negative fits more")
	fs.IntVar(&view.width, "width", 80, "Chart width in columns")
	fs.IntVar(&view.height, "height", 20, "Chart height in rows")
	fs.BoolVar(&view.noChart, "no-chart", false, "Only show the stats panel")
	fs.BoolVar(&view.noClear, "no-clear", os.Getenv("QUANTDESK_NO_CLEAR") != "", "Do not clear the screen between frames")
	return cmd
}

func (a *app) runDemo(ctx context.Context, dc demo.Context, opts demo.Options, view viewOptions, exportPath string) error {
	acc := backtest.NewAccumulator(a.logger)
	var results *models.BacktestResults
	acc.OnResults(func(res models.BacktestResults) { results = &res })

	if a.cfg.DebugAddr != "" {
		srv, err := debugsrv.Start(ctx, a.cfg.DebugAddr, acc, a.logger)
		if err != nil {
			display.Warning(a.errOut, fmt.Sprintf("debug server not started: %v", err))
		} else {
			defer srv.Shutdown(context.Background())
		}
	}

	live := newLiveView(a.out, acc, view)
	opts.Symbol = "DEMO-" + string(dc.Scenario)
	opts.OnStep = func(c demo.Context) {
		live.setStep(fmt.Sprintf("Demo step %d/%d: %s", c.Step+1, len(demo.Steps), c.Title()))
	}

	done := make(chan struct{})
	var replayErr error
	go func() {
		defer close(done)
		_, replayErr = demo.Replay(ctx, dc, acc, opts)
	}()
	live.wait(ctx, done)
	<-done

	if replayErr != nil {
		return replayErr
	}
	if results != nil {
		fmt.Fprintln(a.out, display.ResultsPanel(*results))
	}
	if exportPath != "" {
		st := acc.Snapshot()
		files, err := export.Write(export.NewRun("demo", st.Symbol, st.Candles, st.Trades, results), exportPath)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		display.Success(a.out, fmt.Sprintf("Exported %v", files))
	}
	return nil
}
