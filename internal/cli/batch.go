package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/internal/backtest"
	"github.com/dyike/QuantDesk/internal/display"
	"github.com/dyike/QuantDesk/models"
)

type batchStatus int

const (
	batchPending batchStatus = iota
	batchRunning
	batchCompleted
	batchFailed
)

func (bs batchStatus) String() string {
	switch bs {
	case batchPending:
		return "⏳ Pending"
	case batchRunning:
		return "🔄 Running"
	case batchCompleted:
		return "✅ Completed"
	case batchFailed:
		return "❌ Failed"
	default:
		return "❓ Unknown"
	}
}

// batchResult is the outcome of one symbol in a batch.
type batchResult struct {
	Symbol   string
	Status   batchStatus
	Error    string
	Duration time.Duration
	Report   *models.BacktestReport
}

// batchProgress tracks a batch while its workers run.
type batchProgress struct {
	mu        sync.RWMutex
	total     int
	completed int
	failed    int
	running   int
	results   []batchResult
	start     time.Time
}

const maxConcurrent = 10

// clampConcurrency keeps n within 1..maxConcurrent. Non-positive values use
// the default of 3.
func clampConcurrency(n int) int {
	switch {
	case n <= 0:
		return 3
	case n > maxConcurrent:
		return maxConcurrent
	}
	return n
}

type backtestFunc func(ctx context.Context, symbol string) (*models.BacktestReport, error)

func newBatchProgress(symbols []string) *batchProgress {
	p := &batchProgress{
		total:   len(symbols),
		results: make([]batchResult, len(symbols)),
		start:   time.Now(),
	}
	for i, s := range symbols {
		p.results[i] = batchResult{Symbol: s, Status: batchPending}
	}
	return p
}

// runBatch runs fn for every symbol with at most concurrent calls in
// flight. Symbols still pending when ctx ends are marked failed.
func runBatch(ctx context.Context, p *batchProgress, concurrent int, fn backtestFunc) {
	concurrent = clampConcurrency(concurrent)
	sem := make(chan struct{}, concurrent)
	var wg sync.WaitGroup
	for i := range p.results {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				p.finish(idx, nil, ctx.Err(), 0)
				return
			}
			defer func() { <-sem }()
			p.process(ctx, idx, fn)
		}(i)
	}
	wg.Wait()
}

func (p *batchProgress) process(ctx context.Context, idx int, fn backtestFunc) {
	p.mu.Lock()
	p.results[idx].Status = batchRunning
	p.running++
	symbol := p.results[idx].Symbol
	p.mu.Unlock()

	started := time.Now()
	report, err := fn(ctx, symbol)

	p.mu.Lock()
	p.running--
	p.mu.Unlock()
	p.finish(idx, report, err, time.Since(started))
}

func (p *batchProgress) finish(idx int, report *models.BacktestReport, err error, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := &p.results[idx]
	r.Duration = d
	if err != nil {
		r.Status = batchFailed
		r.Error = display.ToastText(err)
		p.failed++
		return
	}
	r.Status = batchCompleted
	r.Report = report
	p.completed++
}

func (p *batchProgress) line() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := time.Since(p.start)
	var eta time.Duration
	if done := p.completed + p.failed; done > 0 {
		eta = time.Duration(float64(elapsed)/float64(done)*float64(p.total)) - elapsed
	}
	return fmt.Sprintf("📊 Progress: %d/%d completed, %d running, %d failed | Elapsed: %s | ETA: %s",
		p.completed, p.total, p.running, p.failed, elapsed.Round(time.Second), eta.Round(time.Second))
}

func (p *batchProgress) snapshot() []batchResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]batchResult(nil), p.results...)
}

// loadSymbols reads one symbol per line. Blank lines and # comments are skipped.
func loadSymbols(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", err)
	}
	var symbols []string
	for _, line := range strings.Split(string(data), "\n") {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		symbols = append(symbols, s)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no valid symbols found in file: %s", path)
	}
	return symbols, nil
}

// splitSymbols upper-cases and de-duplicates symbols, separating the ones
// that are not valid tickers.
func splitSymbols(symbols []string) (valid, invalid []string) {
	seen := make(map[string]bool)
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if seen[s] {
			continue
		}
		seen[s] = true
		if validateTicker(s) != nil {
			invalid = append(invalid, s)
			continue
		}
		valid = append(valid, s)
	}
	return valid, invalid
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		flags      backtestFlags
		file       string
		concurrent int
		quick      bool
	)
	cmd := &cobra.Command{
		Use:     "batch [SYMBOL...]",
		Short:   "Run REST backtests for several symbols concurrently",
		Example: `  quantdesk backtest batch AAPL MSFT NVDA --period 1y
  quantdesk backtest batch --file watchlist.txt --quick --concurrent 5`,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			symbols := args
			if file != "" {
				fromFile, err := loadSymbols(file)
				if err != nil {
					return err
				}
				symbols = append(symbols, fromFile...)
			}
			valid, invalid := splitSymbols(symbols)
			if len(invalid) > 0 {
				display.Warning(a.errOut, "skipping invalid symbols: "+strings.Join(invalid, ", "))
			}
			if len(valid) == 0 {
				return fmt.Errorf("no symbols provided for batch backtest")
			}
			if n := clampConcurrency(concurrent); n != concurrent {
				display.Warning(a.errOut, fmt.Sprintf("--concurrent %d out of range 1-%d, using %d", concurrent, maxConcurrent, n))
				concurrent = n
			}

			template, err := flags.config(a, valid[0])
			if err != nil {
				return err
			}
			if !quick {
				if missing := template.MissingFields(); len(missing) > 0 {
					return fmt.Errorf("missing %s", strings.Join(missing, ", "))
				}
			}

			client := a.api()
			fn := func(ctx context.Context, symbol string) (*models.BacktestReport, error) {
				cfg := template
				cfg.Symbol = symbol
				if quick {
					return client.QuickBacktest(ctx, cfg)
				}
				return client.RunBacktest(ctx, cfg)
			}

			display.Info(a.out, fmt.Sprintf("Starting batch backtest for %d symbols (%d concurrent)", len(valid), concurrent))
			p := newBatchProgress(valid)
			stop := make(chan struct{})
			ticked := make(chan struct{})
			go func() {
				defer close(ticked)
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						fmt.Fprint(a.out, "\r\033[K"+p.line())
					}
				}
			}()
			runBatch(cmd.Context(), p, concurrent, fn)
			close(stop)
			<-ticked

			printBatchSummary(a.out, p)
			return nil
		}),
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read symbols from a file, one per line")
	cmd.Flags().IntVarP(&concurrent, "concurrent", "c", 3, "Backtests in flight at once (1-10)")
	cmd.Flags().BoolVar(&quick, "quick", false, "Use the quick-run endpoint with server defaults")
	return cmd
}

func printBatchSummary(w io.Writer, p *batchProgress) {
	results := p.snapshot()
	fmt.Fprintln(w)
	fmt.Fprintln(w, display.Header("📋 Batch summary"))

	p.mu.RLock()
	completed, failed, total := p.completed, p.failed, p.total
	p.mu.RUnlock()
	totalDuration := time.Since(p.start)

	display.Info(w, fmt.Sprintf("Total Symbols: %d", total))
	display.Success(w, fmt.Sprintf("Completed: %d", completed))
	if failed > 0 {
		display.Warning(w, fmt.Sprintf("Failed: %d", failed))
	}
	display.Info(w, fmt.Sprintf("Total Time: %s", totalDuration.Round(time.Millisecond)))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-10s %-14s %7s %8s %12s %-10s %s\n", "SYMBOL", "STATUS", "TRADES", "WIN", "P&L", "DURATION", "ERROR")
	fmt.Fprintln(w, strings.Repeat("─", 80))
	for _, r := range results {
		trades, win, pnl := "", "", ""
		if r.Report != nil {
			m := r.Report.Metrics
			trades = fmt.Sprint(m.TotalTrades)
			win = display.Percent(backtest.WinRate(m.WinningTrades, m.TotalTrades))
			pnl = display.Money(m.PnL)
		}
		duration := "N/A"
		if r.Duration > 0 {
			duration = r.Duration.Round(time.Millisecond).String()
		}
		errMsg := r.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		fmt.Fprintf(w, "%-10s %-14s %7s %8s %12s %-10s %s\n", r.Symbol, r.Status, trades, win, pnl, duration, errMsg)
	}
}
