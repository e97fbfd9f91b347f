package display

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/internal/backtest"
	"github.com/dyike/QuantDesk/models"
)

const barWidth = 30

// ProgressBar draws pct (0-100) as a fixed-width bar.
func ProgressBar(pct float64, width int) string {
	if width <= 0 {
		width = barWidth
	}
	pct = min(max(pct, 0), 100)
	filled := int(pct / 100 * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Money formats a P&L value with an explicit sign and two decimals.
func Money(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

func optPercent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return Percent(*v * 100)
}

func optFloat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return decimal.NewFromFloat(*v).StringFixed(2)
}

func row(label, value string) string {
	return fmt.Sprintf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-14s", label)), value)
}

// StreamPanel summarises a live run: progress, counts and running stats.
// step is shown as the panel subtitle when non-empty.
func StreamPanel(st backtest.State, step string) string {
	var b strings.Builder
	title := "📡 " + st.Symbol
	if st.Symbol == "" {
		title = "📡 Backtest"
	}
	b.WriteString(title + "\n")
	if step != "" {
		b.WriteString(labelStyle.Render(step) + "\n")
	}
	b.WriteString("\n")

	status := inProgressStyle.Render("streaming")
	switch {
	case st.LastError != "":
		status = errorStyle.Render("error: " + truncate(st.LastError, 48))
	case st.Complete:
		status = completedStyle.Render("complete")
	}
	b.WriteString(row("Status", status))
	b.WriteString(row("Progress", fmt.Sprintf("[%s] %s (%d/%d)",
		ProgressBar(st.Progress(), barWidth), Percent(st.Progress()), st.Processed, st.TotalCandles)))
	b.WriteString(row("Signals", fmt.Sprint(len(st.Signals))))
	b.WriteString(row("Trades", fmt.Sprintf("%d (%d won, %d lost)",
		st.Stats.TotalTrades, st.Stats.WinningTrades, st.Stats.LosingTrades)))
	b.WriteString(row("Win rate", Percent(st.WinRate())))
	b.WriteString(row("P&L", Money(st.Stats.PnL)))

	style := panelStyle
	if st.LastError != "" {
		style = warnPanelStyle
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

// ResultsPanel is the final summary built from the complete event.
func ResultsPanel(res models.BacktestResults) string {
	var b strings.Builder
	b.WriteString("🎉 Results\n\n")
	b.WriteString(row("Trades", fmt.Sprint(res.TotalTrades)))
	b.WriteString(row("Won / lost", fmt.Sprintf("%d / %d", res.WinningTrades, res.LosingTrades)))
	b.WriteString(row("Win rate", Percent(res.WinRate)))
	b.WriteString(row("P&L", Money(res.PnL)))
	b.WriteString(row("Max drawdown", optPercent(res.MaxDrawdown)))
	b.WriteString(row("Sharpe", optFloat(res.SharpeRatio)))
	b.WriteString(row("Final equity", optFloat(res.FinalEquity)))
	if n := len(res.Trades); n > 0 {
		b.WriteString("\n")
		b.WriteString(TradeTable(res.Trades, 10))
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// ReportPanel shows a REST backtest report.
func ReportPanel(r *models.BacktestReport) string {
	if r == nil {
		return ""
	}
	m := r.Metrics
	trades := make([]models.CompletedTrade, 0, len(r.Trades))
	for _, t := range r.Trades {
		trades = append(trades, t.Completed())
	}
	return ResultsPanel(models.BacktestResults{
		TotalTrades:   m.TotalTrades,
		WinningTrades: m.WinningTrades,
		LosingTrades:  m.LosingTrades,
		WinRate:       backtest.WinRate(m.WinningTrades, m.TotalTrades),
		PnL:           m.PnL,
		MaxDrawdown:   m.MaxDrawdown,
		SharpeRatio:   m.SharpeRatio,
		FinalEquity:   m.FinalEquity,
		Trades:        trades,
	})
}

// TradeTable lists the last limit trades.
func TradeTable(trades []models.CompletedTrade, limit int) string {
	start := 0
	if limit > 0 && len(trades) > limit {
		start = len(trades) - limit
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-17s %-17s %-5s %10s %10s %10s", "ENTRY", "EXIT", "SIDE", "IN", "OUT", "P&L")) + "\n")
	for _, t := range trades[start:] {
		line := fmt.Sprintf("%-17s %-17s %-5s %10.2f %10.2f %10s",
			t.EntryTime.Label(), t.ExitTime.Label(), t.Side, t.EntryPrice, t.ExitPrice, Money(t.PnL))
		if t.Win() {
			line = completedStyle.Render(line)
		} else {
			line = errorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if start > 0 {
		b.WriteString(labelStyle.Render(fmt.Sprintf("… %d earlier trades", start)) + "\n")
	}
	return b.String()
}

// CodegenPanel renders the code-generation state machine.
func CodegenPanel(p models.CodeGenerationProgress) string {
	var b strings.Builder
	b.WriteString("🤖 Code generation\n\n")

	status := inProgressStyle.Render(p.Status)
	switch p.Status {
	case consts.Gen_Completed:
		status = completedStyle.Render(p.Status)
	case consts.Gen_Failed:
		status = errorStyle.Render(p.Status)
	}
	b.WriteString(row("Status", status))
	b.WriteString(row("Step", p.CurrentStep))
	b.WriteString(row("Progress", fmt.Sprintf("[%s] %d%%",
		ProgressBar(float64(p.ProgressPercentage), barWidth), p.ProgressPercentage)))
	if p.CurrentAttempt > 0 {
		b.WriteString(row("Attempt", fmt.Sprintf("%d/%d", p.CurrentAttempt, p.MaxAttempts)))
	}
	if p.ErrorMessage != "" {
		b.WriteString(row("Error", errorStyle.Render(truncate(p.ErrorMessage, 60))))
	}
	for _, a := range p.Attempts {
		icon := "❌"
		if a.Success {
			icon = "✅"
		}
		msg := a.Message
		if msg == "" && len(a.Errors) > 0 {
			msg = a.Errors[0]
		}
		b.WriteString(fmt.Sprintf("  %s attempt %d %s\n", icon, a.Attempt, labelStyle.Render(truncate(msg, 56))))
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// ValidationPanel lists errors and warnings from a validation endpoint.
func ValidationPanel(title string, v *models.ValidationResult) string {
	if v == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(title + "\n\n")
	b.WriteString(row("Valid", yesNo(v.Valid)))
	b.WriteString(row("Safe", yesNo(v.Safe)))
	for _, e := range v.Errors {
		b.WriteString(errorStyle.Render("  ✗ ") + wrap(e, "", 70) + "\n")
	}
	for _, w := range v.Warnings {
		b.WriteString(inProgressStyle.Render("  ! ") + wrap(w, "", 70) + "\n")
	}
	style := panelStyle
	if !v.Valid || !v.Safe {
		style = warnPanelStyle
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func yesNo(ok bool) string {
	if ok {
		return completedStyle.Render("yes")
	}
	return errorStyle.Render("no")
}

func StrategyTable(list []models.Strategy) string {
	if len(list) == 0 {
		return labelStyle.Render("No strategies yet.")
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-6s %-28s %-6s %-10s %s", "ID", "NAME", "VALID", "TIMEFRAME", "UPDATED")) + "\n")
	for _, s := range list {
		valid := "no"
		if s.IsValid {
			valid = "yes"
		}
		updated := ""
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Local().Format(models.LabelLayout)
		}
		b.WriteString(fmt.Sprintf("%-6d %-28s %-6s %-10s %s\n", s.ID, truncate(s.Name, 28), valid, s.Timeframe, updated))
	}
	return strings.TrimRight(b.String(), "\n")
}

// StrategyDetail shows one strategy with its description wrapped.
func StrategyDetail(s *models.Strategy) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 #%d %s\n\n", s.ID, s.Name))
	b.WriteString(wrap(s.Description, "   ", 75) + "\n")
	if len(s.Indicators) > 0 {
		b.WriteString("\n" + row("Indicators", strings.Join(s.Indicators, ", ")))
	}
	if s.Timeframe != "" {
		b.WriteString(row("Timeframe", s.Timeframe))
	}
	b.WriteString(row("Valid", yesNo(s.IsValid)))
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func SymbolTable(list []models.Symbol) string {
	if len(list) == 0 {
		return labelStyle.Render("No symbols available.")
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-10s %-32s %-10s %s", "SYMBOL", "NAME", "EXCHANGE", "TYPE")) + "\n")
	for _, s := range list {
		b.WriteString(fmt.Sprintf("%-10s %-32s %-10s %s\n", s.Symbol, truncate(s.Name, 32), s.Exchange, s.AssetType))
	}
	return strings.TrimRight(b.String(), "\n")
}

func HistoryTable(runs []models.RunRecord) string {
	if len(runs) == 0 {
		return labelStyle.Render("No runs recorded.")
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-36s %-8s %-9s %7s %8s %12s  %s", "ID", "SYMBOL", "STATUS", "TRADES", "WIN", "P&L", "STARTED")) + "\n")
	for _, r := range runs {
		status := r.Status
		switch status {
		case consts.Run_Done:
			status = completedStyle.Render(fmt.Sprintf("%-9s", status))
		case consts.Run_Error:
			status = errorStyle.Render(fmt.Sprintf("%-9s", status))
		default:
			status = inProgressStyle.Render(fmt.Sprintf("%-9s", status))
		}
		b.WriteString(fmt.Sprintf("%-36s %-8s %s %7d %8s %12s  %s\n",
			r.ID, r.Symbol, status, r.Results.TotalTrades, Percent(r.Results.WinRate),
			Money(r.Results.PnL), r.CreatedAt.Local().Format(models.LabelLayout)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RunDetail shows one stored run and its trades.
func RunDetail(r *models.RunRecord) string {
	var b strings.Builder
	b.WriteString(Header(fmt.Sprintf("📊 %s  %s  %s", r.Symbol, r.Status, r.ID)) + "\n")
	b.WriteString(row("Started", r.CreatedAt.Local().Format(models.LabelLayout)))
	b.WriteString(row("Candles", fmt.Sprint(r.Candles)))
	b.WriteString(row("Signals", fmt.Sprint(r.Signals)))
	if r.Config.Period != "" {
		b.WriteString(row("Period", r.Config.Period))
	} else if r.Config.StartDate != "" {
		b.WriteString(row("Range", r.Config.StartDate+" → "+r.Config.EndDate))
	}
	if !r.Config.InitialBalance.IsZero() {
		b.WriteString(row("Balance", r.Config.InitialBalance.StringFixed(2)))
	}
	if r.Error != "" {
		b.WriteString(row("Error", errorStyle.Render(r.Error)))
	}
	b.WriteString(ResultsPanel(r.Results))
	return b.String()
}
