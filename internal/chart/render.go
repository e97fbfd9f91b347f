package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/QuantDesk/models"
)

var (
	bullStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	bearStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	exitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	axisStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	winZone    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lossZone   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	plainStyle = lipgloss.NewStyle()

	chartBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6"))
)

// View is everything needed to draw one frame.
type View struct {
	Title   string
	Candles []models.Candle
	Signals []models.TradeSignal
	Trades  []models.CompletedTrade
}

type Options struct {
	Width  int // plot columns at zoom 1
	Height int // plot rows
	Zoom   Zoom
	Border bool
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 80
	}
	if o.Height <= 0 {
		o.Height = 20
	}
	if o.Zoom <= 0 {
		o.Zoom = DefaultZoom()
	}
	return o
}

type cell struct {
	ch    rune
	style *lipgloss.Style
}

// columnWidth is how many terminal columns one candle occupies.
func columnWidth(z Zoom) int {
	w := int(math.Round(float64(z) * 2))
	if w < 1 {
		w = 1
	}
	return w
}

// Render draws the most recent candles that fit, with markers above or
// below them and a zone strip under the plot.
func Render(v View, opts Options) string {
	opts = opts.withDefaults()
	colW := columnWidth(opts.Zoom)
	visible := opts.Width / colW
	if visible < 1 {
		visible = 1
	}

	start := 0
	if len(v.Candles) > visible {
		start = len(v.Candles) - visible
	}
	candles := v.Candles[start:]
	dom := YDomain(candles)

	width := len(candles) * colW
	if width == 0 {
		width = opts.Width
	}
	grid := make([][]cell, opts.Height)
	for r := range grid {
		grid[r] = make([]cell, width)
		for c := range grid[r] {
			grid[r][c] = cell{ch: ' ', style: &plainStyle}
		}
	}

	row := func(price float64) int {
		span := dom.Span()
		if span <= 0 {
			return opts.Height / 2
		}
		r := int(math.Round((dom.Max - price) / span * float64(opts.Height-1)))
		return max(0, min(opts.Height-1, r))
	}

	center := colW / 2
	for _, b := range Bars(candles) {
		col := b.Index*colW + center
		style := &bearStyle
		if b.Bullish {
			style = &bullStyle
		}
		for r := row(b.WickHigh); r <= row(b.WickLow); r++ {
			grid[r][col] = cell{ch: '│', style: style}
		}
		for r := row(b.BodyTop); r <= row(b.BodyBottom); r++ {
			for c := b.Index * colW; c < (b.Index+1)*colW; c++ {
				if colW > 2 && (c == b.Index*colW || c == (b.Index+1)*colW-1) {
					continue
				}
				grid[r][c] = cell{ch: '█', style: style}
			}
		}
	}

	for _, m := range Markers(candles, v.Signals) {
		col := m.Index*colW + center
		r := row(m.Price)
		switch m.Kind {
		case MarkerBuyEntry:
			grid[r][col] = cell{ch: '▲', style: &bullStyle}
		case MarkerSellEntry:
			grid[r][col] = cell{ch: '▼', style: &bearStyle}
		case MarkerExit:
			grid[r][col] = cell{ch: '◆', style: &exitStyle}
		}
	}

	var sb strings.Builder
	if v.Title != "" {
		sb.WriteString(v.Title)
		sb.WriteByte('\n')
	}
	for r, line := range grid {
		sb.WriteString(axisStyle.Render(axisLabel(r, opts.Height, dom)))
		writeCells(&sb, line)
		sb.WriteByte('\n')
	}

	sb.WriteString(strings.Repeat(" ", axisWidth))
	writeCells(&sb, zoneStrip(Zones(candles, v.Trades), width, colW))
	sb.WriteByte('\n')

	if len(candles) > 0 {
		first, last := candles[0].Timestamp.Label(), candles[len(candles)-1].Timestamp.Label()
		gap := width - len(first) - len(last)
		if gap < 1 {
			gap = 1
		}
		sb.WriteString(strings.Repeat(" ", axisWidth))
		sb.WriteString(axisStyle.Render(first + strings.Repeat(" ", gap) + last))
	} else {
		sb.WriteString(axisStyle.Render("waiting for candles..."))
	}

	out := sb.String()
	if opts.Border {
		return chartBorder.Render(out)
	}
	return out
}

const axisWidth = 11

func axisLabel(r, height int, dom Domain) string {
	if height < 2 {
		return strings.Repeat(" ", axisWidth)
	}
	if r != 0 && r != height-1 && r != height/2 {
		return strings.Repeat(" ", axisWidth-1) + "┤"
	}
	price := dom.Max - dom.Span()*float64(r)/float64(height-1)
	return fmt.Sprintf("%9.2f ┤", price)
}

func zoneStrip(zones []Zone, width, colW int) []cell {
	strip := make([]cell, width)
	for i := range strip {
		strip[i] = cell{ch: ' ', style: &plainStyle}
	}
	for _, z := range zones {
		from, to := z.EntryIndex, z.ExitIndex
		if from > to {
			from, to = to, from
		}
		style := &lossZone
		if z.Win {
			style = &winZone
		}
		for c := from * colW; c < (to+1)*colW && c < width; c++ {
			strip[c] = cell{ch: '▔', style: style}
		}
	}
	return strip
}

func writeCells(sb *strings.Builder, cells []cell) {
	var run strings.Builder
	var cur *lipgloss.Style
	flush := func() {
		if run.Len() == 0 {
			return
		}
		sb.WriteString(cur.Render(run.String()))
		run.Reset()
	}
	for _, c := range cells {
		if c.style != cur {
			flush()
			cur = c.style
		}
		run.WriteRune(c.ch)
	}
	flush()
}
