package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dyike/QuantDesk/internal/backtest"
	"github.com/dyike/QuantDesk/internal/chart"
	"github.com/dyike/QuantDesk/internal/display"
)

const refreshInterval = 150 * time.Millisecond

type viewOptions struct {
	zoom    int // steps from the default zoom
	width   int
	height  int
	noChart bool
	noClear bool
}

// liveView redraws the panel and chart whenever the accumulator changes.
type liveView struct {
	w     io.Writer
	acc   *backtest.Accumulator
	opts  viewOptions
	dirty atomic.Bool
	step  atomic.Value // string
}

func newLiveView(w io.Writer, acc *backtest.Accumulator, opts viewOptions) *liveView {
	v := &liveView{w: w, acc: acc, opts: opts}
	v.step.Store("")
	acc.OnChange(func() { v.dirty.Store(true) })
	return v
}

func (v *liveView) setStep(s string) {
	v.step.Store(s)
	v.dirty.Store(true)
}

// wait redraws until done is closed, the run completes or ctx ends, and
// then draws the final frame.
func (v *liveView) wait(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	defer v.draw()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if v.dirty.Swap(false) {
				v.draw()
			}
			if v.acc.Snapshot().Complete {
				return
			}
		}
	}
}

func (v *liveView) draw() {
	if !v.opts.noClear {
		display.ClearScreen(v.w)
	}
	fmt.Fprintln(v.w, v.frame(v.acc.Snapshot()))
}

func (v *liveView) frame(st backtest.State) string {
	var b strings.Builder
	b.WriteString(display.StreamPanel(st, v.step.Load().(string)))
	if v.opts.noChart {
		return b.String()
	}
	b.WriteString("\n")
	b.WriteString(chart.Render(chart.View{
		Title:   st.Symbol,
		Candles: st.Candles,
		Signals: st.Signals,
		Trades:  st.Trades,
	}, chart.Options{
		Width:  v.opts.width,
		Height: v.opts.height,
		Zoom:   chart.DefaultZoom().Apply(v.opts.zoom),
		Border: true,
	}))
	return b.String()
}
