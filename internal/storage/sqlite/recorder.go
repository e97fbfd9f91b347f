package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dyike/QuantDesk/models"
)

// Recorder persists one stream run off the stream goroutine. Writes are
// applied in the order they were queued.
type Recorder struct {
	store  *Store
	run    models.RunRecord
	logger *slog.Logger

	events chan func(context.Context) error
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewRecorder(ctx context.Context, store *Store, cfg models.BacktestConfig, logger *slog.Logger) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	run, err := store.CreateRun(ctx, models.RunRecord{Config: cfg})
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		store:  store,
		run:    run,
		logger: logger,
		events: make(chan func(context.Context) error, 16),
	}
	r.wg.Add(1)
	go r.loop()
	return r, nil
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	ctx := context.Background()
	for fn := range r.events {
		if err := fn(ctx); err != nil {
			r.logger.Warn("record run failed", "run_id", r.run.ID, "error", err)
		}
	}
}

func (r *Recorder) enqueue(fn func(context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.events <- fn
}

func (r *Recorder) RunID() string {
	return r.run.ID
}

// Complete queues the final results of the run.
func (r *Recorder) Complete(results models.BacktestResults, candles, signals int) {
	id := r.run.ID
	r.enqueue(func(ctx context.Context) error {
		return r.store.FinishRun(ctx, id, results, candles, signals)
	})
}

// Fail queues an error status for the run.
func (r *Recorder) Fail(msg string) {
	id := r.run.ID
	r.enqueue(func(ctx context.Context) error {
		return r.store.FailRun(ctx, id, msg)
	})
}

// Close flushes queued writes. Later calls to Complete or Fail are dropped.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()
	r.wg.Wait()
}
