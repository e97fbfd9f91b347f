package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/dyike/QuantDesk/internal/stream"
	"github.com/dyike/QuantDesk/models"
)

// Session runs at most one stream at a time into a shared Accumulator.
// Accumulator callbacks run on the stream goroutine and must not call
// Start or Stop.
type Session struct {
	url    string
	acc    *Accumulator
	logger *slog.Logger
	debug  bool
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *stream.Connector
	streaming atomic.Bool
}

type Option func(*Session)

func WithDebug(enabled bool) Option {
	return func(s *Session) {
		s.debug = enabled
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) {
		s.dialer = d
	}
}

func NewSession(url string, acc *Accumulator, opts ...Option) *Session {
	s := &Session{
		url:    url,
		acc:    acc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.acc == nil {
		s.acc = NewAccumulator(s.logger)
	}
	return s
}

func (s *Session) Accumulator() *Accumulator {
	return s.acc
}

// Start tears down any running stream, waits for its reader to stop,
// resets the accumulated state and opens a new stream.
func (s *Session) Start(ctx context.Context, cfg models.BacktestConfig) error {
	if missing := cfg.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", stream.ErrInvalidConfig, strings.Join(missing, ", "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.acc.Reset()

	c := stream.NewConnector(s.url, s.acc,
		stream.WithDebug(s.debug),
		stream.WithLogger(s.logger),
		stream.WithDialer(s.dialer),
	)
	if err := c.Start(ctx, cfg); err != nil {
		return err
	}
	s.conn = c
	s.streaming.Store(true)
	return nil
}

// Stop closes the running stream, if any. Accumulated state is kept.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	s.streaming.Store(false)
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("close stream", "error", err)
	}
	s.conn = nil
}

// Close is Stop for use with defer.
func (s *Session) Close() error {
	s.Stop()
	return nil
}

func (s *Session) Streaming() bool {
	return s.streaming.Load()
}

// Done is closed when the current stream's reader exits. It returns a
// closed channel when no stream is running.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.conn.Done()
}
