package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/models"
)

var (
	ErrInvalidConfig = errors.New("invalid backtest config")
	ErrNotConnected  = errors.New("stream not connected")
	ErrStarted       = errors.New("stream already started")
)

// Connector owns one WebSocket backtest session. It is single use: after
// Close a new Connector is needed for the next run. There is no reconnect.
type Connector struct {
	url     string
	handler Handler
	dialer  *websocket.Dialer
	logger  *slog.Logger
	debug   bool

	mu        sync.Mutex
	conn      *websocket.Conn
	started   bool
	closing   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Connector)

// WithDebug logs every raw inbound frame at debug level.
func WithDebug(enabled bool) Option {
	return func(c *Connector) {
		c.debug = enabled
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Connector) {
		if d != nil {
			c.dialer = d
		}
	}
}

func NewConnector(url string, handler Handler, opts ...Option) *Connector {
	c := &Connector{
		url:     url,
		handler: handler,
		dialer:  websocket.DefaultDialer,
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start validates cfg, dials the backend and sends the start_backtest
// command. Events are dispatched to the handler from a single goroutine
// until the server closes the socket or Close is called.
func (c *Connector) Start(ctx context.Context, cfg models.BacktestConfig) error {
	if missing := cfg.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrStarted
	}
	c.started = true
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		close(c.done)
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	cmd := models.StartCommand{Action: consts.Action_StartBacktest, Config: cfg}
	if err := conn.WriteJSON(cmd); err != nil {
		_ = conn.Close()
		close(c.done)
		return fmt.Errorf("send start command: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("backtest stream started", "url", c.url, "symbol", cfg.Symbol)
	go c.readLoop(conn)
	return nil
}

func (c *Connector) readLoop(conn *websocket.Conn) {
	defer close(c.done)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !c.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("backtest stream read failed", "error", err)
			}
			return
		}
		if c.debug {
			c.logger.Debug("stream frame", "raw", string(raw))
		}
		if err := Dispatch(c.handler, raw); err != nil {
			c.logger.Warn("malformed stream frame", "error", err)
		}
	}
}

// Done is closed once the read loop has exited.
func (c *Connector) Done() <-chan struct{} {
	return c.done
}

// Connected reports whether the socket is open and being read.
func (c *Connector) Connected() bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close sends a close frame, closes the socket and waits for the read
// loop to exit. No handler method runs after Close returns.
func (c *Connector) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = conn.Close()
		<-c.done
	})
	return err
}
