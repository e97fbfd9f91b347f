// Package debugsrv serves read-only views of a running backtest over HTTP.
package debugsrv

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dyike/QuantDesk/internal/backtest"
	"github.com/dyike/QuantDesk/internal/chart"
)

// StateSource is anything that can produce an accumulator snapshot.
type StateSource interface {
	Snapshot() backtest.State
}

func NewRouter(src StateSource) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	g := r.Group("/debug")
	g.GET("/healthz", health)
	g.HEAD("/healthz", health)
	g.GET("/state", stateHandler(src))
	g.GET("/chart", chartHandler(src))
	return r
}

func health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func stateHandler(src StateSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		s := src.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"state":    s,
			"progress": s.Progress(),
			"win_rate": s.WinRate(),
		})
	}
}

func chartHandler(src StateSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		s := src.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"y_domain": chart.YDomain(s.Candles),
			"bars":     chart.Bars(s.Candles),
			"markers":  chart.Markers(s.Candles, s.Signals),
			"zones":    chart.Zones(s.Candles, s.Trades),
		})
	}
}

// Server is a started debug listener.
type Server struct {
	srv    *http.Server
	addr   string
	logger *slog.Logger
}

// Start listens on addr and serves until ctx is done or Shutdown is called.
func Start(ctx context.Context, addr string, src StateSource, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		srv: &http.Server{
			Handler:           NewRouter(src),
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr:   ln.Addr().String(),
		logger: logger,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("debug server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()

	logger.Info("debug server listening", "addr", s.addr)
	return s, nil
}

// Addr is the bound address, useful when addr had port 0.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
