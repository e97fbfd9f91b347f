package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/config"
	"github.com/dyike/QuantDesk/internal/api"
	"github.com/dyike/QuantDesk/internal/cache"
	"github.com/dyike/QuantDesk/internal/display"
	"github.com/dyike/QuantDesk/internal/logx"
	"github.com/dyike/QuantDesk/internal/storage/sqlite"
)

type globalFlags struct {
	configPath string
	debug      bool
	logLevel   string
	apiURL     string
	wsURL      string
	debugAddr  string
}

// app is the state shared by every command of one invocation. Clients
// are built on first use.
type app struct {
	flags   globalFlags
	cfg     config.Config
	manager *config.Manager
	logger  *slog.Logger
	out     io.Writer
	errOut  io.Writer

	client *api.Client
	store  *sqlite.Store
}

func newApp() *app {
	return &app{
		logger: slog.Default(),
		out:    os.Stdout,
		errOut: os.Stderr,
	}
}

// load reads the config file, applies environment and flag overrides and
// installs the logger.
func (a *app) load(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()

	mgr, err := config.NewManager(config.WithConfigPath(a.flags.configPath), config.WithLogger(a.logger))
	if err != nil {
		return err
	}
	cfg := mgr.Get()
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if a.flags.apiURL != "" {
		cfg.APIBaseURL = a.flags.apiURL
	}
	if a.flags.wsURL != "" {
		cfg.WSURL = a.flags.wsURL
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}
	if a.flags.debugAddr != "" {
		cfg.DebugAddr = a.flags.debugAddr
	}
	if flags.Changed("debug") {
		cfg.Debug = a.flags.debug
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", mgr.Path(), err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	a.cfg = cfg
	a.manager = mgr
	a.logger = logx.Setup(cfg.LogLevel, cfg.Debug)
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close history store", "error", err)
		}
		a.store = nil
	}
}

// run adapts an operational command: failures become one toast line on
// stderr and the command still exits cleanly.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			a.logger.Debug("command failed", "command", cmd.CommandPath(), "error", err)
			display.Error(a.errOut, err)
		}
		return nil
	}
}

func (a *app) api() *api.Client {
	if a.client == nil {
		a.client = api.NewClient(a.cfg.APIBaseURL, a.cfg.HTTPTimeout(),
			api.WithTokenStore(api.NewFileTokenStore(a.cfg.TokenPath())),
			api.WithLogger(a.logger),
		)
	}
	return a.client
}

func (a *app) history() (*sqlite.Store, error) {
	if a.store == nil {
		s, err := sqlite.Open(a.cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.store = s
	}
	return a.store, nil
}

// symbols returns the symbol listing, cached in Redis when configured.
// A Redis failure falls back to the uncached source.
func (a *app) symbols(ctx context.Context) (*cache.CachingSymbolSource, func()) {
	rdb, err := cache.NewRedisClient(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.logger)
	if err != nil {
		display.Warning(a.errOut, "symbol cache unavailable, querying the server directly")
	}
	src := cache.NewCachingSymbolSource(rdb, a.cfg.SymbolCacheTTL(), a.api(), "")
	return src, func() {
		if rdb != nil {
			_ = rdb.Close()
		}
	}
}
