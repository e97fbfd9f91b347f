package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/config"
	"github.com/dyike/QuantDesk/internal/display"
)

// newConfigCmd creates the config command
func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Manage QuantDesk configuration settings",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a.showConfig()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and backend reachability",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(cmd.Context())
		}),
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			v, err := config.GetValue(a.manager.Get(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, v)
			return nil
		}),
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one configuration value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			next, err := config.SetValue(a.manager.Get(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("%w (keys: %s)", err, strings.Join(config.Keys(), ", "))
			}
			if err := a.manager.Update(next); err != nil {
				return err
			}
			display.Success(a.out, fmt.Sprintf("%s updated in %s", args[0], a.manager.Path()))
			return nil
		}),
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print the configuration whenever the file changes",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.manager.Watch(ctx, func(cfg config.Config) {
				display.Info(a.out, "Configuration reloaded from "+a.manager.Path())
				a.cfg = cfg
				a.showConfig()
			}); err != nil {
				return err
			}
			display.Info(a.out, "Watching "+a.manager.Path()+" (Ctrl+C to stop)")
			<-ctx.Done()
			return nil
		}),
	})

	return configCmd
}

// showConfig displays the current configuration
func (a *app) showConfig() {
	cfg := a.cfg
	out := a.out
	fmt.Fprintln(out, "📋 Current QuantDesk Configuration:")
	fmt.Fprintln(out, "═══════════════════════════════════════")
	fmt.Fprintf(out, "Config File:          %s\n", a.manager.Path())
	fmt.Fprintf(out, "Data Directory:       %s\n", cfg.DataDir)
	fmt.Fprintf(out, "Export Directory:     %s\n", cfg.ExportDir)
	fmt.Fprintf(out, "History Database:     %s\n", cfg.DBPath)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "API URL:              %s\n", cfg.APIBaseURL)
	fmt.Fprintf(out, "WebSocket URL:        %s\n", cfg.WSURL)
	fmt.Fprintf(out, "HTTP Timeout:         %s\n", cfg.HTTPTimeout())
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Auto Fix:             %t\n", cfg.AutoFix)
	fmt.Fprintf(out, "Max Fix Attempts:     %d\n", cfg.MaxFixAttempts)
	fmt.Fprintf(out, "Default Balance:      %.2f\n", cfg.DefaultBalance)
	fmt.Fprintf(out, "Default Commission:   %g\n", cfg.DefaultCommission)
	fmt.Fprintf(out, "Default Slippage:     %g\n", cfg.DefaultSlippage)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Log Level:            %s\n", cfg.LogLevel)
	fmt.Fprintf(out, "Debug Mode:           %t\n", cfg.Debug)
	if cfg.DebugAddr != "" {
		fmt.Fprintf(out, "Debug URL:            http://%s/debug/state\n", cfg.DebugAddr)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "🔌 Symbol Cache:")
	fmt.Fprintln(out, "─────────────────────")
	if cfg.RedisAddr != "" {
		fmt.Fprintf(out, "Redis:                ✅ %s (ttl %s)\n", cfg.RedisAddr, cfg.SymbolCacheTTL())
	} else {
		fmt.Fprintln(out, "Redis:                ❌ Not configured")
	}
}

// validateConfig validates the configuration and dependencies
func (a *app) validateConfig(ctx context.Context) error {
	out := a.out
	fmt.Fprintln(out, "🔍 Validating QuantDesk Configuration...")
	fmt.Fprintln(out, "═══════════════════════════════════════")

	fmt.Fprint(out, "📁 Checking directories... ")
	if err := a.cfg.EnsureDirectories(); err != nil {
		fmt.Fprintln(out, "❌")
		return fmt.Errorf("directory validation failed: %w", err)
	}
	fmt.Fprintln(out, "✅")

	fmt.Fprint(out, "⚙️  Checking configuration values... ")
	if err := a.cfg.Validate(); err != nil {
		fmt.Fprintln(out, "❌")
		return err
	}
	fmt.Fprintln(out, "✅")

	var warnings []string
	fmt.Fprint(out, "🌐 Checking backend... ")
	if _, err := a.api().ListSymbols(ctx); err != nil {
		fmt.Fprintln(out, "⚠️")
		warnings = append(warnings, display.ToastText(err))
	} else {
		fmt.Fprintln(out, "✅")
	}

	fmt.Fprint(out, "🔑 Checking login... ")
	if a.api().LoggedIn() {
		fmt.Fprintln(out, "✅")
	} else {
		fmt.Fprintln(out, "⚠️")
		warnings = append(warnings, "not logged in, strategy and codegen commands need `quantdesk auth login`")
	}

	if a.cfg.RedisAddr != "" {
		fmt.Fprint(out, "🗄️  Checking symbol cache... ")
		_, closeCache := a.symbols(ctx)
		closeCache()
		fmt.Fprintln(out, "done")
	}

	fmt.Fprintln(out)
	for _, w := range warnings {
		fmt.Fprintf(out, "  ⚠️  %s\n", w)
	}
	if len(warnings) == 0 {
		display.Success(out, "Configuration validation completed successfully!")
	} else {
		display.Warning(out, fmt.Sprintf("Configuration validation completed with %d warnings.", len(warnings)))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "💡 Tips:")
	fmt.Fprintln(out, "  • Set QUANTDESK_API_URL and QUANTDESK_WS_URL to point at your backend")
	fmt.Fprintln(out, "  • Set QUANTDESK_REDIS_ADDR to cache the symbol listing")
	fmt.Fprintln(out, "  • Use 'quantdesk demo' to try the chart without a backend")
	return nil
}
