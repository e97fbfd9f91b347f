package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = ""
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := newApp()

	rootCmd := &cobra.Command{
		Use:   "quantdesk",
		Short: "QuantDesk - backtest trading strategies from the terminal",
		Long: `QuantDesk streams backtests from a QuantDesk backend, draws candles, signals
and trade zones as they arrive, and drives strategy code generation.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	rootCmd.AddCommand(newBacktestCmd(a))
	rootCmd.AddCommand(newStrategyCmd(a))
	rootCmd.AddCommand(newCodegenCmd(a))
	rootCmd.AddCommand(newValidateCmd(a))
	rootCmd.AddCommand(newSymbolsCmd(a))
	rootCmd.AddCommand(newAuthCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newDemoCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Configuration file path")
	pf.BoolVar(&a.flags.debug, "debug", false, "Log every raw stream frame")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flags.apiURL, "api-url", "", "REST base URL (overrides QUANTDESK_API_URL)")
	pf.StringVar(&a.flags.wsURL, "ws-url", "", "Backtest WebSocket URL (overrides QUANTDESK_WS_URL)")
	pf.StringVar(&a.flags.debugAddr, "debug-addr", "", "Serve /debug/state on this address while streaming, e.g. :6060")

	return rootCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			v := version
			if commit != "" {
				v += " (" + commit + ")"
			}
			fmt.Fprintf(out, "QuantDesk %s\n", v)
			fmt.Fprintln(out, "Streaming backtest client for the QuantDesk platform")
		},
	}
}
