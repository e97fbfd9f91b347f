package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/internal/display"
	"github.com/dyike/QuantDesk/models"
)

func newSymbolsCmd(a *app) *cobra.Command {
	var (
		filter  string
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List tradable symbols",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, closeCache := a.symbols(ctx)
			defer closeCache()

			if refresh {
				if err := src.Invalidate(ctx); err != nil {
					a.logger.Warn("invalidate symbol cache", "error", err)
				}
			}
			list, err := src.ListSymbols(ctx)
			if err != nil {
				return err
			}
			if filter != "" {
				list = filterSymbols(list, filter)
			}
			fmt.Fprintln(a.out, display.SymbolTable(list))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only show symbols or names containing this text")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the cached listing")
	return cmd
}

func filterSymbols(list []models.Symbol, q string) []models.Symbol {
	q = strings.ToLower(strings.TrimSpace(q))
	var out []models.Symbol
	for _, s := range list {
		if strings.Contains(strings.ToLower(s.Symbol), q) || strings.Contains(strings.ToLower(s.Name), q) {
			out = append(out, s)
		}
	}
	return out
}
