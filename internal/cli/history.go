package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/internal/display"
	"github.com/dyike/QuantDesk/internal/export"
	"github.com/dyike/QuantDesk/models"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse locally recorded stream runs",
	}

	var params models.HistoryParams
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			store, err := a.history()
			if err != nil {
				return err
			}
			runs, err := store.ListRuns(cmd.Context(), params)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, display.HistoryTable(runs))
			return nil
		}),
	}
	list.Flags().StringVarP(&params.Symbol, "symbol", "s", "", "Only runs for this symbol")
	list.Flags().IntVarP(&params.Limit, "limit", "n", 20, "Maximum runs to show")
	cmd.AddCommand(list)

	var exportPath string
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show a run and its trades",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			store, err := a.history()
			if err != nil {
				return err
			}
			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("no run with id %s", args[0])
			}
			fmt.Fprintln(a.out, display.RunDetail(run))
			if exportPath != "" {
				res := run.Results
				files, err := export.Write(export.NewRun(run.ID, run.Symbol, nil, run.Results.Trades, &res), exportPath)
				if err != nil {
					return err
				}
				display.Success(a.out, fmt.Sprintf("Exported %v", files))
			}
			return nil
		}),
	}
	show.Flags().StringVar(&exportPath, "export", "", "Write the run's trades to a .csv, .json or .parquet file")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			store, err := a.history()
			if err != nil {
				return err
			}
			if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			display.Success(a.out, "Deleted "+args[0])
			return nil
		}),
	})

	return cmd
}
