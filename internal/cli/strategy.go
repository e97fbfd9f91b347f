package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/internal/display"
	"github.com/dyike/QuantDesk/models"
)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

type strategyFlags struct {
	name        string
	description string
	codeFile    string
	timeframe   string
	indicators  []string
}

func (f *strategyFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.name, "name", "", "Strategy name")
	fs.StringVar(&f.description, "description", "", "Plain-language description")
	fs.StringVar(&f.codeFile, "code-file", "", "File with strategy code")
	fs.StringVar(&f.timeframe, "timeframe", "", "Timeframe, e.g. 1d")
	fs.StringSliceVar(&f.indicators, "indicators", nil, "Indicators, comma separated")
}

// input merges set flags over base.
func (f *strategyFlags) input(cmd *cobra.Command, base models.StrategyInput) (models.StrategyInput, error) {
	fs := cmd.Flags()
	if fs.Changed("name") {
		base.Name = f.name
	}
	if fs.Changed("description") {
		base.Description = f.description
	}
	if fs.Changed("timeframe") {
		base.Timeframe = f.timeframe
	}
	if fs.Changed("indicators") {
		base.Indicators = f.indicators
	}
	if f.codeFile != "" {
		code, err := os.ReadFile(f.codeFile)
		if err != nil {
			return base, fmt.Errorf("read code file: %w", err)
		}
		base.Code = string(code)
	}
	return base, nil
}

func (f *strategyFlags) any(cmd *cobra.Command) bool {
	fs := cmd.Flags()
	for _, n := range []string{"name", "description", "code-file", "timeframe", "indicators"} {
		if fs.Changed(n) {
			return true
		}
	}
	return false
}

func newStrategyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "strategy",
		Aliases: []string{"strategies"},
		Short:   "Manage saved strategies",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your strategies",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			list, err := a.api().ListStrategies(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, display.StrategyTable(list))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get ID",
		Short: "Show one strategy",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := a.api().GetStrategy(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, display.StrategyDetail(s))
			if s.Code != "" {
				fmt.Fprintln(a.out, s.Code)
			}
			return nil
		}),
	})

	var createFlags strategyFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a strategy (prompts when no flags are given)",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var (
				in  models.StrategyInput
				err error
			)
			if createFlags.any(cmd) {
				in, err = createFlags.input(cmd, in)
			} else {
				in, err = promptForStrategyInput(nil)
			}
			if err != nil {
				return err
			}
			s, err := a.api().CreateStrategy(cmd.Context(), in)
			if err != nil {
				return err
			}
			display.Success(a.out, fmt.Sprintf("Created strategy #%d %s", s.ID, s.Name))
			return nil
		}),
	}
	createFlags.register(create)
	cmd.AddCommand(create)

	var updateFlags strategyFlags
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Update a strategy (prompts when no flags are given)",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			current, err := a.api().GetStrategy(cmd.Context(), id)
			if err != nil {
				return err
			}
			var in models.StrategyInput
			if updateFlags.any(cmd) {
				in, err = updateFlags.input(cmd, models.StrategyInput{
					Name:        current.Name,
					Description: current.Description,
					Code:        current.Code,
					Indicators:  current.Indicators,
					Timeframe:   current.Timeframe,
				})
			} else {
				in, err = promptForStrategyInput(current)
				in.Code = current.Code
			}
			if err != nil {
				return err
			}
			s, err := a.api().UpdateStrategy(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			display.Success(a.out, fmt.Sprintf("Updated strategy #%d %s", s.ID, s.Name))
			return nil
		}),
	}
	updateFlags.register(update)
	cmd.AddCommand(update)

	var yes bool
	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a strategy",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := promptForConfirmation("", fmt.Sprintf("Delete strategy #%d?", id))
				if err != nil || !ok {
					return err
				}
			}
			if err := a.api().DeleteStrategy(cmd.Context(), id); err != nil {
				return err
			}
			display.Success(a.out, fmt.Sprintf("Deleted strategy #%d", id))
			return nil
		}),
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(del)

	var validateFlags strategyFlags
	validate := &cobra.Command{
		Use:   "validate [ID]",
		Short: "Validate a saved strategy or one described by flags",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var in models.StrategyInput
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				s, err := a.api().GetStrategy(cmd.Context(), id)
				if err != nil {
					return err
				}
				in = models.StrategyInput{Name: s.Name, Description: s.Description, Code: s.Code, Indicators: s.Indicators, Timeframe: s.Timeframe}
			}
			in, err := validateFlags.input(cmd, in)
			if err != nil {
				return err
			}
			res, err := a.api().ValidateStrategy(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, display.ValidationPanel("🔍 Strategy validation", res))
			return nil
		}),
	}
	validateFlags.register(validate)
	cmd.AddCommand(validate)

	return cmd
}
