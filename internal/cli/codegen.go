package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/internal/codegen"
	"github.com/dyike/QuantDesk/internal/display"
	"github.com/dyike/QuantDesk/models"
)

func newCodegenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codegen",
		Short: "Generate executable strategy code",
	}

	var (
		strategyID  int64
		autoFix     bool
		maxAttempts int
		server      bool
		outFile     string
		save        bool
	)
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate, validate and auto-fix code for a strategy",
		Long: `Generate code for a saved strategy, validate it and, when validation fails,
ask the server to fix the reported errors up to --max-attempts times.
With --server the whole loop runs server-side in one call.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if strategyID <= 0 {
				list, err := a.api().ListStrategies(ctx)
				if err != nil {
					return err
				}
				if strategyID, err = promptForStrategy(list); err != nil {
					return err
				}
			}

			opts := codegen.Options{AutoFix: a.cfg.AutoFix, MaxFixAttempts: a.cfg.MaxFixAttempts}
			if cmd.Flags().Changed("auto-fix") {
				opts.AutoFix = autoFix
			}
			if cmd.Flags().Changed("max-attempts") {
				opts.MaxFixAttempts = maxAttempts
			}
			client := codegen.NewClient(a.api(), opts, a.logger)
			unsubscribe := client.Subscribe(func(p models.CodeGenerationProgress) {
				fmt.Fprintln(a.out, display.CodegenPanel(p))
			})
			defer unsubscribe()

			req := models.GenerateRequest{StrategyID: strategyID}
			var (
				out *models.GenerationOutcome
				err error
			)
			if server {
				out, err = client.RunOnServer(ctx, a.api(), req)
			} else {
				out, err = client.Run(ctx, req)
			}
			if err != nil {
				return err
			}
			if out.Status != consts.Gen_Completed {
				return fmt.Errorf("code generation failed after %d fix attempts: %s", out.FixAttempts, out.ErrorMessage)
			}

			if outFile != "" {
				if err := os.WriteFile(outFile, []byte(out.Code), 0o644); err != nil {
					return fmt.Errorf("write code: %w", err)
				}
				display.Success(a.out, "Code written to "+outFile)
			} else {
				fmt.Fprintln(a.out, out.Code)
			}
			if save {
				s, err := a.api().GetStrategy(ctx, strategyID)
				if err != nil {
					return err
				}
				_, err = a.api().UpdateStrategy(ctx, strategyID, models.StrategyInput{
					Name:        s.Name,
					Description: s.Description,
					Code:        out.Code,
					Indicators:  s.Indicators,
					Timeframe:   s.Timeframe,
				})
				if err != nil {
					return err
				}
				display.Success(a.out, fmt.Sprintf("Saved code to strategy #%d", strategyID))
			}
			return nil
		}),
	}
	fs := generate.Flags()
	fs.Int64Var(&strategyID, "strategy", 0, "Strategy ID (prompts when omitted)")
	fs.BoolVar(&autoFix, "auto-fix", true, "Fix validation errors automatically")
	fs.IntVar(&maxAttempts, "max-attempts", codegen.DefaultMaxFixAttempts, "Maximum fix attempts")
	fs.BoolVar(&server, "server", false, "Run the fix loop on the server")
	fs.StringVarP(&outFile, "output", "o", "", "Write the code to this file instead of stdout")
	fs.BoolVar(&save, "save", false, "Store the generated code on the strategy")
	cmd.AddCommand(generate)

	return cmd
}
