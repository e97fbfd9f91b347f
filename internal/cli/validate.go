package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/internal/display"
	"github.com/dyike/QuantDesk/models"
)

func newValidateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run production validation on a schema or on strategy code",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema FILE",
		Short: "Validate a strategy schema (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var schema map[string]any
			if err := json.Unmarshal(raw, &schema); err != nil {
				return fmt.Errorf("%s is not a JSON object: %w", args[0], err)
			}
			res, err := a.api().ValidateSchema(cmd.Context(), schema)
			return a.printValidation("🧩 Schema validation", res, err)
		}),
	})

	codeCmd := func(use, short, title string, call func(*cobra.Command, string) (*models.ValidationResult, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " FILE",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				code, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				res, err := call(cmd, string(code))
				return a.printValidation(title, res, err)
			}),
		}
	}
	cmd.AddCommand(codeCmd("code", "Static safety and syntax checks on strategy code", "🔍 Code validation",
		func(cmd *cobra.Command, code string) (*models.ValidationResult, error) {
			return a.api().ValidateCode(cmd.Context(), code)
		}))
	cmd.AddCommand(codeCmd("sandbox", "Execute strategy code in the server sandbox", "🧪 Sandbox validation",
		func(cmd *cobra.Command, code string) (*models.ValidationResult, error) {
			return a.api().ValidateSandbox(cmd.Context(), code)
		}))

	return cmd
}

func (a *app) printValidation(title string, res *models.ValidationResult, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, display.ValidationPanel(title, res))
	return nil
}
