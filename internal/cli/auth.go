package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/QuantDesk/internal/api"
	"github.com/dyike/QuantDesk/internal/display"
	"github.com/dyike/QuantDesk/models"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in to the QuantDesk backend",
	}

	var username string
	login := &cobra.Command{
		Use:   "login",
		Short: "Log in and store tokens locally",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			creds, err := promptForCredentials(false, username)
			if err != nil {
				return err
			}
			if _, err := a.api().Login(cmd.Context(), creds); err != nil {
				return err
			}
			display.Success(a.out, "Logged in as "+creds.Username)
			return nil
		}),
	}
	login.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.AddCommand(login)

	cmd.AddCommand(&cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			creds, err := promptForCredentials(true, "")
			if err != nil {
				return err
			}
			u, err := a.api().Register(cmd.Context(), creds)
			if err != nil {
				return err
			}
			display.Success(a.out, fmt.Sprintf("Registered %s, now run `quantdesk auth login`", u.Username))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget stored tokens",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if err := a.api().Logout(cmd.Context()); err != nil {
				return err
			}
			display.Success(a.out, "Logged out")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether tokens are stored and when they expire",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			tok, err := a.api().Tokens().Load()
			if err != nil {
				return err
			}
			if tok.Access == "" {
				display.Info(a.out, "Not logged in")
				return nil
			}
			fmt.Fprintln(a.out, "Server:  "+a.api().BaseURL())
			fmt.Fprintln(a.out, "Access:  "+expiryText(tok.Access))
			fmt.Fprintln(a.out, "Refresh: "+expiryText(tok.Refresh))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "profile",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			u, err := a.api().Profile(cmd.Context())
			if err != nil {
				return err
			}
			printProfile(a, u)
			return nil
		}),
	})

	return cmd
}

func expiryText(raw string) string {
	if raw == "" {
		return "none"
	}
	exp, ok := api.TokenExpiry(raw)
	if !ok {
		return "stored (no expiry)"
	}
	if time.Now().After(exp) {
		return "expired " + exp.Local().Format(models.LabelLayout)
	}
	return "valid until " + exp.Local().Format(models.LabelLayout)
}

func printProfile(a *app, u *models.User) {
	fmt.Fprintf(a.out, "👤 %s (#%d)\n", u.Username, u.ID)
	if u.Email != "" {
		fmt.Fprintf(a.out, "   %s\n", u.Email)
	}
	if name := u.FirstName + " " + u.LastName; name != " " {
		fmt.Fprintf(a.out, "   %s\n", name)
	}
}
