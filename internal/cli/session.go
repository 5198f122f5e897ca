package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"commitlens/internal/logging"
)

// newLogoutCmd creates the logout command
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// newWhoamiCmd creates the whoami command
func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()
			return printIdentity(cmd, a)
		},
	}
}

func printIdentity(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	cred, ok := a.store.Credential(cmd.Context())
	if !ok {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}
	fmt.Fprintf(out, "Logged in as %s (%s, token %s)\n",
		cred.User.Login, a.forge.Kind(), logging.TokenTail(cred.Token))
	return nil
}
