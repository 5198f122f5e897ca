package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"commitlens/internal/api"
	"commitlens/internal/forge"
	"commitlens/internal/oauth"
	"commitlens/internal/tui"
)

// newLoginCmd creates the login command
func newLoginCmd() *cobra.Command {
	var code string
	var noBrowser bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in without starting the interface",
		Long: `Sign in with the configured provider.

With --code, exchange an authorization code you already have. Otherwise the
authorization page is opened and the redirect is received on the configured
listen address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			if code == "" {
				code, err = awaitCode(cmd, a, noBrowser, timeout)
				if err != nil {
					return err
				}
			}

			h := oauth.NewHandler(a.client, a.store, a.forge.Kind(), a.log)
			start := h.Start(code)
			if start == nil {
				return errors.New("this authorization code was already used")
			}
			msg, ok := start().(oauth.ExchangedMsg)
			if !ok {
				// consumed code with a live session
				return printIdentity(cmd, a)
			}
			h.Update(msg)
			if err := h.Err(); err != nil {
				return fmt.Errorf("login failed: %s", api.Describe(err))
			}
			return printIdentity(cmd, a)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code to exchange")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL instead of opening it")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the redirect")

	return cmd
}

func awaitCode(cmd *cobra.Command, a *app, noBrowser bool, timeout time.Duration) (string, error) {
	opts := a.authOpts()
	opts.State = uuid.NewString()
	url, err := forge.AuthorizeURL(a.forge, opts)
	if err != nil {
		return "", err
	}

	l := oauth.NewListener(a.log)
	l.Expect(opts.State)
	if err := l.Listen(a.cfg.OAuth.ListenAddr); err != nil {
		return "", err
	}
	defer l.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open this URL to sign in:\n\n  %s\n\n", url)
	if !noBrowser {
		if err := tui.OpenBrowser(url); err != nil {
			a.log.Debug("could not open browser", "error", err)
		}
	}
	fmt.Fprintln(out, "Waiting for the redirect…")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	msg, err := l.Next(ctx)
	if err != nil {
		return "", fmt.Errorf("no redirect received: %w", err)
	}
	if msg.Err != nil {
		return "", fmt.Errorf("login was not completed: %w", msg.Err)
	}
	return msg.Code, nil
}
