package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"commitlens/internal/git"
	"commitlens/internal/oauth"
	"commitlens/internal/tui"
	"commitlens/internal/workspace"
)

const (
	version = "0.1.0"
)

// NewRootCmd creates and returns the root command for commitlens
func NewRootCmd() *cobra.Command {
	var code string

	rootCmd := &cobra.Command{
		Use:   "commitlens",
		Short: "Browse repositories and chat about commits",
		Long: `commitlens signs you in with GitHub or GitLab, lists your repositories
and their commits, shows an AI analysis of any commit's diff and lets you
ask questions about a repository or a single commit.

Run without arguments to start the terminal interface.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(code)
		},
	}
	rootCmd.Flags().StringVar(&code, "code", "", "Authorization code to exchange on start")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runTUI(code string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	listener := oauth.NewListener(a.log)
	if err := listener.Listen(a.cfg.OAuth.ListenAddr); err != nil {
		// login still works with --code
		a.log.Warn("callback listener unavailable", "error", err)
		listener = nil
	} else {
		defer listener.Close()
	}

	ws := workspace.New(a.client, a.store, a.log)
	if remote, err := git.Origin("."); err == nil {
		ws.Prefer(remote.Owner, remote.Name)
	}

	m := tui.New(tui.Deps{
		Handler:   oauth.NewHandler(a.client, a.store, a.forge.Kind(), a.log),
		Listener:  listener,
		Workspace: ws,
		Forge:     a.forge,
		Auth:      a.authOpts(),
		Code:      code,
		Log:       a.log,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
