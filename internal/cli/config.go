package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"commitlens/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	var pathFlag bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the configuration after defaults, the config file, .env and
COMMITLENS_* environment variables have been applied.

Use --path to print the location of the config file instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pathFlag {
				p, err := config.ConfigPath()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return handleShow(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&pathFlag, "path", false, "Print the config file location")

	return cmd
}

// handleShow displays the configuration in YAML format
func handleShow(cmd *cobra.Command, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}
