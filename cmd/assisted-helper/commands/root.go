// Package commands defines the assisted-helper cobra commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openshift/assisted-test-framework/internal/config"
)

// Root returns the root command of the CLI.
func Root() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "assisted-helper",
		Short:         "Helpers for assisted installer e2e runs on libvirt hypervisors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if envFile != "" {
				return os.Setenv("ASSISTED_ENV_FILE", envFile)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load instead of config/.env")

	cmd.AddCommand(NetAsset())
	cmd.AddCommand(Hosts())
	cmd.AddCommand(Logs())

	return cmd
}

func loadEnv() (*config.Env, error) {
	env, err := config.AddEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	return env, nil
}
