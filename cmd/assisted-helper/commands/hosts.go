package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openshift/assisted-test-framework/internal/cluster"
)

// Hosts groups the discovered host commands.
func Hosts() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Wait for and configure discovered hosts",
	}

	cmd.AddCommand(hostsWait())
	cmd.AddCommand(hostsSetNames())

	return cmd
}

func hostsWait() *cobra.Command {
	var (
		count             int
		allowInsufficient bool
	)

	c := &cobra.Command{
		Use:   "wait",
		Short: "Wait until the cluster hosts are discovered",
		RunE: func(c *cobra.Command, _ []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}

			cl, err := cluster.NewClusterFromEnv(env)
			if err != nil {
				return err
			}

			return cl.WaitUntilHostsAreDiscovered(c.Context(), allowInsufficient, count)
		},
	}

	c.Flags().IntVar(&count, "count", 0, "number of hosts to wait for, defaults to the node count")
	c.Flags().BoolVar(&allowInsufficient, "allow-insufficient", false, "count insufficient hosts as discovered")

	return c
}

func hostsSetNames() *cobra.Command {
	return &cobra.Command{
		Use:   "set-names",
		Short: "Name discovered hosts after their libvirt domains and assign roles",
		RunE: func(c *cobra.Command, _ []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}

			if env.InfraEnvID == "" {
				return fmt.Errorf("INFRA_ENV_ID is not set")
			}

			cl, err := cluster.NewClusterFromEnv(env)
			if err != nil {
				return err
			}

			if _, err := cl.GenerateInfraEnv(c.Context(), cluster.InfraEnvOptions{}); err != nil {
				return err
			}

			return cl.SetHostnamesAndRoles(c.Context())
		},
	}
}
