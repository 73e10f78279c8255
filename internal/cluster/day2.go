package cluster

import (
	"context"
	"time"

	"github.com/openshift/assisted-test-framework/internal/config"
	"github.com/openshift/assisted-test-framework/internal/consts"
	"github.com/openshift/assisted-test-framework/internal/nodes"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

// Day2Cluster adds workers to an installed day-1 cluster.
type Day2Cluster struct {
	*BaseCluster

	day2           *config.Day2ClusterConfig
	installTimeout time.Duration
}

// NewDay2Cluster builds a day-2 cluster. An infra-env id in cfg is reused
// instead of registering a new infra-env.
func NewDay2Cluster(
	api APIClient,
	cfg *config.Day2ClusterConfig,
	infraEnvConfig *config.InfraEnvConfig,
	nodeSet *nodes.Nodes,
	opts ...Option,
) *Day2Cluster {
	if cfg.InfraEnvID != "" {
		infraEnvConfig.InfraEnvID = cfg.InfraEnvID
	}

	return &Day2Cluster{
		BaseCluster:    NewBaseCluster(api, &cfg.ClusterConfig, infraEnvConfig, nodeSet, opts...),
		day2:           cfg,
		installTimeout: consts.ClusterInstallationTimeout,
	}
}

// Day2Config returns the day-2 configuration.
func (c *Day2Cluster) Day2Config() *config.Day2ClusterConfig {
	return c.day2
}

// StartInstallAndWaitForInstalled installs every known host and waits for the
// day-2 workers to join the day-1 cluster.
func (c *Day2Cluster) StartInstallAndWaitForInstalled(ctx context.Context) error {
	if err := c.day2.Validate(); err != nil {
		return err
	}

	infraEnv, err := c.GenerateInfraEnv(ctx, InfraEnvOptions{})
	if err != nil {
		return err
	}

	hosts, err := c.api.GetClusterHosts(ctx, c.ID())
	if err != nil {
		return err
	}

	for _, host := range ToClusterHosts(hosts) {
		if host.Status() != consts.HostStatusKnown {
			continue
		}
		if err := infraEnv.InstallHost(ctx, host.ID()); err != nil {
			return err
		}
	}

	resources.LogLevel("info", "Waiting for %d day-2 workers to join cluster %s",
		c.day2.Day2WorkersCount, c.day2.Day1ClusterName)

	return WaitTillAllHostsAreInStatus(ctx, c.api, c.ID(), c.day2.Day2WorkersCount,
		[]string{consts.HostStatusAddedToCluster},
		WaitOptions{
			Timeout:           c.installTimeout,
			Interval:          c.pollInterval,
			FallOnErrorStatus: true,
		})
}
