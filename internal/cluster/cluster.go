package cluster

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/openshift/assisted-test-framework/internal/config"
	"github.com/openshift/assisted-test-framework/internal/consts"
	"github.com/openshift/assisted-test-framework/internal/nodes"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

// Cluster is a day-1 cluster installed as a whole.
type Cluster struct {
	*BaseCluster

	installTimeout time.Duration
}

// NewCluster builds a day-1 cluster.
func NewCluster(
	api APIClient,
	cfg *config.ClusterConfig,
	infraEnvConfig *config.InfraEnvConfig,
	nodeSet *nodes.Nodes,
	opts ...Option,
) *Cluster {
	return &Cluster{
		BaseCluster:    NewBaseCluster(api, cfg, infraEnvConfig, nodeSet, opts...),
		installTimeout: consts.ClusterInstallationTimeout,
	}
}

// StartInstallAndWaitForInstalled starts the installation and waits for the
// cluster to be installed.
func (c *Cluster) StartInstallAndWaitForInstalled(ctx context.Context) error {
	resources.LogLevel("info", "Starting installation of cluster %s", c.ID())

	if _, err := c.api.InstallCluster(ctx, c.ID()); err != nil {
		return fmt.Errorf("start install of cluster %s: %w", c.ID(), err)
	}

	err := waitForClusterStatus(ctx, c.api, c.ID(),
		[]string{consts.ClusterStatusInstalled},
		[]string{consts.ClusterStatusError, consts.ClusterStatusCancelled},
		c.installTimeout, c.pollInterval,
	)
	if err != nil {
		return err
	}

	resources.LogLevel("info", "Cluster %s installed", c.ID())

	return nil
}

// CollectLogs downloads the log bundle of the cluster into dir.
func (c *Cluster) CollectLogs(ctx context.Context, dir string) (string, error) {
	name := c.config.ClusterName
	if name == "" {
		name = "cluster"
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s_logs.tar", name, c.ID()))
	resources.LogLevel("info", "Collecting logs of cluster %s to %s", c.ID(), path)

	return c.api.DownloadClusterLogs(ctx, c.ID(), path)
}

var (
	_ Installer          = (*Cluster)(nil)
	_ Installer          = (*Day2Cluster)(nil)
	_ config.Day1Cluster = (*Cluster)(nil)
)
