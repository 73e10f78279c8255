package cluster

import (
	"errors"

	"github.com/openshift/assisted-test-framework/internal/client"
	"github.com/openshift/assisted-test-framework/internal/config"
	"github.com/openshift/assisted-test-framework/internal/nodes"
)

// NewClusterFromEnv builds the day-1 cluster described by env, backed by the
// libvirt domains of the cluster on env's hypervisor.
func NewClusterFromEnv(env *config.Env, opts ...Option) (*Cluster, error) {
	if env.ServiceURL == "" {
		return nil, errors.New("REMOTE_SERVICE_URL is not set")
	}
	if env.ClusterID == "" {
		return nil, errors.New("CLUSTER_ID is not set")
	}

	api, err := client.NewInventoryClient(env.ServiceURL, client.WithOfflineToken(env.OfflineToken, env.SSOURL))
	if err != nil {
		return nil, err
	}

	nodeSet, err := NodesForTerraform(env.TerraformConfig())
	if err != nil {
		return nil, err
	}

	return NewCluster(api, env.ClusterConfig(), env.InfraEnvConfig(), nodeSet, opts...), nil
}

// NodesForTerraform returns the node set of the domains terraform creates for
// cfg, on the hypervisor cfg points at.
func NodesForTerraform(cfg *config.TerraformConfig) (*nodes.Nodes, error) {
	controller, err := nodes.NewLibvirtControllerForURI(cfg.LibvirtURI, cfg.ClusterName, cfg.TFFolder)
	if err != nil {
		return nil, err
	}

	return nodes.New(controller, cfg.NodesCount()), nil
}
