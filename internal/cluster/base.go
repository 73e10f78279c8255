// Package cluster drives clusters and their infra-envs through the assisted
// service.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/openshift/assisted-test-framework/internal/client"
	"github.com/openshift/assisted-test-framework/internal/config"
	"github.com/openshift/assisted-test-framework/internal/consts"
	"github.com/openshift/assisted-test-framework/internal/nodes"
	"github.com/openshift/assisted-test-framework/internal/resources"
	"github.com/openshift/assisted-test-framework/internal/terraform"
)

// APIClient is the part of the assisted service API clusters use.
type APIClient interface {
	ClusterGet(ctx context.Context, clusterID string) (*client.Cluster, error)
	GetClusterHosts(ctx context.Context, clusterID string) ([]client.Host, error)
	UpdateCluster(ctx context.Context, clusterID string, params client.ClusterUpdateParams) (*client.Cluster, error)
	InstallCluster(ctx context.Context, clusterID string) (*client.Cluster, error)
	DownloadClusterLogs(ctx context.Context, clusterID, path string) (string, error)
	CreateInfraEnv(ctx context.Context, params client.InfraEnvCreateParams) (*client.InfraEnv, error)
	GetInfraEnv(ctx context.Context, infraEnvID string) (*client.InfraEnv, error)
	DownloadInfraEnvImage(ctx context.Context, infraEnvID, path string) (string, error)
	UpdateHost(ctx context.Context, infraEnvID, hostID string, params client.HostUpdateParams) (*client.Host, error)
	InstallHost(ctx context.Context, infraEnvID, hostID string) (*client.Host, error)
}

// Installer installs a cluster and blocks until it is installed.
type Installer interface {
	StartInstallAndWaitForInstalled(ctx context.Context) error
}

// InfraEnvOptions overrides the cluster defaults when creating an infra-env.
type InfraEnvOptions struct {
	ISODownloadPath        string
	StaticNetworkConfig    []client.HostStaticNetworkConfig
	ImageType              string
	SSHKey                 string
	IgnitionConfigOverride string
	Proxy                  *client.Proxy
}

// Option customises a BaseCluster.
type Option func(*BaseCluster)

// WithPollInterval changes how often waits poll the service.
func WithPollInterval(d time.Duration) Option {
	return func(c *BaseCluster) {
		c.pollInterval = d
	}
}

// BaseCluster holds what day-1 and day-2 clusters share: the cluster and
// infra-env configuration, the nodes backing the cluster and the infra-env
// once generated.
type BaseCluster struct {
	api            APIClient
	config         *config.ClusterConfig
	infraEnvConfig *config.InfraEnvConfig
	nodes          *nodes.Nodes
	infraEnv       *InfraEnv
	pollInterval   time.Duration
}

// NewBaseCluster binds infraEnvConfig to the cluster: its cluster id,
// openshift version and pull secret are taken from cfg.
func NewBaseCluster(
	api APIClient,
	cfg *config.ClusterConfig,
	infraEnvConfig *config.InfraEnvConfig,
	nodeSet *nodes.Nodes,
	opts ...Option,
) *BaseCluster {
	c := &BaseCluster{
		api:            api,
		config:         cfg,
		infraEnvConfig: infraEnvConfig,
		nodes:          nodeSet,
		pollInterval:   consts.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}

	infraEnvConfig.ClusterID = cfg.ClusterID
	infraEnvConfig.OpenshiftVersion = cfg.OpenshiftVersion
	infraEnvConfig.PullSecret = cfg.PullSecret

	return c
}

func (c *BaseCluster) ID() string {
	return c.config.ClusterID
}

// Config returns the cluster configuration.
func (c *BaseCluster) Config() *config.ClusterConfig {
	return c.config
}

// InfraEnvConfig returns the infra-env configuration.
func (c *BaseCluster) InfraEnvConfig() *config.InfraEnvConfig {
	return c.infraEnvConfig
}

// Nodes returns the node set, nil when the cluster has none.
func (c *BaseCluster) Nodes() *nodes.Nodes {
	return c.nodes
}

// SetNodes replaces the nodes backing the cluster, as needed once its
// virtual machines are provisioned on another hypervisor.
func (c *BaseCluster) SetNodes(n *nodes.Nodes) {
	c.nodes = n
}

// InfraEnv returns the generated infra-env, nil before generation.
func (c *BaseCluster) InfraEnv() *InfraEnv {
	return c.infraEnv
}

// GetDetails returns the service record of the cluster.
func (c *BaseCluster) GetDetails(ctx context.Context) (*client.Cluster, error) {
	return c.api.ClusterGet(ctx, c.ID())
}

// DownloadImage downloads the discovery ISO, generating the infra-env first
// when none exists.
func (c *BaseCluster) DownloadImage(
	ctx context.Context,
	isoDownloadPath string,
	staticNetworkConfig []client.HostStaticNetworkConfig,
) (string, error) {
	if isoDownloadPath == "" {
		isoDownloadPath = c.config.ISODownloadPath
	}

	if c.infraEnv == nil {
		resources.LogLevel("warn", "No infra_env found. Generating infra_env and downloading ISO")
		return c.GenerateAndDownloadInfraEnv(ctx, InfraEnvOptions{
			ISODownloadPath:     isoDownloadPath,
			StaticNetworkConfig: staticNetworkConfig,
			ImageType:           c.config.ImageType,
		})
	}

	return c.infraEnv.DownloadImage(ctx, isoDownloadPath)
}

// GenerateAndDownloadInfraEnv generates the infra-env and downloads its ISO.
func (c *BaseCluster) GenerateAndDownloadInfraEnv(ctx context.Context, opts InfraEnvOptions) (string, error) {
	if _, err := c.GenerateInfraEnv(ctx, opts); err != nil {
		return "", err
	}

	path := opts.ISODownloadPath
	if path == "" {
		path = c.config.ISODownloadPath
	}

	return c.DownloadInfraEnvImage(ctx, path)
}

// GenerateInfraEnv creates the infra-env once and returns the same one on
// later calls.
func (c *BaseCluster) GenerateInfraEnv(ctx context.Context, opts InfraEnvOptions) (*InfraEnv, error) {
	if c.infraEnv != nil {
		return c.infraEnv, nil
	}

	infraEnv, err := c.CreateInfraEnv(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.infraEnv = infraEnv

	return c.infraEnv, nil
}

// DownloadInfraEnvImage downloads the ISO of the generated infra-env.
func (c *BaseCluster) DownloadInfraEnvImage(ctx context.Context, isoDownloadPath string) (string, error) {
	if c.infraEnv == nil {
		return "", errors.New("infra-env was not generated")
	}

	if isoDownloadPath == "" {
		isoDownloadPath = c.config.ISODownloadPath
	}
	resources.LogLevel("debug", "Downloading ISO to %s", isoDownloadPath)

	return c.infraEnv.DownloadImage(ctx, isoDownloadPath)
}

// CreateInfraEnv fills the infra-env configuration from opts, falling back to
// the cluster configuration, and registers it. When the configuration already
// names an infra-env that one is reused.
func (c *BaseCluster) CreateInfraEnv(ctx context.Context, opts InfraEnvOptions) (*InfraEnv, error) {
	cfg := c.infraEnvConfig

	cfg.SSHPublicKey = firstNonEmpty(opts.SSHKey, c.config.SSHPublicKey)
	cfg.ImageType = firstNonEmpty(opts.ImageType, c.config.ImageType)
	cfg.StaticNetworkConfig = opts.StaticNetworkConfig
	cfg.IgnitionConfigOverride = opts.IgnitionConfigOverride
	cfg.Proxy = opts.Proxy
	if cfg.Proxy == nil {
		cfg.Proxy = c.config.Proxy
	}
	if opts.ISODownloadPath != "" {
		cfg.ISODownloadPath = opts.ISODownloadPath
	}

	if cfg.InfraEnvID != "" {
		return BindInfraEnv(ctx, c.api, cfg)
	}

	return RegisterInfraEnv(ctx, c.api, cfg)
}

// SetPullSecret stores the pull secret and sends it to the service for
// clusterID, or for this cluster when clusterID is empty.
func (c *BaseCluster) SetPullSecret(ctx context.Context, pullSecret, clusterID string) error {
	if clusterID == "" {
		clusterID = c.ID()
	}

	resources.LogLevel("info", "Setting pull secret for cluster: %s", clusterID)
	c.config.PullSecret = pullSecret

	if _, err := c.api.UpdateCluster(ctx, clusterID, client.ClusterUpdateParams{PullSecret: &pullSecret}); err != nil {
		return fmt.Errorf("set pull secret: %w", err)
	}

	return nil
}

// GetISODownloadPath returns path or the infra-env download path.
func (c *BaseCluster) GetISODownloadPath(path string) string {
	return firstNonEmpty(path, c.infraEnvConfig.ISODownloadPath)
}

// SetHostnamesAndRoles names every discovered host after the node it runs on.
// A single node cluster leaves the role to the service, otherwise nodes with
// "master" in their name become masters and the rest workers.
func (c *BaseCluster) SetHostnamesAndRoles(ctx context.Context) error {
	if c.nodes == nil {
		return errors.New("cluster has no nodes")
	}
	if c.infraEnv == nil {
		return errors.New("infra-env was not generated")
	}

	rawHosts, err := c.api.GetClusterHosts(ctx, c.ID())
	if err != nil {
		return fmt.Errorf("get cluster hosts: %w", err)
	}

	nodeList, err := c.nodes.GetNodes(ctx, true)
	if err != nil {
		return fmt.Errorf("get nodes: %w", err)
	}

	for _, host := range ToClusterHosts(rawHosts) {
		if host.HasHostname() {
			continue
		}

		name, err := c.FindMatchingNodeName(host, nodeList)
		if err != nil {
			return err
		}
		if name == "" {
			return fmt.Errorf("failed to find matching node for host with mac address %v nodes: %s",
				host.MACs(), describeNodes(nodeList))
		}

		role := ""
		if c.nodes.NodesCount() != 1 {
			role = consts.RoleWorker
			if strings.Contains(name, consts.RoleMaster) {
				role = consts.RoleMaster
			}
		}

		if err := c.infraEnv.UpdateHost(ctx, host.ID(), role, name); err != nil {
			return err
		}
	}

	return nil
}

// FindMatchingNodeName returns the node whose MAC the host reports. For
// static ip infra-envs it falls back to the name to MAC mapping of the
// terraform folder. An empty name means no match.
func (c *BaseCluster) FindMatchingNodeName(host ClusterHost, nodeList []nodes.Node) (string, error) {
	for _, node := range nodeList {
		for _, mac := range node.MACs {
			if host.hasMAC(mac) {
				return node.Name, nil
			}
		}
	}

	if !c.infraEnvConfig.IsStaticIP() || c.nodes == nil {
		return "", nil
	}

	mapping, err := terraform.NameToMACs(c.nodes.Controller().TFFolder())
	if err != nil {
		return "", fmt.Errorf("read name to mac mapping: %w", err)
	}

	for _, mac := range host.MACs() {
		for name, macs := range mapping {
			if slices.Contains(macs, mac) {
				return name, nil
			}
		}
	}

	return "", nil
}

// WaitUntilHostsAreDiscovered waits for nodesCount hosts, or the node count
// when zero, to be ready for installation.
func (c *BaseCluster) WaitUntilHostsAreDiscovered(ctx context.Context, allowInsufficient bool, nodesCount int) error {
	statuses := []string{consts.HostStatusPendingForInput, consts.HostStatusKnown}
	if allowInsufficient {
		statuses = append(statuses, consts.HostStatusInsufficient)
	}

	if nodesCount == 0 {
		if c.nodes == nil {
			return errors.New("nodes count is not set and cluster has no nodes")
		}
		nodesCount = c.nodes.NodesCount()
	}

	return WaitTillAllHostsAreInStatus(ctx, c.api, c.ID(), nodesCount, statuses, WaitOptions{
		Timeout:           consts.NodesRegisteredTimeout,
		Interval:          c.pollInterval,
		FallOnErrorStatus: true,
	})
}

func describeNodes(nodeList []nodes.Node) string {
	parts := make([]string, 0, len(nodeList))
	for _, n := range nodeList {
		parts = append(parts, fmt.Sprintf("(%s, %v, %v)", n.Name, n.IPs, n.MACs))
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

var _ APIClient = (*client.InventoryClient)(nil)
