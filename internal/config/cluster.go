package config

import (
	"github.com/openshift/assisted-test-framework/internal/client"
	"github.com/openshift/assisted-test-framework/internal/netasset"
)

// ClusterConfig holds what is needed to create and install a cluster.
type ClusterConfig struct {
	ClusterID        string
	ClusterName      string
	OpenshiftVersion string
	BaseDNSDomain    string
	PullSecret       string
	SSHPublicKey     string
	ImageType        string
	ISODownloadPath  string
	StaticIPs        bool
	Proxy            *client.Proxy
}

// InfraEnvConfig holds the infra-env registration settings. ClusterID,
// OpenshiftVersion and PullSecret are copied from the owning cluster.
type InfraEnvConfig struct {
	InfraEnvID             string
	EntityName             string
	ClusterID              string
	OpenshiftVersion       string
	PullSecret             string
	SSHPublicKey           string
	ImageType              string
	ISODownloadPath        string
	StaticNetworkConfig    []client.HostStaticNetworkConfig
	IgnitionConfigOverride string
	StaticIPs              bool
	Proxy                  *client.Proxy
}

// IsStaticIP reports whether hosts boot with static network configuration.
func (c *InfraEnvConfig) IsStaticIP() bool {
	return c.StaticIPs || len(c.StaticNetworkConfig) > 0
}

// CreateParams renders the registration body for the service.
func (c *InfraEnvConfig) CreateParams() client.InfraEnvCreateParams {
	name := c.EntityName
	if name == "" {
		name = "infra-env"
	}

	return client.InfraEnvCreateParams{
		Name:                   name,
		PullSecret:             c.PullSecret,
		SSHAuthorizedKey:       c.SSHPublicKey,
		OpenshiftVersion:       c.OpenshiftVersion,
		ClusterID:              c.ClusterID,
		StaticNetworkConfig:    c.StaticNetworkConfig,
		ImageType:              c.ImageType,
		IgnitionConfigOverride: c.IgnitionConfigOverride,
		Proxy:                  c.Proxy,
	}
}

// TerraformConfig describes the libvirt resources terraform creates for a
// cluster.
type TerraformConfig struct {
	ClusterName   string
	BaseDNSDomain string
	TFFolder      string
	LibvirtURI    string
	ImagePath     string
	MastersCount  int
	WorkersCount  int
	MasterMemory  int
	WorkerMemory  int
	MasterVCPU    int
	WorkerVCPU    int
	DiskSizeGiB   int
	NetAsset      *netasset.Asset
}

// NodesCount is the total number of virtual machines.
func (c *TerraformConfig) NodesCount() int {
	return c.MastersCount + c.WorkersCount
}
