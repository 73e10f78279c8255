// Package terraform prepares and runs the libvirt terraform workspace of a
// cluster.
package terraform

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/openshift/assisted-test-framework/internal/config"
	"github.com/openshift/assisted-test-framework/internal/consts"
	"github.com/openshift/assisted-test-framework/internal/inventory"
	"github.com/openshift/assisted-test-framework/internal/netasset"
	"github.com/openshift/assisted-test-framework/internal/nodes"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

const (
	defaultIPv4SubnetLength = 24
	defaultIPv6SubnetLength = 64
)

// ErrNoMatchingHost is returned when no inventory host satisfies the criteria.
var ErrNoMatchingHost = errors.New("no host found matching criteria")

// ConfigHelper points a TerraformConfig at a CI machine of an
// Ansible-compatible inventory. Every host is expected to define:
//   - libvirt_uri, e.g. qemu+ssh://root@10.0.0.181/system?keyfile=/root/.ssh/id_cluster
//   - ipv4_network_prefix, shorter than /24, e.g. 172.16.0.0/20
//   - ipv6_network_prefix, shorter than /64, e.g. fd1a:7c7b:f55e::/48
type ConfigHelper struct {
	inventory       *inventory.Manager
	networkPoolPath string
	networks        NetworkListerFunc
}

// NetworkListerFunc returns the lister of the networks defined behind a
// libvirt uri.
type NetworkListerFunc func(libvirtURI string) (netasset.NetworkLister, error)

func libvirtNetworks(libvirtURI string) (netasset.NetworkLister, error) {
	return nodes.NewLibvirtNetworks(libvirtURI)
}

// HelperOption customises a ConfigHelper.
type HelperOption func(*ConfigHelper)

// WithNetworkPoolPath changes the directory the per-host asset files live in
// to the directory of path.
func WithNetworkPoolPath(path string) HelperOption {
	return func(h *ConfigHelper) {
		if path != "" {
			h.networkPoolPath = path
		}
	}
}

// WithNetworkLister replaces how the networks already defined on the selected
// host are found. A nil fn allocates from the assets file alone.
func WithNetworkLister(fn NetworkListerFunc) HelperOption {
	return func(h *ConfigHelper) {
		h.networks = fn
	}
}

// NewConfigHelper parses inventoryFile.
func NewConfigHelper(inventoryFile string, opts ...HelperOption) (*ConfigHelper, error) {
	inv, err := inventory.Load(inventoryFile)
	if err != nil {
		return nil, fmt.Errorf("load inventory %s: %w", inventoryFile, err)
	}

	h := &ConfigHelper{
		inventory:       inv,
		networkPoolPath: consts.TFNetworkPoolPath,
		networks:        libvirtNetworks,
	}
	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Update selects the host matching criteria, points cfg at it and allocates
// a network asset for it. The returned pool owns the asset and must be
// released when the cluster is gone.
func (h *ConfigHelper) Update(cfg *config.TerraformConfig, criteria map[string]string) (*netasset.Pool, error) {
	host, err := h.searchHost(criteria)
	if err != nil {
		return nil, err
	}

	resources.LogLevel("info", "Selected inventory host %s", host)

	return h.updateFromHostVars(cfg, host)
}

func (h *ConfigHelper) searchHost(criteria map[string]string) (*inventory.Host, error) {
	hosts := h.inventory.Hosts()
	if len(hosts) == 1 {
		return hosts[0], nil
	}

	for _, host := range hosts {
		if host.Matches(criteria) {
			return host, nil
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrNoMatchingHost, criteria)
}

func (h *ConfigHelper) updateFromHostVars(cfg *config.TerraformConfig, host *inventory.Host) (*netasset.Pool, error) {
	libvirtURI, err := requiredVar(host, "libvirt_uri")
	if err != nil {
		return nil, err
	}
	cfg.LibvirtURI = libvirtURI

	base := netasset.Asset{
		LibvirtNetworkIf:          consts.NetworkIf,
		LibvirtSecondaryNetworkIf: consts.SecondaryNetworkIf,
	}

	base.MachineCIDR, base.ProvisioningCIDR, err = splitHostNetwork(host, "ipv4_network_prefix", defaultIPv4SubnetLength)
	if err != nil {
		return nil, err
	}

	base.MachineCIDR6, base.ProvisioningCIDR6, err = splitHostNetwork(host, "ipv6_network_prefix", defaultIPv6SubnetLength)
	if err != nil {
		return nil, err
	}

	assetsFile := filepath.Join(filepath.Dir(h.networkPoolPath), host.Name+"_net_asset.json")
	var opts []netasset.PoolOption
	if h.networks != nil {
		lister, err := h.networks(cfg.LibvirtURI)
		if err != nil {
			return nil, fmt.Errorf("list networks on %s: %w", host, err)
		}
		opts = append(opts, netasset.WithNetworkLister(lister))
	}
	pool := netasset.NewPool(assetsFile, base, cfg.LibvirtURI, opts...)

	asset, err := pool.Get()
	if err != nil {
		return nil, fmt.Errorf("allocate network asset on %s: %w", host, err)
	}
	cfg.NetAsset = &asset

	return pool, nil
}

// splitHostNetwork returns the first subnet as the primary network and the
// middle one as the secondary network.
func splitHostNetwork(host *inventory.Host, key string, subnetLength int) (primary, secondary string, err error) {
	raw, err := requiredVar(host, key)
	if err != nil {
		return "", "", err
	}

	prefix, err := netasset.ParseNetwork(raw)
	if err != nil {
		return "", "", fmt.Errorf("host %s: %s: %w", host, key, err)
	}

	first, middle, err := netasset.FirstAndMiddle(prefix, subnetLength)
	if err != nil {
		return "", "", fmt.Errorf("host %s: %s: %w", host, key, err)
	}

	return first.String(), middle.String(), nil
}

func requiredVar(host *inventory.Host, key string) (string, error) {
	value, ok := host.Var(key)
	if !ok || value == "" {
		return "", fmt.Errorf("host %s does not define %s", host, key)
	}

	return value, nil
}
