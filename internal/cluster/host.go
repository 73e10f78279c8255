package cluster

import (
	"encoding/json"
	"strings"

	"github.com/openshift/assisted-test-framework/internal/client"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

type hostInventory struct {
	Interfaces []struct {
		Name          string   `json:"name"`
		MacAddress    string   `json:"mac_address"`
		IPv4Addresses []string `json:"ipv4_addresses"`
		IPv6Addresses []string `json:"ipv6_addresses"`
	} `json:"interfaces"`
}

// ClusterHost is a discovered host with helpers over its inventory.
type ClusterHost struct {
	host      client.Host
	inventory hostInventory
}

// NewClusterHost wraps a host record. An unparsable inventory is treated as
// empty since hosts report it only after discovery.
func NewClusterHost(host client.Host) ClusterHost {
	ch := ClusterHost{host: host}
	if host.Inventory != "" {
		if err := json.Unmarshal([]byte(host.Inventory), &ch.inventory); err != nil {
			resources.LogLevel("debug", "ignoring inventory of host %s: %v", host.ID, err)
		}
	}

	return ch
}

// ToClusterHosts wraps raw host records.
func ToClusterHosts(hosts []client.Host) []ClusterHost {
	out := make([]ClusterHost, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, NewClusterHost(h))
	}

	return out
}

func (h ClusterHost) ID() string {
	return h.host.ID
}

func (h ClusterHost) Status() string {
	return h.host.Status
}

// HasHostname reports whether a hostname was already requested for the host.
func (h ClusterHost) HasHostname() bool {
	return h.host.RequestedHostname != ""
}

// MACs returns the lower-cased MAC addresses of the host interfaces.
func (h ClusterHost) MACs() []string {
	macs := make([]string, 0, len(h.inventory.Interfaces))
	for _, iface := range h.inventory.Interfaces {
		if iface.MacAddress != "" {
			macs = append(macs, strings.ToLower(iface.MacAddress))
		}
	}

	return macs
}

// IPs returns the interface addresses without their prefix length.
func (h ClusterHost) IPs() []string {
	var ips []string
	for _, iface := range h.inventory.Interfaces {
		for _, addr := range append(append([]string(nil), iface.IPv4Addresses...), iface.IPv6Addresses...) {
			ip, _, _ := strings.Cut(addr, "/")
			ips = append(ips, ip)
		}
	}

	return ips
}

func (h ClusterHost) hasMAC(mac string) bool {
	mac = strings.ToLower(mac)
	for _, m := range h.MACs() {
		if m == mac {
			return true
		}
	}

	return false
}
