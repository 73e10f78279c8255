package nodes

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	libvirt "github.com/digitalocean/go-libvirt"
	"libvirt.org/go/libvirtxml"

	"github.com/openshift/assisted-test-framework/internal/netasset"
)

// LibvirtNetworks reports the networks defined on a hypervisor, active or not.
type LibvirtNetworks struct {
	dial DialFunc
}

var _ netasset.NetworkLister = (*LibvirtNetworks)(nil)

// NewLibvirtNetworks builds a lister for the hypervisor behind libvirtURI.
func NewLibvirtNetworks(libvirtURI string) (*LibvirtNetworks, error) {
	dial, err := DialURI(libvirtURI)
	if err != nil {
		return nil, err
	}

	return &LibvirtNetworks{dial: dial}, nil
}

// DefinedNetworks returns the subnets and bridge names of every network.
func (n *LibvirtNetworks) DefinedNetworks() (netasset.DefinedNetworks, error) {
	var defined netasset.DefinedNetworks

	conn, err := n.dial(context.Background())
	if err != nil {
		return defined, err
	}
	defer disconnect(conn)

	flags := libvirt.ConnectListNetworksActive | libvirt.ConnectListNetworksInactive
	networks, _, err := conn.ConnectListAllNetworks(1, flags)
	if err != nil {
		return defined, fmt.Errorf("list networks: %w", err)
	}

	for _, nw := range networks {
		desc, err := conn.NetworkGetXMLDesc(nw, 0)
		if err != nil {
			return defined, fmt.Errorf("describe network %s: %w", nw.Name, err)
		}

		var xmlNet libvirtxml.Network
		if err := xmlNet.Unmarshal(desc); err != nil {
			return defined, fmt.Errorf("parse network %s: %w", nw.Name, err)
		}

		if xmlNet.Bridge != nil && xmlNet.Bridge.Name != "" {
			defined.Bridges = append(defined.Bridges, xmlNet.Bridge.Name)
		}
		for _, ip := range xmlNet.IPs {
			if prefix, ok := networkPrefix(ip); ok {
				defined.CIDRs = append(defined.CIDRs, prefix.String())
			}
		}
	}

	return defined, nil
}

// networkPrefix returns the subnet of a network address given either as a
// prefix length or as a dotted netmask.
func networkPrefix(ip libvirtxml.NetworkIP) (netip.Prefix, bool) {
	addr, err := netip.ParseAddr(ip.Address)
	if err != nil {
		return netip.Prefix{}, false
	}

	bits := int(ip.Prefix)
	if bits == 0 && ip.Netmask != "" {
		mask := net.ParseIP(ip.Netmask).To4()
		if mask == nil {
			return netip.Prefix{}, false
		}
		bits, _ = net.IPMask(mask).Size()
	}
	if bits == 0 {
		return netip.Prefix{}, false
	}

	prefix, err := addr.Prefix(bits)
	if err != nil {
		return netip.Prefix{}, false
	}

	return prefix, true
}
