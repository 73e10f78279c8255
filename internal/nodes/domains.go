package nodes

import (
	"context"
	"fmt"
	"sort"
	"strings"

	libvirt "github.com/digitalocean/go-libvirt"
	"libvirt.org/go/libvirtxml"

	"github.com/openshift/assisted-test-framework/internal/resources"
)

// LibvirtController lists libvirt domains whose name starts with a prefix.
type LibvirtController struct {
	dial     DialFunc
	prefix   string
	tfFolder string
}

// NewLibvirtController builds a controller for the domains of a cluster.
func NewLibvirtController(dial DialFunc, prefix, tfFolder string) *LibvirtController {
	return &LibvirtController{
		dial:     dial,
		prefix:   prefix,
		tfFolder: tfFolder,
	}
}

// NewLibvirtControllerForURI connects to the hypervisor behind libvirtURI.
func NewLibvirtControllerForURI(libvirtURI, prefix, tfFolder string) (*LibvirtController, error) {
	dial, err := DialURI(libvirtURI)
	if err != nil {
		return nil, err
	}

	return NewLibvirtController(dial, prefix, tfFolder), nil
}

func (c *LibvirtController) TFFolder() string {
	return c.tfFolder
}

// ListNodes returns the matching domains sorted by name.
func (c *LibvirtController) ListNodes(ctx context.Context) ([]Node, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer disconnect(conn)

	flags := libvirt.ConnectListDomainsActive | libvirt.ConnectListDomainsInactive
	all, _, err := conn.ConnectListAllDomains(1, flags)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}

	var domains []libvirt.Domain
	for _, d := range all {
		if strings.HasPrefix(d.Name, c.prefix) {
			domains = append(domains, d)
		}
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i].Name < domains[j].Name })

	nodes := make([]Node, 0, len(domains))
	for _, d := range domains {
		node, err := domainNode(conn, d)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

func domainNode(conn Libvirt, d libvirt.Domain) (Node, error) {
	desc, err := conn.DomainGetXMLDesc(d, 0)
	if err != nil {
		return Node{}, fmt.Errorf("describe domain %s: %w", d.Name, err)
	}

	var dom libvirtxml.Domain
	if err := dom.Unmarshal(desc); err != nil {
		return Node{}, fmt.Errorf("parse domain %s: %w", d.Name, err)
	}

	node := Node{Name: d.Name}
	if dom.Devices != nil {
		for _, iface := range dom.Devices.Interfaces {
			if iface.MAC != nil && iface.MAC.Address != "" {
				node.MACs = append(node.MACs, strings.ToLower(iface.MAC.Address))
			}
		}
	}

	// shut off domains hold no leases.
	ifaces, err := conn.DomainInterfaceAddresses(d, uint32(libvirt.DomainInterfaceAddressesSrcLease), 0)
	if err != nil {
		resources.LogLevel("debug", "No addresses for %s: %v", d.Name, err)
		return node, nil
	}
	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			node.IPs = append(node.IPs, addr.Addr)
		}
	}

	return node, nil
}
