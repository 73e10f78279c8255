package nodes

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	libvirt "github.com/digitalocean/go-libvirt"

	"github.com/openshift/assisted-test-framework/internal/resources"
)

const defaultRemoteSocket = "/var/run/libvirt/libvirt-sock"

// Libvirt is the part of the libvirt rpc api used to inspect a hypervisor.
type Libvirt interface {
	ConnectListAllDomains(NeedResults int32, Flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	DomainGetXMLDesc(Dom libvirt.Domain, Flags libvirt.DomainXMLFlags) (string, error)
	DomainInterfaceAddresses(Dom libvirt.Domain, Source uint32, Flags uint32) ([]libvirt.DomainInterface, error)
	ConnectListAllNetworks(NeedResults int32, Flags libvirt.ConnectListAllNetworksFlags) ([]libvirt.Network, uint32, error)
	NetworkGetXMLDesc(Net libvirt.Network, Flags uint32) (string, error)
	Disconnect() error
}

var _ Libvirt = (*libvirt.Libvirt)(nil)

// DialFunc opens a new libvirt connection. Callers disconnect it when done.
type DialFunc func(ctx context.Context) (Libvirt, error)

// DialURI returns a DialFunc for a libvirt connection uri. qemu+ssh uris reach
// the remote daemon socket through the pooled ssh connection to the host, any
// other uri is handed to go-libvirt.
func DialURI(libvirtURI string) (DialFunc, error) {
	if libvirtURI == "" {
		libvirtURI = string(libvirt.QEMUSystem)
	}

	u, err := url.Parse(libvirtURI)
	if err != nil {
		return nil, fmt.Errorf("parse libvirt uri %q: %w", libvirtURI, err)
	}

	driver, transport, remote := strings.Cut(u.Scheme, "+")
	if !remote || u.Host == "" {
		return func(context.Context) (Libvirt, error) {
			resources.LogLevel("debug", "Connecting to %s", u.Redacted())

			conn, err := libvirt.ConnectToURI(u)
			if err != nil {
				return nil, fmt.Errorf("connect to %s: %w", u.Redacted(), err)
			}

			return conn, nil
		}, nil
	}

	if transport != "ssh" {
		return nil, fmt.Errorf("unsupported libvirt transport %q in %s", transport, libvirtURI)
	}

	dialer := newSSHDialer(u)

	path := u.Path
	if path == "" {
		path = "/system"
	}
	connectURI := libvirt.ConnectURI(driver + "://" + path)

	return func(ctx context.Context) (Libvirt, error) {
		resources.LogLevel("debug", "Connecting to %s on %s", connectURI, dialer.target.Host)

		d := dialer
		d.ctx = ctx
		conn := libvirt.NewWithDialer(d)
		if err := conn.ConnectToURI(connectURI); err != nil {
			return nil, fmt.Errorf("connect to %s on %s: %w", connectURI, dialer.target.Host, err)
		}

		return conn, nil
	}, nil
}

// newSSHDialer maps the user, host, port, keyfile and socket of a qemu+ssh
// uri.
func newSSHDialer(u *url.URL) sshDialer {
	user := "root"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}

	socket := u.Query().Get("socket")
	if socket == "" {
		socket = defaultRemoteSocket
	}

	return sshDialer{
		target: resources.SSHTarget{
			User:    user,
			Host:    u.Hostname(),
			Port:    u.Port(),
			KeyPath: u.Query().Get("keyfile"),
		},
		socket: socket,
	}
}

// sshDialer opens the remote libvirt socket over ssh for go-libvirt.
type sshDialer struct {
	ctx    context.Context
	target resources.SSHTarget
	socket string
	retry  *resources.RetryCfg
}

func (d sshDialer) Dial() (net.Conn, error) {
	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	return resources.DialUnixWithRetry(ctx, d.target, d.socket, d.retry)
}

func disconnect(conn Libvirt) {
	if err := conn.Disconnect(); err != nil {
		resources.LogLevel("debug", "libvirt disconnect: %v", err)
	}
}
