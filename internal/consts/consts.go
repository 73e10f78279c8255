package consts

import "time"

// Host statuses reported by the assisted service.
const (
	HostStatusDiscovering     = "discovering"
	HostStatusKnown           = "known"
	HostStatusInsufficient    = "insufficient"
	HostStatusPendingForInput = "pending-for-input"
	HostStatusDisconnected    = "disconnected"
	HostStatusInstalling      = "installing"
	HostStatusInstalled       = "installed"
	HostStatusAddedToCluster  = "added-to-existing-cluster"
	HostStatusError           = "error"
)

// Cluster statuses reported by the assisted service.
const (
	ClusterStatusInsufficient      = "insufficient"
	ClusterStatusReady             = "ready"
	ClusterStatusPreparing         = "preparing-for-installation"
	ClusterStatusInstalling        = "installing"
	ClusterStatusFinalizing        = "finalizing"
	ClusterStatusInstalled         = "installed"
	ClusterStatusError             = "error"
	ClusterStatusCancelled         = "cancelled"
	ClusterStatusAddingHosts       = "adding-hosts"
	ClusterStatusPendingForInput   = "pending-for-input"
	ClusterStatusInstallingPending = "installing-pending-user-action"
)

// Host roles.
const (
	RoleMaster     = "master"
	RoleWorker     = "worker"
	RoleAutoAssign = "auto-assign"
)

// ISO image types.
const (
	ImageTypeFull    = "full-iso"
	ImageTypeMinimal = "minimal-iso"
)

const (
	NodesRegisteredTimeout     = 20 * time.Minute
	ClusterInstallationTimeout = 60 * time.Minute
	DefaultPollInterval        = 5 * time.Second
)

// Base network asset defaults used before the pool makes them unique.
const (
	NetworkIf          = "tt0"
	SecondaryNetworkIf = "stt0"
	MachineCIDR        = "192.168.127.0/24"
	ProvisioningCIDR   = "192.168.145.0/24"
	MachineCIDR6       = "1001:db9::/120"
	ProvisioningCIDR6  = "3001:db9::/120"
)

const (
	TFNetworkPoolPath = "/tmp/tf_network_pool.json"
	TFVarsJSONName    = "terraform.tfvars.json"
	APIPrefix         = "/api/assisted-install/v2"
)

// Offline tokens are exchanged for access tokens at the Red Hat sso.
const (
	SSOTokenURL = "https://sso.redhat.com/auth/realms/redhat-external/protocol/openid-connect/token"
	SSOClientID = "cloud-services"
)
