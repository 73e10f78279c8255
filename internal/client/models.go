package client

import "time"

// Cluster is the service representation of a cluster.
type Cluster struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Kind             string `json:"kind,omitempty"`
	OpenshiftVersion string `json:"openshift_version,omitempty"`
	BaseDNSDomain    string `json:"base_dns_domain,omitempty"`
	APIVipDNSName    string `json:"api_vip_dnsname,omitempty"`
	Status           string `json:"status"`
	StatusInfo       string `json:"status_info,omitempty"`
	PullSecretSet    bool   `json:"pull_secret_set,omitempty"`
	Hosts            []Host `json:"hosts,omitempty"`
}

// Host is a discovered host as reported by the service.
type Host struct {
	ID                string `json:"id"`
	InfraEnvID        string `json:"infra_env_id,omitempty"`
	ClusterID         string `json:"cluster_id,omitempty"`
	Kind              string `json:"kind,omitempty"`
	Status            string `json:"status"`
	StatusInfo        string `json:"status_info,omitempty"`
	Role              string `json:"role,omitempty"`
	RequestedHostname string `json:"requested_hostname,omitempty"`
	Inventory         string `json:"inventory,omitempty"`
}

// InfraEnv is the discovery media record hosts boot from.
type InfraEnv struct {
	ID                     string                    `json:"id"`
	Name                   string                    `json:"name"`
	ClusterID              string                    `json:"cluster_id,omitempty"`
	OpenshiftVersion       string                    `json:"openshift_version,omitempty"`
	Type                   string                    `json:"type,omitempty"`
	DownloadURL            string                    `json:"download_url,omitempty"`
	SSHAuthorizedKey       string                    `json:"ssh_authorized_key,omitempty"`
	StaticNetworkConfig    []HostStaticNetworkConfig `json:"static_network_config,omitempty"`
	IgnitionConfigOverride string                    `json:"ignition_config_override,omitempty"`
	Proxy                  *Proxy                    `json:"proxy,omitempty"`
}

// Proxy holds proxy settings for discovery and install.
type Proxy struct {
	HTTPProxy  string `json:"http_proxy,omitempty"`
	HTTPSProxy string `json:"https_proxy,omitempty"`
	NoProxy    string `json:"no_proxy,omitempty"`
}

// HostStaticNetworkConfig is the nmstate network YAML of one host plus the
// mac to interface name mapping it refers to.
type HostStaticNetworkConfig struct {
	NetworkYAML     string            `json:"network_yaml"`
	MacInterfaceMap []MacInterfaceMap `json:"mac_interface_map,omitempty"`
}

type MacInterfaceMap struct {
	MacAddress     string `json:"mac_address"`
	LogicalNicName string `json:"logical_nic_name"`
}

// InfraEnvCreateParams is the body of an infra-env registration.
type InfraEnvCreateParams struct {
	Name                   string                    `json:"name"`
	PullSecret             string                    `json:"pull_secret"`
	SSHAuthorizedKey       string                    `json:"ssh_authorized_key,omitempty"`
	OpenshiftVersion       string                    `json:"openshift_version,omitempty"`
	ClusterID              string                    `json:"cluster_id,omitempty"`
	StaticNetworkConfig    []HostStaticNetworkConfig `json:"static_network_config,omitempty"`
	ImageType              string                    `json:"image_type,omitempty"`
	IgnitionConfigOverride string                    `json:"ignition_config_override,omitempty"`
	Proxy                  *Proxy                    `json:"proxy,omitempty"`
}

// ClusterUpdateParams is the body of a cluster PATCH. Only set fields are sent.
type ClusterUpdateParams struct {
	PullSecret    *string `json:"pull_secret,omitempty"`
	Name          *string `json:"name,omitempty"`
	BaseDNSDomain *string `json:"base_dns_domain,omitempty"`
}

// HostUpdateParams is the body of a host PATCH. Only set fields are sent.
type HostUpdateParams struct {
	HostRole *string `json:"host_role,omitempty"`
	HostName *string `json:"host_name,omitempty"`
}

// PresignedURL is returned by the image-url endpoint.
type PresignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}
