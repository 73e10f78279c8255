// Package config loads the framework settings from config/.env and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/viper"

	"github.com/openshift/assisted-test-framework/internal/client"
	"github.com/openshift/assisted-test-framework/internal/consts"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

var (
	envConfig *Env
	envErr    error
	once      sync.Once

	supportedImageTypes = []string{consts.ImageTypeFull, consts.ImageTypeMinimal}
)

// Env is the environment configuration of a test run.
type Env struct {
	ServiceURL       string
	OfflineToken     string
	SSOURL           string
	PullSecret       string
	SSHPublicKey     string
	OpenshiftVersion string
	BaseDNSDomain    string
	ClusterID        string
	ClusterName      string
	InfraEnvID       string
	ImageType        string
	ISODownloadPath  string
	StaticIPs        bool
	HTTPProxy        string
	HTTPSProxy       string
	NoProxy          string

	InventoryFile     string
	HostCriteria      map[string]string
	TFNetworkPoolPath string
	TFFolder          string
	LibvirtURI        string
	MastersCount      int
	WorkersCount      int

	ArtifactsBucket string
	AWSRegion       string
}

// AddEnv loads the environment once and returns it on every call.
func AddEnv() (*Env, error) {
	once.Do(func() {
		envConfig, envErr = loadEnv(defaultEnvFile())
		if envErr != nil {
			resources.LogLevel("error", "error adding environment variables: %v", envErr)
		}
	})

	return envConfig, envErr
}

func defaultEnvFile() string {
	return filepath.Join(resources.BasePath(), "config", ".env")
}

func newViper(envFile string) *viper.Viper {
	v := viper.New()

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("iso_image_type", consts.ImageTypeMinimal)
	v.SetDefault("iso_download_path", filepath.Join("/tmp", "images", "discovery.iso"))
	v.SetDefault("tf_network_pool_path", consts.TFNetworkPoolPath)
	v.SetDefault("libvirt_uri", "qemu:///system")
	v.SetDefault("base_dns_domain", "redhat.com")
	v.SetDefault("cluster_name", "test-infra-cluster")
	v.SetDefault("num_masters", 3)
	v.SetDefault("num_workers", 0)
	v.SetDefault("aws_region", "us-east-2")
	v.SetDefault("sso_url", consts.SSOTokenURL)

	return v
}

// loadEnv reads envFile when it exists. Process environment wins over the file.
func loadEnv(envFile string) (*Env, error) {
	if override := lookupEnvFile(); override != "" {
		envFile = override
	}

	v := newViper(envFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
		resources.LogLevel("debug", "No env file at %s, using process environment", envFile)
	}

	criteria, err := ParseCriteria(v.GetString("host_criteria"))
	if err != nil {
		return nil, err
	}

	env := &Env{
		ServiceURL:        v.GetString("remote_service_url"),
		OfflineToken:      v.GetString("offline_token"),
		SSOURL:            v.GetString("sso_url"),
		PullSecret:        v.GetString("pull_secret"),
		SSHPublicKey:      v.GetString("ssh_pub_key"),
		OpenshiftVersion:  v.GetString("openshift_version"),
		BaseDNSDomain:     v.GetString("base_dns_domain"),
		ClusterID:         v.GetString("cluster_id"),
		ClusterName:       v.GetString("cluster_name"),
		InfraEnvID:        v.GetString("infra_env_id"),
		ImageType:         v.GetString("iso_image_type"),
		ISODownloadPath:   v.GetString("iso_download_path"),
		StaticIPs:         v.GetBool("static_ips"),
		HTTPProxy:         v.GetString("http_proxy_url"),
		HTTPSProxy:        v.GetString("https_proxy_url"),
		NoProxy:           v.GetString("no_proxy_values"),
		InventoryFile:     v.GetString("inventory_file"),
		HostCriteria:      criteria,
		TFNetworkPoolPath: v.GetString("tf_network_pool_path"),
		TFFolder:          v.GetString("tf_folder"),
		LibvirtURI:        v.GetString("libvirt_uri"),
		MastersCount:      v.GetInt("num_masters"),
		WorkersCount:      v.GetInt("num_workers"),
		ArtifactsBucket:   v.GetString("artifacts_bucket"),
		AWSRegion:         v.GetString("aws_region"),
	}

	normalize(env)

	if err := validate(env); err != nil {
		return nil, err
	}

	return env, nil
}

func lookupEnvFile() string {
	v := viper.New()
	_ = v.BindEnv("assisted_env_file", "ASSISTED_ENV_FILE")

	return v.GetString("assisted_env_file")
}

func normalize(env *Env) {
	env.ServiceURL = strings.TrimSuffix(strings.TrimSpace(env.ServiceURL), "/")
	env.ImageType = strings.ToLower(strings.TrimSpace(env.ImageType))
	env.OpenshiftVersion = strings.TrimSpace(env.OpenshiftVersion)
	env.ClusterName = strings.TrimSpace(env.ClusterName)
}

func validate(env *Env) error {
	if !slices.Contains(supportedImageTypes, env.ImageType) {
		return fmt.Errorf("unknown iso image type: %s; supported types are: %v", env.ImageType, supportedImageTypes)
	}

	if env.OpenshiftVersion != "" {
		if _, err := semver.NewVersion(env.OpenshiftVersion); err != nil {
			return fmt.Errorf("invalid openshift version %q: %w", env.OpenshiftVersion, err)
		}
	}

	if env.MastersCount < 1 {
		return fmt.Errorf("at least one master is required, got %d", env.MastersCount)
	}

	if env.WorkersCount < 0 {
		return fmt.Errorf("workers count must not be negative, got %d", env.WorkersCount)
	}

	if env.ClusterName == "" {
		return errors.New("cluster name is not set")
	}

	return nil
}

// ParseCriteria parses "key=value,key=value" host selection criteria.
func ParseCriteria(s string) (map[string]string, error) {
	criteria := map[string]string{}

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid host criteria %q, expected key=value", pair)
		}
		criteria[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return criteria, nil
}

// Proxy returns the configured proxy or nil when none is set.
func (e *Env) Proxy() *client.Proxy {
	if e.HTTPProxy == "" && e.HTTPSProxy == "" {
		return nil
	}

	return &client.Proxy{HTTPProxy: e.HTTPProxy, HTTPSProxy: e.HTTPSProxy, NoProxy: e.NoProxy}
}

// ClusterConfig builds the cluster configuration.
func (e *Env) ClusterConfig() *ClusterConfig {
	return &ClusterConfig{
		ClusterID:        e.ClusterID,
		ClusterName:      e.ClusterName,
		OpenshiftVersion: e.OpenshiftVersion,
		BaseDNSDomain:    e.BaseDNSDomain,
		PullSecret:       e.PullSecret,
		SSHPublicKey:     e.SSHPublicKey,
		ImageType:        e.ImageType,
		ISODownloadPath:  e.ISODownloadPath,
		StaticIPs:        e.StaticIPs,
		Proxy:            e.Proxy(),
	}
}

// InfraEnvConfig builds the infra-env configuration. Cluster fields are
// filled when the config is bound to a cluster.
func (e *Env) InfraEnvConfig() *InfraEnvConfig {
	return &InfraEnvConfig{
		InfraEnvID:      e.InfraEnvID,
		EntityName:      e.ClusterName + "_infra-env",
		ImageType:       e.ImageType,
		ISODownloadPath: e.ISODownloadPath,
		StaticIPs:       e.StaticIPs,
	}
}

// TerraformConfig builds the terraform configuration.
func (e *Env) TerraformConfig() *TerraformConfig {
	return &TerraformConfig{
		ClusterName:   e.ClusterName,
		BaseDNSDomain: e.BaseDNSDomain,
		TFFolder:      e.TFFolder,
		LibvirtURI:    e.LibvirtURI,
		ImagePath:     e.ISODownloadPath,
		MastersCount:  e.MastersCount,
		WorkersCount:  e.WorkersCount,
		MasterMemory:  16984,
		WorkerMemory:  8192,
		MasterVCPU:    4,
		WorkerVCPU:    2,
		DiskSizeGiB:   20,
	}
}
