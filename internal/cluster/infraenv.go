package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/openshift/assisted-test-framework/internal/client"
	"github.com/openshift/assisted-test-framework/internal/config"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

// InfraEnv is a registered infra-env hosts boot their discovery image from.
type InfraEnv struct {
	api    APIClient
	config *config.InfraEnvConfig
}

// RegisterInfraEnv registers cfg with the service and records the new id in cfg.
func RegisterInfraEnv(ctx context.Context, api APIClient, cfg *config.InfraEnvConfig) (*InfraEnv, error) {
	if cfg.PullSecret == "" {
		return nil, errors.New("pull secret is required to register an infra-env")
	}

	created, err := api.CreateInfraEnv(ctx, cfg.CreateParams())
	if err != nil {
		return nil, fmt.Errorf("create infra-env: %w", err)
	}
	cfg.InfraEnvID = created.ID

	return &InfraEnv{api: api, config: cfg}, nil
}

// BindInfraEnv wraps the existing infra-env cfg.InfraEnvID.
func BindInfraEnv(ctx context.Context, api APIClient, cfg *config.InfraEnvConfig) (*InfraEnv, error) {
	if _, err := api.GetInfraEnv(ctx, cfg.InfraEnvID); err != nil {
		return nil, fmt.Errorf("get infra-env %s: %w", cfg.InfraEnvID, err)
	}

	return &InfraEnv{api: api, config: cfg}, nil
}

func (e *InfraEnv) ID() string {
	return e.config.InfraEnvID
}

// DownloadImage writes the discovery ISO to path, or to the configured path.
func (e *InfraEnv) DownloadImage(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = e.config.ISODownloadPath
	}
	if path == "" {
		return "", errors.New("iso download path is not set")
	}

	return e.api.DownloadInfraEnvImage(ctx, e.ID(), path)
}

// UpdateHost sets the hostname and role of a host. Empty values are left
// unchanged on the service.
func (e *InfraEnv) UpdateHost(ctx context.Context, hostID, role, name string) error {
	var params client.HostUpdateParams
	if role != "" {
		params.HostRole = &role
	}
	if name != "" {
		params.HostName = &name
	}

	resources.LogLevel("info", "Updating host %s: name=%q role=%q", hostID, name, role)

	if _, err := e.api.UpdateHost(ctx, e.ID(), hostID, params); err != nil {
		return fmt.Errorf("update host %s: %w", hostID, err)
	}

	return nil
}

// InstallHost starts the installation of one host.
func (e *InfraEnv) InstallHost(ctx context.Context, hostID string) error {
	if _, err := e.api.InstallHost(ctx, e.ID(), hostID); err != nil {
		return fmt.Errorf("install host %s: %w", hostID, err)
	}

	return nil
}
