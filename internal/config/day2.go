package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/openshift/assisted-test-framework/internal/client"
)

// Day1Cluster is the installed cluster a day-2 cluster adds workers to.
type Day1Cluster interface {
	ID() string
	GetDetails(ctx context.Context) (*client.Cluster, error)
}

// Day2ClusterConfig extends ClusterConfig with the references a day-2 flow
// needs to the installed day-1 cluster.
type Day2ClusterConfig struct {
	ClusterConfig

	Day1ClusterID         string
	Day1ClusterName       string
	Day1Cluster           Day1Cluster
	Day1ClusterDetails    *client.Cluster
	Day1BaseClusterDomain string
	Day1APIVipDNSName     string
	Day2WorkersCount      int
	InfraEnvID            string
	TFFolder              string
}

// NewDay2ClusterConfig fills the day-1 fields from the details of day1.
func NewDay2ClusterConfig(
	ctx context.Context,
	base ClusterConfig,
	day1 Day1Cluster,
	workersCount int,
	tfFolder string,
) (*Day2ClusterConfig, error) {
	if day1 == nil {
		return nil, errors.New("day-1 cluster is required")
	}

	details, err := day1.GetDetails(ctx)
	if err != nil {
		return nil, fmt.Errorf("get day-1 cluster %s: %w", day1.ID(), err)
	}

	cfg := &Day2ClusterConfig{
		ClusterConfig:         base,
		Day1ClusterID:         day1.ID(),
		Day1ClusterName:       details.Name,
		Day1Cluster:           day1,
		Day1ClusterDetails:    details,
		Day1BaseClusterDomain: details.BaseDNSDomain,
		Day1APIVipDNSName:     details.APIVipDNSName,
		Day2WorkersCount:      workersCount,
		TFFolder:              tfFolder,
	}

	if cfg.Day1APIVipDNSName == "" && details.BaseDNSDomain != "" {
		cfg.Day1APIVipDNSName = fmt.Sprintf("api.%s.%s", details.Name, details.BaseDNSDomain)
	}
	if cfg.OpenshiftVersion == "" {
		cfg.OpenshiftVersion = details.OpenshiftVersion
	}
	if cfg.BaseDNSDomain == "" {
		cfg.BaseDNSDomain = details.BaseDNSDomain
	}

	return cfg, cfg.Validate()
}

// Validate checks the day-1 reference and the worker count.
func (c *Day2ClusterConfig) Validate() error {
	if c.Day1ClusterID == "" {
		return errors.New("day-1 cluster id is not set")
	}

	if c.Day2WorkersCount <= 0 {
		return fmt.Errorf("day-2 workers count must be positive, got %d", c.Day2WorkersCount)
	}

	return nil
}
