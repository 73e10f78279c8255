package terraform

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/gruntwork-io/terratest/modules/terraform"

	"github.com/openshift/assisted-test-framework/internal/config"
	"github.com/openshift/assisted-test-framework/internal/consts"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

// Controller runs terraform in the folder of a cluster.
type Controller struct {
	cfg     *config.TerraformConfig
	options *terraform.Options
}

// NewController builds a controller for cfg. cfg.TFFolder must hold the
// libvirt terraform module.
func NewController(cfg *config.TerraformConfig) (*Controller, error) {
	if cfg.TFFolder == "" {
		return nil, errors.New("terraform folder is not set")
	}

	tfDir, err := filepath.Abs(cfg.TFFolder)
	if err != nil {
		return nil, fmt.Errorf("invalid terraform folder %s: %w", cfg.TFFolder, err)
	}
	resources.LogLevel("info", "Using terraform dir: %v", tfDir)

	return &Controller{
		cfg: cfg,
		options: &terraform.Options{
			TerraformDir: tfDir,
			VarFiles:     []string{filepath.Join(tfDir, consts.TFVarsJSONName)},
			NoColor:      true,
		},
	}, nil
}

// TFFolder returns the absolute terraform working directory.
func (c *Controller) TFFolder() string {
	return c.options.TerraformDir
}

// VarsFile returns the path of the generated tfvars file.
func (c *Controller) VarsFile() string {
	return c.options.VarFiles[0]
}

// WriteVars renders the terraform config into terraform.tfvars.json.
func (c *Controller) WriteVars() error {
	vars, err := tfVars(c.cfg)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(vars, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.VarsFile(), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.VarsFile(), err)
	}

	return nil
}

// Apply writes the vars file and runs terraform init and apply.
func (c *Controller) Apply() error {
	if err := c.WriteVars(); err != nil {
		return err
	}

	resources.LogLevel("info", "Applying Terraform config in %s", c.TFFolder())
	if _, err := terraform.InitAndApplyE(&testing.T{}, c.options); err != nil {
		return fmt.Errorf("terraform apply failed: %w", err)
	}
	resources.LogLevel("info", "Applying Terraform config completed!")

	return nil
}

// Destroy tears down every resource of the workspace.
func (c *Controller) Destroy() error {
	resources.LogLevel("info", "Destroying Terraform resources in %s", c.TFFolder())
	if _, err := terraform.DestroyE(&testing.T{}, c.options); err != nil {
		return fmt.Errorf("terraform destroy failed: %w", err)
	}

	return nil
}

// Output returns a terraform output value.
func (c *Controller) Output(key string) (string, error) {
	return terraform.OutputE(&testing.T{}, c.options, key)
}

func tfVars(cfg *config.TerraformConfig) (map[string]any, error) {
	if cfg.NetAsset == nil {
		return nil, errors.New("terraform config has no network asset")
	}
	asset := cfg.NetAsset

	vars := map[string]any{
		"cluster_name":                  cfg.ClusterName,
		"cluster_domain":                cfg.BaseDNSDomain,
		"libvirt_uri":                   cfg.LibvirtURI,
		"image_path":                    cfg.ImagePath,
		"master_count":                  cfg.MastersCount,
		"worker_count":                  cfg.WorkersCount,
		"libvirt_master_memory":         cfg.MasterMemory,
		"libvirt_worker_memory":         cfg.WorkerMemory,
		"libvirt_master_vcpu":           cfg.MasterVCPU,
		"libvirt_worker_vcpu":           cfg.WorkerVCPU,
		"libvirt_storage_pool_path":     filepath.Join(cfg.TFFolder, "storage"),
		"libvirt_disk_size_gib":         cfg.DiskSizeGiB,
		"libvirt_network_if":            asset.LibvirtNetworkIf,
		"libvirt_secondary_network_if":  asset.LibvirtSecondaryNetworkIf,
		"machine_cidr_addresses":        []string{asset.MachineCIDR, asset.MachineCIDR6},
		"provisioning_cidr_addresses":   []string{asset.ProvisioningCIDR, asset.ProvisioningCIDR6},
		"libvirt_master_macs":           nodeMACs(cfg.ClusterName, consts.RoleMaster, "primary", cfg.MastersCount),
		"libvirt_secondary_master_macs": nodeMACs(cfg.ClusterName, consts.RoleMaster, "secondary", cfg.MastersCount),
		"libvirt_worker_macs":           nodeMACs(cfg.ClusterName, consts.RoleWorker, "primary", cfg.WorkersCount),
		"libvirt_secondary_worker_macs": nodeMACs(cfg.ClusterName, consts.RoleWorker, "secondary", cfg.WorkersCount),
	}

	return vars, nil
}

// nodeMACs derives stable libvirt MAC addresses for count nodes so that the
// same cluster always gets the same addresses across runs.
func nodeMACs(clusterName, role, network string, count int) []string {
	macs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/%d/%s", clusterName, role, i, network)))
		mac := net.HardwareAddr{0x52, 0x54, 0x00, sum[0], sum[1], sum[2]}
		macs = append(macs, mac.String())
	}

	return macs
}
