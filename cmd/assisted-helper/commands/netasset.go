package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openshift/assisted-test-framework/cmd"
	"github.com/openshift/assisted-test-framework/internal/netasset"
	"github.com/openshift/assisted-test-framework/internal/terraform"
)

// NetAsset groups the network asset commands.
func NetAsset() *cobra.Command {
	c := &cobra.Command{
		Use:   "netasset",
		Short: "Allocate and release libvirt network assets on CI machines",
	}

	c.AddCommand(netAssetAllocate())
	c.AddCommand(netAssetRelease())

	return c
}

// allocation is what allocate prints and release reads back.
type allocation struct {
	AssetsFile string         `json:"assets_file"`
	Asset      netasset.Asset `json:"asset"`
}

func netAssetAllocate() *cobra.Command {
	var (
		inventoryFile string
		poolPath      string
		criteria      cmd.CriteriaFlag
		skipLibvirt   bool
	)

	c := &cobra.Command{
		Use:   "allocate",
		Short: "Select an inventory host and print a free network asset as JSON",
		RunE: func(c *cobra.Command, _ []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}

			if inventoryFile == "" {
				inventoryFile = env.InventoryFile
			}
			if inventoryFile == "" {
				return fmt.Errorf("inventory file is required (use --inventory or INVENTORY_FILE)")
			}
			if poolPath == "" {
				poolPath = env.TFNetworkPoolPath
			}
			if len(criteria) == 0 {
				criteria = env.HostCriteria
			}

			opts := []terraform.HelperOption{terraform.WithNetworkPoolPath(poolPath)}
			if skipLibvirt {
				opts = append(opts, terraform.WithNetworkLister(nil))
			}

			helper, err := terraform.NewConfigHelper(inventoryFile, opts...)
			if err != nil {
				return err
			}

			tfConfig := env.TerraformConfig()
			pool, err := helper.Update(tfConfig, criteria)
			if err != nil {
				return err
			}

			out := allocation{AssetsFile: pool.AssetsFile(), Asset: *tfConfig.NetAsset}

			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(out)
		},
	}

	c.Flags().StringVar(&inventoryFile, "inventory", "", "Ansible inventory of CI machines")
	c.Flags().StringVar(&poolPath, "pool-path", "", "network pool path, asset files are kept next to it")
	c.Flags().Var(&criteria, "criteria", "host selection criteria, may be repeated")
	c.Flags().BoolVar(&skipLibvirt, "skip-libvirt-networks", false,
		"allocate from the asset files only, without checking the networks defined on the host")

	return c
}

func netAssetRelease() *cobra.Command {
	var assetsFile, assetFile string

	c := &cobra.Command{
		Use:   "release",
		Short: "Release a network asset printed by allocate",
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := os.ReadFile(assetFile)
			if err != nil {
				return fmt.Errorf("read asset: %w", err)
			}

			var allocated allocation
			if err := json.Unmarshal(data, &allocated); err != nil {
				return fmt.Errorf("parse asset %s: %w", assetFile, err)
			}

			if assetsFile == "" {
				assetsFile = allocated.AssetsFile
			}
			if assetsFile == "" {
				return fmt.Errorf("assets file is required (use --assets-file)")
			}

			return netasset.NewPool(assetsFile, netasset.Asset{}, "").Release(allocated.Asset)
		},
	}

	c.Flags().StringVar(&assetFile, "asset", "", "JSON output of netasset allocate")
	c.Flags().StringVar(&assetsFile, "assets-file", "", "assets file, defaults to the one recorded in --asset")
	_ = c.MarkFlagRequired("asset")

	return c
}
