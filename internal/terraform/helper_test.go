package terraform

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openshift/assisted-test-framework/internal/config"
	"github.com/openshift/assisted-test-framework/internal/consts"
	"github.com/openshift/assisted-test-framework/internal/netasset"
)

type fakeNetworks struct {
	defined netasset.DefinedNetworks
	uris    []string
}

func (f *fakeNetworks) lister(libvirtURI string) (netasset.NetworkLister, error) {
	f.uris = append(f.uris, libvirtURI)
	return f, nil
}

func (f *fakeNetworks) DefinedNetworks() (netasset.DefinedNetworks, error) {
	return f.defined, nil
}

var _ = Describe("ConfigHelper", func() {
	var (
		poolPath string
		cfg      *config.TerraformConfig
		networks *fakeNetworks
	)

	BeforeEach(func() {
		poolPath = filepath.Join(GinkgoT().TempDir(), "tf_network_pool.json")
		cfg = &config.TerraformConfig{ClusterName: "ci"}
		networks = &fakeNetworks{}
	})

	newHelper := func(inventoryFile string) *ConfigHelper {
		GinkgoHelper()

		helper, err := NewConfigHelper(inventoryFile, WithNetworkPoolPath(poolPath), WithNetworkLister(networks.lister))
		Expect(err).NotTo(HaveOccurred())

		return helper
	}

	It("splits the host networks and selects the first and middle subnets", func() {
		pool, err := newHelper("testdata/ci-machines.ini").Update(cfg, map[string]string{"region": "east"})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.ReleaseAll)

		Expect(cfg.LibvirtURI).To(Equal("qemu+ssh://root@10.0.0.181/system"))
		Expect(cfg.NetAsset).NotTo(BeNil())
		Expect(cfg.NetAsset.MachineCIDR).To(Equal("172.16.0.0/24"))
		Expect(cfg.NetAsset.ProvisioningCIDR).To(Equal("172.16.8.0/24"))
		Expect(cfg.NetAsset.MachineCIDR6).To(Equal("fd1a:7c7b:f55e::/64"))
		Expect(cfg.NetAsset.ProvisioningCIDR6).To(Equal("fd1a:7c7b:f55e:8000::/64"))
		Expect(cfg.NetAsset.LibvirtNetworkIf).To(Equal(consts.NetworkIf))
		Expect(cfg.NetAsset.LibvirtSecondaryNetworkIf).To(Equal(consts.SecondaryNetworkIf))
		Expect(cfg.NetAsset.LibvirtURI).To(Equal(cfg.LibvirtURI))

		Expect(pool.AssetsFile()).To(Equal(filepath.Join(filepath.Dir(poolPath), "hv-a_net_asset.json")))
		Expect(pool.AssetsFile()).To(BeAnExistingFile())
	})

	It("skips networks already defined on the selected host", func() {
		networks.defined = netasset.DefinedNetworks{
			CIDRs:   []string{"172.16.0.0/24"},
			Bridges: []string{consts.NetworkIf},
		}

		pool, err := newHelper("testdata/ci-machines.ini").Update(cfg, map[string]string{"region": "east"})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.ReleaseAll)

		Expect(networks.uris).To(Equal([]string{"qemu+ssh://root@10.0.0.181/system"}))
		Expect(cfg.NetAsset.MachineCIDR).To(Equal("172.16.1.0/24"))
		Expect(cfg.NetAsset.ProvisioningCIDR).To(Equal("172.16.8.0/24"))
		Expect(cfg.NetAsset.LibvirtNetworkIf).To(Equal("tt1"))
	})

	It("matches every criteria key", func() {
		_, err := newHelper("testdata/ci-machines.ini").Update(cfg, map[string]string{"region": "west", "slots": "8"})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LibvirtURI).To(Equal("qemu+ssh://root@10.0.0.182/system"))
	})

	It("picks the first host when no criteria are given", func() {
		_, err := newHelper("testdata/ci-machines.ini").Update(cfg, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LibvirtURI).To(Equal("qemu+ssh://root@10.0.0.181/system"))
	})

	It("fails when no host matches", func() {
		_, err := newHelper("testdata/ci-machines.ini").Update(cfg, map[string]string{"region": "south"})
		Expect(err).To(MatchError(ErrNoMatchingHost))
		Expect(err).To(MatchError(ContainSubstring("region:south")))
		Expect(cfg.NetAsset).To(BeNil())
	})

	It("always selects the only host of the inventory", func() {
		_, err := newHelper("testdata/single.yaml").Update(cfg, map[string]string{"region": "anything"})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LibvirtURI).To(Equal("qemu:///system"))
		Expect(cfg.NetAsset.MachineCIDR).To(Equal("10.10.0.0/24"))
		Expect(cfg.NetAsset.ProvisioningCIDR).To(Equal("10.10.2.0/24"))
		Expect(cfg.NetAsset.MachineCIDR6).To(Equal("fd00:10::/64"))
		Expect(cfg.NetAsset.ProvisioningCIDR6).To(Equal("fd00:10:0:2::/64"))
	})

	It("hands a second cluster on the same host different networks", func() {
		helper := newHelper("testdata/ci-machines.ini")

		_, err := helper.Update(cfg, map[string]string{"region": "east"})
		Expect(err).NotTo(HaveOccurred())

		other := &config.TerraformConfig{}
		_, err = helper.Update(other, map[string]string{"region": "east"})
		Expect(err).NotTo(HaveOccurred())

		Expect(other.NetAsset.MachineCIDR).NotTo(Equal(cfg.NetAsset.MachineCIDR))
		Expect(other.NetAsset.LibvirtNetworkIf).To(Equal("tt1"))
	})

	It("reports missing host variables", func() {
		inventoryFile := filepath.Join(GinkgoT().TempDir(), "hosts")
		Expect(os.WriteFile(inventoryFile, []byte("hv libvirt_uri=qemu:///system\n"), 0o600)).To(Succeed())

		_, err := newHelper(inventoryFile).Update(cfg, nil)
		Expect(err).To(MatchError(ContainSubstring("does not define ipv4_network_prefix")))
	})

	It("rejects networks too small to split", func() {
		inventoryFile := filepath.Join(GinkgoT().TempDir(), "hosts")
		content := "hv libvirt_uri=qemu:///system ipv4_network_prefix=10.0.0.0/25 ipv6_network_prefix=fd00::/48\n"
		Expect(os.WriteFile(inventoryFile, []byte(content), 0o600)).To(Succeed())

		_, err := newHelper(inventoryFile).Update(cfg, nil)
		Expect(err).To(MatchError(ContainSubstring("ipv4_network_prefix")))
	})
})
