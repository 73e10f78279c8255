package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openshift/assisted-test-framework/internal/client"
	"github.com/openshift/assisted-test-framework/internal/consts"
	"github.com/openshift/assisted-test-framework/internal/netasset"
)

const singleHostInventory = "../../../internal/terraform/testdata/single.yaml"

func run(args ...string) (string, error) {
	GinkgoHelper()

	var out bytes.Buffer
	root := Root()
	root.SetOut(&out)
	root.SetErr(GinkgoWriter)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

var _ = Describe("netasset", func() {
	var poolPath string

	BeforeEach(func() {
		poolPath = filepath.Join(GinkgoT().TempDir(), "tf_network_pool.json")
	})

	It("allocates an asset and releases it", func() {
		out, err := run("netasset", "allocate", "--inventory", singleHostInventory, "--pool-path", poolPath, "--skip-libvirt-networks")
		Expect(err).NotTo(HaveOccurred())

		var allocated allocation
		Expect(json.Unmarshal([]byte(out), &allocated)).To(Succeed())
		Expect(allocated.AssetsFile).To(Equal(filepath.Join(filepath.Dir(poolPath), "lonely_net_asset.json")))
		Expect(allocated.Asset.MachineCIDR).To(Equal("10.10.0.0/24"))
		Expect(allocated.Asset.ProvisioningCIDR).To(Equal("10.10.2.0/24"))
		Expect(allocated.Asset.LibvirtURI).To(Equal("qemu:///system"))

		assetFile := filepath.Join(GinkgoT().TempDir(), "asset.json")
		Expect(os.WriteFile(assetFile, []byte(out), 0o600)).To(Succeed())

		_, err = run("netasset", "release", "--asset", assetFile)
		Expect(err).NotTo(HaveOccurred())

		data, err := os.ReadFile(allocated.AssetsFile)
		Expect(err).NotTo(HaveOccurred())

		var inUse []netasset.Asset
		Expect(json.Unmarshal(data, &inUse)).To(Succeed())
		Expect(inUse).To(BeEmpty())
	})

	It("accepts host criteria", func() {
		out, err := run("netasset", "allocate",
			"--inventory", singleHostInventory,
			"--pool-path", poolPath,
			"--skip-libvirt-networks",
			"--criteria", "region=anywhere")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`"machine_cidr": "10.10.0.0/24"`))
	})

	It("requires the asset to release", func() {
		_, err := run("netasset", "release")
		Expect(err).To(MatchError(ContainSubstring("asset")))
	})
})

var _ = Describe("hosts", func() {
	It("returns once the hosts are discovered", func() {
		service.SetHosts(clusterID, []client.Host{{ID: uuid.NewString(), Status: consts.HostStatusKnown}})

		_, err := run("hosts", "wait", "--count", "1")
		Expect(err).NotTo(HaveOccurred())
	})

	It("needs an infra-env to name hosts", func() {
		_, err := run("hosts", "set-names")
		Expect(err).To(MatchError(ContainSubstring("INFRA_ENV_ID")))
	})
})

var _ = Describe("logs", func() {
	It("writes the log bundle into the directory", func() {
		dir := GinkgoT().TempDir()

		out, err := run("logs", "collect", "--dir", dir)
		Expect(err).NotTo(HaveOccurred())

		path := filepath.Join(dir, "test-infra-cluster_"+clusterID+"_logs.tar")
		Expect(out).To(ContainSubstring(path))
		Expect(path).To(BeAnExistingFile())
	})

	It("needs a bucket to upload", func() {
		_, err := run("logs", "collect", "--dir", GinkgoT().TempDir(), "--upload")
		Expect(err).To(MatchError(ContainSubstring("ARTIFACTS_BUCKET")))
	})
})
