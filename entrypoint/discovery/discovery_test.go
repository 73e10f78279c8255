package discovery

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openshift/assisted-test-framework/entrypoint"
	"github.com/openshift/assisted-test-framework/internal/cluster"
	"github.com/openshift/assisted-test-framework/internal/terraform"
)

var _ = Describe("Host discovery", Ordered, func() {
	var ctx context.Context

	BeforeAll(func() {
		ctx = context.Background()
	})

	It("generates the infra-env and downloads the discovery image", func() {
		path, err := cl.GenerateAndDownloadInfraEnv(ctx, cluster.InfraEnvOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(BeAnExistingFile())
		Expect(cl.InfraEnv()).NotTo(BeNil())
	})

	It("boots the nodes from the discovery image", func() {
		if !entrypoint.Flags.Provision {
			Skip("nodes are provisioned outside of the run")
		}
		Expect(env.InventoryFile).NotTo(BeEmpty(), "INVENTORY_FILE is required to provision nodes")

		helper, err := terraform.NewConfigHelper(env.InventoryFile, terraform.WithNetworkPoolPath(env.TFNetworkPoolPath))
		Expect(err).NotTo(HaveOccurred())

		criteria := env.HostCriteria
		if len(entrypoint.Flags.HostCriteria) > 0 {
			criteria = entrypoint.Flags.HostCriteria
		}

		tfConfig := env.TerraformConfig()
		tfConfig.ImagePath = cl.GetISODownloadPath("")

		netPool, err = helper.Update(tfConfig, criteria)
		Expect(err).NotTo(HaveOccurred())

		tf, err = terraform.NewController(tfConfig)
		Expect(err).NotTo(HaveOccurred())

		// the selected host may not be the hypervisor of LIBVIRT_URI.
		nodeSet, err := cluster.NodesForTerraform(tfConfig)
		Expect(err).NotTo(HaveOccurred())
		cl.SetNodes(nodeSet)

		Expect(tf.Apply()).To(Succeed())
	})

	It("discovers every node", func() {
		Expect(cl.WaitUntilHostsAreDiscovered(ctx, entrypoint.Flags.AllowInsufficient, 0)).To(Succeed())
	})

	It("names the hosts after their nodes", func() {
		Expect(cl.SetHostnamesAndRoles(ctx)).To(Succeed())
	})

	It("installs the cluster", func() {
		if !entrypoint.Flags.Install {
			Skip("installation not requested")
		}

		Expect(cl.StartInstallAndWaitForInstalled(ctx)).To(Succeed())
	})
})
