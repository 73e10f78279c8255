package config

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openshift/assisted-test-framework/internal/consts"
)

func setenv(key, value string) {
	GinkgoHelper()

	old, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			_ = os.Setenv(key, old)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func writeEnvFile(content string) string {
	GinkgoHelper()

	path := filepath.Join(GinkgoT().TempDir(), ".env")
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

	return path
}

var _ = Describe("loadEnv", func() {
	It("reads the env file", func() {
		path := writeEnvFile(`REMOTE_SERVICE_URL=http://127.0.0.1:8090/
OPENSHIFT_VERSION=4.15
CLUSTER_NAME=ci-cluster
NUM_MASTERS=1
STATIC_IPS=true
HOST_CRITERIA=region=west,flavor=large
`)

		env, err := loadEnv(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.ServiceURL).To(Equal("http://127.0.0.1:8090"))
		Expect(env.OpenshiftVersion).To(Equal("4.15"))
		Expect(env.ClusterName).To(Equal("ci-cluster"))
		Expect(env.MastersCount).To(Equal(1))
		Expect(env.StaticIPs).To(BeTrue())
		Expect(env.HostCriteria).To(Equal(map[string]string{"region": "west", "flavor": "large"}))
		Expect(env.ImageType).To(Equal(consts.ImageTypeMinimal))
		Expect(env.TFNetworkPoolPath).To(Equal(consts.TFNetworkPoolPath))
	})

	It("lets the process environment override the file", func() {
		path := writeEnvFile("CLUSTER_NAME=from-file\n")
		setenv("CLUSTER_NAME", "from-env")

		env, err := loadEnv(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.ClusterName).To(Equal("from-env"))
	})

	It("falls back to defaults when the file is missing", func() {
		env, err := loadEnv(filepath.Join(GinkgoT().TempDir(), "missing.env"))
		Expect(err).NotTo(HaveOccurred())
		Expect(env.LibvirtURI).To(Equal("qemu:///system"))
		Expect(env.MastersCount).To(Equal(3))
		Expect(env.SSOURL).To(Equal(consts.SSOTokenURL))
	})

	It("keeps the offline token apart from the sso endpoint", func() {
		path := writeEnvFile("OFFLINE_TOKEN=offline\nSSO_URL=http://127.0.0.1:8080/token\n")

		env, err := loadEnv(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.OfflineToken).To(Equal("offline"))
		Expect(env.SSOURL).To(Equal("http://127.0.0.1:8080/token"))
	})

	It("uses ASSISTED_ENV_FILE when set", func() {
		setenv("ASSISTED_ENV_FILE", writeEnvFile("BASE_DNS_DOMAIN=example.com\n"))

		env, err := loadEnv(filepath.Join(GinkgoT().TempDir(), "missing.env"))
		Expect(err).NotTo(HaveOccurred())
		Expect(env.BaseDNSDomain).To(Equal("example.com"))
	})

	DescribeTable("rejects invalid settings",
		func(content, message string) {
			_, err := loadEnv(writeEnvFile(content))
			Expect(err).To(MatchError(ContainSubstring(message)))
		},
		Entry("image type", "ISO_IMAGE_TYPE=tiny-iso\n", "unknown iso image type"),
		Entry("openshift version", "OPENSHIFT_VERSION=latest\n", "invalid openshift version"),
		Entry("masters", "NUM_MASTERS=0\n", "at least one master"),
		Entry("criteria", "HOST_CRITERIA=region\n", "invalid host criteria"),
	)

	It("builds the cluster, infra-env and terraform configs", func() {
		path := writeEnvFile("CLUSTER_NAME=ci\nHTTP_PROXY_URL=http://proxy:3128\nNUM_WORKERS=2\n")
		env, err := loadEnv(path)
		Expect(err).NotTo(HaveOccurred())

		clusterCfg := env.ClusterConfig()
		Expect(clusterCfg.ClusterName).To(Equal("ci"))
		Expect(clusterCfg.Proxy).NotTo(BeNil())
		Expect(clusterCfg.Proxy.HTTPProxy).To(Equal("http://proxy:3128"))

		Expect(env.InfraEnvConfig().EntityName).To(Equal("ci_infra-env"))
		Expect(env.TerraformConfig().NodesCount()).To(Equal(5))
	})
})

var _ = Describe("ParseCriteria", func() {
	It("ignores empty pairs", func() {
		criteria, err := ParseCriteria(" , slots = 8 ,")
		Expect(err).NotTo(HaveOccurred())
		Expect(criteria).To(Equal(map[string]string{"slots": "8"}))
	})

	It("returns an empty map for an empty string", func() {
		criteria, err := ParseCriteria("")
		Expect(err).NotTo(HaveOccurred())
		Expect(criteria).To(BeEmpty())
	})
})
