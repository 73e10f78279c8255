package config

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openshift/assisted-test-framework/internal/client"
)

type fakeDay1 struct {
	id      string
	details *client.Cluster
	err     error
}

func (f *fakeDay1) ID() string { return f.id }

func (f *fakeDay1) GetDetails(context.Context) (*client.Cluster, error) {
	return f.details, f.err
}

var _ = Describe("Day2ClusterConfig", func() {
	var day1 *fakeDay1

	BeforeEach(func() {
		day1 = &fakeDay1{
			id: "5bb8c2a6-6a3f-4a8b-9b84-2b7b1a1f3c11",
			details: &client.Cluster{
				ID:               "5bb8c2a6-6a3f-4a8b-9b84-2b7b1a1f3c11",
				Name:             "day1",
				BaseDNSDomain:    "example.com",
				OpenshiftVersion: "4.15",
			},
		}
	})

	It("derives the day-1 fields from the installed cluster", func() {
		cfg, err := NewDay2ClusterConfig(context.Background(), ClusterConfig{ClusterName: "day2"}, day1, 2, "/tmp/tf")
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Day1ClusterID).To(Equal(day1.id))
		Expect(cfg.Day1ClusterName).To(Equal("day1"))
		Expect(cfg.Day1BaseClusterDomain).To(Equal("example.com"))
		Expect(cfg.Day1APIVipDNSName).To(Equal("api.day1.example.com"))
		Expect(cfg.Day1ClusterDetails).To(BeIdenticalTo(day1.details))
		Expect(cfg.Day1Cluster).To(BeIdenticalTo(day1))
		Expect(cfg.OpenshiftVersion).To(Equal("4.15"))
		Expect(cfg.ClusterName).To(Equal("day2"))
		Expect(cfg.TFFolder).To(Equal("/tmp/tf"))
	})

	It("keeps the api dns name reported by the service", func() {
		day1.details.APIVipDNSName = "api.custom.example.com"

		cfg, err := NewDay2ClusterConfig(context.Background(), ClusterConfig{}, day1, 1, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Day1APIVipDNSName).To(Equal("api.custom.example.com"))
	})

	It("propagates lookup failures", func() {
		day1.err = errors.New("boom")

		_, err := NewDay2ClusterConfig(context.Background(), ClusterConfig{}, day1, 1, "")
		Expect(err).To(MatchError(ContainSubstring("boom")))
	})

	It("rejects a non-positive workers count", func() {
		_, err := NewDay2ClusterConfig(context.Background(), ClusterConfig{}, day1, 0, "")
		Expect(err).To(MatchError(ContainSubstring("workers count must be positive")))
	})

	It("requires a day-1 cluster id", func() {
		Expect((&Day2ClusterConfig{Day2WorkersCount: 1}).Validate()).To(MatchError(ContainSubstring("day-1 cluster id")))
	})
})

var _ = Describe("InfraEnvConfig", func() {
	It("treats static network config as static ip", func() {
		cfg := InfraEnvConfig{}
		Expect(cfg.IsStaticIP()).To(BeFalse())

		cfg.StaticNetworkConfig = []client.HostStaticNetworkConfig{{NetworkYAML: "interfaces: []"}}
		Expect(cfg.IsStaticIP()).To(BeTrue())
	})

	It("renders create params", func() {
		cfg := InfraEnvConfig{
			EntityName:       "ci_infra-env",
			ClusterID:        "cluster",
			PullSecret:       "secret",
			OpenshiftVersion: "4.15",
			ImageType:        "full-iso",
		}

		params := cfg.CreateParams()
		Expect(params.Name).To(Equal("ci_infra-env"))
		Expect(params.ClusterID).To(Equal("cluster"))
		Expect(params.PullSecret).To(Equal("secret"))
		Expect(params.ImageType).To(Equal("full-iso"))
	})
})
