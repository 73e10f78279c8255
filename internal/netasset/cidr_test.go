package netasset

import (
	"math/big"
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CIDR splitting", func() {
	It("splits a /20 into 16 /24 subnets and picks index 0 and 8", func() {
		prefix, err := ParseNetwork("172.16.0.0/20")
		Expect(err).NotTo(HaveOccurred())

		count, err := SubnetCount(prefix, 24)
		Expect(err).NotTo(HaveOccurred())
		Expect(count.Int64()).To(Equal(int64(16)))

		first, middle, err := FirstAndMiddle(prefix, 24)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.String()).To(Equal("172.16.0.0/24"))
		Expect(middle.String()).To(Equal("172.16.8.0/24"))
	})

	It("splits an IPv6 /48 into /64 subnets without enumerating them", func() {
		prefix, err := ParseNetwork("fd1a:7c7b:f55e::/48")
		Expect(err).NotTo(HaveOccurred())

		count, err := SubnetCount(prefix, 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(count.Int64()).To(Equal(int64(65536)))

		first, middle, err := FirstAndMiddle(prefix, 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.String()).To(Equal("fd1a:7c7b:f55e::/64"))
		Expect(middle.String()).To(Equal("fd1a:7c7b:f55e:8000::/64"))
	})

	It("returns the same subnet twice when the prefix already has the target length", func() {
		first, middle, err := FirstAndMiddle(netip.MustParsePrefix("10.0.0.0/24"), 24)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(middle))
	})

	It("addresses any subnet by index", func() {
		sub, err := Subnet(netip.MustParsePrefix("10.0.0.0/16"), 24, big.NewInt(255))
		Expect(err).NotTo(HaveOccurred())
		Expect(sub.String()).To(Equal("10.0.255.0/24"))

		_, err = Subnet(netip.MustParsePrefix("10.0.0.0/16"), 24, big.NewInt(256))
		Expect(err).To(MatchError(errBadSplit))
	})

	DescribeTable("rejects invalid splits",
		func(cidr string, newLen int) {
			_, err := SubnetCount(netip.MustParsePrefix(cidr), newLen)
			Expect(err).To(MatchError(errBadSplit))
		},
		Entry("shorter new prefix", "10.0.0.0/24", 20),
		Entry("longer than an IPv4 address", "10.0.0.0/24", 33),
		Entry("longer than an IPv6 address", "fd00::/64", 129),
	)

	It("rejects networks with host bits set", func() {
		_, err := ParseNetwork("172.16.1.0/20")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("host bits"))
	})

	It("moves to the adjacent network of the same size", func() {
		next, ok := nextNetwork(netip.MustParsePrefix("192.168.127.0/24"))
		Expect(ok).To(BeTrue())
		Expect(next.String()).To(Equal("192.168.128.0/24"))

		_, ok = nextNetwork(netip.MustParsePrefix("255.255.255.0/24"))
		Expect(ok).To(BeFalse())
	})
})
