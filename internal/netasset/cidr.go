package netasset

import (
	"errors"
	"fmt"
	"math/big"
	"net/netip"
)

var errBadSplit = errors.New("invalid subnet split")

// ParseNetwork parses a CIDR network and rejects prefixes with host bits set.
func ParseNetwork(s string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("parse network %q: %w", s, err)
	}

	if prefix != prefix.Masked() {
		return netip.Prefix{}, fmt.Errorf("network %q has host bits set", s)
	}

	return prefix, nil
}

// SubnetCount returns the number of /newLen subnets contained in prefix.
func SubnetCount(prefix netip.Prefix, newLen int) (*big.Int, error) {
	if err := checkSplit(prefix, newLen); err != nil {
		return nil, err
	}

	return new(big.Int).Lsh(big.NewInt(1), uint(newLen-prefix.Bits())), nil
}

// Subnet returns the index-th /newLen subnet of prefix, counting from zero.
func Subnet(prefix netip.Prefix, newLen int, index *big.Int) (netip.Prefix, error) {
	count, err := SubnetCount(prefix, newLen)
	if err != nil {
		return netip.Prefix{}, err
	}

	if index.Sign() < 0 || index.Cmp(count) >= 0 {
		return netip.Prefix{}, fmt.Errorf("%w: index %s out of range for %d subnets of %s",
			errBadSplit, index, count, prefix)
	}

	offset := new(big.Int).Lsh(index, uint(prefix.Addr().BitLen()-newLen))
	addr, ok := addOffset(prefix.Addr(), offset)
	if !ok {
		return netip.Prefix{}, fmt.Errorf("%w: subnet %s of %s overflows the address space", errBadSplit, index, prefix)
	}

	return netip.PrefixFrom(addr, newLen), nil
}

// FirstAndMiddle splits prefix into /newLen subnets and returns the first one
// and the one at position count/2. With a single subnet both are the same.
func FirstAndMiddle(prefix netip.Prefix, newLen int) (first, middle netip.Prefix, err error) {
	count, err := SubnetCount(prefix, newLen)
	if err != nil {
		return netip.Prefix{}, netip.Prefix{}, err
	}

	first, err = Subnet(prefix, newLen, big.NewInt(0))
	if err != nil {
		return netip.Prefix{}, netip.Prefix{}, err
	}

	middle, err = Subnet(prefix, newLen, new(big.Int).Rsh(count, 1))
	if err != nil {
		return netip.Prefix{}, netip.Prefix{}, err
	}

	return first, middle, nil
}

// nextNetwork returns the network of the same size directly after prefix.
func nextNetwork(prefix netip.Prefix) (netip.Prefix, bool) {
	size := new(big.Int).Lsh(big.NewInt(1), uint(prefix.Addr().BitLen()-prefix.Bits()))

	addr, ok := addOffset(prefix.Masked().Addr(), size)
	if !ok {
		return netip.Prefix{}, false
	}

	return netip.PrefixFrom(addr, prefix.Bits()), true
}

func checkSplit(prefix netip.Prefix, newLen int) error {
	if !prefix.IsValid() {
		return fmt.Errorf("%w: invalid prefix", errBadSplit)
	}

	if newLen < prefix.Bits() {
		return fmt.Errorf("%w: new prefix /%d is shorter than %s", errBadSplit, newLen, prefix)
	}

	if newLen > prefix.Addr().BitLen() {
		return fmt.Errorf("%w: new prefix /%d is longer than the address length of %s", errBadSplit, newLen, prefix)
	}

	return nil
}

func addOffset(addr netip.Addr, offset *big.Int) (netip.Addr, bool) {
	var raw []byte
	if addr.Is4() {
		b := addr.As4()
		raw = b[:]
	} else {
		b := addr.As16()
		raw = b[:]
	}

	sum := new(big.Int).Add(new(big.Int).SetBytes(raw), offset)
	if sum.BitLen() > addr.BitLen() {
		return netip.Addr{}, false
	}

	out := sum.FillBytes(make([]byte, len(raw)))
	result, ok := netip.AddrFromSlice(out)

	return result, ok
}
