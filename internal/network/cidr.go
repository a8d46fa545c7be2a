package network

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// ParseIPv4Prefix parses an IPv4 CIDR and masks it to its network address.
func ParseIPv4Prefix(cidr string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("only IPv4 networks are supported, got %s", cidr)
	}
	return prefix.Masked(), nil
}

// CIDRSubnet calculates a subnet of prefix, extended by newbits and selected by netnum.
// This mirrors Terraform's cidrsubnet function for IPv4.
//
// Example: CIDRSubnet(10.0.0.0/16, 8, 2) = 10.0.2.0/24.
func CIDRSubnet(prefix netip.Prefix, newbits, netnum int) (netip.Prefix, error) {
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("only IPv4 networks are supported, got %s", prefix)
	}
	if newbits < 0 {
		return netip.Prefix{}, fmt.Errorf("negative prefix extension %d", newbits)
	}

	newBitsLen := prefix.Bits() + newbits
	if newBitsLen > 32 {
		return netip.Prefix{}, fmt.Errorf("prefix extension of %d bits is too large for %s", newbits, prefix)
	}

	maxSubnets := uint64(1) << newbits
	if netnum < 0 || uint64(netnum) >= maxSubnets {
		return netip.Prefix{}, fmt.Errorf("subnet number %d exceeds max subnets %d", netnum, maxSubnets)
	}

	subnetSize := uint64(1) << (32 - newBitsLen)
	base := addrToUint(prefix.Masked().Addr())
	addr := uintToAddr(base + uint64(netnum)*subnetSize)

	return netip.PrefixFrom(addr, newBitsLen), nil
}

// CIDRHost calculates a host address inside prefix. A negative hostnum counts
// back from the end of the range, like Terraform's cidrhost.
func CIDRHost(prefix netip.Prefix, hostnum int) (netip.Addr, error) {
	if !prefix.Addr().Is4() {
		return netip.Addr{}, fmt.Errorf("only IPv4 networks are supported, got %s", prefix)
	}

	maxHosts := uint64(1) << (32 - prefix.Bits())

	var offset uint64
	if hostnum < 0 {
		abs := uint64(-hostnum)
		if abs > maxHosts {
			return netip.Addr{}, fmt.Errorf("host number %d exceeds max hosts %d", hostnum, maxHosts)
		}
		offset = maxHosts - abs
	} else {
		offset = uint64(hostnum)
		if offset >= maxHosts {
			return netip.Addr{}, fmt.Errorf("host number %d exceeds max hosts %d", hostnum, maxHosts)
		}
	}

	return uintToAddr(addrToUint(prefix.Masked().Addr()) + offset), nil
}

// Overlaps reports whether two prefixes share any address.
func Overlaps(a, b netip.Prefix) bool {
	return a.Overlaps(b)
}

func addrToUint(addr netip.Addr) uint64 {
	b := addr.As4()
	return uint64(binary.BigEndian.Uint32(b[:]))
}

func uintToAddr(v uint64) netip.Addr {
	var b [4]byte
	// #nosec G115
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return netip.AddrFrom4(b)
}
