// Package network derives deterministic per-node addressing from the cluster CIDR.
//
// The cluster CIDR is split into 2^k equally sized subnets, k being the smallest
// exponent that fits one subnet per node plus one subnet reserved for shared
// services. Node i always receives subnet i and the services subnet follows the
// last node, so the same configuration yields the same addressing on every run.
package network

import (
	"errors"
	"fmt"
	"math/bits"
	"net/netip"

	"github.com/imamik/kubernix/internal/kerrors"
)

const (
	// MaxSubnetPrefix is the longest prefix a carved subnet may have. A /28 leaves
	// room for the gateway, the node address and the well-known service IPs.
	MaxSubnetPrefix = 28

	// apiServiceHost is the host number of the kubernetes API service IP.
	apiServiceHost = 1
	// dnsServiceHost is the host number of the cluster DNS service IP.
	dnsServiceHost = 10
)

// ErrTooSmall is returned when the CIDR cannot hold the requested subnets.
var ErrTooSmall = errors.New("cidr too small")

// Subnet is the addressing assigned to one node, or to shared services.
type Subnet struct {
	Index   int
	CIDR    netip.Prefix
	Gateway netip.Addr
	Address netip.Addr
}

func (s Subnet) String() string {
	return fmt.Sprintf("%d:%s", s.Index, s.CIDR)
}

// Allocator partitions a cluster CIDR. It is immutable after construction.
type Allocator struct {
	cidr     netip.Prefix
	nodes    int
	newbits  int
	subnets  []Subnet
	services Subnet
}

// NewAllocator computes the addressing for nodes inside cidr. All failures are
// network errors.
func NewAllocator(cidr string, nodes int) (*Allocator, error) {
	prefix, err := ParseIPv4Prefix(cidr)
	if err != nil {
		return nil, kerrors.NetworkErr(err)
	}
	if nodes < 1 {
		return nil, kerrors.NetworkErr(fmt.Errorf("node count must be positive, got %d", nodes))
	}

	newbits := subnetBits(nodes + 1)
	if prefix.Bits()+newbits > MaxSubnetPrefix {
		return nil, kerrors.NetworkErr(fmt.Errorf("%w: %s cannot hold %d node subnets and a services subnet of at most /%d",
			ErrTooSmall, prefix, nodes, MaxSubnetPrefix))
	}

	a := &Allocator{
		cidr:    prefix,
		nodes:   nodes,
		newbits: newbits,
		subnets: make([]Subnet, 0, nodes),
	}

	for i := range nodes {
		s, err := a.carve(i)
		if err != nil {
			return nil, kerrors.NetworkErr(fmt.Errorf("subnet for node %d: %w", i, err))
		}
		a.subnets = append(a.subnets, s)
	}

	services, err := a.carve(nodes)
	if err != nil {
		return nil, kerrors.NetworkErr(fmt.Errorf("services subnet: %w", err))
	}
	a.services = services

	return a, nil
}

// subnetBits returns the smallest k with 2^k >= n.
func subnetBits(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

func (a *Allocator) carve(index int) (Subnet, error) {
	prefix, err := CIDRSubnet(a.cidr, a.newbits, index)
	if err != nil {
		return Subnet{}, err
	}
	gateway, err := CIDRHost(prefix, 1)
	if err != nil {
		return Subnet{}, err
	}
	address, err := CIDRHost(prefix, 2)
	if err != nil {
		return Subnet{}, err
	}
	return Subnet{Index: index, CIDR: prefix, Gateway: gateway, Address: address}, nil
}

// CIDR returns the normalized cluster CIDR.
func (a *Allocator) CIDR() netip.Prefix {
	return a.cidr
}

// Nodes returns the number of node subnets.
func (a *Allocator) Nodes() int {
	return a.nodes
}

// Subnet returns the subnet of node index.
func (a *Allocator) Subnet(index int) (Subnet, error) {
	if index < 0 || index >= len(a.subnets) {
		return Subnet{}, kerrors.NetworkErr(fmt.Errorf("node index %d out of range [0, %d)", index, len(a.subnets)))
	}
	return a.subnets[index], nil
}

// All returns the node subnets in index order.
func (a *Allocator) All() []Subnet {
	out := make([]Subnet, len(a.subnets))
	copy(out, a.subnets)
	return out
}

// Services returns the subnet reserved for cluster services.
func (a *Allocator) Services() Subnet {
	return a.services
}

// APIServiceIP is the first host of the services subnet.
func (a *Allocator) APIServiceIP() netip.Addr {
	addr, _ := CIDRHost(a.services.CIDR, apiServiceHost)
	return addr
}

// DNSServiceIP is the cluster DNS address inside the services subnet.
func (a *Allocator) DNSServiceIP() netip.Addr {
	addr, _ := CIDRHost(a.services.CIDR, dnsServiceHost)
	return addr
}
