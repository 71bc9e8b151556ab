// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package route

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/apparentlymart/go-cidr/cidr"
)

// Vlan qualifiers are 12 bits; zero means no qualifier.
const (
	VlanBits = 12
	MaxVlan  = 1<<VlanBits - 1
)

// Key is the canonical match key of a route. Host bits of Dst and Src are
// always zero; Src is the zero Prefix and Vlan is 0 when absent.
type Key struct {
	Vrid uint8
	Dst  netip.Prefix
	Src  netip.Prefix
	Vlan uint16
}

// Type classifies the key: family from the destination, unicast versus
// multicast from the destination address, then the source and vlan
// qualifiers.
func (k *Key) Type() Type {
	a := k.Dst.Addr()
	if !a.IsMulticast() {
		if a.Is4() {
			return V4Unicast
		}
		return V6Unicast
	}
	t := V4Group
	if a.Is6() {
		t = V6Group
	}
	switch {
	case k.Src.IsValid():
		t += V4DestSrcVlan - V4Group
	case k.Vlan != 0:
		t += V4DestVlan - V4Group
	}
	return t
}

// PrefixLen is the number of significant key bits; longer keys take
// precedence over shorter ones.
func (k *Key) PrefixLen() (l int) {
	l = k.Dst.Bits()
	if k.Src.IsValid() {
		l += k.Src.Bits()
	}
	if k.Vlan != 0 {
		l += VlanBits
	}
	return
}

func comparePrefix(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	switch {
	case a.Bits() < b.Bits():
		return -1
	case a.Bits() > b.Bits():
		return 1
	}
	return 0
}

// Compare orders keys by vrid, destination, source then vlan.
func Compare(a, b *Key) int {
	switch {
	case a.Vrid < b.Vrid:
		return -1
	case a.Vrid > b.Vrid:
		return 1
	}
	if c := comparePrefix(a.Dst, b.Dst); c != 0 {
		return c
	}
	if c := comparePrefix(a.Src, b.Src); c != 0 {
		return c
	}
	switch {
	case a.Vlan < b.Vlan:
		return -1
	case a.Vlan > b.Vlan:
		return 1
	}
	return 0
}

// Span returns the first and last destination addresses the key matches.
func (k *Key) Span() (first, last netip.Addr) {
	a := k.Dst.Addr()
	n := &net.IPNet{
		IP:   net.IP(a.AsSlice()),
		Mask: net.CIDRMask(k.Dst.Bits(), a.BitLen()),
	}
	f, l := cidr.AddressRange(n)
	first, _ = netip.AddrFromSlice(f)
	last, _ = netip.AddrFromSlice(l)
	return
}

func (k Key) String() string {
	s := fmt.Sprintf("vr%d %v", k.Vrid, k.Dst)
	if k.Src.IsValid() {
		s += fmt.Sprintf(" src %v", k.Src)
	}
	if k.Vlan != 0 {
		s += fmt.Sprintf(" vlan %d", k.Vlan)
	}
	return s
}
