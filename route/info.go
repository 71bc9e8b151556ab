// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package route

import (
	"net"
	"net/netip"

	"github.com/pkg/errors"
)

// Info describes a route as handed to AddRoute by the stack.
type Info struct {
	// Virtual router offset; 0 is the default router.
	Vrid uint8

	Dst    net.IP
	DstLen int

	// Multicast source qualifier; nil for none.
	Src    net.IP
	SrcLen int

	// Multicast vlan qualifier; 0 for none.
	Vlan uint16

	Action Action
	Active bool
	Ecmp   EcmpGroup
}

// canonical masks host bits off ip/l and converts to a netip prefix.
func canonical(ip net.IP, l int) (p netip.Prefix, err error) {
	bits := 8 * net.IPv6len
	if ip4 := ip.To4(); ip4 != nil {
		ip, bits = ip4, 8*net.IPv4len
	} else if len(ip) != net.IPv6len {
		err = errors.Wrapf(ErrInvalidArgument, "address %v", ip)
		return
	}
	if l < 0 || l > bits {
		err = errors.Wrapf(ErrInvalidArgument, "prefix length %d for %v", l, ip)
		return
	}
	a, ok := netip.AddrFromSlice(ip.Mask(net.CIDRMask(l, bits)))
	if !ok {
		err = errors.Wrapf(ErrInvalidArgument, "address %v", ip)
		return
	}
	p = netip.PrefixFrom(a, l)
	return
}

// Key returns the canonical key of the route.
func (i *Info) Key() (k Key, err error) {
	k.Vrid = i.Vrid
	if k.Dst, err = canonical(i.Dst, i.DstLen); err != nil {
		return
	}
	if i.Src != nil {
		if k.Src, err = canonical(i.Src, i.SrcLen); err != nil {
			return
		}
		if k.Src.Addr().Is4() != k.Dst.Addr().Is4() {
			err = errors.Wrapf(ErrInvalidArgument, "source %v and destination %v families differ", k.Src, k.Dst)
			return
		}
	}
	if i.Vlan > MaxVlan {
		err = errors.Wrapf(ErrInvalidArgument, "vlan %d", i.Vlan)
		return
	}
	k.Vlan = i.Vlan
	if !k.Dst.Addr().IsMulticast() && (k.Src.IsValid() || k.Vlan != 0) {
		err = errors.Wrapf(ErrInvalidArgument, "unicast %v with multicast qualifiers", k.Dst)
	}
	return
}

// Classify returns the routing table type for the route.
func Classify(i *Info) (Type, error) {
	k, err := i.Key()
	if err != nil {
		return NType, err
	}
	return k.Type(), nil
}
