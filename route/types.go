// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package route defines the routes kept in FFU TCAM slices: the eight route
// types with their cascade widths, the traffic classes the ACL compiler
// grants slices to, canonical route keys and forwarding actions.
package route

// Class is the traffic class a slice range is authorized for.
type Class uint8

const (
	IP4Unicast Class = iota
	IP4Multicast
	IP6Unicast
	IP6Multicast
	NClass
)

var classNames = [NClass]string{
	IP4Unicast:   "ip4-unicast",
	IP4Multicast: "ip4-multicast",
	IP6Unicast:   "ip6-unicast",
	IP6Multicast: "ip6-multicast",
}

func (c Class) String() string {
	if c < NClass {
		return classNames[c]
	}
	return "class-invalid"
}

// ClassByName maps configuration names back to classes.
func ClassByName(s string) (Class, bool) {
	for c := Class(0); c < NClass; c++ {
		if classNames[c] == s {
			return c, true
		}
	}
	return NClass, false
}

func (c Class) IsMulticast() bool { return c == IP4Multicast || c == IP6Multicast }

// Type selects one of the per-switch routing tables.
type Type uint8

const (
	V4Unicast Type = iota
	V4Group
	V4DestVlan
	V4DestSrcVlan
	V6Unicast
	V6Group
	V6DestVlan
	V6DestSrcVlan
	NType
)

// KeyBitsPerSlice is the number of key bits one TCAM slice matches.
const KeyBitsPerSlice = 40

var typeInfo = [NType]struct {
	name  string
	class Class
	// Number of contiguous slices a route of this type spans.
	width int
}{
	V4Unicast:     {"v4-unicast", IP4Unicast, 1},
	V4Group:       {"v4-group", IP4Multicast, 1},
	V4DestVlan:    {"v4-dest-vlan", IP4Multicast, 3},
	V4DestSrcVlan: {"v4-dest-src-vlan", IP4Multicast, 3},
	V6Unicast:     {"v6-unicast", IP6Unicast, 4},
	V6Group:       {"v6-group", IP6Multicast, 4},
	V6DestVlan:    {"v6-dest-vlan", IP6Multicast, 4},
	V6DestSrcVlan: {"v6-dest-src-vlan", IP6Multicast, 9},
}

func (t Type) String() string {
	if t < NType {
		return typeInfo[t].name
	}
	return "type-invalid"
}

func (t Type) Class() Class { return typeInfo[t].class }
func (t Type) Width() int   { return typeInfo[t].width }
func (t Type) IsIp6() bool  { return t >= V6Unicast && t < NType }

// Types returns the route types served by slices of the given class.
func (c Class) Types() (ts []Type) {
	for t := Type(0); t < NType; t++ {
		if typeInfo[t].class == c {
			ts = append(ts, t)
		}
	}
	return
}

// CanShare reports whether routes of types a and b may occupy the two cases
// of the same physical slices.
func CanShare(a, b Type) bool {
	return a != b && a.Width() == b.Width()
}
