// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package route

import (
	"fmt"
	"net/netip"
)

type ActionKind uint8

const (
	// Forward to the next hop at ArpIndex (or the route's ECMP group).
	Forward ActionKind = iota
	Drop
	// Trap to the cpu; used while NextHop waits for ARP resolution.
	Trap
	// Replicate to the multicast destination glort.
	Replicate
)

var actionKindNames = [...]string{
	Forward:   "forward",
	Drop:      "drop",
	Trap:      "trap",
	Replicate: "replicate",
}

func (k ActionKind) String() string {
	if int(k) < len(actionKindNames) {
		return actionKindNames[k]
	}
	return "action-invalid"
}

// Action is the forwarding result of a route hit. Glort and ArpIndex are
// references owned by the logical port and next hop subsystems.
type Action struct {
	Kind     ActionKind
	ArpIndex uint32
	Glort    uint16
	NextHop  netip.Addr
	// Unresolved is set while NextHop has no ARP entry.
	Unresolved bool
}

func (a Action) String() string {
	switch a.Kind {
	case Forward:
		return fmt.Sprintf("forward arp %d", a.ArpIndex)
	case Replicate:
		return fmt.Sprintf("replicate glort 0x%x", a.Glort)
	case Trap:
		if a.Unresolved {
			return fmt.Sprintf("trap unresolved %v", a.NextHop)
		}
	}
	return a.Kind.String()
}

// EcmpGroup references a group in the ECMP subsystem; 0 is none.
type EcmpGroup uint32

// Route is the externally visible state of one installed route.
type Route struct {
	Key
	Type   Type
	Action Action
	Active bool
	Ecmp   EcmpGroup
}

// Attr names a route attribute for Get/SetRouteAttribute.
type Attr uint8

const (
	// bool
	AttrActive Attr = iota
	// Action
	AttrAction
	// EcmpGroup
	AttrEcmpGroup
	// bool, read only
	AttrDirty
	// Location, read only
	AttrLocation
)

// Location is the hardware position of a route: the first slice of its
// cascade and the row within it.
type Location struct {
	Slice, Row int
}

func (l Location) String() string { return fmt.Sprintf("%d.%d", l.Slice, l.Row) }

// Less orders locations by precedence; the higher location wins when more
// than one row matches.
func (l Location) Less(m Location) bool {
	if l.Slice != m.Slice {
		return l.Slice < m.Slice
	}
	return l.Row < m.Row
}
