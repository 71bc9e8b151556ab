// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"net/netip"

	"github.com/platinasystems/ffuroute/route"
)

// NextHopResolver is the next hop subsystem.  ResolveNextHop returns the
// forwarding action for a next hop whose ARP entry is now known.
type NextHopResolver interface {
	ResolveNextHop(vrid uint8, addr netip.Addr) (route.Action, bool)
}

type arpRedirect struct {
	vrid uint8
	addr netip.Addr
}

// redirectArp gives every route of vrid waiting on addr the resolved
// action and returns the number of routes changed.
func (s *State) redirectArp(r arpRedirect, res NextHopResolver) (n int) {
	var ids []entryID
	s.ascendRouter(r.vrid, func(t *Table, id entryID) bool {
		if a := &s.entry(id).action; a.Unresolved && a.NextHop == r.addr {
			ids = append(ids, id)
		}
		return true
	})
	if len(ids) == 0 {
		return
	}
	a, ok := res.ResolveNextHop(r.vrid, r.addr)
	if !ok {
		return
	}
	for _, id := range ids {
		s.entry(id).action = a
		s.markDirty(id)
		n++
	}
	return
}
