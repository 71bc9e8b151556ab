// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"github.com/platinasystems/ffuroute/route"
)

// Handles into the state's arenas.
type entryID uint32
type cascadeID int32

const (
	noEntry = ^entryID(0)
	// Row vacated by a migrating entry; kept until its cascade is released.
	reservedRow = noEntry - 1
	noCascade   = cascadeID(-1)
)

// Entry is a route installed in a TCAM row.
type Entry struct {
	typ       route.Type
	key       route.Key
	prefixLen int

	// noCascade while detached during a repartition.
	cascade cascadeID
	row     int

	action route.Action
	active bool
	ecmp   route.EcmpGroup

	// Hardware copy differs from this entry.
	dirty bool

	shadow shadow
}

func (e *Entry) Route() route.Route {
	return route.Route{
		Key:    e.key,
		Type:   e.typ,
		Action: e.action,
		Active: e.active,
		Ecmp:   e.ecmp,
	}
}

// Index items: each carries its ordering key and the entry handle so both
// indices are views over the same arena.
type keyItem struct {
	key route.Key
	id  entryID
}

func keyLess(a, b keyItem) bool { return route.Compare(&a.key, &b.key) < 0 }

type locItem struct {
	loc route.Location
	id  entryID
}

func locLess(a, b locItem) bool { return a.loc.Less(b.loc) }
