// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"sort"

	"github.com/platinasystems/ffuroute/internal/pool"
	"github.com/platinasystems/ffuroute/route"
	"github.com/platinasystems/ffuroute/tcam"
)

// State is the complete routing state of a switch: slices, tables and the
// arenas their handles point into.  Exactly one State per switch is
// actual, mirroring hardware; clones are simulations and never commit.
type State struct {
	actual bool

	ranges [route.NClass]tcam.Range

	// During a repartition: the class and its range before the change.
	prevClass           route.Class
	prevRange           tcam.Range
	tempSlicesAvailable bool

	slices   *tcam.Pool
	tables   [route.NType]Table
	cascades pool.Pool[Cascade]
	entries  pool.Pool[Entry]
	routers  [256]vrouter

	// Entries to write in order; an entry may appear more than once,
	// only its last position is written.
	dirty []entryID
	// Vacated rows to invalidate after the writes.
	stale map[staleRow]struct{}

	moves uint64
}

type staleRow struct{ first, last, row int }

func newState(nSlices, nRows int) *State {
	s := &State{
		slices:    tcam.New(nSlices, nRows),
		prevRange: tcam.NoRange,
		stale:     make(map[staleRow]struct{}),
	}
	for cl := range s.ranges {
		s.ranges[cl] = tcam.NoRange
	}
	for t := range s.tables {
		s.tables[t].init(route.Type(t))
	}
	return s
}

// Clone returns an independent, non actual copy.
func (s *State) Clone() *State {
	c := *s
	c.actual = false
	c.slices = s.slices.Clone()
	c.cascades = *s.cascades.CloneFunc(func(x *Cascade) {
		x.rows = append([]entryID(nil), x.rows...)
	})
	c.entries = *s.entries.Clone()
	for t := range c.tables {
		c.tables[t] = s.tables[t].clone()
	}
	c.dirty = append([]entryID(nil), s.dirty...)
	c.stale = make(map[staleRow]struct{}, len(s.stale))
	for r := range s.stale {
		c.stale[r] = struct{}{}
	}
	return &c
}

func (s *State) Actual() bool { return s.actual }

func (s *State) Range(cl route.Class) tcam.Range { return s.ranges[cl] }

// setRange authorizes r for class cl.
func (s *State) setRange(cl route.Class, r tcam.Range) {
	s.ranges[cl] = r
	s.slices.SetEligible(cl, r)
	for t := range s.tables {
		tbl := &s.tables[t]
		ucast, mcast := route.IP4Unicast, route.IP4Multicast
		if tbl.typ.IsIp6() {
			ucast, mcast = route.IP6Unicast, route.IP6Multicast
		}
		tbl.ucastOK = s.ranges[ucast].Valid()
		tbl.mcastOK = s.ranges[mcast].Valid()
	}
}

func (s *State) markDirty(id entryID) {
	s.entry(id).dirty = true
	s.dirty = append(s.dirty, id)
}

func (s *State) addStale(c *Cascade, row int) {
	s.stale[staleRow{c.first, c.last, row}] = struct{}{}
}

func (s *State) staleRows() []staleRow {
	rows := make([]staleRow, 0, len(s.stale))
	for r := range s.stale {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.first != b.first {
			return a.first < b.first
		}
		if a.row != b.row {
			return a.row < b.row
		}
		return a.last < b.last
	})
	return rows
}

// Dirty is the number of entries awaiting commit.
func (s *State) Dirty() (n int) {
	s.entries.Foreach(func(_ uint, e *Entry) {
		if e.dirty {
			n++
		}
	})
	return
}

// Routes is the number of installed routes.
func (s *State) Routes() int { return int(s.entries.Elts()) }

// valid is the hardware valid bit of an entry.
func (s *State) valid(e *Entry) bool {
	return e.active && s.routers[e.key.Vrid].up
}
