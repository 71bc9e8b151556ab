// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"math"

	"github.com/pkg/errors"

	"github.com/platinasystems/ffuroute/route"
)

// Placement keeps each table in longest prefix match order: since the
// higher location wins when several rows hit, prefix length never
// decreases along location order.

var (
	minLocation = route.Location{Slice: -1}
	maxLocation = route.Location{Slice: math.MaxInt32}
)

func (s *State) location(e *Entry) route.Location {
	return s.cascade(e.cascade).location(e.row)
}

// bounds returns the location of the highest placed entry with prefix
// length <= n and the lowest with length > n.
func (s *State) bounds(t *Table, n int) (lo, hi route.Location) {
	lo, hi = minLocation, maxLocation
	i := t.prefixes.search(n + 1)
	for j := i - 1; j >= 0 && lo == minLocation; j-- {
		for _, id := range t.prefixes[j].entries {
			e := s.entry(id)
			if e.cascade == noCascade {
				continue
			}
			if l := s.location(e); lo.Less(l) {
				lo = l
			}
		}
	}
	for j := i; j < len(t.prefixes) && hi == maxLocation; j++ {
		for _, id := range t.prefixes[j].entries {
			e := s.entry(id)
			if e.cascade == noCascade {
				continue
			}
			if l := s.location(e); l.Less(hi) {
				hi = l
			}
		}
	}
	return
}

// scanFree returns the lowest (highest when down) free row of a usable
// cascade of t strictly between lo and hi.
func (s *State) scanFree(t *Table, lo, hi route.Location, down bool) (cascadeID, int, bool) {
	n := len(t.cascades)
	for k := 0; k < n; k++ {
		i := k
		if down {
			i = n - 1 - k
		}
		cid := t.cascades[i]
		c := s.cascade(cid)
		if !c.usable || c.full() || c.first < lo.Slice || c.first > hi.Slice {
			continue
		}
		r0, r1 := 0, len(c.rows)-1
		if c.first == lo.Slice {
			r0 = lo.Row + 1
		}
		if c.first == hi.Slice {
			r1 = hi.Row - 1
		}
		for j := r0; j <= r1; j++ {
			r := j
			if down {
				r = r0 + r1 - j
			}
			if s.rowFree(c, r) {
				return cid, r, true
			}
		}
	}
	return noCascade, -1, false
}

// place returns a row for a new entry with prefix length n, moving entries
// of longer (or shorter) prefixes out of the way when there is no free row
// between them.  A cascade is built only when every usable cascade of the
// table is full.  Nothing changes on error.
func (s *State) place(t *Table, n int) (cascadeID, int, error) {
	for created := false; ; created = true {
		lo, hi := s.bounds(t, n)
		if cid, row, ok := s.scanFree(t, lo, hi, false); ok {
			return cid, row, nil
		}
		if cid, row, ok := s.scanFree(t, hi, maxLocation, false); ok {
			cid, row = s.shiftUp(t, n, cid, row)
			return cid, row, nil
		}
		if cid, row, ok := s.scanFree(t, minLocation, lo, true); ok {
			cid, row = s.shiftDown(t, n, cid, row)
			return cid, row, nil
		}
		if created {
			return noCascade, -1, errors.Wrapf(route.ErrInconsistent,
				"%v: new cascade has no free row", t.typ)
		}
		if _, err := s.newCascade(t); err != nil {
			return noCascade, -1, err
		}
	}
}

// shiftUp moves the lowest entry of each longer prefix group into the slot
// above it, starting with the longest group and the free row at (cid,
// row); it returns the row vacated below all of them.
func (s *State) shiftUp(t *Table, n int, cid cascadeID, row int) (cascadeID, int) {
	for i := len(t.prefixes) - 1; i >= 0 && t.prefixes[i].Len > n; i-- {
		slot := s.cascade(cid).location(row)
		var (
			low   entryID = noEntry
			lowAt route.Location
		)
		for _, id := range t.prefixes[i].entries {
			e := s.entry(id)
			if e.cascade == noCascade {
				continue
			}
			if l := s.location(e); l.Less(slot) && (low == noEntry || l.Less(lowAt)) {
				low, lowAt = id, l
			}
		}
		if low != noEntry {
			cid, row = s.move(t, low, cid, row)
		}
	}
	return cid, row
}

// shiftDown is shiftUp toward a free row below, moving the highest entry of
// each group with prefix length <= n, shortest group first.
func (s *State) shiftDown(t *Table, n int, cid cascadeID, row int) (cascadeID, int) {
	for i := 0; i < len(t.prefixes) && t.prefixes[i].Len <= n; i++ {
		slot := s.cascade(cid).location(row)
		var (
			high   entryID = noEntry
			highAt route.Location
		)
		for _, id := range t.prefixes[i].entries {
			e := s.entry(id)
			if e.cascade == noCascade {
				continue
			}
			if l := s.location(e); slot.Less(l) && (high == noEntry || highAt.Less(l)) {
				high, highAt = id, l
			}
		}
		if high != noEntry {
			cid, row = s.move(t, high, cid, row)
		}
	}
	return cid, row
}

// move relocates entry id to (cid, row) and returns its old row.  The new
// copy is written before the old row is reused or invalidated.
func (s *State) move(t *Table, id entryID, cid cascadeID, row int) (cascadeID, int) {
	e := s.entry(id)
	ocid, orow := e.cascade, e.row
	s.releaseRow(t, id, false)
	s.attach(t, id, cid, row)
	s.moves++
	return ocid, orow
}
