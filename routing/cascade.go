// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"github.com/pkg/errors"
	"github.com/platinasystems/log"

	"github.com/platinasystems/ffuroute/route"
	"github.com/platinasystems/ffuroute/tcam"
)

// Cascade is a run of contiguous slices wide enough for the key of one
// route type.  Every slice of the cascade holds the same case.
type Cascade struct {
	inUse       bool
	typ         route.Type
	width       int
	first, last int
	cas         int

	// Highest and lowest rows with an entry; -1 when empty.
	highRow, lowRow int

	// Entry per row: noEntry, reservedRow or the entry handle.
	rows     []entryID
	count    int
	reserved int

	// Usable cascades take new rows; movable cascades are released when
	// they become empty.
	usable, movable bool
}

func (c *Cascade) full() bool { return c.count+c.reserved >= len(c.rows) }

func (c *Cascade) location(row int) route.Location {
	return route.Location{Slice: c.first, Row: row}
}

func (c *Cascade) updateBounds() {
	c.lowRow, c.highRow = -1, -1
	for r, x := range c.rows {
		if x == noEntry || x == reservedRow {
			continue
		}
		if c.lowRow < 0 {
			c.lowRow = r
		}
		c.highRow = r
	}
}

func (s *State) cascade(id cascadeID) *Cascade { return s.cascades.Elt(uint(id)) }

// rowFree reports whether row is unused by every case of the cascade's
// slices.
func (s *State) rowFree(c *Cascade, row int) bool {
	return c.rows[row] == noEntry && s.slices.Row(c.first, row) == tcam.RowFree
}

// sliceAllowed reports whether t may build a new cascade on slice i.
// Slices no class owns are only available to simulations that asked for
// them.
func (s *State) sliceAllowed(t *Table, i int) bool {
	if s.slices.Eligible(i, t.typ.Class()) {
		return true
	}
	if !t.useUnauthorizedSlices || s.actual {
		return false
	}
	for cl := route.Class(0); cl < route.NClass; cl++ {
		if s.slices.Eligible(i, cl) {
			return false
		}
	}
	return true
}

func (s *State) spanAllowed(t *Table, first, last int) bool {
	for i := first; i <= last; i++ {
		if !s.sliceAllowed(t, i) {
			return false
		}
	}
	return true
}

// findShare returns the span and free case of a cascade of another type of
// the same width whose slices t may join.
func (s *State) findShare(t *Table) (first, cas int, ok bool) {
	first = -1
	s.cascades.Foreach(func(i uint, x *Cascade) {
		if !x.inUse || !x.usable || !route.CanShare(x.typ, t.typ) {
			return
		}
		if ok && x.first >= first {
			return
		}
		if !s.spanAllowed(t, x.first, x.last) {
			return
		}
		for j := x.first; j <= x.last; j++ {
			if !s.slices.CanReserve(j, t.typ) {
				return
			}
		}
		for r := range x.rows {
			if s.slices.Row(x.first, r) == tcam.RowFree {
				first, cas, ok = x.first, 1-x.cas, true
				return
			}
		}
	})
	return
}

// findFresh returns the lowest span of idle slices t may use.
func (s *State) findFresh(t *Table) (first int, ok bool) {
	w := t.typ.Width()
next:
	for first = 0; first+w <= s.slices.Len(); first++ {
		for i := first; i < first+w; i++ {
			if s.slices.Slices[i].InUse || !s.sliceAllowed(t, i) {
				continue next
			}
		}
		return first, true
	}
	return -1, false
}

// newCascade builds a cascade for t, preferring to share the slices of a
// cascade of another type over taking idle slices.
func (s *State) newCascade(t *Table) (cascadeID, error) {
	if t.locked {
		return noCascade, errors.Wrapf(route.ErrNoCapacity, "%v: locked", t.typ)
	}
	w := t.typ.Width()
	first, cas, ok := s.findShare(t)
	shared := ok
	if !ok {
		first, ok = s.findFresh(t)
		cas = 0
	}
	if !ok {
		return noCascade, errors.Wrapf(route.ErrNoFreeSlices,
			"%v: width %d", t.typ, w)
	}
	id := cascadeID(s.cascades.Get())
	c := s.cascade(id)
	*c = Cascade{
		inUse:   true,
		typ:     t.typ,
		width:   w,
		first:   first,
		last:    first + w - 1,
		cas:     cas,
		highRow: -1,
		lowRow:  -1,
		rows:    make([]entryID, s.slices.Rows()),
		usable:  true,
		movable: true,
	}
	for r := range c.rows {
		c.rows[r] = noEntry
	}
	for i := c.first; i <= c.last; i++ {
		got, err := s.slices.ReserveCase(i, t.typ, int32(id))
		if err == nil && got == cas {
			continue
		}
		if err == nil {
			s.slices.ReleaseCase(i, got)
		}
		for j := c.first; j < i; j++ {
			s.slices.ReleaseCase(j, cas)
		}
		s.cascades.Put(uint(id))
		return noCascade, errors.Wrapf(route.ErrInconsistent,
			"%v: slice %d case %d", t.typ, i, cas)
	}
	t.insertCascade(s, id)
	log.Print("debug", "routing: ", t.typ, " cascade ", first, "-", first+w-1,
		" case ", cas, " shared ", shared)
	return id, nil
}

// releaseCascade returns the slices of an empty cascade.
func (s *State) releaseCascade(id cascadeID) {
	c := s.cascade(id)
	for r, x := range c.rows {
		if x == reservedRow {
			s.slices.SetRow(c.first, c.last, r, tcam.RowFree)
		}
	}
	for i := c.first; i <= c.last; i++ {
		s.slices.ReleaseCase(i, c.cas)
	}
	s.tables[c.typ].removeCascade(id)
	log.Print("debug", "routing: ", c.typ, " release cascade ", c.first, "-", c.last)
	*c = Cascade{}
	s.cascades.Put(uint(id))
}

// attach places entry id at row of cascade cid.
func (s *State) attach(t *Table, id entryID, cid cascadeID, row int) {
	c := s.cascade(cid)
	c.rows[row] = id
	c.count++
	if c.count == 1 || row < c.lowRow {
		c.lowRow = row
	}
	if c.count == 1 || row > c.highRow {
		c.highRow = row
	}
	s.slices.SetRow(c.first, c.last, row, tcam.InUse(c.cas))
	e := s.entry(id)
	e.cascade, e.row = cid, row
	t.byLoc.ReplaceOrInsert(locItem{loc: c.location(row), id: id})
	s.markDirty(id)
}

// releaseRow frees the row of a placed entry.  With reclaim an empty
// movable cascade is released.
func (s *State) releaseRow(t *Table, id entryID, reclaim bool) {
	e := s.entry(id)
	cid := e.cascade
	c := s.cascade(cid)
	t.byLoc.Delete(locItem{loc: c.location(e.row)})
	c.rows[e.row] = noEntry
	c.count--
	if e.row == c.lowRow || e.row == c.highRow {
		c.updateBounds()
	}
	s.slices.SetRow(c.first, c.last, e.row, tcam.RowFree)
	s.addStale(c, e.row)
	e.cascade, e.row = noCascade, -1
	if reclaim && c.count == 0 && c.reserved == 0 && c.movable {
		s.releaseCascade(cid)
	}
}

// reserveRow detaches a migrating entry; its row stays reserved, with the
// old hardware copy still matching, until the cascade is released.
func (s *State) reserveRow(t *Table, id entryID) {
	e := s.entry(id)
	c := s.cascade(e.cascade)
	t.byLoc.Delete(locItem{loc: c.location(e.row)})
	c.rows[e.row] = reservedRow
	c.count--
	c.reserved++
	c.updateBounds()
	s.slices.SetRow(c.first, c.last, e.row, tcam.RowReserved)
	s.addStale(c, e.row)
	e.cascade, e.row = noCascade, -1
}
