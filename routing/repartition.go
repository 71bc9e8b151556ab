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

// Phase of the repartition coordinator.
type Phase uint8

const (
	Stable Phase = iota
	Simulating
	Committing
	Aborted
)

var phaseNames = [...]string{
	Stable:     "stable",
	Simulating: "simulating",
	Committing: "committing",
	Aborted:    "aborted",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "phase-invalid"
}

// PartitionChange is a new slice range for a traffic class from the
// filter slice compiler.  A simulated change only checks feasibility.
type PartitionChange struct {
	Class     route.Class
	Range     tcam.Range
	Simulated bool
}

type migrant struct {
	typ route.Type
	id  entryID
}

// repartition returns a clone of s with class cl moved into range r.
// Cascades of cl not wholly inside r are emptied, their routes placed
// again inside r, then released.  s is never changed; on error the clone
// is dropped.
//
// Routes normally move make-before-break, with the old cascade holding its
// slices until every route has a new row.  When that leaves no room, as
// when a cascade shifts onto slices it already holds, the move is retried
// with the cascades overlapping r released first; their routes then miss
// until the batch reaches hardware.
func (s *State) repartition(cl route.Class, r tcam.Range) (*State, error) {
	c, err := s.migrate(cl, r, false)
	if !route.IsCapacity(err) {
		return c, err
	}
	if staged, serr := s.migrate(cl, r, true); serr == nil {
		log.Print("warn", "routing: ", cl, " to ", r,
			": overlapping cascades released before their routes moved")
		return staged, nil
	}
	return nil, err
}

func (s *State) migrate(cl route.Class, r tcam.Range, releaseOverlap bool) (*State, error) {
	c := s.Clone()
	c.prevClass, c.prevRange, c.tempSlicesAvailable = cl, s.ranges[cl], true
	c.setRange(cl, r)
	for i := range c.tables {
		c.tables[i].locked = c.tables[i].typ.Class() != cl
	}

	var (
		migrants []migrant
		vacated  []cascadeID
	)
	for _, typ := range cl.Types() {
		t := &c.tables[typ]
		for _, cid := range t.cascades {
			x := c.cascade(cid)
			if r.Covers(x.first, x.last) {
				continue
			}
			x.usable, x.movable = false, false
			vacated = append(vacated, cid)
			for _, id := range x.rows {
				if id == noEntry || id == reservedRow {
					continue
				}
				c.reserveRow(t, id)
				migrants = append(migrants, migrant{typ, id})
			}
		}
	}
	if releaseOverlap {
		kept := vacated[:0]
		for _, cid := range vacated {
			if x := c.cascade(cid); r.Overlaps(x.first, x.last) {
				c.releaseCascade(cid)
			} else {
				kept = append(kept, cid)
			}
		}
		vacated = kept
	}

	// Location order is prefix order, so each route lands above the last
	// without shifting.
	for _, m := range migrants {
		t := &c.tables[m.typ]
		e := c.entry(m.id)
		cid, row, err := c.place(t, e.prefixLen)
		if err != nil {
			return nil, errors.Wrapf(err, "%v %v to %v", cl, e.key, r)
		}
		c.attach(t, m.id, cid, row)
	}
	for _, cid := range vacated {
		c.releaseCascade(cid)
	}

	c.prevRange, c.tempSlicesAvailable = tcam.NoRange, false
	for i := range c.tables {
		c.tables[i].locked = false
	}
	if err := c.validate(nil); err != nil {
		return nil, err
	}
	return c, nil
}

// freedRanges returns the parts of old outside r.
func freedRanges(old, r tcam.Range) (freed []tcam.Range) {
	if !old.Valid() {
		return
	}
	if !r.Valid() || r.Last < old.First || r.First > old.Last {
		return []tcam.Range{old}
	}
	if old.First < r.First {
		freed = append(freed, tcam.Range{First: old.First, Last: r.First - 1})
	}
	if old.Last > r.Last {
		freed = append(freed, tcam.Range{First: r.Last + 1, Last: old.Last})
	}
	return
}

// slicesRequired replays the routes of class cl, in location order, into
// an empty simulation whose tables may take any slice, and counts the
// slices used.
func (s *State) slicesRequired(cl route.Class) (int, error) {
	w := newState(s.slices.Len(), s.slices.Rows())
	for _, typ := range cl.Types() {
		w.tables[typ].useUnauthorizedSlices = true
	}
	for _, typ := range cl.Types() {
		var err error
		s.tables[typ].byLoc.Ascend(func(it locItem) bool {
			r := s.entry(it.id).Route()
			_, err = w.addRoute(&r)
			return err == nil
		})
		if err != nil {
			return 0, err
		}
	}
	if err := w.validate(nil); err != nil {
		return 0, err
	}
	return w.slices.InUseCount(), nil
}
