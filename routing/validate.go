// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/platinasystems/ffuroute/route"
	"github.com/platinasystems/ffuroute/tcam"
)

// Reader reads back committed registers; regcache.Cache is one.
type Reader interface {
	Read(address, index uint32) ([]uint32, bool)
}

type problems []string

func (p *problems) add(format string, args ...interface{}) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return errors.Wrap(route.ErrInconsistent, strings.Join(p, "; "))
}

// validate checks every structural invariant of s and, with shadows
// compiled in, the committed hardware copy.  It never changes s.
func (s *State) validate(r Reader) error {
	var p problems
	held := make(map[cascadeID]bool)
	for i := range s.tables {
		s.validateTable(&s.tables[i], held, &p)
	}
	s.cascades.Foreach(func(i uint, c *Cascade) {
		if c.inUse && !held[cascadeID(i)] {
			p.add("cascade %d: not in %v table", i, c.typ)
		}
	})
	s.validateSlices(&p)
	p = append(p, s.checkShadow(r)...)
	return p.err()
}

// authorized reports whether a cascade of class cl may occupy first..last.
func (s *State) authorized(t *Table, first, last int) bool {
	cl := t.typ.Class()
	if s.ranges[cl].Covers(first, last) {
		return true
	}
	if s.tempSlicesAvailable && cl == s.prevClass && s.prevRange.Covers(first, last) {
		return true
	}
	return t.useUnauthorizedSlices && !s.actual
}

func (s *State) validateTable(t *Table, held map[cascadeID]bool, p *problems) {
	last := -1
	for _, cid := range t.cascades {
		c := s.cascade(cid)
		held[cid] = true
		if !c.inUse || c.typ != t.typ {
			p.add("%v: cascade %d is %v in use %v", t.typ, cid, c.typ, c.inUse)
			continue
		}
		if c.first <= last {
			p.add("%v: cascade %d out of order", t.typ, cid)
		}
		last = c.first
		s.validateCascade(t, cid, c, p)
	}

	if t.byKey.Len() != int(sumPrefixes(t.prefixes)) {
		p.add("%v: %d keys, %d in prefixes", t.typ, t.byKey.Len(), sumPrefixes(t.prefixes))
	}
	placed := 0
	t.byKey.Ascend(func(it keyItem) bool {
		if s.entries.IsFree(uint(it.id)) {
			p.add("%v: %v: free entry %d", t.typ, it.key, it.id)
			return true
		}
		e := s.entry(it.id)
		if route.Compare(&e.key, &it.key) != 0 || e.typ != t.typ {
			p.add("%v: %v indexes %v entry %v", t.typ, it.key, e.typ, e.key)
		}
		if e.cascade == noCascade {
			p.add("%v: %v not placed", t.typ, e.key)
			return true
		}
		placed++
		if got, ok := t.byLoc.Get(locItem{loc: s.location(e)}); !ok || got.id != it.id {
			p.add("%v: %v at %v missing from location index", t.typ, e.key, s.location(e))
		}
		return true
	})
	if t.byLoc.Len() != placed {
		p.add("%v: %d locations, %d placed entries", t.typ, t.byLoc.Len(), placed)
	}

	prev := -1
	t.byLoc.Ascend(func(it locItem) bool {
		if s.entries.IsFree(uint(it.id)) {
			p.add("%v: location %v: free entry", t.typ, it.loc)
			return true
		}
		e := s.entry(it.id)
		if e.cascade == noCascade || s.location(e) != it.loc {
			p.add("%v: %v indexed at %v", t.typ, e.key, it.loc)
		}
		if e.prefixLen < prev {
			p.add("%v: %v /%d above /%d", t.typ, e.key, e.prefixLen, prev)
		}
		prev = e.prefixLen
		return true
	})

	prevLen := -1
	for _, x := range t.prefixes {
		if x.Len <= prevLen || len(x.entries) == 0 {
			p.add("%v: prefix /%d out of order or empty", t.typ, x.Len)
		}
		prevLen = x.Len
		for _, id := range x.entries {
			if s.entries.IsFree(uint(id)) || s.entry(id).prefixLen != x.Len {
				p.add("%v: prefix /%d holds entry %d", t.typ, x.Len, id)
			}
		}
	}

	if t.Len() > 0 && !t.capacityOK() && !(t.useUnauthorizedSlices && !s.actual) &&
		!(s.tempSlicesAvailable && t.typ.Class() == s.prevClass) {
		p.add("%v: routes without authorized slices", t.typ)
	}
}

func sumPrefixes(l prefixList) (n uint) {
	for i := range l {
		n += uint(len(l[i].entries))
	}
	return
}

func (s *State) validateCascade(t *Table, cid cascadeID, c *Cascade, p *problems) {
	if w := t.typ.Width(); c.width != w || c.last-c.first+1 != w {
		p.add("%v: cascade %d spans %d-%d, width %d", t.typ, cid, c.first, c.last, w)
		return
	}
	if c.first < 0 || c.last >= s.slices.Len() {
		p.add("%v: cascade %d spans %d-%d", t.typ, cid, c.first, c.last)
		return
	}
	if !s.authorized(t, c.first, c.last) {
		p.add("%v: cascade %d-%d outside authorized %v", t.typ, c.first, c.last,
			s.ranges[t.typ.Class()])
	}
	for i := c.first; i <= c.last; i++ {
		ci := s.slices.Slices[i].Cases[c.cas]
		if ci.Type != t.typ || ci.Cascade != int32(cid) {
			p.add("%v: slice %d case %d held by %v cascade %d", t.typ, i, c.cas,
				ci.Type, ci.Cascade)
		}
	}
	count, reserved, low, high := 0, 0, -1, -1
	for r, x := range c.rows {
		if !s.slices.RowsAgree(c.first, c.last, r) {
			p.add("%v: cascade %d-%d row %d differs across slices", t.typ,
				c.first, c.last, r)
		}
		st := s.slices.Row(c.first, r)
		switch x {
		case noEntry:
			if st == tcam.InUse(c.cas) || (st == tcam.RowReserved && !s.sharerReserved(c, r)) {
				p.add("%v: cascade %d-%d row %d is %v, no entry", t.typ,
					c.first, c.last, r, st)
			}
		case reservedRow:
			reserved++
			if st != tcam.RowReserved {
				p.add("%v: cascade %d-%d row %d reserved, slice says %v",
					t.typ, c.first, c.last, r, st)
			}
		default:
			count++
			if low < 0 {
				low = r
			}
			high = r
			if st != tcam.InUse(c.cas) {
				p.add("%v: cascade %d-%d row %d in use, slice says %v",
					t.typ, c.first, c.last, r, st)
			}
			if s.entries.IsFree(uint(x)) {
				p.add("%v: cascade %d-%d row %d: free entry", t.typ, c.first, c.last, r)
			} else if e := s.entry(x); e.cascade != cid || e.row != r {
				p.add("%v: cascade %d-%d row %d holds %v at %d.%d", t.typ,
					c.first, c.last, r, e.key, e.cascade, e.row)
			}
		}
	}
	if count != c.count || reserved != c.reserved || low != c.lowRow || high != c.highRow {
		p.add("%v: cascade %d-%d counts %d/%d rows %d-%d, found %d/%d rows %d-%d",
			t.typ, c.first, c.last, c.count, c.reserved, c.lowRow, c.highRow,
			count, reserved, low, high)
	}
}

// sharerReserved reports whether the cascade sharing c's slices reserved row.
func (s *State) sharerReserved(c *Cascade, row int) bool {
	ci := s.slices.Slices[c.first].Cases[1-c.cas]
	if ci.Free() || ci.Cascade < 0 {
		return false
	}
	o := s.cascade(cascadeID(ci.Cascade))
	return o.inUse && o.first == c.first && o.rows[row] == reservedRow
}

func (s *State) validateSlices(p *problems) {
	for i := range s.slices.Slices {
		sl := &s.slices.Slices[i]
		inUse := false
		for cas, ci := range sl.Cases {
			if ci.Free() {
				if ci.Cascade != tcam.NoCascade {
					p.add("slice %d case %d: free with cascade %d", i, cas, ci.Cascade)
				}
				continue
			}
			inUse = true
			if s.cascades.IsFree(uint(ci.Cascade)) {
				p.add("slice %d case %d: %v cascade %d free", i, cas, ci.Type, ci.Cascade)
				continue
			}
			c := s.cascade(cascadeID(ci.Cascade))
			if !c.inUse || c.typ != ci.Type || c.cas != cas || i < c.first || i > c.last {
				p.add("slice %d case %d: %v cascade %d is %v %d-%d case %d",
					i, cas, ci.Type, ci.Cascade, c.typ, c.first, c.last, c.cas)
			}
		}
		if inUse != sl.InUse {
			p.add("slice %d: in use %v, cases say %v", i, sl.InUse, inUse)
		}
		for r, st := range sl.Rows {
			switch {
			case !inUse && st != tcam.RowFree:
				p.add("slice %d row %d: %v on idle slice", i, r, st)
			case st.IsInUse() && sl.Cases[st.Case()].Free():
				p.add("slice %d row %d: %v of free case", i, r, st)
			}
		}
	}
}
