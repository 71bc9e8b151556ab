// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"sort"

	"github.com/google/btree"
	"github.com/pkg/errors"

	"github.com/platinasystems/ffuroute/route"
)

const btreeDegree = 16

// Table holds the routes of one type.
type Table struct {
	typ route.Type

	// Ordered by first slice.
	cascades []cascadeID

	prefixes prefixList

	// Every entry is in byKey; placed entries are also in byLoc.
	byKey *btree.BTreeG[keyItem]
	byLoc *btree.BTreeG[locItem]

	// The unicast and multicast classes of the table's family have
	// slices.
	ucastOK, mcastOK bool

	// No cascades may be built or released.
	locked bool

	// Simulations only: build cascades on slices no class owns.
	useUnauthorizedSlices bool
}

func (t *Table) init(typ route.Type) {
	*t = Table{
		typ:   typ,
		byKey: btree.NewG(btreeDegree, keyLess),
		byLoc: btree.NewG(btreeDegree, locLess),
	}
}

func (t *Table) clone() Table {
	c := *t
	c.cascades = append([]cascadeID(nil), t.cascades...)
	c.prefixes = t.prefixes.clone()
	c.byKey = t.byKey.Clone()
	c.byLoc = t.byLoc.Clone()
	return c
}

func (t *Table) Type() route.Type { return t.typ }
func (t *Table) Len() int         { return t.byKey.Len() }

func (t *Table) capacityOK() bool {
	if t.typ.Class().IsMulticast() {
		return t.mcastOK
	}
	return t.ucastOK
}

func (t *Table) insertCascade(s *State, id cascadeID) {
	first := s.cascade(id).first
	i := sort.Search(len(t.cascades), func(i int) bool {
		return s.cascade(t.cascades[i]).first > first
	})
	t.cascades = append(t.cascades, noCascade)
	copy(t.cascades[i+1:], t.cascades[i:])
	t.cascades[i] = id
}

func (t *Table) removeCascade(id cascadeID) {
	for i, x := range t.cascades {
		if x == id {
			t.cascades = append(t.cascades[:i], t.cascades[i+1:]...)
			return
		}
	}
}

func (s *State) entry(id entryID) *Entry { return s.entries.Elt(uint(id)) }

func (s *State) lookup(k *route.Key) (*Table, entryID, error) {
	if !k.Dst.IsValid() {
		return nil, noEntry, errors.Wrap(route.ErrInvalidArgument, "no destination")
	}
	t := &s.tables[k.Type()]
	item, ok := t.byKey.Get(keyItem{key: *k})
	if !ok {
		return t, noEntry, errors.Wrapf(route.ErrNotFound, "%v", k)
	}
	return t, item.id, nil
}

// addRoute places and indexes a new route.  A failed add leaves the state
// unchanged.
func (s *State) addRoute(r *route.Route) (entryID, error) {
	typ := r.Key.Type()
	t := &s.tables[typ]
	if t.byKey.Has(keyItem{key: r.Key}) {
		return noEntry, errors.Wrapf(route.ErrAlreadyExists, "%v", r.Key)
	}
	if !t.capacityOK() && !(t.useUnauthorizedSlices && !s.actual) {
		return noEntry, errors.Wrapf(route.ErrNoCapacity,
			"%v: no slices authorized", typ)
	}
	n := r.Key.PrefixLen()
	cid, row, err := s.place(t, n)
	if err != nil {
		return noEntry, err
	}
	id := entryID(s.entries.Get())
	*s.entry(id) = Entry{
		typ:       typ,
		key:       r.Key,
		prefixLen: n,
		cascade:   noCascade,
		row:       -1,
		action:    r.Action,
		active:    r.Active,
		ecmp:      r.Ecmp,
	}
	t.byKey.ReplaceOrInsert(keyItem{key: r.Key, id: id})
	t.prefixes.add(n, id)
	s.attach(t, id, cid, row)
	return id, nil
}

func (s *State) deleteRoute(k *route.Key) error {
	t, id, err := s.lookup(k)
	if err != nil {
		return err
	}
	e := s.entry(id)
	if !t.prefixes.remove(e.prefixLen, id) {
		return errors.Wrapf(route.ErrInconsistent, "%v: not in prefix /%d",
			e.key, e.prefixLen)
	}
	t.byKey.Delete(keyItem{key: e.key})
	if e.cascade != noCascade {
		s.releaseRow(t, id, true)
	}
	s.entry(id).dirty = false
	s.entries.Put(uint(id))
	return nil
}

// update applies f to an installed route and marks it for commit.
func (s *State) update(k *route.Key, f func(e *Entry)) error {
	_, id, err := s.lookup(k)
	if err != nil {
		return err
	}
	f(s.entry(id))
	s.markDirty(id)
	return nil
}

// ascendRouter calls f for each entry of vrid in every table, type order first.
func (s *State) ascendRouter(vrid uint8, f func(t *Table, id entryID) bool) {
	for i := range s.tables {
		t := &s.tables[i]
		more := true
		t.byKey.AscendGreaterOrEqual(keyItem{key: route.Key{Vrid: vrid}},
			func(it keyItem) bool {
				if it.key.Vrid != vrid {
					return false
				}
				more = f(t, it.id)
				return more
			})
		if !more {
			return
		}
	}
}

func (s *State) first() (*Entry, bool) {
	for i := range s.tables {
		if it, ok := s.tables[i].byKey.Min(); ok {
			return s.entry(it.id), true
		}
	}
	return nil, false
}

// next returns the entry following k, which need not be installed.
func (s *State) next(k *route.Key) (*Entry, bool) {
	if !k.Dst.IsValid() {
		return s.first()
	}
	typ := k.Type()
	var (
		found keyItem
		ok    bool
	)
	s.tables[typ].byKey.AscendGreaterOrEqual(keyItem{key: *k},
		func(it keyItem) bool {
			if route.Compare(&it.key, k) == 0 {
				return true
			}
			found, ok = it, true
			return false
		})
	if ok {
		return s.entry(found.id), true
	}
	for typ++; typ < route.NType; typ++ {
		if it, ok := s.tables[typ].byKey.Min(); ok {
			return s.entry(it.id), true
		}
	}
	return nil, false
}
