// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"github.com/pkg/errors"

	"github.com/platinasystems/ffuroute/regcache"
	"github.com/platinasystems/ffuroute/route"
	"github.com/platinasystems/ffuroute/tcam"
)

// encode adds the writes of a placed entry to b: action first, then the key
// cells of every slice of its cascade.
func (s *State) encode(b *regcache.Batch, e *Entry) {
	c := s.cascade(e.cascade)
	a := tcam.EncodeAction(&e.action, e.ecmp)
	b.Set(tcam.ActionAddress(c.last), uint32(e.row),
		[]uint32{uint32(a), uint32(a >> 32)})
	valid := s.valid(e)
	for i, cell := range tcam.EncodeKey(&e.key, c.width) {
		b.Set(tcam.KeyAddress(c.first+i), uint32(e.row), cell.Data(valid, c.cas))
	}
}

// flush commits dirty entries in the order they were changed, so a moved
// entry is written at its new row before the row it left is overwritten,
// then invalidates vacated rows nothing reused.  On failure everything
// stays pending for the next flush.
func (s *State) flush(c regcache.Committer) error {
	if !s.actual {
		return errors.Wrap(route.ErrNotActual, "flush")
	}
	if len(s.dirty) == 0 && len(s.stale) == 0 {
		return nil
	}
	last := make(map[entryID]int, len(s.dirty))
	for i, id := range s.dirty {
		last[id] = i
	}
	var b regcache.Batch
	for i, id := range s.dirty {
		if last[id] != i || s.entries.IsFree(uint(id)) {
			continue
		}
		if e := s.entry(id); e.dirty && e.cascade != noCascade {
			s.encode(&b, e)
		}
	}
	invalid := tcam.Cell{}.Data(false, 0)
	for _, r := range s.staleRows() {
		for i := r.first; i <= r.last; i++ {
			if !s.slices.Row(i, r.row).IsInUse() {
				b.Set(tcam.KeyAddress(i), uint32(r.row), invalid)
			}
		}
	}
	if err := c.Commit(&b); err != nil {
		return errors.Wrapf(route.ErrCommit, "%d writes: %v", b.Len(), err)
	}
	for _, id := range s.dirty {
		if s.entries.IsFree(uint(id)) {
			continue
		}
		if e := s.entry(id); e.dirty {
			e.dirty = false
			if e.cascade != noCascade {
				s.recordShadow(e)
			}
		}
	}
	s.dirty = s.dirty[:0]
	for r := range s.stale {
		delete(s.stale, r)
	}
	return nil
}
