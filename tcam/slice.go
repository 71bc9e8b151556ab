// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package tcam models the FFU's physical TCAM slices: which of the two
// cases of each slice a route type holds, which traffic classes may use the
// slice and the status of every row.
package tcam

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/platinasystems/ffuroute/route"
)

// NCase is the number of parallel match contexts of a slice.
const NCase = 2

// NoCascade marks a case that no cascade holds.
const NoCascade = -1

type RowStatus uint8

const (
	RowFree RowStatus = iota
	// Row vacated by a route that may not be reused until the
	// owning cascade is released.
	RowReserved
	rowInUse
)

// InUse returns the status of a row matched in case c.
func InUse(c int) RowStatus { return rowInUse + RowStatus(c) }

func (s RowStatus) IsInUse() bool { return s >= rowInUse }

// Case of an in use row.
func (s RowStatus) Case() int { return int(s - rowInUse) }

func (s RowStatus) String() string {
	switch s {
	case RowFree:
		return "free"
	case RowReserved:
		return "reserved"
	}
	return fmt.Sprintf("case%d", s.Case())
}

type CaseInfo struct {
	// Route type holding the case; route.NType when free.
	Type route.Type
	// Cascade handle of the holder.
	Cascade int32
}

func (c *CaseInfo) Free() bool { return c.Type == route.NType }

type Slice struct {
	Number int
	InUse  bool
	Cases  [NCase]CaseInfo
	// Traffic classes authorized to use this slice.
	Eligible [route.NClass]bool
	Rows     []RowStatus
}

// Pool is the array of physical slices.
type Pool struct {
	Slices []Slice
	nRows  int
}

func New(nSlices, nRows int) *Pool {
	p := &Pool{
		Slices: make([]Slice, nSlices),
		nRows:  nRows,
	}
	for i := range p.Slices {
		s := &p.Slices[i]
		s.Number = i
		s.Rows = make([]RowStatus, nRows)
		for c := range s.Cases {
			s.Cases[c] = CaseInfo{Type: route.NType, Cascade: NoCascade}
		}
	}
	return p
}

// Clone returns a deep copy.
func (p *Pool) Clone() *Pool {
	c := &Pool{
		Slices: append([]Slice(nil), p.Slices...),
		nRows:  p.nRows,
	}
	for i := range c.Slices {
		c.Slices[i].Rows = append([]RowStatus(nil), p.Slices[i].Rows...)
	}
	return c
}

func (p *Pool) Len() int  { return len(p.Slices) }
func (p *Pool) Rows() int { return p.nRows }

// SetEligible authorizes class c for the slices of r and revokes it
// everywhere else.
func (p *Pool) SetEligible(c route.Class, r Range) {
	for i := range p.Slices {
		p.Slices[i].Eligible[c] = r.Contains(i)
	}
}

func (p *Pool) Eligible(i int, c route.Class) bool { return p.Slices[i].Eligible[c] }

// CaseOf returns the case type t holds on slice i or -1.
func (p *Pool) CaseOf(i int, t route.Type) int {
	for c := range p.Slices[i].Cases {
		if p.Slices[i].Cases[c].Type == t {
			return c
		}
	}
	return -1
}

// CanReserve reports whether ReserveCase(i, t, ...) would succeed.
// Eligibility is checked by the caller since migrating routes may
// reference slices their class no longer owns.
func (p *Pool) CanReserve(i int, t route.Type) bool {
	s := &p.Slices[i]
	free := false
	for c := range s.Cases {
		ci := &s.Cases[c]
		switch {
		case ci.Free():
			free = true
		case !route.CanShare(ci.Type, t):
			return false
		}
	}
	return free
}

// ReserveCase assigns a free case of slice i to cascade of type t.
func (p *Pool) ReserveCase(i int, t route.Type, cascade int32) (c int, err error) {
	if !p.CanReserve(i, t) {
		err = errors.Wrapf(route.ErrNoCapacity, "slice %d: no case for %v", i, t)
		return
	}
	s := &p.Slices[i]
	for c = range s.Cases {
		if s.Cases[c].Free() {
			break
		}
	}
	s.Cases[c] = CaseInfo{Type: t, Cascade: cascade}
	s.InUse = true
	return
}

func (p *Pool) ReleaseCase(i, c int) {
	s := &p.Slices[i]
	s.Cases[c] = CaseInfo{Type: route.NType, Cascade: NoCascade}
	s.InUse = false
	for c := range s.Cases {
		if !s.Cases[c].Free() {
			s.InUse = true
		}
	}
}

func (p *Pool) Row(i, row int) RowStatus { return p.Slices[i].Rows[row] }

// SetRow sets row status on every slice of first..last.
func (p *Pool) SetRow(first, last, row int, st RowStatus) {
	for i := first; i <= last; i++ {
		p.Slices[i].Rows[row] = st
	}
}

// RowsAgree reports whether every slice of first..last has the same status
// for row.
func (p *Pool) RowsAgree(first, last, row int) bool {
	st := p.Slices[first].Rows[row]
	for i := first + 1; i <= last; i++ {
		if p.Slices[i].Rows[row] != st {
			return false
		}
	}
	return true
}

// InUseCount returns the number of slices holding at least one case.
func (p *Pool) InUseCount() (n int) {
	for i := range p.Slices {
		if p.Slices[i].InUse {
			n++
		}
	}
	return
}
