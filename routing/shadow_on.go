// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build tcamshadow
// +build tcamshadow

package routing

import (
	"fmt"

	"github.com/platinasystems/ffuroute/tcam"
)

const shadowEnabled = true

// shadow is what was last committed for an entry.
type shadow struct {
	written bool
	cells   []tcam.Cell
	action  uint64
	valid   bool
	cas     int
	loc     staleRow
}

func (s *State) recordShadow(e *Entry) {
	c := s.cascade(e.cascade)
	e.shadow = shadow{
		written: true,
		cells:   tcam.EncodeKey(&e.key, c.width),
		action:  tcam.EncodeAction(&e.action, e.ecmp),
		valid:   s.valid(e),
		cas:     c.cas,
		loc:     staleRow{c.first, c.last, e.row},
	}
}

// checkShadow compares committed entries with their shadow and, given r,
// with the registers read back.
func (s *State) checkShadow(r Reader) (problems []string) {
	s.entries.Foreach(func(i uint, e *Entry) {
		if e.dirty || e.cascade == noCascade {
			return
		}
		sh := &e.shadow
		if !sh.written {
			problems = append(problems, fmt.Sprintf("%v: committed without shadow", e.key))
			return
		}
		c := s.cascade(e.cascade)
		if sh.loc != (staleRow{c.first, c.last, e.row}) || sh.cas != c.cas ||
			sh.valid != s.valid(e) ||
			sh.action != tcam.EncodeAction(&e.action, e.ecmp) {
			problems = append(problems, fmt.Sprintf("%v: shadow differs from entry", e.key))
			return
		}
		if r == nil {
			return
		}
		for j, cell := range sh.cells {
			want := cell.Data(sh.valid, sh.cas)
			got, ok := r.Read(tcam.KeyAddress(c.first+j), uint32(e.row))
			if !ok || !equalWords(got, want) {
				problems = append(problems,
					fmt.Sprintf("%v: slice %d row %d: read %x want %x",
						e.key, c.first+j, e.row, got, want))
			}
		}
		got, ok := r.Read(tcam.ActionAddress(c.last), uint32(e.row))
		want := []uint32{uint32(sh.action), uint32(sh.action >> 32)}
		if !ok || !equalWords(got, want) {
			problems = append(problems,
				fmt.Sprintf("%v: action row %d: read %x want %x",
					e.key, e.row, got, want))
		}
	})
	return
}

func equalWords(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
