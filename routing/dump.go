// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"fmt"
	"io"

	"github.com/platinasystems/ffuroute/route"
)

// Stats summarize the actual state.
type Stats struct {
	Phase        Phase
	Routes       [route.NType]int
	Cascades     [route.NType]int
	SlicesInUse  int
	Dirty        int
	Moves        uint64
	Repartitions [nRepartitionResult]uint64
	CommitErrors uint64
	ArpRedirects uint64
	PendingArp   int
}

func (sw *Switch) Stats() Stats {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.stats()
}

func (sw *Switch) stats() (st Stats) {
	s := sw.state
	st.Phase = sw.phase
	for i := range s.tables {
		st.Routes[i] = s.tables[i].Len()
		st.Cascades[i] = len(s.tables[i].cascades)
	}
	st.SlicesInUse = s.slices.InUseCount()
	st.Dirty = s.Dirty()
	st.Moves = s.moves
	st.Repartitions = sw.repartitions
	st.CommitErrors = sw.commitErrors
	st.ArpRedirects = sw.arpRedirects
	st.PendingArp = len(sw.pendingArp)
	return
}

func (sw *Switch) DumpRouteStats(w io.Writer) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	st := sw.stats()
	fmt.Fprintf(w, "phase %v, %d slices in use, %d dirty, %d moves\n",
		st.Phase, st.SlicesInUse, st.Dirty, st.Moves)
	fmt.Fprintf(w, "%-16s %8s %8s\n", "type", "routes", "cascades")
	for t := route.Type(0); t < route.NType; t++ {
		fmt.Fprintf(w, "%-16v %8d %8d\n", t, st.Routes[t], st.Cascades[t])
	}
	for i, n := range st.Repartitions {
		fmt.Fprintf(w, "repartitions %s: %d\n", repartitionResultNames[i], n)
	}
	fmt.Fprintf(w, "commit errors: %d\narp redirects: %d pending %d\n",
		st.CommitErrors, st.ArpRedirects, st.PendingArp)
}

// DumpStateTable prints authorized ranges and one line per slice.
func (sw *Switch) DumpStateTable(w io.Writer) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	s := sw.state
	fmt.Fprintf(w, "actual %v\n", s.actual)
	for cl := route.Class(0); cl < route.NClass; cl++ {
		fmt.Fprintf(w, "%-14v %v\n", cl, s.ranges[cl])
	}
	for i := range s.slices.Slices {
		sl := &s.slices.Slices[i]
		fmt.Fprintf(w, "slice %2d:", i)
		for cl := route.Class(0); cl < route.NClass; cl++ {
			if sl.Eligible[cl] {
				fmt.Fprint(w, " ", cl)
			}
		}
		if !sl.InUse {
			fmt.Fprintln(w, " idle")
			continue
		}
		for c, ci := range sl.Cases {
			if ci.Free() {
				continue
			}
			n := 0
			for _, st := range sl.Rows {
				if st.IsInUse() && st.Case() == c {
					n++
				}
			}
			fmt.Fprintf(w, " case%d %v cascade %d rows %d", c, ci.Type, ci.Cascade, n)
		}
		fmt.Fprintln(w)
	}
}

func (sw *Switch) DumpPrefixLists(w io.Writer) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	s := sw.state
	for i := range s.tables {
		t := &s.tables[i]
		if len(t.prefixes) == 0 {
			continue
		}
		fmt.Fprintf(w, "%v:", t.typ)
		for _, p := range t.prefixes {
			fmt.Fprintf(w, " /%d:%d", p.Len, len(p.entries))
		}
		fmt.Fprintln(w)
	}
}

// DumpRouteTables prints each table's cascades and its routes in location
// order.
func (sw *Switch) DumpRouteTables(w io.Writer) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	s := sw.state
	for i := range s.tables {
		t := &s.tables[i]
		if t.Len() == 0 && len(t.cascades) == 0 {
			continue
		}
		fmt.Fprintf(w, "%v: %d routes\n", t.typ, t.Len())
		for _, cid := range t.cascades {
			c := s.cascade(cid)
			fmt.Fprintf(w, "  cascade %d-%d case %d rows %d-%d count %d\n",
				c.first, c.last, c.cas, c.lowRow, c.highRow, c.count)
		}
		t.byLoc.Ascend(func(it locItem) bool {
			e := s.entry(it.id)
			dirty := ""
			if e.dirty {
				dirty = " dirty"
			}
			first, last := e.key.Span()
			fmt.Fprintf(w, "  %-8v %v: %v active %v span %v-%v%s\n", it.loc, e.key,
				e.action, e.active, first, last, dirty)
			return true
		})
	}
}
