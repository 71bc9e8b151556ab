// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import "sort"

// Prefix groups the entries of a table sharing one prefix length.
// Entries are kept in insertion order.
type Prefix struct {
	Len     int
	entries []entryID
}

// prefixList is kept sorted by length with no empty groups.
type prefixList []Prefix

func (l prefixList) search(n int) int {
	return sort.Search(len(l), func(i int) bool { return l[i].Len >= n })
}

func (l prefixList) find(n int) (p *Prefix) {
	if i := l.search(n); i < len(l) && l[i].Len == n {
		p = &l[i]
	}
	return
}

func (l *prefixList) add(n int, id entryID) {
	i := l.search(n)
	if i == len(*l) || (*l)[i].Len != n {
		*l = append(*l, Prefix{})
		copy((*l)[i+1:], (*l)[i:])
		(*l)[i] = Prefix{Len: n}
	}
	p := &(*l)[i]
	p.entries = append(p.entries, id)
}

func (l *prefixList) remove(n int, id entryID) bool {
	i := l.search(n)
	if i == len(*l) || (*l)[i].Len != n {
		return false
	}
	p := &(*l)[i]
	for j, x := range p.entries {
		if x == id {
			p.entries = append(p.entries[:j], p.entries[j+1:]...)
			if len(p.entries) == 0 {
				*l = append((*l)[:i], (*l)[i+1:]...)
			}
			return true
		}
	}
	return false
}

func (l prefixList) clone() prefixList {
	c := make(prefixList, len(l))
	for i := range l {
		c[i] = Prefix{
			Len:     l[i].Len,
			entries: append([]entryID(nil), l[i].entries...),
		}
	}
	return c
}
