// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package pool provides index arenas: elements live in one vector and are
// named by their index, which stays stable until the element is put back.
package pool

import "errors"

// ErrTooLarge is passed to panic if a pool grows past its limit.
var ErrTooLarge = errors.New("pool: too large")

type Pool[T any] struct {
	elts []T
	// Vector of free indices; last freed is reused first.
	freeIndices []uint32
	// Bitmap of free indices.
	freeBitmap []uint64
	// Non-zero to limit size of pool.
	maxLen uint
}

func (p *Pool[T]) isFree(i uint) bool {
	w := i / 64
	return w < uint(len(p.freeBitmap)) && p.freeBitmap[w]&(1<<(i%64)) != 0
}

func (p *Pool[T]) setFree(i uint, free bool) {
	w := i / 64
	for w >= uint(len(p.freeBitmap)) {
		p.freeBitmap = append(p.freeBitmap, 0)
	}
	if free {
		p.freeBitmap[w] |= 1 << (i % 64)
	} else {
		p.freeBitmap[w] &^= 1 << (i % 64)
	}
}

// Get allocates an element and returns its index.  The element is zeroed.
func (p *Pool[T]) Get() (i uint) {
	if l := len(p.freeIndices); l != 0 {
		i = uint(p.freeIndices[l-1])
		p.freeIndices = p.freeIndices[:l-1]
		p.setFree(i, false)
		var zero T
		p.elts[i] = zero
		return
	}
	i = uint(len(p.elts))
	if p.maxLen != 0 && i >= p.maxLen {
		panic(ErrTooLarge)
	}
	var zero T
	p.elts = append(p.elts, zero)
	return
}

// Put frees index i.  Returns false if i was already free.
func (p *Pool[T]) Put(i uint) (ok bool) {
	if ok = i < uint(len(p.elts)) && !p.isFree(i); ok {
		p.freeIndices = append(p.freeIndices, uint32(i))
		p.setFree(i, true)
	}
	return
}

// Elt returns a pointer to element i; valid until the next Get.
func (p *Pool[T]) Elt(i uint) *T { return &p.elts[i] }

// IsFree reports whether i does not name a live element.
func (p *Pool[T]) IsFree(i uint) bool { return i >= uint(len(p.elts)) || p.isFree(i) }

// Len is the vector length including free elements.
func (p *Pool[T]) Len() uint { return uint(len(p.elts)) }

// Elts is the number of live elements.
func (p *Pool[T]) Elts() uint { return uint(len(p.elts) - len(p.freeIndices)) }

func (p *Pool[T]) FreeLen() uint    { return uint(len(p.freeIndices)) }
func (p *Pool[T]) MaxLen() uint     { return p.maxLen }
func (p *Pool[T]) SetMaxLen(x uint) { p.maxLen = x }

// Foreach calls f for each live element in index order.
func (p *Pool[T]) Foreach(f func(i uint, x *T)) {
	for i := range p.elts {
		if !p.isFree(uint(i)) {
			f(uint(i), &p.elts[i])
		}
	}
}

// Clone returns a copy sharing nothing with p.  Elements are copied by
// value; use CloneFunc when T holds slices that must be copied too.
func (p *Pool[T]) Clone() *Pool[T] { return p.CloneFunc(nil) }

// CloneFunc is Clone with dup called on every copied live element.
func (p *Pool[T]) CloneFunc(dup func(x *T)) *Pool[T] {
	c := &Pool[T]{
		elts:        append([]T(nil), p.elts...),
		freeIndices: append([]uint32(nil), p.freeIndices...),
		freeBitmap:  append([]uint64(nil), p.freeBitmap...),
		maxLen:      p.maxLen,
	}
	if dup != nil {
		c.Foreach(func(_ uint, x *T) { dup(x) })
	}
	return c
}

func (p *Pool[T]) Reset() {
	p.elts = p.elts[:0]
	p.freeIndices = p.freeIndices[:0]
	p.freeBitmap = p.freeBitmap[:0]
}
