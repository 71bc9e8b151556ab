// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package regcache is the boundary to the register cache: routing fills
// batches of (address, index, data) writes and hands them to a Committer.
package regcache

import "fmt"

type Write struct {
	Address uint32
	Index   uint32
	Data    []uint32
}

func (w *Write) String() string {
	return fmt.Sprintf("0x%x[%d] = %x", w.Address, w.Index, w.Data)
}

type location struct{ address, index uint32 }

// Batch collects the writes of one commit.  A repeated write to the same
// location keeps the position of the first write and the data of the last.
type Batch struct {
	Writes     []Write
	byLocation map[location]int
}

func (b *Batch) Set(address, index uint32, data []uint32) {
	l := location{address, index}
	if b.byLocation == nil {
		b.byLocation = make(map[location]int)
	}
	if i, ok := b.byLocation[l]; ok {
		b.Writes[i].Data = data
		return
	}
	b.byLocation[l] = len(b.Writes)
	b.Writes = append(b.Writes, Write{Address: address, Index: index, Data: data})
}

func (b *Batch) Len() int { return len(b.Writes) }

func (b *Batch) Reset() {
	b.Writes = b.Writes[:0]
	for l := range b.byLocation {
		delete(b.byLocation, l)
	}
}

// Committer writes a batch to hardware.
type Committer interface {
	Commit(b *Batch) error
}
