// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package tcam

import (
	"github.com/platinasystems/ffuroute/route"
)

// Word holds the key bits one slice matches.
type Word uint64

const wordMask = Word(1)<<route.KeyBitsPerSlice - 1

// TCAM x/y cell encoding: x = mask & key; y = mask &^ key
// x/y are the bits that are masked with value of 1/0 respectively.
// Decoding: key = x, mask = x | y
func (a Word) TcamEncode(mask Word) (x, y Word) {
	x, y = mask&a, mask&^a
	return
}

func TcamDecode(x, y Word) (key, mask Word) { return x, x | y }

// Cell is the encoded key and mask one slice of a cascade holds for a row.
type Cell struct{ X, Y Word }

// keyBits accumulates fields into consecutive slice words.
type keyBits struct {
	key, mask []Word
	n         uint
}

func (b *keyBits) put(v, m uint64, nBits uint) {
	for nBits > 0 {
		w, o := b.n/route.KeyBitsPerSlice, b.n%route.KeyBitsPerSlice
		l := route.KeyBitsPerSlice - o
		if l > nBits {
			l = nBits
		}
		lm := uint64(1)<<l - 1
		b.key[w] |= Word(v&lm) << o
		b.mask[w] |= Word(m&lm) << o
		v, m = v>>l, m>>l
		b.n += l
		nBits -= l
	}
}

// putPrefix adds an address with the leading l bits significant.
func (b *keyBits) putPrefix(a []byte, l int) {
	// Least significant byte first so that put() packs low bits first.
	for i := len(a) - 1; i >= 0; i-- {
		bits := l - 8*i
		switch {
		case bits > 8:
			bits = 8
		case bits < 0:
			bits = 0
		}
		m := uint64(0xff) << (8 - bits) & 0xff
		b.put(uint64(a[i]), m, 8)
	}
}

// EncodeKey returns the x/y cells of k for a cascade of the given width.
func EncodeKey(k *route.Key, width int) []Cell {
	b := keyBits{
		key:  make([]Word, width),
		mask: make([]Word, width),
	}
	b.put(uint64(k.Vrid), 0xff, 8)
	dst := k.Dst.Addr().AsSlice()
	b.putPrefix(dst, k.Dst.Bits())
	t := k.Type()
	if t == route.V4DestSrcVlan || t == route.V6DestSrcVlan {
		if k.Src.IsValid() {
			b.putPrefix(k.Src.Addr().AsSlice(), k.Src.Bits())
		} else {
			b.put(0, 0, uint(8*len(dst)))
		}
	}
	if t.Class().IsMulticast() && t != route.V4Group && t != route.V6Group {
		var m uint64
		if k.Vlan != 0 {
			m = route.MaxVlan
		}
		b.put(uint64(k.Vlan), m, route.VlanBits)
	}
	cells := make([]Cell, width)
	for i := range cells {
		cells[i].X, cells[i].Y = (b.key[i] & wordMask).TcamEncode(b.mask[i] & wordMask)
	}
	return cells
}

// Data returns the register words for a key cell.
func (c Cell) Data(valid bool, cas int) []uint32 {
	var flags uint32
	if valid {
		flags |= 1 << 8
	}
	flags |= uint32(cas) << 9
	return []uint32{
		uint32(c.X),
		uint32(c.X>>32) | flags,
		uint32(c.Y),
		uint32(c.Y >> 32),
	}
}

// EncodeAction packs a route's action word: kind in bits 0-1, unresolved
// in bit 2, ecmp flag in bit 3, arp index or ecmp group in bits 8-31,
// glort in bits 32-47.
func EncodeAction(a *route.Action, ecmp route.EcmpGroup) uint64 {
	v := uint64(a.Kind) & 3
	if a.Unresolved {
		v |= 1 << 2
	}
	if ecmp != 0 {
		v |= 1<<3 | uint64(ecmp&0xffffff)<<8
	} else {
		v |= uint64(a.ArpIndex&0xffffff) << 8
	}
	v |= uint64(a.Glort) << 32
	return v
}

// Register addresses of the per slice key and action memories.
const (
	keyBase      = 0xc00000
	actionBase   = 0xc80000
	sliceStride  = 0x2000
	WordsPerCell = 4
)

func KeyAddress(slice int) uint32    { return keyBase + uint32(slice)*sliceStride }
func ActionAddress(slice int) uint32 { return actionBase + uint32(slice)*sliceStride }
