// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regcache

import "github.com/pkg/errors"

var ErrInjected = errors.New("injected commit failure")

// Cache is an in-memory register cache.  It stands in for hardware in
// simulation and keeps what was last written for read back.
type Cache struct {
	regs map[location][]uint32

	// Counters.
	Commits, Writes, Redundant int

	nFail   int
	failErr error
}

func NewCache() *Cache {
	return &Cache{regs: make(map[location][]uint32)}
}

// FailNext makes the next n commits fail with err without writing.
func (c *Cache) FailNext(n int, err error) {
	if err == nil {
		err = ErrInjected
	}
	c.nFail, c.failErr = n, err
}

func (c *Cache) Commit(b *Batch) error {
	if c.nFail > 0 {
		c.nFail--
		return c.failErr
	}
	c.Commits++
	for i := range b.Writes {
		w := &b.Writes[i]
		l := location{w.Address, w.Index}
		if equal(c.regs[l], w.Data) {
			c.Redundant++
			continue
		}
		c.regs[l] = append([]uint32(nil), w.Data...)
		c.Writes++
	}
	return nil
}

func (c *Cache) Read(address, index uint32) (data []uint32, ok bool) {
	data, ok = c.regs[location{address, index}]
	return
}

func equal(a, b []uint32) bool {
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
