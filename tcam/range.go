// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package tcam

import "fmt"

// Range is an inclusive span of slice numbers.
type Range struct {
	First, Last int
}

// NoRange authorizes nothing.
var NoRange = Range{-1, -1}

func (r Range) Valid() bool { return r.First >= 0 && r.Last >= r.First }

func (r Range) Len() int {
	if !r.Valid() {
		return 0
	}
	return r.Last - r.First + 1
}

func (r Range) Contains(i int) bool { return r.Valid() && i >= r.First && i <= r.Last }

// Covers reports whether first..last lies wholly inside r.
func (r Range) Covers(first, last int) bool { return r.Contains(first) && r.Contains(last) }

// Overlaps reports whether first..last shares a slice with r.
func (r Range) Overlaps(first, last int) bool {
	return r.Valid() && first <= r.Last && last >= r.First
}

func (r Range) String() string {
	if !r.Valid() {
		return "none"
	}
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}
