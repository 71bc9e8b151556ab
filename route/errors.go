// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package route

import "github.com/pkg/errors"

// Status errors returned by the routing operations. Callers compare with
// errors.Cause since most are wrapped with the failing table or slice.
var (
	ErrNoFreeSlices    = errors.New("no free slices")
	ErrNoCapacity      = errors.New("no capacity")
	ErrAlreadyExists   = errors.New("already exists")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInUse           = errors.New("in use")
	ErrInconsistent    = errors.New("inconsistent routing state")
	ErrCommit          = errors.New("hardware commit failed")
	ErrNotActual       = errors.New("simulated state may not be committed")
)

// IsCapacity reports whether err is a capacity exhaustion.
func IsCapacity(err error) bool {
	switch errors.Cause(err) {
	case ErrNoFreeSlices, ErrNoCapacity:
		return true
	}
	return false
}
