// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"github.com/pkg/errors"

	"github.com/platinasystems/ffuroute/route"
)

// MacMode selects the router MAC addresses a virtual router answers to.
type MacMode uint8

const (
	MacPhysical MacMode = iota
	// Also answer to the VRRP virtual router MAC.
	MacVirtual
)

func (m MacMode) String() string {
	if m == MacVirtual {
		return "virtual"
	}
	return "physical"
}

type vrouter struct {
	exists bool
	up     bool
	mac    MacMode
}

// CreateVirtualRouter adds router vrid in the down state.  Router 0
// always exists.
func (sw *Switch) CreateVirtualRouter(vrid uint8) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	vr := &sw.state.routers[vrid]
	if vr.exists {
		return errors.Wrapf(route.ErrAlreadyExists, "vr%d", vrid)
	}
	*vr = vrouter{exists: true}
	return nil
}

// DeleteVirtualRouter removes a router with no routes.
func (sw *Switch) DeleteVirtualRouter(vrid uint8) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if vrid == 0 {
		return errors.Wrap(route.ErrInvalidArgument, "vr0")
	}
	if err := sw.routerExists(vrid); err != nil {
		return err
	}
	n := 0
	sw.state.ascendRouter(vrid, func(*Table, entryID) bool {
		n++
		return false
	})
	if n > 0 {
		return errors.Wrapf(route.ErrInUse, "vr%d has routes", vrid)
	}
	sw.state.routers[vrid] = vrouter{}
	return nil
}

// SetRouterState brings a router up or down; routes of a down router stay
// installed with the hardware valid bit clear.
func (sw *Switch) SetRouterState(vrid uint8, up bool) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if err := sw.routerExists(vrid); err != nil {
		return err
	}
	if sw.state.routers[vrid].up == up {
		return nil
	}
	return sw.update("router state", func(s *State) error {
		s.routers[vrid].up = up
		s.ascendRouter(vrid, func(_ *Table, id entryID) bool {
			s.markDirty(id)
			return true
		})
		return nil
	})
}

func (sw *Switch) SetRouterMacMode(vrid uint8, m MacMode) error {
	if m > MacVirtual {
		return errors.Wrapf(route.ErrInvalidArgument, "mac mode %d", m)
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if err := sw.routerExists(vrid); err != nil {
		return err
	}
	sw.state.routers[vrid].mac = m
	return nil
}

// RouterState returns whether vrid exists, is up and its MAC mode.
func (sw *Switch) RouterState(vrid uint8) (exists, up bool, m MacMode) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	vr := &sw.state.routers[vrid]
	return vr.exists, vr.up, vr.mac
}
