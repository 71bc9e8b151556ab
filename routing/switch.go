// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package routing packs IPv4 and IPv6 unicast and multicast routes into
// the FFU's TCAM slices and keeps hardware in step with them.
//
// A Switch owns one actual State.  Every public call holds the switch
// lock for its duration; nothing below it locks.  Route changes are made
// in software first, then the changed rows are committed as one register
// cache batch.  Slice range changes from the filter slice compiler are
// simulated on a clone that replaces the actual state only when every
// route found a new home.
package routing

import (
	"net/netip"
	"sync"

	"github.com/pkg/errors"
	"github.com/platinasystems/log"
	uuid "github.com/satori/go.uuid"

	"github.com/platinasystems/ffuroute/config"
	"github.com/platinasystems/ffuroute/regcache"
	"github.com/platinasystems/ffuroute/route"
	"github.com/platinasystems/ffuroute/tcam"
)

// SliceReleaser is the filter slice compiler; it is told which slices a
// class gave up once its routes left them.
type SliceReleaser interface {
	ReleaseSlices(cl route.Class, r tcam.Range) error
}

// Deps are the collaborators of a Switch.  Committer is required.
type Deps struct {
	Committer regcache.Committer
	Releaser  SliceReleaser
	Resolver  NextHopResolver
}

type repartitionResult int

const (
	repartitionCommitted repartitionResult = iota
	repartitionSimulated
	repartitionAborted
	nRepartitionResult
)

var repartitionResultNames = [nRepartitionResult]string{
	repartitionCommitted: "committed",
	repartitionSimulated: "simulated",
	repartitionAborted:   "aborted",
}

type released struct {
	class route.Class
	r     tcam.Range
}

type Switch struct {
	mu sync.Mutex
	Deps
	cfg   config.Config
	state *State
	phase Phase

	pendingArp     []arpRedirect
	pendingRelease []released

	repartitions  [nRepartitionResult]uint64
	commitErrors  uint64
	arpRedirects  uint64
	validateError uint64
}

func New(cfg *config.Config, deps Deps) (*Switch, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if deps.Committer == nil {
		return nil, errors.Wrap(route.ErrInvalidArgument, "no committer")
	}
	s := newState(cfg.Slices, cfg.RowsPerSlice)
	s.actual = true
	for cl := route.Class(0); cl < route.NClass; cl++ {
		s.setRange(cl, cfg.Range(cl))
	}
	s.routers[0] = vrouter{exists: true, up: true}
	sw := &Switch{
		Deps:  deps,
		cfg:   *cfg,
		state: s,
	}
	log.Print("info", "routing: ", cfg.Slices, " slices of ", cfg.RowsPerSlice, " rows")
	return sw, nil
}

// Range returns the slices class cl is authorized to use.
func (sw *Switch) Range(cl route.Class) tcam.Range {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.state.ranges[cl]
}

// update applies f to the actual state and commits the result.  With
// validation configured f runs on a clone that replaces the state only if
// it validates.
func (sw *Switch) update(what string, f func(s *State) error) error {
	s := sw.state
	if sw.cfg.Validate {
		s = s.Clone()
		s.actual = true
	}
	if err := f(s); err != nil {
		log.Print("debug", "routing: ", what, ": ", err)
		return err
	}
	if sw.cfg.Validate {
		if err := s.validate(nil); err != nil {
			sw.validateError++
			log.Print("err", "routing: ", what, ": ", err)
			return err
		}
		sw.state = s
	}
	return sw.flush()
}

// flush commits pending writes and, once they are in hardware, tells the
// compiler about slices given up by a repartition.
func (sw *Switch) flush() error {
	if err := sw.state.flush(sw.Committer); err != nil {
		sw.commitErrors++
		log.Print("err", "routing: ", err)
		return err
	}
	for _, x := range sw.pendingRelease {
		if sw.Releaser == nil {
			break
		}
		if err := sw.Releaser.ReleaseSlices(x.class, x.r); err != nil {
			log.Print("err", "routing: release ", x.class, " slices ", x.r, ": ", err)
		}
	}
	sw.pendingRelease = sw.pendingRelease[:0]
	return nil
}

// FlushDirty retries the commit of everything a failed commit left
// pending.
func (sw *Switch) FlushDirty() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.flush()
}

func (sw *Switch) routerExists(vrid uint8) error {
	if !sw.state.routers[vrid].exists {
		return errors.Wrapf(route.ErrNotFound, "vr%d", vrid)
	}
	return nil
}

func (sw *Switch) AddRoute(info *route.Info) error {
	k, err := info.Key()
	if err != nil {
		return err
	}
	r := route.Route{
		Key:    k,
		Type:   k.Type(),
		Action: info.Action,
		Active: info.Active,
		Ecmp:   info.Ecmp,
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if err = sw.routerExists(k.Vrid); err != nil {
		return err
	}
	return sw.update("add "+k.String(), func(s *State) error {
		_, err := s.addRoute(&r)
		return err
	})
}

func (sw *Switch) DeleteRoute(k route.Key) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.update("delete "+k.String(), func(s *State) error {
		return s.deleteRoute(&k)
	})
}

// ReplaceRoute installs info in place of old.  The new route is placed
// before the old is removed; with equal keys only the action and state
// change.
func (sw *Switch) ReplaceRoute(old route.Key, info *route.Info) error {
	k, err := info.Key()
	if err != nil {
		return err
	}
	r := route.Route{
		Key:    k,
		Type:   k.Type(),
		Action: info.Action,
		Active: info.Active,
		Ecmp:   info.Ecmp,
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if err = sw.routerExists(k.Vrid); err != nil {
		return err
	}
	return sw.update("replace "+old.String(), func(s *State) error {
		if _, _, err := s.lookup(&old); err != nil {
			return err
		}
		if route.Compare(&old, &k) == 0 {
			return s.update(&k, func(e *Entry) {
				e.action, e.active, e.ecmp = r.Action, r.Active, r.Ecmp
			})
		}
		if _, err := s.addRoute(&r); err != nil {
			return err
		}
		return s.deleteRoute(&old)
	})
}

func (sw *Switch) SetRouteActive(k route.Key, active bool) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.update("active "+k.String(), func(s *State) error {
		return s.update(&k, func(e *Entry) { e.active = active })
	})
}

func (sw *Switch) SetRouteAction(k route.Key, a route.Action) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.update("action "+k.String(), func(s *State) error {
		return s.update(&k, func(e *Entry) { e.action = a })
	})
}

// UpdateEcmpGroup rewrites every route using group g after its membership
// changed.
func (sw *Switch) UpdateEcmpGroup(g route.EcmpGroup) error {
	if g == 0 {
		return errors.Wrap(route.ErrInvalidArgument, "ecmp group 0")
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.update("ecmp update", func(s *State) error {
		n := 0
		s.entries.Foreach(func(i uint, e *Entry) {
			if e.ecmp == g {
				s.markDirty(entryID(i))
				n++
			}
		})
		if n == 0 {
			return errors.Wrapf(route.ErrNotFound, "ecmp group %d", g)
		}
		return nil
	})
}

// ReplaceEcmpBaseRoute moves the ECMP group of route old to route k.
func (sw *Switch) ReplaceEcmpBaseRoute(old, k route.Key) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.update("ecmp base "+old.String(), func(s *State) error {
		_, from, err := s.lookup(&old)
		if err != nil {
			return err
		}
		g := s.entry(from).ecmp
		if g == 0 {
			return errors.Wrapf(route.ErrInvalidArgument, "%v: no ecmp group", old)
		}
		if err = s.update(&k, func(e *Entry) { e.ecmp = g }); err != nil {
			return err
		}
		if route.Compare(&old, &k) != 0 {
			s.entry(from).ecmp = 0
			s.markDirty(from)
		}
		return nil
	})
}

func (sw *Switch) GetRouteFirst() (route.Route, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	e, ok := sw.state.first()
	if !ok {
		return route.Route{}, errors.Wrap(route.ErrNotFound, "no routes")
	}
	return e.Route(), nil
}

// GetRouteNext returns the route after k in type then key order.
func (sw *Switch) GetRouteNext(k route.Key) (route.Route, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	e, ok := sw.state.next(&k)
	if !ok {
		return route.Route{}, errors.Wrapf(route.ErrNotFound, "after %v", k)
	}
	return e.Route(), nil
}

// GetRouteList returns up to max routes following start, or from the
// first route when start is nil.
func (sw *Switch) GetRouteList(start *route.Key, max int) []route.Route {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	var rs []route.Route
	var (
		e  *Entry
		ok bool
	)
	if start == nil {
		e, ok = sw.state.first()
	} else {
		e, ok = sw.state.next(start)
	}
	for ; ok && len(rs) < max; e, ok = sw.state.next(&e.key) {
		rs = append(rs, e.Route())
	}
	return rs
}

func (sw *Switch) GetRouteAttribute(k route.Key, attr route.Attr) (interface{}, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	_, id, err := sw.state.lookup(&k)
	if err != nil {
		return nil, err
	}
	e := sw.state.entry(id)
	switch attr {
	case route.AttrActive:
		return e.active, nil
	case route.AttrAction:
		return e.action, nil
	case route.AttrEcmpGroup:
		return e.ecmp, nil
	case route.AttrDirty:
		return e.dirty, nil
	case route.AttrLocation:
		if e.cascade == noCascade {
			return nil, errors.Wrapf(route.ErrInconsistent, "%v: not placed", k)
		}
		return sw.state.location(e), nil
	}
	return nil, errors.Wrapf(route.ErrInvalidArgument, "attribute %d", attr)
}

func (sw *Switch) SetRouteAttribute(k route.Key, attr route.Attr, v interface{}) error {
	var f func(e *Entry)
	switch attr {
	case route.AttrActive:
		x, ok := v.(bool)
		if !ok {
			return errors.Wrapf(route.ErrInvalidArgument, "active %T", v)
		}
		f = func(e *Entry) { e.active = x }
	case route.AttrAction:
		x, ok := v.(route.Action)
		if !ok {
			return errors.Wrapf(route.ErrInvalidArgument, "action %T", v)
		}
		f = func(e *Entry) { e.action = x }
	case route.AttrEcmpGroup:
		x, ok := v.(route.EcmpGroup)
		if !ok {
			return errors.Wrapf(route.ErrInvalidArgument, "ecmp group %T", v)
		}
		f = func(e *Entry) { e.ecmp = x }
	default:
		return errors.Wrapf(route.ErrInvalidArgument, "attribute %d is read only", attr)
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.update("set "+k.String(), func(s *State) error {
		return s.update(&k, f)
	})
}

// ProcessPartitionChange moves the routes of a class into a new slice
// range.  The live state is replaced only if every route fits; a
// simulated change reports feasibility and changes nothing.
func (sw *Switch) ProcessPartitionChange(ch PartitionChange) error {
	if ch.Class >= route.NClass {
		return errors.Wrapf(route.ErrInvalidArgument, "class %d", ch.Class)
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if ch.Range != tcam.NoRange &&
		(!ch.Range.Valid() || ch.Range.Last >= sw.state.slices.Len()) {
		return errors.Wrapf(route.ErrInvalidArgument, "%v range %v", ch.Class, ch.Range)
	}
	id := uuid.NewV4()
	old := sw.state.ranges[ch.Class]
	log.Print("info", "routing: repartition ", id, ": ", ch.Class, " ", old,
		" to ", ch.Range, " simulated ", ch.Simulated)

	sw.setPhase(id, Simulating)
	c, err := sw.state.repartition(ch.Class, ch.Range)
	if err != nil {
		sw.setPhase(id, Aborted)
		sw.repartitions[repartitionAborted]++
		log.Print("warn", "routing: repartition ", id, ": aborted: ", err)
		sw.setPhase(id, Stable)
		return err
	}
	if ch.Simulated {
		sw.repartitions[repartitionSimulated]++
		sw.setPhase(id, Stable)
		return nil
	}

	sw.setPhase(id, Committing)
	moves := c.moves - sw.state.moves
	c.actual = true
	sw.state = c
	for _, r := range freedRanges(old, ch.Range) {
		sw.pendingRelease = append(sw.pendingRelease, released{ch.Class, r})
	}
	sw.repartitions[repartitionCommitted]++
	err = sw.flush()
	sw.setPhase(id, Stable)
	log.Print("info", "routing: repartition ", id, ": committed, ",
		moves, " moves")
	return err
}

func (sw *Switch) setPhase(id uuid.UUID, p Phase) {
	log.Print("debug", "routing: repartition ", id, ": ", sw.phase, " to ", p)
	sw.phase = p
}

// NotifyArpRedirect queues a next hop that became resolved.
func (sw *Switch) NotifyArpRedirect(vrid uint8, addr netip.Addr) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	r := arpRedirect{vrid, addr}
	for _, x := range sw.pendingArp {
		if x == r {
			return
		}
	}
	sw.pendingArp = append(sw.pendingArp, r)
}

// ProcessArpRedirects handles up to the configured batch of queued
// redirects and returns the number of routes rewritten.  A batch the state
// rejected stays queued; one that only failed to commit is pending in the
// dirty list and is dequeued.
func (sw *Switch) ProcessArpRedirects() (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if len(sw.pendingArp) == 0 {
		return 0, nil
	}
	if sw.Resolver == nil {
		return 0, errors.Wrap(route.ErrInvalidArgument, "no next hop resolver")
	}
	batch := sw.pendingArp
	if len(batch) > sw.cfg.ArpRedirectBatch {
		batch = batch[:sw.cfg.ArpRedirectBatch]
	}
	n := 0
	err := sw.update("arp redirect", func(s *State) error {
		for _, r := range batch {
			n += s.redirectArp(r, sw.Resolver)
		}
		return nil
	})
	if err != nil && errors.Cause(err) != route.ErrCommit {
		return 0, err
	}
	sw.pendingArp = append(sw.pendingArp[:0], sw.pendingArp[len(batch):]...)
	sw.arpRedirects += uint64(len(batch))
	return n, err
}

// ValidateRouteTables checks every invariant of the actual state and, when
// the committer can read back and shadows are compiled in, the hardware
// copy.  It reports; it never repairs.
func (sw *Switch) ValidateRouteTables() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	r, _ := sw.Committer.(Reader)
	return sw.state.validate(r)
}

// SlicesRequired returns the slices class cl would use if its routes were
// packed from scratch.
func (sw *Switch) SlicesRequired(cl route.Class) (int, error) {
	if cl >= route.NClass {
		return 0, errors.Wrapf(route.ErrInvalidArgument, "class %d", cl)
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.state.slicesRequired(cl)
}
