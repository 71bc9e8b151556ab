// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"bytes"
	"fmt"
	"net"
	"net/netip"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/platinasystems/ffuroute/config"
	"github.com/platinasystems/ffuroute/regcache"
	"github.com/platinasystems/ffuroute/route"
	"github.com/platinasystems/ffuroute/tcam"
)

type releaser struct {
	released []released
}

func (r *releaser) ReleaseSlices(cl route.Class, x tcam.Range) error {
	r.released = append(r.released, released{cl, x})
	return nil
}

type resolver map[netip.Addr]route.Action

func (r resolver) ResolveNextHop(vrid uint8, addr netip.Addr) (route.Action, bool) {
	a, ok := r[addr]
	return a, ok
}

// recorder keeps every committed batch.
type recorder struct {
	*regcache.Cache
	batches [][]regcache.Write
}

func (r *recorder) Commit(b *regcache.Batch) error {
	err := r.Cache.Commit(b)
	if err == nil {
		r.batches = append(r.batches, append([]regcache.Write(nil), b.Writes...))
	}
	return err
}

type testSwitch struct {
	*Switch
	t   *testing.T
	hw  *recorder
	rel *releaser
	res resolver
}

func newTestSwitch(t *testing.T, slices, rows int, ranges map[string][2]int) *testSwitch {
	t.Helper()
	return newSwitchMode(t, true, slices, rows, ranges)
}

// newSwitchMode makes a switch that mutates a validated clone, or with
// validate false the live state in place.
func newSwitchMode(t *testing.T, validate bool, slices, rows int, ranges map[string][2]int) *testSwitch {
	t.Helper()
	cfg := config.Default()
	cfg.Slices, cfg.RowsPerSlice = slices, rows
	cfg.Ranges = ranges
	cfg.Validate = validate
	ts := &testSwitch{
		t:   t,
		hw:  &recorder{Cache: regcache.NewCache()},
		rel: &releaser{},
		res: make(resolver),
	}
	sw, err := New(cfg, Deps{
		Committer: cfg.Committer(ts.hw),
		Releaser:  ts.rel,
		Resolver:  ts.res,
	})
	if err != nil {
		t.Fatal(err)
	}
	ts.Switch = sw
	return ts
}

func info(t *testing.T, vrid uint8, dst string) *route.Info {
	t.Helper()
	ip, n, err := net.ParseCIDR(dst)
	if err != nil {
		t.Fatal(err)
	}
	l, _ := n.Mask.Size()
	return &route.Info{
		Vrid:   vrid,
		Dst:    ip,
		DstLen: l,
		Active: true,
		Action: route.Action{Kind: route.Forward, ArpIndex: 1},
	}
}

func key(t *testing.T, vrid uint8, dst string) route.Key {
	t.Helper()
	k, err := info(t, vrid, dst).Key()
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func (ts *testSwitch) add(dsts ...string) {
	ts.t.Helper()
	for _, dst := range dsts {
		if err := ts.AddRoute(info(ts.t, 0, dst)); err != nil {
			ts.t.Fatalf("add %s: %v", dst, err)
		}
	}
}

func (ts *testSwitch) loc(dst string) route.Location {
	ts.t.Helper()
	v, err := ts.GetRouteAttribute(key(ts.t, 0, dst), route.AttrLocation)
	if err != nil {
		ts.t.Fatalf("%s: %v", dst, err)
	}
	return v.(route.Location)
}

func (ts *testSwitch) valid() {
	ts.t.Helper()
	if err := ts.ValidateRouteTables(); err != nil {
		ts.t.Fatal(err)
	}
}

// keyValid reads back the valid bit of the first key cell at l.
func (ts *testSwitch) keyValid(l route.Location) bool {
	ts.t.Helper()
	d, ok := ts.hw.Read(tcam.KeyAddress(l.Slice), uint32(l.Row))
	if !ok {
		ts.t.Fatalf("%v: never written", l)
	}
	return d[1]&(1<<8) != 0
}

func (ts *testSwitch) dump() string {
	var b bytes.Buffer
	ts.DumpStateTable(&b)
	ts.DumpRouteTables(&b)
	ts.DumpPrefixLists(&b)
	return b.String()
}

func TestAddOneUnicast(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	ts.add("10.1.2.0/24")
	st := ts.Stats()
	if st.Cascades[route.V4Unicast] != 1 || st.Routes[route.V4Unicast] != 1 {
		t.Errorf("cascades %d routes %d", st.Cascades[route.V4Unicast],
			st.Routes[route.V4Unicast])
	}
	if st.SlicesInUse != 1 {
		t.Errorf("slices in use: got %d want 1", st.SlicesInUse)
	}
	k := key(t, 0, "10.1.2.0/24")
	r, err := ts.GetRouteFirst()
	if err != nil {
		t.Fatal(err)
	}
	if route.Compare(&r.Key, &k) != 0 || r.Type != route.V4Unicast || !r.Active {
		t.Errorf("first: got %+v", r)
	}
	if got, want := ts.loc("10.1.2.0/24"), (route.Location{Slice: 0, Row: 0}); got != want {
		t.Errorf("location: got %v want %v", got, want)
	}
	want := tcam.EncodeKey(&k, 1)[0].Data(true, 0)
	if got, _ := ts.hw.Read(tcam.KeyAddress(0), 0); !reflect.DeepEqual(got, want) {
		t.Errorf("key cell: got %x want %x", got, want)
	}
	if st.Dirty != 0 {
		t.Errorf("dirty after commit: %d", st.Dirty)
	}
	ts.valid()
}

func TestIp6ShareCascade(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip6-unicast": {0, 7}})
	ts.add("2001:db8::/32", "2001:db8:1::/48")
	st := ts.Stats()
	if st.Cascades[route.V6Unicast] != 1 {
		t.Errorf("cascades: got %d want 1", st.Cascades[route.V6Unicast])
	}
	if st.SlicesInUse != 4 {
		t.Errorf("slices in use: got %d want 4", st.SlicesInUse)
	}
	a, b := ts.loc("2001:db8::/32"), ts.loc("2001:db8:1::/48")
	if a.Slice != 0 || b.Slice != 0 || !a.Less(b) {
		t.Errorf("locations %v %v", a, b)
	}
	ts.valid()
}

func TestDeleteReleasesCascade(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	before := ts.state.slices.Clone()
	ts.add("10.1.2.0/24")
	if err := ts.DeleteRoute(key(t, 0, "10.1.2.0/24")); err != nil {
		t.Fatal(err)
	}
	if n := len(ts.state.tables[route.V4Unicast].cascades); n != 0 {
		t.Errorf("cascades: got %d want 0", n)
	}
	if ci := ts.state.slices.Slices[0].Cases[0]; !ci.Free() || ts.state.slices.Slices[0].InUse {
		t.Errorf("slice 0 case 0: %+v", ci)
	}
	if !reflect.DeepEqual(before, ts.state.slices) {
		t.Error("slice pool differs after add and delete")
	}
	if ts.keyValid(route.Location{}) {
		t.Error("deleted row still valid in hardware")
	}
	if _, err := ts.GetRouteFirst(); errors.Cause(err) != route.ErrNotFound {
		t.Errorf("first: got %v want %v", err, route.ErrNotFound)
	}
	ts.valid()
}

func TestAddErrors(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	ts.add("10.1.2.0/24")
	before := ts.dump()
	for _, x := range []struct {
		name string
		info *route.Info
		want error
	}{
		{"duplicate", info(t, 0, "10.1.2.0/24"), route.ErrAlreadyExists},
		{"no router", info(t, 5, "10.1.2.0/24"), route.ErrNotFound},
		{"no multicast slices", info(t, 0, "224.1.1.1/32"), route.ErrNoCapacity},
		{"unicast vlan", func() *route.Info {
			i := info(t, 0, "10.9.0.0/16")
			i.Vlan = 10
			return i
		}(), route.ErrInvalidArgument},
	} {
		err := ts.AddRoute(x.info)
		if errors.Cause(err) != x.want {
			t.Errorf("%s: got %v want %v", x.name, err, x.want)
		}
	}
	if !route.IsCapacity(ts.AddRoute(info(t, 0, "224.1.1.1/32"))) {
		t.Error("multicast add: want capacity error")
	}
	if err := ts.DeleteRoute(key(t, 0, "10.9.0.0/16")); errors.Cause(err) != route.ErrNotFound {
		t.Errorf("delete missing: got %v", err)
	}
	if after := ts.dump(); after != before {
		t.Errorf("failed calls changed state:\n%s\nwant\n%s", after, before)
	}
}

func TestAddHostBits(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	ts.add("10.1.2.0/24")
	err := ts.AddRoute(info(t, 0, "10.1.2.3/24"))
	if errors.Cause(err) != route.ErrAlreadyExists {
		t.Errorf("add with host bits: got %v want %v", err, route.ErrAlreadyExists)
	}
	if n := ts.Stats().Routes[route.V4Unicast]; n != 1 {
		t.Errorf("routes: got %d want 1", n)
	}
	if err = ts.SetRouteActive(key(t, 0, "10.1.2.77/24"), false); err != nil {
		t.Errorf("set with host bits: %v", err)
	}
	if err = ts.DeleteRoute(key(t, 0, "10.1.2.200/24")); err != nil {
		t.Errorf("delete with host bits: %v", err)
	}
	if st := ts.Stats(); st.Routes[route.V4Unicast] != 0 || st.SlicesInUse != 0 {
		t.Errorf("after delete: %d routes %d slices", st.Routes[route.V4Unicast],
			st.SlicesInUse)
	}
	ts.valid()
}

// Failed calls leave the state as it was whether they run on a validated
// clone or in place.
func TestFailuresLeaveState(t *testing.T) {
	for _, validate := range []bool{false, true} {
		t.Run(fmt.Sprint("validate=", validate), func(t *testing.T) {
			ts := newSwitchMode(t, validate, 4, 4, map[string][2]int{"ip4-unicast": {0, 0}})
			ts.add(p8, p16, p24, p32)
			before := ts.dump()
			batches := len(ts.hw.batches)
			moves := ts.Stats().Moves
			for _, x := range []struct {
				name string
				f    func() error
				want error
			}{
				{"add to full table", func() error {
					return ts.AddRoute(info(t, 0, "10.2.0.0/16"))
				}, route.ErrNoFreeSlices},
				{"add duplicate", func() error {
					return ts.AddRoute(info(t, 0, "10.1.1.9/24"))
				}, route.ErrAlreadyExists},
				{"add without router", func() error {
					return ts.AddRoute(info(t, 5, "10.2.0.0/16"))
				}, route.ErrNotFound},
				{"replace into full table", func() error {
					return ts.ReplaceRoute(key(t, 0, p8), info(t, 0, "10.2.0.0/16"))
				}, route.ErrNoFreeSlices},
				{"replace missing", func() error {
					return ts.ReplaceRoute(key(t, 0, "10.9.0.0/16"), info(t, 0, "10.9.0.0/16"))
				}, route.ErrNotFound},
				{"action of missing", func() error {
					return ts.SetRouteAction(key(t, 0, "10.9.0.0/16"), route.Action{Kind: route.Drop})
				}, route.ErrNotFound},
				{"read only attribute", func() error {
					return ts.SetRouteAttribute(key(t, 0, p8), route.AttrDirty, true)
				}, route.ErrInvalidArgument},
				{"unused ecmp group", func() error {
					return ts.UpdateEcmpGroup(7)
				}, route.ErrNotFound},
				{"ecmp base without group", func() error {
					return ts.ReplaceEcmpBaseRoute(key(t, 0, p8), key(t, 0, p16))
				}, route.ErrInvalidArgument},
				{"revoke with routes", func() error {
					return ts.ProcessPartitionChange(PartitionChange{
						Class: route.IP4Unicast,
						Range: tcam.NoRange,
					})
				}, route.ErrNoFreeSlices},
			} {
				if err := x.f(); errors.Cause(err) != x.want {
					t.Errorf("%s: got %v want %v", x.name, err, x.want)
				}
				if after := ts.dump(); after != before {
					t.Fatalf("%s changed state:\n%s\nwant\n%s", x.name, after, before)
				}
			}
			if len(ts.hw.batches) != batches {
				t.Errorf("failed calls wrote hardware: %d batches, had %d",
					len(ts.hw.batches), batches)
			}
			if st := ts.Stats(); st.Moves != moves || st.Dirty != 0 {
				t.Errorf("moves %d dirty %d, had %d moves", st.Moves, st.Dirty, moves)
			}
			ts.valid()
		})
	}
}

// The widest keys span nine slices; dest-vlan routes span four.
func TestIp6MulticastWidths(t *testing.T) {
	for _, validate := range []bool{false, true} {
		t.Run(fmt.Sprint("validate=", validate), func(t *testing.T) {
			ts := newSwitchMode(t, validate, 16, 4, map[string][2]int{"ip6-multicast": {0, 15}})
			dv := info(t, 0, "ff0e::1/128")
			dv.Vlan = 10
			sv := func(src string, l int) *route.Info {
				i := info(t, 0, "ff0e::2/128")
				i.Src, i.SrcLen, i.Vlan = net.ParseIP(src), l, 10
				return i
			}
			locate := func(i *route.Info) route.Location {
				t.Helper()
				k, err := i.Key()
				if err != nil {
					t.Fatal(err)
				}
				v, err := ts.GetRouteAttribute(k, route.AttrLocation)
				if err != nil {
					t.Fatalf("%v: %v", k, err)
				}
				return v.(route.Location)
			}
			srcs := []*route.Info{
				sv("2001:db8::1", 128),
				sv("2001:db8:0:1::", 64),
				sv("2001:db8::1:0", 96),
				sv("2001:db8:1::", 48),
			}
			for _, i := range append([]*route.Info{dv}, srcs...) {
				if err := ts.AddRoute(i); err != nil {
					t.Fatalf("%v/%d: %v", i.Src, i.SrcLen, err)
				}
			}
			st := ts.Stats()
			if st.Cascades[route.V6DestVlan] != 1 || st.Cascades[route.V6DestSrcVlan] != 1 {
				t.Errorf("cascades: %v", st.Cascades)
			}
			if st.SlicesInUse != 4+9 {
				t.Errorf("slices in use: got %d want 13", st.SlicesInUse)
			}
			if got, want := locate(dv), (route.Location{Slice: 0, Row: 0}); got != want {
				t.Errorf("dest vlan: got %v want %v", got, want)
			}
			for i, want := range []int{3, 1, 2, 0} {
				if got := locate(srcs[i]); got != (route.Location{Slice: 4, Row: want}) {
					t.Errorf("src /%d: got %v want 4.%d", srcs[i].SrcLen, got, want)
				}
			}
			for i := 4; i <= 12; i++ {
				if !ts.keyValid(route.Location{Slice: i, Row: 3}) {
					t.Errorf("slice %d row 3 not valid", i)
				}
			}
			ts.valid()

			before := ts.dump()
			err := ts.AddRoute(sv("2001:db8:2::", 48))
			if errors.Cause(err) != route.ErrNoFreeSlices {
				t.Errorf("fifth source: got %v want %v", err, route.ErrNoFreeSlices)
			}
			if after := ts.dump(); after != before {
				t.Errorf("failed add changed state:\n%s\nwant\n%s", after, before)
			}

			k, _ := dv.Key()
			if err = ts.DeleteRoute(k); err != nil {
				t.Fatal(err)
			}
			if n := ts.Stats().SlicesInUse; n != 9 {
				t.Errorf("slices in use after delete: got %d want 9", n)
			}
			ts.valid()
		})
	}
}

func TestCaseSharing(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{
		"ip6-unicast":   {0, 7},
		"ip6-multicast": {0, 7},
	})
	ts.add("2001:db8::/32", "ff0e::1/128")
	st := ts.Stats()
	if st.SlicesInUse != 4 {
		t.Errorf("slices in use: got %d want 4", st.SlicesInUse)
	}
	sl := &ts.state.slices.Slices[0]
	if sl.Cases[0].Type != route.V6Unicast || sl.Cases[1].Type != route.V6Group {
		t.Errorf("slice 0 cases: %+v", sl.Cases)
	}
	if got, want := ts.loc("ff0e::1/128"), (route.Location{Slice: 0, Row: 1}); got != want {
		t.Errorf("group location: got %v want %v", got, want)
	}
	if err := ts.DeleteRoute(key(t, 0, "2001:db8::/32")); err != nil {
		t.Fatal(err)
	}
	sl = &ts.state.slices.Slices[0]
	if !sl.Cases[0].Free() || sl.Cases[1].Type != route.V6Group || !sl.InUse {
		t.Errorf("after delete: %+v in use %v", sl.Cases, sl.InUse)
	}
	ts.valid()
}

func TestCommitFailure(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	ts.hw.FailNext(1, nil)
	k := key(t, 0, "10.1.2.0/24")
	err := ts.AddRoute(info(t, 0, "10.1.2.0/24"))
	if errors.Cause(err) != route.ErrCommit {
		t.Fatalf("got %v want %v", err, route.ErrCommit)
	}
	if v, _ := ts.GetRouteAttribute(k, route.AttrDirty); v != true {
		t.Errorf("dirty: got %v want true", v)
	}
	if _, ok := ts.hw.Read(tcam.KeyAddress(0), 0); ok {
		t.Error("failed commit reached hardware")
	}
	if err = ts.FlushDirty(); err != nil {
		t.Fatal(err)
	}
	if v, _ := ts.GetRouteAttribute(k, route.AttrDirty); v != false {
		t.Errorf("dirty after flush: got %v", v)
	}
	if !ts.keyValid(ts.loc("10.1.2.0/24")) {
		t.Error("not valid after flush")
	}
	if st := ts.Stats(); st.CommitErrors != 1 {
		t.Errorf("commit errors: got %d want 1", st.CommitErrors)
	}
	ts.valid()
}

func TestVirtualRouters(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	if err := ts.CreateVirtualRouter(0); errors.Cause(err) != route.ErrAlreadyExists {
		t.Errorf("create vr0: got %v", err)
	}
	if err := ts.CreateVirtualRouter(1); err != nil {
		t.Fatal(err)
	}
	if err := ts.AddRoute(info(t, 1, "10.1.0.0/16")); err != nil {
		t.Fatal(err)
	}
	k := key(t, 1, "10.1.0.0/16")
	v, _ := ts.GetRouteAttribute(k, route.AttrLocation)
	l := v.(route.Location)
	if ts.keyValid(l) {
		t.Error("route of down router valid")
	}
	if err := ts.SetRouterState(1, true); err != nil {
		t.Fatal(err)
	}
	if !ts.keyValid(l) {
		t.Error("route of up router not valid")
	}
	if err := ts.SetRouteActive(k, false); err != nil {
		t.Fatal(err)
	}
	if ts.keyValid(l) {
		t.Error("inactive route valid")
	}
	if err := ts.SetRouterMacMode(1, MacVirtual); err != nil {
		t.Fatal(err)
	}
	if exists, up, m := ts.RouterState(1); !exists || !up || m != MacVirtual {
		t.Errorf("router state: %v %v %v", exists, up, m)
	}
	if err := ts.DeleteVirtualRouter(1); errors.Cause(err) != route.ErrInUse {
		t.Errorf("delete vr1 with routes: got %v want %v", err, route.ErrInUse)
	}
	if err := ts.DeleteRoute(k); err != nil {
		t.Fatal(err)
	}
	if err := ts.DeleteVirtualRouter(1); err != nil {
		t.Fatal(err)
	}
	if err := ts.DeleteVirtualRouter(1); errors.Cause(err) != route.ErrNotFound {
		t.Errorf("delete vr1 twice: got %v", err)
	}
	if err := ts.DeleteVirtualRouter(0); errors.Cause(err) != route.ErrInvalidArgument {
		t.Errorf("delete vr0: got %v", err)
	}
}

func TestEnumerate(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{
		"ip4-unicast": {0, 3},
		"ip6-unicast": {4, 7},
	})
	ts.add("2001:db8::/32", "10.2.0.0/16", "10.1.0.0/16")
	want := []route.Key{
		key(t, 0, "10.1.0.0/16"),
		key(t, 0, "10.2.0.0/16"),
		key(t, 0, "2001:db8::/32"),
	}
	rs := ts.GetRouteList(nil, 10)
	if len(rs) != len(want) {
		t.Fatalf("got %d routes want %d", len(rs), len(want))
	}
	for i := range want {
		if route.Compare(&rs[i].Key, &want[i]) != 0 {
			t.Errorf("%d: got %v want %v", i, rs[i].Key, want[i])
		}
	}
	if rs = ts.GetRouteList(&want[0], 1); len(rs) != 1 || route.Compare(&rs[0].Key, &want[1]) != 0 {
		t.Errorf("list after first: got %v", rs)
	}
	r, err := ts.GetRouteNext(want[1])
	if err != nil || route.Compare(&r.Key, &want[2]) != 0 {
		t.Errorf("next: got %v, %v", r.Key, err)
	}
	if _, err = ts.GetRouteNext(want[2]); errors.Cause(err) != route.ErrNotFound {
		t.Errorf("next after last: got %v", err)
	}
}

func TestReplaceRoute(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	ts.add("10.1.0.0/16")
	old := key(t, 0, "10.1.0.0/16")
	if err := ts.ReplaceRoute(old, info(t, 0, "10.2.0.0/16")); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.GetRouteAttribute(old, route.AttrActive); errors.Cause(err) != route.ErrNotFound {
		t.Errorf("old route: got %v", err)
	}
	i := info(t, 0, "10.2.0.0/16")
	i.Action = route.Action{Kind: route.Drop}
	if err := ts.ReplaceRoute(key(t, 0, "10.2.0.0/16"), i); err != nil {
		t.Fatal(err)
	}
	v, _ := ts.GetRouteAttribute(key(t, 0, "10.2.0.0/16"), route.AttrAction)
	if v.(route.Action).Kind != route.Drop {
		t.Errorf("action: got %v", v)
	}
	if err := ts.ReplaceRoute(old, info(t, 0, "10.3.0.0/16")); errors.Cause(err) != route.ErrNotFound {
		t.Errorf("replace missing: got %v", err)
	}
	if n := len(ts.GetRouteList(nil, 10)); n != 1 {
		t.Errorf("routes: got %d want 1", n)
	}
}

func TestAttributes(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	ts.add("10.1.0.0/16")
	k := key(t, 0, "10.1.0.0/16")
	a := route.Action{Kind: route.Forward, ArpIndex: 42}
	if err := ts.SetRouteAttribute(k, route.AttrAction, a); err != nil {
		t.Fatal(err)
	}
	if v, _ := ts.GetRouteAttribute(k, route.AttrAction); v != a {
		t.Errorf("action: got %v want %v", v, a)
	}
	if err := ts.SetRouteAttribute(k, route.AttrEcmpGroup, route.EcmpGroup(3)); err != nil {
		t.Fatal(err)
	}
	if v, _ := ts.GetRouteAttribute(k, route.AttrEcmpGroup); v != route.EcmpGroup(3) {
		t.Errorf("ecmp: got %v", v)
	}
	for _, x := range []struct {
		attr route.Attr
		v    interface{}
	}{
		{route.AttrDirty, true},
		{route.AttrLocation, route.Location{}},
		{route.AttrActive, 1},
		{route.AttrAction, "drop"},
	} {
		if err := ts.SetRouteAttribute(k, x.attr, x.v); errors.Cause(err) != route.ErrInvalidArgument {
			t.Errorf("set %d %v: got %v", x.attr, x.v, err)
		}
	}
	want := tcam.EncodeAction(&a, 3)
	l := ts.loc("10.1.0.0/16")
	got, _ := ts.hw.Read(tcam.ActionAddress(l.Slice), uint32(l.Row))
	if len(got) != 2 || got[0] != uint32(want) {
		t.Errorf("action word: got %x want %x", got, want)
	}
}

func TestEcmp(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	i := info(t, 0, "10.1.0.0/16")
	i.Ecmp = 7
	if err := ts.AddRoute(i); err != nil {
		t.Fatal(err)
	}
	ts.add("10.2.0.0/16")
	if err := ts.UpdateEcmpGroup(7); err != nil {
		t.Error(err)
	}
	if err := ts.UpdateEcmpGroup(9); errors.Cause(err) != route.ErrNotFound {
		t.Errorf("unused group: got %v", err)
	}
	a, b := key(t, 0, "10.1.0.0/16"), key(t, 0, "10.2.0.0/16")
	if err := ts.ReplaceEcmpBaseRoute(a, b); err != nil {
		t.Fatal(err)
	}
	if v, _ := ts.GetRouteAttribute(b, route.AttrEcmpGroup); v != route.EcmpGroup(7) {
		t.Errorf("new base: got %v", v)
	}
	if v, _ := ts.GetRouteAttribute(a, route.AttrEcmpGroup); v != route.EcmpGroup(0) {
		t.Errorf("old base: got %v", v)
	}
	if err := ts.ReplaceEcmpBaseRoute(a, b); errors.Cause(err) != route.ErrInvalidArgument {
		t.Errorf("old base without group: got %v", err)
	}
}

func TestArpRedirect(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	ts.cfg.ArpRedirectBatch = 1
	nh := netip.MustParseAddr("192.168.1.1")
	other := netip.MustParseAddr("192.168.1.2")
	for _, dst := range []string{"10.1.0.0/16", "10.2.0.0/16"} {
		i := info(t, 0, dst)
		i.Action = route.Action{Kind: route.Trap, NextHop: nh, Unresolved: true}
		if err := ts.AddRoute(i); err != nil {
			t.Fatal(err)
		}
	}
	ts.add("10.3.0.0/16")
	resolved := route.Action{Kind: route.Forward, ArpIndex: 9, NextHop: nh}
	ts.res[nh] = resolved

	ts.NotifyArpRedirect(0, nh)
	ts.NotifyArpRedirect(0, nh)
	ts.NotifyArpRedirect(0, other)
	if st := ts.Stats(); st.PendingArp != 2 {
		t.Errorf("pending: got %d want 2", st.PendingArp)
	}
	n, err := ts.ProcessArpRedirects()
	if err != nil || n != 2 {
		t.Errorf("process: got %d, %v want 2", n, err)
	}
	for _, dst := range []string{"10.1.0.0/16", "10.2.0.0/16"} {
		if v, _ := ts.GetRouteAttribute(key(t, 0, dst), route.AttrAction); v != resolved {
			t.Errorf("%s: got %v want %v", dst, v, resolved)
		}
	}
	if v, _ := ts.GetRouteAttribute(key(t, 0, "10.3.0.0/16"), route.AttrAction); v.(route.Action).Kind != route.Forward || v.(route.Action).ArpIndex != 1 {
		t.Errorf("unrelated route changed: %v", v)
	}
	if st := ts.Stats(); st.PendingArp != 1 || st.ArpRedirects != 1 {
		t.Errorf("pending %d processed %d", st.PendingArp, st.ArpRedirects)
	}
	if n, err = ts.ProcessArpRedirects(); err != nil || n != 0 {
		t.Errorf("unresolvable: got %d, %v", n, err)
	}
	if st := ts.Stats(); st.PendingArp != 0 {
		t.Errorf("pending after second batch: %d", st.PendingArp)
	}
}

// A batch the state rejects stays queued for the next call.
func TestArpRedirectRejected(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip4-unicast": {0, 3}})
	nh := netip.MustParseAddr("192.168.1.1")
	i := info(t, 0, "10.1.0.0/16")
	i.Action = route.Action{Kind: route.Trap, NextHop: nh, Unresolved: true}
	if err := ts.AddRoute(i); err != nil {
		t.Fatal(err)
	}
	ts.res[nh] = route.Action{Kind: route.Forward, ArpIndex: 9, NextHop: nh}
	ts.NotifyArpRedirect(0, nh)

	ts.state.slices.Slices[5].Rows[0] = tcam.RowReserved
	n, err := ts.ProcessArpRedirects()
	if errors.Cause(err) != route.ErrInconsistent || n != 0 {
		t.Errorf("corrupt state: got %d, %v", n, err)
	}
	if st := ts.Stats(); st.PendingArp != 1 || st.ArpRedirects != 0 {
		t.Errorf("pending %d processed %d, want 1 0", st.PendingArp, st.ArpRedirects)
	}

	ts.state.slices.Slices[5].Rows[0] = tcam.RowFree
	if n, err = ts.ProcessArpRedirects(); err != nil || n != 1 {
		t.Errorf("after repair: got %d, %v want 1", n, err)
	}
	if st := ts.Stats(); st.PendingArp != 0 || st.ArpRedirects != 1 {
		t.Errorf("pending %d processed %d, want 0 1", st.PendingArp, st.ArpRedirects)
	}
}

func TestValidateFindsRowMismatch(t *testing.T) {
	ts := newTestSwitch(t, 8, 16, map[string][2]int{"ip6-unicast": {0, 7}})
	ts.add("2001:db8::/32")
	ts.valid()
	ts.state.slices.Slices[2].Rows[0] = tcam.RowFree
	err := ts.ValidateRouteTables()
	if errors.Cause(err) != route.ErrInconsistent {
		t.Fatalf("got %v want %v", err, route.ErrInconsistent)
	}
	// Mutations validate a clone first and leave the state alone.
	if err = ts.AddRoute(info(t, 0, "2001:db8:1::/48")); errors.Cause(err) != route.ErrInconsistent {
		t.Errorf("add on corrupt state: got %v", err)
	}
	if ts.state.tables[route.V6Unicast].Len() != 1 {
		t.Error("add on corrupt state installed the route")
	}
}

func TestDumps(t *testing.T) {
	ts := newTestSwitch(t, 4, 8, map[string][2]int{"ip4-unicast": {0, 3}})
	ts.add("10.1.0.0/16", "10.1.1.0/24")
	var b bytes.Buffer
	ts.DumpRouteStats(&b)
	ts.DumpStateTable(&b)
	ts.DumpPrefixLists(&b)
	ts.DumpRouteTables(&b)
	s := b.String()
	for _, want := range []string{
		"phase stable, 1 slices in use",
		fmt.Sprintf("%-16v %8d %8d", route.V4Unicast, 2, 1),
		fmt.Sprintf("%-14v %v", route.IP4Unicast, "0-3"),
		"slice  0: ip4-unicast case0 v4-unicast cascade 0 rows 2",
		"v4-unicast: /16:1 /24:1",
		fmt.Sprintf("%-8v %v: forward arp 1 active true",
			route.Location{Slice: 0, Row: 1}, "vr0 10.1.1.0/24"),
		"vr0 10.1.0.0/16: forward arp 1 active true span 10.1.0.0-10.1.255.255",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("dump missing %q:\n%s", want, s)
		}
	}
}
