// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package route

import (
	"net"
	"testing"

	"github.com/pkg/errors"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		name string
		info Info
		want Type
	}{
		{"v4 unicast", Info{Dst: net.ParseIP("10.1.2.0"), DstLen: 24}, V4Unicast},
		{"v6 unicast", Info{Dst: net.ParseIP("2001:db8::"), DstLen: 64}, V6Unicast},
		{"v4 group", Info{Dst: net.ParseIP("239.1.1.1"), DstLen: 32}, V4Group},
		{"v4 dest vlan", Info{Dst: net.ParseIP("239.1.1.1"), DstLen: 32, Vlan: 10}, V4DestVlan},
		{"v4 dest src vlan", Info{
			Dst: net.ParseIP("239.1.1.1"), DstLen: 32,
			Src: net.ParseIP("10.0.0.1"), SrcLen: 32,
			Vlan: 10,
		}, V4DestSrcVlan},
		{"v6 group", Info{Dst: net.ParseIP("ff0e::1"), DstLen: 128}, V6Group},
		{"v6 dest vlan", Info{Dst: net.ParseIP("ff0e::1"), DstLen: 128, Vlan: 7}, V6DestVlan},
		{"v6 dest src vlan", Info{
			Dst: net.ParseIP("ff0e::1"), DstLen: 128,
			Src: net.ParseIP("2001:db8::1"), SrcLen: 128,
		}, V6DestSrcVlan},
	} {
		got, err := Classify(&tc.info)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestWidths(t *testing.T) {
	want := map[Type]int{
		V4Unicast:     1,
		V6Unicast:     4,
		V4DestSrcVlan: 3,
		V6DestSrcVlan: 9,
	}
	for typ, w := range want {
		if got := typ.Width(); got != w {
			t.Errorf("%v: got width %d want %d", typ, got, w)
		}
	}
	for typ := Type(0); typ < NType; typ++ {
		switch typ.Width() {
		case 1, 3, 4, 9:
		default:
			t.Errorf("%v: width %d", typ, typ.Width())
		}
	}
}

func TestKeyCanonical(t *testing.T) {
	i := Info{Vrid: 2, Dst: net.ParseIP("10.1.2.3"), DstLen: 24}
	k, err := i.Key()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := k.String(), "vr2 10.1.2.0/24"; got != want {
		t.Errorf("got %s want %s", got, want)
	}
	if got, want := k.PrefixLen(), 24; got != want {
		t.Errorf("prefix len: got %d want %d", got, want)
	}
}

func TestKeySpan(t *testing.T) {
	for _, x := range []struct {
		dst         string
		l           int
		first, last string
	}{
		{"10.1.2.3", 24, "10.1.2.0", "10.1.2.255"},
		{"10.1.2.3", 32, "10.1.2.3", "10.1.2.3"},
		{"0.0.0.0", 0, "0.0.0.0", "255.255.255.255"},
		{"2001:db8::1", 32, "2001:db8::", "2001:db8:ffff:ffff:ffff:ffff:ffff:ffff"},
	} {
		i := Info{Dst: net.ParseIP(x.dst), DstLen: x.l}
		k, err := i.Key()
		if err != nil {
			t.Fatal(err)
		}
		first, last := k.Span()
		if first.String() != x.first || last.String() != x.last {
			t.Errorf("%s/%d: got %v-%v want %s-%s", x.dst, x.l, first, last,
				x.first, x.last)
		}
	}
}

func TestKeyInvalid(t *testing.T) {
	for _, i := range []Info{
		{Dst: net.ParseIP("10.0.0.0"), DstLen: 33},
		{Dst: net.ParseIP("10.0.0.0"), DstLen: 8, Vlan: 3},
		{Dst: net.ParseIP("239.0.0.1"), DstLen: 32, Vlan: MaxVlan + 1},
		{Dst: net.ParseIP("239.0.0.1"), DstLen: 32, Src: net.ParseIP("2001:db8::1"), SrcLen: 128},
		{Dst: net.IP{1, 2, 3}, DstLen: 8},
	} {
		if _, err := i.Key(); errors.Cause(err) != ErrInvalidArgument {
			t.Errorf("%v/%d: got %v want %v", i.Dst, i.DstLen, err, ErrInvalidArgument)
		}
	}
}

func TestCompare(t *testing.T) {
	key := func(vr uint8, s string, l int) Key {
		i := Info{Vrid: vr, Dst: net.ParseIP(s), DstLen: l}
		k, err := i.Key()
		if err != nil {
			t.Fatal(err)
		}
		return k
	}
	ordered := []Key{
		key(0, "10.0.0.0", 8),
		key(0, "10.0.0.0", 16),
		key(0, "10.1.0.0", 16),
		key(1, "1.0.0.0", 8),
	}
	for i := range ordered {
		for j := range ordered {
			got := Compare(&ordered[i], &ordered[j])
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			if got != want {
				t.Errorf("Compare(%v, %v): got %d want %d", ordered[i], ordered[j], got, want)
			}
		}
	}
}

func TestLocationLess(t *testing.T) {
	if !(Location{1, 9}).Less(Location{2, 0}) {
		t.Error("slice must dominate row")
	}
	if (Location{2, 3}).Less(Location{2, 3}) {
		t.Error("equal locations")
	}
}
