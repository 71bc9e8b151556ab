// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regcache

import (
	"reflect"
	"testing"
	"time"
)

func TestBatchCoalesce(t *testing.T) {
	var b Batch
	b.Set(0x10, 1, []uint32{1})
	b.Set(0x20, 0, []uint32{2})
	b.Set(0x10, 1, []uint32{3})
	if got, want := b.Len(), 2; got != want {
		t.Fatalf("Len: got %d want %d", got, want)
	}
	want := []Write{
		{Address: 0x10, Index: 1, Data: []uint32{3}},
		{Address: 0x20, Index: 0, Data: []uint32{2}},
	}
	if !reflect.DeepEqual(b.Writes, want) {
		t.Errorf("got %v want %v", b.Writes, want)
	}
	b.Reset()
	if b.Len() != 0 {
		t.Error("Reset")
	}
	b.Set(0x10, 1, []uint32{4})
	if got := b.Writes[0].Data[0]; got != 4 {
		t.Errorf("after Reset: got %d want 4", got)
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	var b Batch
	b.Set(1, 2, []uint32{5, 6})
	if err := c.Commit(&b); err != nil {
		t.Fatal(err)
	}
	if got, ok := c.Read(1, 2); !ok || !reflect.DeepEqual(got, []uint32{5, 6}) {
		t.Errorf("Read: got %v, %v", got, ok)
	}
	if err := c.Commit(&b); err != nil {
		t.Fatal(err)
	}
	if c.Writes != 1 || c.Redundant != 1 || c.Commits != 2 {
		t.Errorf("counters: writes %d redundant %d commits %d", c.Writes, c.Redundant, c.Commits)
	}

	c.FailNext(1, nil)
	b.Reset()
	b.Set(1, 2, []uint32{7})
	if err := c.Commit(&b); err != ErrInjected {
		t.Errorf("got %v want %v", err, ErrInjected)
	}
	if got, _ := c.Read(1, 2); got[0] != 5 {
		t.Error("failed commit wrote")
	}
	if err := c.Commit(&b); err != nil {
		t.Errorf("commit after injected failure: %v", err)
	}
}

func TestRetry(t *testing.T) {
	c := NewCache()
	c.FailNext(2, nil)
	r := NewRetry(c, 3, time.Millisecond, 4*time.Millisecond)
	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	var b Batch
	b.Set(1, 1, []uint32{1})
	if err := r.Commit(&b); err != nil {
		t.Fatalf("got %v want nil", err)
	}
	if got, want := slept, []time.Duration{time.Millisecond, 2 * time.Millisecond}; !reflect.DeepEqual(got, want) {
		t.Errorf("sleeps: got %v want %v", got, want)
	}

	c.FailNext(3, nil)
	slept = nil
	if err := r.Commit(&b); err != ErrInjected {
		t.Errorf("got %v want %v", err, ErrInjected)
	}
	if len(slept) != 2 {
		t.Errorf("got %d sleeps want 2", len(slept))
	}
}
