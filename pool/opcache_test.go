// File: pool/opcache_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "testing"

func TestSyncPoolRoundTrip(t *testing.T) {
	p := NewSyncPool(func() *int { v := 42; return &v })
	v := p.Get()
	if *v != 42 {
		t.Errorf("expected creator value 42, got %d", *v)
	}
	p.Put(v)
}

func TestOpCacheZeroesAndCounts(t *testing.T) {
	c := NewOpCache()
	b := c.Get(128)
	if len(b) != 128 {
		t.Fatalf("expected 128 bytes, got %d", len(b))
	}
	for i := range b {
		b[i] = 0xff
	}
	c.Put(b)

	b2 := c.Get(128)
	for i, v := range b2 {
		if v != 0 {
			t.Fatalf("byte %d not zeroed on reuse", i)
		}
	}
	c.Put(b2)

	alloc, free := c.Stats()
	if alloc != 2 || free != 2 {
		t.Errorf("expected 2 allocs / 2 frees, got %d / %d", alloc, free)
	}
}

func TestOpCacheOversizedFallsBack(t *testing.T) {
	c := NewOpCache()
	b := c.Get(8192)
	if len(b) != 8192 {
		t.Fatalf("expected 8192 bytes, got %d", len(b))
	}
	c.Put(b) // dropped, not pooled
}
