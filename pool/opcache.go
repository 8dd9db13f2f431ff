// File: pool/opcache.go
// Package pool implements the operation buffer cache with size class support.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync/atomic"

// opCacheClasses are the size classes served from thread-cached slabs.
// Requests above the largest class fall back to plain allocation.
var opCacheClasses = []int{64, 256, 512, 1024}

// OpCache allocates fixed-size scratch buffers for in-flight operations.
//
// Storage returned by Get keeps a stable address until the matching Put:
// the cache never moves a buffer between raw and owned states, so a kernel
// header embedded in the buffer may be handed to the platform for the whole
// lifetime of the operation.
type OpCache struct {
	slabs []*SyncPool[*[]byte]

	totalAlloc atomic.Uint64
	totalFree  atomic.Uint64
}

// NewOpCache creates an operation buffer cache over the default size classes.
func NewOpCache() *OpCache {
	c := &OpCache{slabs: make([]*SyncPool[*[]byte], len(opCacheClasses))}
	for i, size := range opCacheClasses {
		size := size
		c.slabs[i] = NewSyncPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		})
	}
	return c
}

// Get returns a zeroed buffer of at least size bytes.
func (c *OpCache) Get(size int) []byte {
	c.totalAlloc.Add(1)
	for i, class := range opCacheClasses {
		if size <= class {
			b := *c.slabs[i].Get()
			clear(b)
			return b[:size]
		}
	}
	return make([]byte, size)
}

// Put returns a buffer obtained from Get. Oversized buffers are dropped.
func (c *OpCache) Put(buf []byte) {
	c.totalFree.Add(1)
	for i, class := range opCacheClasses {
		if cap(buf) == class {
			full := buf[:cap(buf)]
			c.slabs[i].Put(&full)
			return
		}
	}
}

// Stats returns allocation counters.
func (c *OpCache) Stats() (totalAlloc, totalFree uint64) {
	return c.totalAlloc.Load(), c.totalFree.Load()
}
