// File: sched/handler.go
// Package sched implements the queued handler node and its cache.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"sync/atomic"

	"github.com/momentics/hioload-aio/pool"
)

// handlerOp is one pending upcall. The node is intrusive: the next link and
// the invoker travel with the closure, so enqueuing allocates nothing
// beyond the node itself and dequeuing is a pointer swing.
//
// The task sentinel is a handlerOp with a nil invoker, recognized by
// pointer identity against the dispatcher's own sentinel field.
type handlerOp struct {
	next   *handlerOp
	invoke func(h *handlerOp, c *handlerCache)
	fn     func()
}

func (h *handlerOp) call(c *handlerCache) {
	h.invoke(h, c)
}

// invokeAndFree returns the node to the cache before making the upcall, so
// the closure may start new operations that allocate from the same cache
// without re-entering the allocator through its own storage.
func invokeAndFree(h *handlerOp, c *handlerCache) {
	fn := h.fn
	h.fn = nil
	h.next = nil
	c.put(h)
	fn()
}

// handlerCache is the fast-path allocator for handler nodes.
type handlerCache struct {
	nodes *pool.SyncPool[*handlerOp]

	allocated atomic.Uint64
	freed     atomic.Uint64
}

func newHandlerCache() *handlerCache {
	return &handlerCache{
		nodes: pool.NewSyncPool(func() *handlerOp { return &handlerOp{} }),
	}
}

func (c *handlerCache) get(fn func()) *handlerOp {
	c.allocated.Add(1)
	h := c.nodes.Get()
	h.next = nil
	h.invoke = invokeAndFree
	h.fn = fn
	return h
}

func (c *handlerCache) put(h *handlerOp) {
	c.freed.Add(1)
	c.nodes.Put(h)
}
