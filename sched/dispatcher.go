// File: sched/dispatcher.go
// Package sched implements the dispatcher core.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-aio/api"
)

// Dispatcher is the queue-plus-worker-pool coordinator. Zero or more
// goroutines call Run; any goroutine may Post, Dispatch, Interrupt or
// account work. All shared state below crosses the single mutex.
type Dispatcher struct {
	mu    sync.Mutex
	cache *handlerCache
	log   zerolog.Logger

	// task is the pluggable polling component; taskOp is its sentinel
	// position in the handler queue. The sentinel is linked at most once.
	task   api.Task
	taskOp handlerOp

	// Intrusive handler FIFO. queue == nil iff queueEnd == nil.
	queue    *handlerOp
	queueEnd *handlerOp

	// outstanding counts undelivered handlers plus externally anchored
	// in-flight operations. Zero means Run may terminate.
	outstanding int

	// interrupted is sticky until Reset.
	interrupted bool

	// firstIdle points into the ring of parked workers, or nil.
	firstIdle *idleWorker

	posted   atomic.Uint64
	inlined  atomic.Uint64
	executed atomic.Uint64
	parked   atomic.Uint64
}

// idleWorker is a parked worker's slot in the circular idle ring.
type idleWorker struct {
	wake *event
	prev *idleWorker
	next *idleWorker
}

var _ api.Dispatcher = (*Dispatcher)(nil)

// New creates a dispatcher. Attach a polling task with WithTask or
// AttachTask before starting workers that should drive the kernel.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cache: newHandlerCache(),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AttachTask installs the polling task and links its sentinel into the
// queue. Must be called before any worker enters Run.
func (d *Dispatcher) AttachTask(t api.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.task != nil {
		panic("sched: polling task already attached")
	}
	d.task = t
	d.pushTail(&d.taskOp)
}

// Post enqueues fn at the queue tail, counts it as outstanding work and
// wakes exactly one consumer: an idle worker if any is parked, otherwise
// the polling task if it is out of the queue and possibly blocking.
func (d *Dispatcher) Post(fn func()) {
	h := d.cache.get(fn)
	d.posted.Add(1)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushTail(h)
	d.outstanding++
	if !d.wakeOneIdle() && d.taskRunning() {
		d.task.Interrupt()
	}
}

// Dispatch invokes fn in place when the calling goroutine is already inside
// this dispatcher's Run; otherwise it behaves as Post. The inline path
// bypasses the queue, so ordering relative to queued handlers is lost.
func (d *Dispatcher) Dispatch(fn func()) {
	if runningHere(d) {
		d.inlined.Add(1)
		fn()
		return
	}
	d.Post(fn)
}

// Run drives the loop on the calling goroutine until the dispatcher is
// interrupted or outstanding work is exhausted. A fault from the polling
// task is returned; a handler panic propagates after the queue and work
// count invariants have been restored, leaving the dispatcher reusable.
func (d *Dispatcher) Run() error {
	markRunning(d)
	defer unmarkRunning(d)

	me := &idleWorker{wake: newEvent()}
	me.prev, me.next = me, me

	d.mu.Lock()
	defer d.mu.Unlock()

	for !d.interrupted && d.outstanding > 0 {
		if d.queue != nil {
			h := d.queue
			d.queue = h.next
			if d.queue == nil {
				d.queueEnd = nil
			}
			more := d.queue != nil
			d.mu.Unlock()

			// Both branches below reacquire the mutex through their
			// deferred cleanups on every exit path, including panics.
			if h == &d.taskOp {
				// Only block when nothing is queued behind the sentinel.
				if err := d.runTask(!more); err != nil {
					return err
				}
			} else {
				d.invoke(h)
			}
		} else {
			d.park(me)
		}
	}

	if !d.interrupted {
		// Work exhausted on this worker; wake the peers so they observe
		// termination too.
		d.interruptAll()
	}
	return nil
}

// runTask runs one polling cycle. Called with the mutex released; the
// deferred cleanup reinserts the sentinel at the queue tail and returns
// holding the mutex, on error and panic paths alike.
func (d *Dispatcher) runTask(block bool) error {
	defer func() {
		d.mu.Lock()
		d.taskOp.next = nil
		d.pushTail(&d.taskOp)
	}()
	return d.task.Run(block)
}

// invoke delivers one handler. Called with the mutex released; the deferred
// cleanup consumes the handler's queue-slot work contribution and returns
// holding the mutex even when the closure panics.
func (d *Dispatcher) invoke(h *handlerOp) {
	defer func() {
		d.mu.Lock()
		d.outstanding--
	}()
	h.call(d.cache)
	d.executed.Add(1)
}

// park links the worker into the idle ring ahead of firstIdle, waits on its
// wakeup event with the mutex released, then unlinks. Spurious wakes are
// tolerated: the caller re-evaluates loop conditions under the mutex.
func (d *Dispatcher) park(me *idleWorker) {
	if d.firstIdle != nil {
		me.next = d.firstIdle
		me.prev = d.firstIdle.prev
		d.firstIdle.prev.next = me
		d.firstIdle.prev = me
	}
	d.firstIdle = me
	me.wake.clear()
	d.parked.Add(1)

	d.mu.Unlock()
	me.wake.wait()
	d.mu.Lock()

	if me.next == me {
		d.firstIdle = nil
	} else {
		if d.firstIdle == me {
			d.firstIdle = me.next
		}
		me.next.prev = me.prev
		me.prev.next = me.next
		me.next = me
		me.prev = me
	}
}

// Interrupt stops the event processing loop on every worker.
func (d *Dispatcher) Interrupt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interruptAll()
}

// Reset clears the interrupted state ahead of a subsequent Run. Calling it
// while a worker is still inside Run is undefined.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interrupted = false
}

// WorkStarted records an in-flight operation awaiting completion.
func (d *Dispatcher) WorkStarted() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outstanding++
}

// WorkFinished balances WorkStarted. Dropping the count to zero triggers
// the same cascade as Interrupt so parked workers observe termination.
func (d *Dispatcher) WorkFinished() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outstanding--
	if d.outstanding == 0 {
		d.interruptAll()
	}
}

// Stats returns delivery counters and current gauges.
func (d *Dispatcher) Stats() map[string]int64 {
	d.mu.Lock()
	outstanding := int64(d.outstanding)
	d.mu.Unlock()
	return map[string]int64{
		"posted":      int64(d.posted.Load()),
		"inlined":     int64(d.inlined.Load()),
		"executed":    int64(d.executed.Load()),
		"parked":      int64(d.parked.Load()),
		"outstanding": outstanding,
	}
}

// pushTail appends h to the handler queue. Caller holds the mutex.
func (d *Dispatcher) pushTail(h *handlerOp) {
	if d.queueEnd != nil {
		d.queueEnd.next = h
		d.queueEnd = h
	} else {
		d.queue = h
		d.queueEnd = h
	}
}

// wakeOneIdle signals the worker at firstIdle and advances the ring so
// successive posts reach every parked worker. Caller holds the mutex.
func (d *Dispatcher) wakeOneIdle() bool {
	if d.firstIdle != nil {
		d.firstIdle.wake.signal()
		d.firstIdle = d.firstIdle.next
		return true
	}
	return false
}

// taskRunning reports whether the sentinel is out of the queue, meaning a
// worker currently owns the polling task and it may be blocking. Caller
// holds the mutex.
func (d *Dispatcher) taskRunning() bool {
	return d.task != nil && d.taskOp.next == nil && d.queueEnd != &d.taskOp
}

// interruptAll sets the sticky flag, wakes every parked worker and unblocks
// the polling task if a worker has it out of the queue. Caller holds the
// mutex.
func (d *Dispatcher) interruptAll() {
	d.interrupted = true
	d.log.Debug().Msg("dispatcher: interrupting all workers")
	if d.firstIdle != nil {
		d.firstIdle.wake.signal()
		for cur := d.firstIdle.next; cur != d.firstIdle; cur = cur.next {
			cur.wake.signal()
		}
	}
	if d.taskRunning() {
		d.task.Interrupt()
	}
}
