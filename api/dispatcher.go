// File: api/dispatcher.go
// Package api defines the Dispatcher contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Dispatcher coordinates a FIFO of ready-to-run handlers across the threads
// that call Run. Handlers are zero-argument closures; the dispatcher owns
// their storage from Post until the moment they are invoked.
type Dispatcher interface {
	// Post enqueues fn at the tail of the handler queue and wakes at most
	// one consumer. Never blocks.
	Post(fn func())

	// Dispatch invokes fn synchronously when called from inside one of this
	// dispatcher's own handlers; otherwise it behaves as Post.
	Dispatch(fn func())

	// Run drives the loop on the calling goroutine until the dispatcher is
	// interrupted or outstanding work reaches zero. Faults from the polling
	// task are returned; faults from handlers propagate as panics after the
	// internal invariants have been restored.
	Run() error

	// Interrupt stops all workers currently inside Run. Idempotent, safe
	// from any goroutine including handlers.
	Interrupt()

	// Reset clears the interrupted state in preparation for a subsequent
	// Run. Must not be called while any worker is inside Run.
	Reset()

	// WorkStarted records an in-flight asynchronous operation that is not
	// itself sitting in the queue.
	WorkStarted()

	// WorkFinished balances WorkStarted for an operation that completed or
	// will never complete. Dropping the count to zero stops the engine.
	WorkFinished()
}
