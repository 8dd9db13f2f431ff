// File: sched/operation.go
// Package sched implements the completion-operation protocol anchor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

// CompletionFunc finalizes one asynchronous kernel request. owner is the
// dispatcher delivering the completion, or nil when the call is a teardown
// drain: the function must then release the operation's storage without
// invoking the user handler.
type CompletionFunc func(owner *Dispatcher, err error, bytes int)

// Operation is the queue-facing header of one in-flight asynchronous
// kernel request. Concrete operations embed it and bind their completion
// function at construction.
//
// Delivery rule: whoever receives a kernel completion invokes Complete and
// then WorkFinished on the owning dispatcher, in that order, so the upcall
// may post follow-up work before the engine can observe exhaustion. The
// mutex inside Post orders the poller's writes before a deferred upcall;
// the direct path runs the upcall on the goroutine that received the
// completion and needs no further ordering.
type Operation struct {
	complete CompletionFunc
}

// MakeOperation binds a completion function.
func MakeOperation(f CompletionFunc) Operation {
	return Operation{complete: f}
}

// Complete routes a received completion into the operation.
func (op *Operation) Complete(owner *Dispatcher, err error, bytes int) {
	op.complete(owner, err, bytes)
}

// Destroy releases the operation's storage without an upcall. Used when
// draining pending operations during shutdown.
func (op *Operation) Destroy() {
	op.complete(nil, nil, 0)
}

// DeliverCompletion hands a completion to op on the calling goroutine and
// consumes the operation's outstanding-work anchor.
func (d *Dispatcher) DeliverCompletion(op *Operation, err error, bytes int) {
	op.Complete(d, err, bytes)
	d.WorkFinished()
}

// OnCompletion defers a completion through the handler queue so the normal
// dispatch loop re-enters the operation's completion function. Used by
// operations that reschedule themselves, e.g. a transparently retried
// accept.
func (d *Dispatcher) OnCompletion(op *Operation, err error, bytes int) {
	d.Post(func() {
		d.DeliverCompletion(op, err, bytes)
	})
}
