// File: sched/event.go
// Package sched implements the worker wakeup primitive.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import "sync"

// event is a one-shot signalable event used to park an idle worker.
// A signal is sticky until cleared, so a signal racing ahead of the wait
// is not lost and a second signal before the clear is idempotent.
type event struct {
	mu        sync.Mutex
	cond      *sync.Cond
	signalled bool
}

func newEvent() *event {
	e := &event{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// signal marks the event and wakes a waiter if one is parked.
func (e *event) signal() {
	e.mu.Lock()
	e.signalled = true
	e.mu.Unlock()
	e.cond.Signal()
}

// clear resets the event so the next wait blocks.
func (e *event) clear() {
	e.mu.Lock()
	e.signalled = false
	e.mu.Unlock()
}

// wait blocks until the event is signalled.
func (e *event) wait() {
	e.mu.Lock()
	for !e.signalled {
		e.cond.Wait()
	}
	e.mu.Unlock()
}
