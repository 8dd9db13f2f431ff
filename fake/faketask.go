// File: fake/faketask.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package fake provides scripted stand-ins for the platform components:
// a polling task that records its scheduling and a kernel-free accept
// transport driving the retry decision table.
package fake

import (
	"sync"
)

// Task is a scripted polling task. It records every Run's block flag and
// counts interrupts. Blocking runs park until Interrupt; OnRun, when set,
// replaces the default behavior entirely.
type Task struct {
	mu         sync.Mutex
	blockFlags []bool
	interrupts int
	wake       chan struct{}

	// OnRun overrides the poll cycle.
	OnRun func(block bool) error
}

// NewTask creates a scripted task.
func NewTask() *Task {
	return &Task{wake: make(chan struct{}, 1)}
}

// Run records the cycle and parks when blocking.
func (t *Task) Run(block bool) error {
	t.mu.Lock()
	t.blockFlags = append(t.blockFlags, block)
	fn := t.OnRun
	t.mu.Unlock()

	if fn != nil {
		return fn(block)
	}
	if block {
		<-t.wake
	}
	return nil
}

// Interrupt wakes a parked Run. Sticky until consumed, like the real
// eventfd and completion-port wakeups.
func (t *Task) Interrupt() {
	t.mu.Lock()
	t.interrupts++
	t.mu.Unlock()
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// BlockFlags returns the recorded block flags in Run order.
func (t *Task) BlockFlags() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]bool, len(t.blockFlags))
	copy(out, t.blockFlags)
	return out
}

// Interrupts returns the number of Interrupt calls so far.
func (t *Task) Interrupts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interrupts
}
