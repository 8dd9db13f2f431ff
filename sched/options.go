// File: sched/options.go
// Package sched defines functional options for the dispatcher.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-aio/api"
)

// Option customizes dispatcher initialization.
type Option func(*Dispatcher)

// WithTask attaches the polling task at construction time.
func WithTask(t api.Task) Option {
	return func(d *Dispatcher) {
		d.task = t
		d.pushTail(&d.taskOp)
	}
}

// WithLogger sets the structured logger for engine debug events. The
// default discards everything; nothing is logged on the handler hot path.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}
