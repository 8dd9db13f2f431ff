//go:build !linux && !windows
// +build !linux,!windows

// File: reactor/task_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"errors"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/sched"
)

// NewPlatformTask returns an error for unsupported platforms.
func NewPlatformTask(d *sched.Dispatcher, opts ...Option) (api.Task, error) {
	return nil, errors.New("reactor: this platform is not supported")
}
