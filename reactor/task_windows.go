//go:build windows
// +build windows

// File: reactor/task_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows I/O completion port polling task.

package reactor

import (
	"sync"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/sched"
)

// wakeKey marks interrupt posts on the completion port.
const wakeKey = ^uintptr(0)

// IOCPTask is the Windows polling task. Operations are routed back from
// the port through their overlapped header.
type IOCPTask struct {
	d    *sched.Dispatcher
	cfg  taskConfig
	port windows.Handle

	mu         sync.Mutex
	pending    map[*windows.Overlapped]*sched.Operation
	associated map[windows.Handle]bool
	closed     bool
}

var _ api.Task = (*IOCPTask)(nil)
var _ api.GracefulShutdown = (*IOCPTask)(nil)

// NewPlatformTask constructs the platform polling task for Windows.
func NewPlatformTask(d *sched.Dispatcher, opts ...Option) (api.Task, error) {
	return NewIOCPTask(d, opts...)
}

// NewIOCPTask creates the task and attaches it to d.
func NewIOCPTask(d *sched.Dispatcher, opts ...Option) (*IOCPTask, error) {
	cfg := defaultTaskConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, api.SystemError(err)
	}
	t := &IOCPTask{
		d:          d,
		cfg:        cfg,
		port:       port,
		pending:    make(map[*windows.Overlapped]*sched.Operation),
		associated: make(map[windows.Handle]bool),
	}
	d.AttachTask(t)
	return t, nil
}

// Run dequeues at most one completion per cycle. Blocking cycles sleep in
// the port until a completion arrives or Interrupt posts the wake key.
func (t *IOCPTask) Run(block bool) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return api.ErrTaskClosed
	}
	t.mu.Unlock()

	timeout := uint32(0)
	if block {
		timeout = windows.INFINITE
	}
	var qty uint32
	var key uintptr
	var ov *windows.Overlapped
	err := windows.GetQueuedCompletionStatus(t.port, &qty, &key, &ov, timeout)
	if ov == nil {
		if err == syscall.Errno(windows.WAIT_TIMEOUT) {
			return nil
		}
		if key == wakeKey {
			return nil
		}
		if err != nil {
			return api.SystemError(err)
		}
		return nil
	}

	op := t.take(ov)
	if op == nil {
		return nil
	}
	// err carries the failed operation's status when the dequeued packet
	// represents an unsuccessful I/O; the operation maps it to the
	// canonical taxonomy.
	t.d.DeliverCompletion(op, err, int(qty))
	return nil
}

// Interrupt unblocks a sleeping Run by posting a wake packet.
func (t *IOCPTask) Interrupt() {
	_ = windows.PostQueuedCompletionStatus(t.port, 0, wakeKey, nil)
}

// RegisterPending routes the overlapped header back to op when its
// completion is dequeued. Registration precedes the kernel call so a fast
// completion on a peer worker cannot be orphaned.
func (t *IOCPTask) RegisterPending(ov *windows.Overlapped, op *sched.Operation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return api.ErrTaskClosed
	}
	t.pending[ov] = op
	return nil
}

// take claims the operation registered under ov, if any.
func (t *IOCPTask) take(ov *windows.Overlapped) *sched.Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := t.pending[ov]
	delete(t.pending, ov)
	return op
}

// associate binds a socket to the completion port once.
func (t *IOCPTask) associate(h windows.Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return api.ErrTaskClosed
	}
	if t.associated[h] {
		return nil
	}
	if _, err := windows.CreateIoCompletionPort(h, t.port, 0, 0); err != nil {
		return api.SystemError(err)
	}
	t.associated[h] = true
	return nil
}

// Shutdown drains pending operations without running user handlers and
// closes the port. Idempotent.
func (t *IOCPTask) Shutdown() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	drained := t.pending
	t.pending = make(map[*windows.Overlapped]*sched.Operation)
	t.mu.Unlock()

	for _, op := range drained {
		op.Destroy()
		t.d.WorkFinished()
	}
	t.cfg.log.Debug().Int("drained", len(drained)).Msg("iocp task: shutdown")

	if err := windows.CloseHandle(t.port); err != nil {
		return api.SystemError(err)
	}
	return nil
}
