//go:build linux
// +build linux

// File: reactor/task_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) polling task with an eventfd interrupt line.

package reactor

import (
	"encoding/binary"
	"sync"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/sched"
)

const epollBatch = 128

// pendingOp is one registered readiness operation. perform attempts the
// kernel call; done=false means the descriptor was not actually ready and
// interest stays armed.
type pendingOp struct {
	fd      int
	op      *sched.Operation
	perform func() (done bool, err error, bytes int)
}

type delivery struct {
	op    *sched.Operation
	err   error
	bytes int
}

// EpollTask is the Linux polling task. One worker at a time runs it (the
// dispatcher's task sentinel enforces that), so the ready staging queue
// needs no locking; the pending registry does, because operations start
// from any goroutine.
type EpollTask struct {
	d      *sched.Dispatcher
	cfg    taskConfig
	epfd   int
	wakefd int
	events []unix.EpollEvent
	ready  *queue.Queue

	mu      sync.Mutex
	pending map[int]*pendingOp
	closed  bool
}

var _ api.Task = (*EpollTask)(nil)
var _ api.GracefulShutdown = (*EpollTask)(nil)

// NewPlatformTask constructs the platform polling task for Linux.
func NewPlatformTask(d *sched.Dispatcher, opts ...Option) (api.Task, error) {
	return NewEpollTask(d, opts...)
}

// NewEpollTask creates the task and attaches it to d.
func NewEpollTask(d *sched.Dispatcher, opts ...Option) (*EpollTask, error) {
	cfg := defaultTaskConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.SystemError(err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, api.SystemError(err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, api.SystemError(err)
	}

	t := &EpollTask{
		d:       d,
		cfg:     cfg,
		epfd:    epfd,
		wakefd:  wakefd,
		events:  make([]unix.EpollEvent, epollBatch),
		ready:   queue.New(),
		pending: make(map[int]*pendingOp),
	}
	d.AttachTask(t)
	return t, nil
}

// Run drives one poll cycle. Blocking cycles sleep in epoll_wait until a
// descriptor is ready or Interrupt writes the eventfd.
func (t *EpollTask) Run(block bool) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return api.ErrTaskClosed
	}
	t.mu.Unlock()

	// Deliveries staged by a cycle that unwound early (a handler panic)
	// are flushed before polling so a blocking wait cannot sit on top of
	// ready completions.
	if t.flushReady() {
		block = false
	}

	timeout := 0
	if block {
		timeout = -1
	}
	n, err := unix.EpollWait(t.epfd, t.events, timeout)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return api.SystemError(err)
	}

	for i := 0; i < n; i++ {
		fd := int(t.events[i].Fd)
		if fd == t.wakefd {
			t.drainWake()
			continue
		}
		t.mu.Lock()
		p, ok := t.pending[fd]
		t.mu.Unlock()
		if !ok {
			continue
		}
		done, perr, bytes := p.perform()
		if !done {
			continue
		}
		t.unregister(fd)
		t.ready.Add(&delivery{op: p.op, err: perr, bytes: bytes})
	}

	t.flushReady()
	return nil
}

// flushReady delivers every staged completion, reporting whether any were
// present.
func (t *EpollTask) flushReady() bool {
	any := t.ready.Length() > 0
	for t.ready.Length() > 0 {
		dv := t.ready.Remove().(*delivery)
		t.d.DeliverCompletion(dv.op, dv.err, dv.bytes)
	}
	return any
}

// Interrupt unblocks a sleeping Run. The eventfd counter is sticky, so an
// interrupt ahead of the next wait is not lost.
func (t *EpollTask) Interrupt() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(t.wakefd, buf[:])
}

// RegisterPending arms readiness interest for op on fd. At most one
// operation per descriptor may be pending.
func (t *EpollTask) RegisterPending(fd int, op *sched.Operation, perform func() (bool, error, int)) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return api.ErrTaskClosed
	}
	t.pending[fd] = &pendingOp{fd: fd, op: op, perform: perform}
	t.mu.Unlock()

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	err := unix.EpollCtl(t.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	if err == unix.EEXIST {
		err = unix.EpollCtl(t.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	if err != nil {
		t.mu.Lock()
		delete(t.pending, fd)
		t.mu.Unlock()
		return api.SystemError(err)
	}
	return nil
}

func (t *EpollTask) unregister(fd int) {
	t.mu.Lock()
	delete(t.pending, fd)
	t.mu.Unlock()
	_ = unix.EpollCtl(t.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (t *EpollTask) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(t.wakefd, buf[:]); err != nil {
			return
		}
	}
}

// Shutdown drains pending operations without running user handlers and
// releases the kernel resources. Idempotent.
func (t *EpollTask) Shutdown() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	drained := t.pending
	t.pending = make(map[int]*pendingOp)
	t.mu.Unlock()

	for fd, p := range drained {
		_ = unix.EpollCtl(t.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		p.op.Destroy()
		t.d.WorkFinished()
	}
	t.cfg.log.Debug().Int("drained", len(drained)).Msg("epoll task: shutdown")

	if err := unix.Close(t.wakefd); err != nil {
		return api.SystemError(err)
	}
	if err := unix.Close(t.epfd); err != nil {
		return api.SystemError(err)
	}
	return nil
}
