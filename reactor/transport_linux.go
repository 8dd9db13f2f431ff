//go:build linux
// +build linux

// File: reactor/transport_linux.go
// Author: momentics <momentics@gmail.com>
//
// Readiness-based accept transport over accept4(2). ECONNABORTED is the
// transient abort class on this platform.

package reactor

import (
	"encoding/binary"
	"errors"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-aio/api"
)

// Listener is a minimal nonblocking TCP listening socket.
type Listener struct {
	fd int
}

// Listen opens a listening socket on the given port; port 0 picks an
// ephemeral one.
func Listen(port int) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, api.SystemError(err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, api.SystemError(err)
	}
	sa := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, api.SystemError(err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, api.SystemError(err)
	}
	return &Listener{fd: fd}, nil
}

// FD returns the raw listening descriptor.
func (l *Listener) FD() int { return l.fd }

// Port returns the bound port.
func (l *Listener) Port() (int, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return 0, api.SystemError(err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	}
	return 0, api.ErrInvalidArgument
}

// Close releases the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}

// AsyncAccept starts an asynchronous accept on l. On completion handler is
// upcalled with the canonical error; on success the accepted socket has
// been transferred into peer and, when peerAddr is non-nil, the peer
// address copied out.
func (t *EpollTask) AsyncAccept(l *Listener, peer *PeerSocket, peerAddr *Endpoint,
	enableAborted bool, handler func(error)) {
	tr := &unixAcceptTransport{task: t}
	op := NewAcceptOp(tr, peer, peerAddr, enableAborted, handler)
	op.Listen = uintptr(l.fd)
	op.Out = t.cfg.cache.Get(EndpointCapacity)

	t.d.WorkStarted()
	if err := t.RegisterPending(l.fd, &op.Operation, tr.makePerform(op)); err != nil {
		// Could not arm interest; deliver the failure through the queue.
		t.d.OnCompletion(&op.Operation, err, 0)
	}
}

// unixAcceptTransport implements AcceptTransport over accept4.
type unixAcceptTransport struct {
	task *EpollTask
}

func (tr *unixAcceptTransport) Canonical(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrConnectionAborted), errors.Is(err, api.ErrInvalidArgument):
		return err
	case errors.Is(err, unix.ECONNABORTED):
		return api.ErrConnectionAborted
	case errors.Is(err, unix.EINVAL):
		return api.ErrInvalidArgument
	}
	var ae *api.Error
	if errors.As(err, &ae) {
		return err
	}
	return api.SystemError(err)
}

func (tr *unixAcceptTransport) ResetHeader(op *AcceptOp) {
	clear(op.Out)
	op.OutLen = 0
}

func (tr *unixAcceptTransport) NewPeerSocket(op *AcceptOp) error {
	// Readiness accept provisions the socket at completion time; only the
	// failed one needs discarding here.
	if op.PeerOpen {
		op.PeerOpen = false
		_ = unix.Close(int(op.Peer))
	}
	return nil
}

func (tr *unixAcceptTransport) Reissue(op *AcceptOp) (ReissueStatus, error) {
	nfd, sa, err := unix.Accept4(int(op.Listen), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	switch {
	case err == nil:
		if serr := tr.store(op, nfd, sa); serr != nil {
			return ReissueDone, serr
		}
		return ReissueDone, nil
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		return ReissuePending, nil
	case err == unix.ECONNABORTED:
		return ReissueAborted, api.ErrConnectionAborted
	}
	return ReissueDone, tr.Canonical(err)
}

func (tr *unixAcceptTransport) CommitPending(op *AcceptOp) {
	err := tr.task.RegisterPending(int(op.Listen), &op.Operation, tr.makePerform(op))
	if err != nil {
		tr.task.d.OnCompletion(&op.Operation, err, 0)
	}
}

func (tr *unixAcceptTransport) Finalize(op *AcceptOp) error {
	var ep Endpoint
	if err := ep.Set(op.Out[:op.OutLen]); err != nil {
		return err
	}
	op.PeerSock.Assign(op.Peer, ep)
	op.PeerOpen = false
	if op.PeerAddr != nil {
		*op.PeerAddr = ep
	}
	return nil
}

func (tr *unixAcceptTransport) Release(op *AcceptOp) {
	if op.PeerOpen {
		op.PeerOpen = false
		_ = unix.Close(int(op.Peer))
	}
	if op.Out != nil {
		tr.task.cfg.cache.Put(op.Out)
		op.Out = nil
	}
}

// makePerform builds the readiness attempt for the poll loop. EAGAIN keeps
// the interest armed; every other outcome completes the operation.
func (tr *unixAcceptTransport) makePerform(op *AcceptOp) func() (bool, error, int) {
	return func() (bool, error, int) {
		nfd, sa, err := unix.Accept4(int(op.Listen), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return false, nil, 0
		}
		if err != nil {
			return true, err, 0
		}
		if serr := tr.store(op, nfd, sa); serr != nil {
			return true, serr, 0
		}
		return true, nil, op.OutLen
	}
}

// store records the accepted socket and encodes the peer address into the
// operation's output buffer.
func (tr *unixAcceptTransport) store(op *AcceptOp, nfd int, sa unix.Sockaddr) error {
	n, err := encodeSockaddr(sa, op.Out)
	if err != nil {
		unix.Close(nfd)
		return err
	}
	op.Peer = uintptr(nfd)
	op.PeerOpen = true
	op.OutLen = n
	return nil
}

// encodeSockaddr writes the raw wire layout of sa into out.
func encodeSockaddr(sa unix.Sockaddr, out []byte) (int, error) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		if len(out) < sizeInet4 {
			return 0, api.ErrInvalidArgument
		}
		clear(out[:sizeInet4])
		binary.LittleEndian.PutUint16(out[0:2], unix.AF_INET)
		binary.BigEndian.PutUint16(out[2:4], uint16(a.Port))
		copy(out[4:8], a.Addr[:])
		return sizeInet4, nil
	case *unix.SockaddrInet6:
		if len(out) < sizeInet6 {
			return 0, api.ErrInvalidArgument
		}
		clear(out[:sizeInet6])
		binary.LittleEndian.PutUint16(out[0:2], unix.AF_INET6)
		binary.BigEndian.PutUint16(out[2:4], uint16(a.Port))
		binary.LittleEndian.PutUint32(out[4:8], a.ZoneId)
		copy(out[8:24], a.Addr[:])
		return sizeInet6, nil
	}
	return 0, api.ErrInvalidArgument
}
