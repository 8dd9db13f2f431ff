//go:build windows
// +build windows

// File: reactor/transport_windows.go
// Author: momentics <momentics@gmail.com>
//
// Completion-port accept transport over AcceptEx. ERROR_NETNAME_DELETED is
// rewritten to the canonical connection-aborted class before the retry
// decision.

package reactor

import (
	"errors"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-aio/api"
)

// acceptAddrLen is the per-address block AcceptEx writes into the output
// buffer: the largest sockaddr plus the 16 bytes the call requires.
const acceptAddrLen = EndpointCapacity + 16

var wsaOnce sync.Once

func startWinsock() {
	wsaOnce.Do(func() {
		var d windows.WSAData
		_ = windows.WSAStartup(uint32(0x202), &d)
	})
}

// Listener is a minimal overlapped TCP listening socket.
type Listener struct {
	fd windows.Handle
}

// Listen opens a listening socket on the given port; port 0 picks an
// ephemeral one.
func Listen(port int) (*Listener, error) {
	startWinsock()
	h, err := windows.WSASocket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP,
		nil, 0, windows.WSA_FLAG_OVERLAPPED)
	if err != nil {
		return nil, api.SystemError(err)
	}
	if err := windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		windows.Closesocket(h)
		return nil, api.SystemError(err)
	}
	sa := &windows.SockaddrInet4{Port: port}
	if err := windows.Bind(h, sa); err != nil {
		windows.Closesocket(h)
		return nil, api.SystemError(err)
	}
	if err := windows.Listen(h, windows.SOMAXCONN); err != nil {
		windows.Closesocket(h)
		return nil, api.SystemError(err)
	}
	return &Listener{fd: h}, nil
}

// FD returns the raw listening handle.
func (l *Listener) FD() windows.Handle { return l.fd }

// Port returns the bound port.
func (l *Listener) Port() (int, error) {
	sa, err := windows.Getsockname(l.fd)
	if err != nil {
		return 0, api.SystemError(err)
	}
	switch a := sa.(type) {
	case *windows.SockaddrInet4:
		return a.Port, nil
	case *windows.SockaddrInet6:
		return a.Port, nil
	}
	return 0, api.ErrInvalidArgument
}

// Close releases the listening socket.
func (l *Listener) Close() error {
	return windows.Closesocket(l.fd)
}

// AsyncAccept starts an asynchronous accept on l. On completion handler is
// upcalled with the canonical error; on success the accepted socket has
// been transferred into peer and, when peerAddr is non-nil, the peer
// address copied out.
func (t *IOCPTask) AsyncAccept(l *Listener, peer *PeerSocket, peerAddr *Endpoint,
	enableAborted bool, handler func(error)) {
	tr := &winAcceptTransport{task: t}
	op := NewAcceptOp(tr, peer, peerAddr, enableAborted, handler)
	op.Listen = uintptr(l.fd)
	op.Out = t.cfg.cache.Get(2 * acceptAddrLen)
	op.Header = &windows.Overlapped{}

	t.d.WorkStarted()
	if err := tr.start(op); err != nil {
		// Start failed synchronously; deliver the failure through the
		// queue so the retry decision runs on the dispatch loop.
		t.d.OnCompletion(&op.Operation, err, 0)
	}
}

// winAcceptTransport implements AcceptTransport over AcceptEx.
type winAcceptTransport struct {
	task *IOCPTask
}

// start provisions the accept socket, associates the listener with the
// port and issues the first AcceptEx.
func (tr *winAcceptTransport) start(op *AcceptOp) error {
	if err := tr.task.associate(windows.Handle(op.Listen)); err != nil {
		return err
	}
	if err := tr.NewPeerSocket(op); err != nil {
		return err
	}
	ov := op.Header.(*windows.Overlapped)
	if err := tr.task.RegisterPending(ov, &op.Operation); err != nil {
		return err
	}
	err := tr.issue(op)
	if err != nil && !errors.Is(err, windows.ERROR_IO_PENDING) {
		tr.task.take(ov)
		return err
	}
	return nil
}

// issue calls AcceptEx into the operation's output buffer.
func (tr *winAcceptTransport) issue(op *AcceptOp) error {
	var recvd uint32
	ov := op.Header.(*windows.Overlapped)
	return windows.AcceptEx(windows.Handle(op.Listen), windows.Handle(op.Peer),
		&op.Out[0], 0, acceptAddrLen, acceptAddrLen, &recvd, ov)
}

func (tr *winAcceptTransport) Canonical(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrConnectionAborted), errors.Is(err, api.ErrInvalidArgument):
		return err
	case errors.Is(err, windows.ERROR_NETNAME_DELETED), errors.Is(err, windows.WSAECONNABORTED):
		return api.ErrConnectionAborted
	case errors.Is(err, windows.WSAEINVAL):
		return api.ErrInvalidArgument
	}
	var ae *api.Error
	if errors.As(err, &ae) {
		return err
	}
	return api.SystemError(err)
}

func (tr *winAcceptTransport) ResetHeader(op *AcceptOp) {
	ov := op.Header.(*windows.Overlapped)
	*ov = windows.Overlapped{}
}

func (tr *winAcceptTransport) NewPeerSocket(op *AcceptOp) error {
	// AcceptEx fails with WSAEINVAL when the socket of a failed accept is
	// reused, so every attempt gets a fresh one.
	if op.PeerOpen {
		op.PeerOpen = false
		_ = windows.Closesocket(windows.Handle(op.Peer))
	}
	h, err := windows.WSASocket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP,
		nil, 0, windows.WSA_FLAG_OVERLAPPED)
	if err != nil {
		return api.SystemError(err)
	}
	op.Peer = uintptr(h)
	op.PeerOpen = true
	return nil
}

func (tr *winAcceptTransport) Reissue(op *AcceptOp) (ReissueStatus, error) {
	// Register before issuing so a completion dequeued on a peer worker
	// finds the operation.
	ov := op.Header.(*windows.Overlapped)
	if err := tr.task.RegisterPending(ov, &op.Operation); err != nil {
		return ReissueDone, err
	}
	err := tr.issue(op)
	if err == nil || errors.Is(err, windows.ERROR_IO_PENDING) {
		// Succeeded or restarted; either way the completion arrives at
		// the port.
		return ReissuePending, nil
	}
	tr.task.take(ov)
	if errors.Is(err, windows.ERROR_NETNAME_DELETED) || errors.Is(err, windows.WSAECONNABORTED) {
		return ReissueAborted, api.ErrConnectionAborted
	}
	return ReissueDone, tr.Canonical(err)
}

func (tr *winAcceptTransport) CommitPending(op *AcceptOp) {
	// Registration already happened in Reissue, ahead of the kernel call.
}

func (tr *winAcceptTransport) Finalize(op *AcceptOp) error {
	var lrsa, rrsa *windows.RawSockaddrAny
	var llen, rlen int32
	windows.GetAcceptExSockaddrs(&op.Out[0], 0, acceptAddrLen, acceptAddrLen,
		&lrsa, &llen, &rrsa, &rlen)

	var ep Endpoint
	raw := unsafe.Slice((*byte)(unsafe.Pointer(rrsa)), int(rlen))
	if err := ep.Set(raw); err != nil {
		return err
	}

	// SO_UPDATE_ACCEPT_CONTEXT makes getsockname and getpeername work on
	// the accepted socket.
	ls := windows.Handle(op.Listen)
	if err := windows.Setsockopt(windows.Handle(op.Peer), windows.SOL_SOCKET,
		windows.SO_UPDATE_ACCEPT_CONTEXT,
		(*byte)(unsafe.Pointer(&ls)), int32(unsafe.Sizeof(ls))); err != nil {
		return api.SystemError(err)
	}

	op.PeerSock.Assign(op.Peer, ep)
	op.PeerOpen = false
	if op.PeerAddr != nil {
		*op.PeerAddr = ep
	}
	return nil
}

func (tr *winAcceptTransport) Release(op *AcceptOp) {
	if op.PeerOpen {
		op.PeerOpen = false
		_ = windows.Closesocket(windows.Handle(op.Peer))
	}
	if op.Out != nil {
		tr.task.cfg.cache.Put(op.Out)
		op.Out = nil
	}
}
