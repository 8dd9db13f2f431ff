// File: reactor/accept.go
// Package reactor implements the accept operation decision table.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"errors"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/sched"
)

// AcceptOp tracks one in-flight asynchronous accept. The platform-neutral
// completion logic lives here; the kernel interaction is delegated to the
// transport. Fields below the transport are platform scratch, owned by the
// transport between start and release.
type AcceptOp struct {
	sched.Operation

	tr            AcceptTransport
	enableAborted bool
	handler       func(error)

	// Listen is the listening socket; Peer is the socket being accepted
	// into (pre-created on completion-port platforms, filled on readiness
	// platforms). PeerOpen marks Peer as live and not yet transferred.
	Listen   uintptr
	Peer     uintptr
	PeerOpen bool

	// Out is the kernel output buffer, OutLen the valid prefix; Header is
	// the platform kernel header.
	Out    []byte
	OutLen int
	Header any

	// PeerSock receives the accepted socket; PeerAddr, when non-nil, is
	// the caller's endpoint storage.
	PeerSock *PeerSocket
	PeerAddr *Endpoint

	released bool
}

// NewAcceptOp builds an accept operation over a transport. The transport's
// start path fills the platform scratch fields before issuing the kernel
// call.
func NewAcceptOp(tr AcceptTransport, peer *PeerSocket, peerAddr *Endpoint,
	enableAborted bool, handler func(error)) *AcceptOp {
	op := &AcceptOp{
		tr:            tr,
		enableAborted: enableAborted,
		handler:       handler,
		PeerSock:      peer,
		PeerAddr:      peerAddr,
	}
	op.Operation = sched.MakeOperation(op.complete)
	return op
}

// complete is the operation's completion dispatch function. A nil owner
// marks a teardown drain: storage is released and no upcall is made.
func (op *AcceptOp) complete(owner *sched.Dispatcher, err error, bytes int) {
	if owner == nil {
		op.releaseStorage()
		return
	}

	err = op.tr.Canonical(err)

	// Restart transparently on a transient abort unless the caller opted
	// into surfacing it.
	if errors.Is(err, api.ErrConnectionAborted) && !op.enableAborted {
		op.tr.ResetHeader(op)
		if serr := op.tr.NewPeerSocket(op); serr != nil {
			err = serr
		} else {
			// Cover the restarted attempt before it can complete on a
			// peer worker.
			owner.WorkStarted()
			status, rerr := op.tr.Reissue(op)
			switch status {
			case ReissueAborted:
				// Another transient abort: re-enter this decision table
				// through the normal dispatch loop.
				owner.OnCompletion(&op.Operation, rerr, 0)
				return
			case ReissuePending:
				op.tr.CommitPending(op)
				return
			default:
				// Completed synchronously; the restart anchor is consumed
				// by the current invocation.
				owner.WorkFinished()
				err = rerr
			}
		}
	}

	if err == nil {
		err = op.tr.Finalize(op)
	}

	// Copy out the handler and free the operation storage before the
	// upcall, so the closure may start a fresh operation from the same
	// cache.
	h := op.handler
	op.releaseStorage()
	h(err)
}

// releaseStorage frees platform resources exactly once.
func (op *AcceptOp) releaseStorage() {
	if op.released {
		return
	}
	op.released = true
	op.tr.Release(op)
}
