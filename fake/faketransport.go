// File: fake/faketransport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"errors"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/reactor"
)

// ErrNetnameDeleted imitates the platform's network-name-deleted code; the
// transport's Canonical rewrites it to the canonical aborted class.
var ErrNetnameDeleted = errors.New("network name deleted")

// ReissueResult is one scripted outcome of a restarted accept.
type ReissueResult struct {
	Status reactor.ReissueStatus
	Err    error
}

// AcceptTransport is a kernel-free AcceptTransport whose reissue outcomes
// come from a script. All counters assume single-goroutine test use, like
// the decision table itself.
type AcceptTransport struct {
	script *queue.Queue

	Resets       int
	NewSockets   int
	Commits      int
	Finalizes    int
	Releases     int
	NewSocketErr error
	FinalizeErr  error

	// PeerEndpoint is handed to the peer socket on finalize.
	PeerEndpoint reactor.Endpoint

	nextFD uintptr
}

// NewAcceptTransport creates an empty-scripted transport.
func NewAcceptTransport() *AcceptTransport {
	return &AcceptTransport{script: queue.New(), nextFD: 100}
}

// Script appends a reissue outcome.
func (tr *AcceptTransport) Script(status reactor.ReissueStatus, err error) {
	tr.script.Add(ReissueResult{Status: status, Err: err})
}

func (tr *AcceptTransport) Canonical(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNetnameDeleted):
		return api.ErrConnectionAborted
	}
	return err
}

func (tr *AcceptTransport) ResetHeader(op *reactor.AcceptOp) {
	tr.Resets++
}

func (tr *AcceptTransport) NewPeerSocket(op *reactor.AcceptOp) error {
	tr.NewSockets++
	if tr.NewSocketErr != nil {
		return tr.NewSocketErr
	}
	tr.nextFD++
	op.Peer = tr.nextFD
	op.PeerOpen = true
	return nil
}

func (tr *AcceptTransport) Reissue(op *reactor.AcceptOp) (reactor.ReissueStatus, error) {
	if tr.script.Length() == 0 {
		return reactor.ReissueDone, errors.New("fake transport: reissue script exhausted")
	}
	r := tr.script.Remove().(ReissueResult)
	return r.Status, r.Err
}

func (tr *AcceptTransport) CommitPending(op *reactor.AcceptOp) {
	tr.Commits++
}

func (tr *AcceptTransport) Finalize(op *reactor.AcceptOp) error {
	tr.Finalizes++
	if tr.FinalizeErr != nil {
		return tr.FinalizeErr
	}
	op.PeerSock.Assign(op.Peer, tr.PeerEndpoint)
	op.PeerOpen = false
	if op.PeerAddr != nil {
		*op.PeerAddr = tr.PeerEndpoint
	}
	return nil
}

func (tr *AcceptTransport) Release(op *reactor.AcceptOp) {
	tr.Releases++
}

var _ reactor.AcceptTransport = (*AcceptTransport)(nil)
