// File: reactor/transport.go
// Package reactor defines the platform contract behind the accept operation.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

// ReissueStatus classifies the outcome of restarting an accept after a
// transient abort.
type ReissueStatus int

const (
	// ReissueDone means the restarted accept completed synchronously; the
	// current invocation proceeds to finalize with the reissue error.
	ReissueDone ReissueStatus = iota

	// ReissuePending means the restarted accept will complete
	// asynchronously through the polling task.
	ReissuePending

	// ReissueAborted means the restart itself failed with another
	// transient abort; the operation is rescheduled through the dispatch
	// loop to re-enter the decision table.
	ReissueAborted
)

// AcceptTransport is the platform half of the accept operation: everything
// the decision table in AcceptOp needs the kernel for.
type AcceptTransport interface {
	// Canonical maps a platform error to the engine taxonomy. The
	// network-name-deleted class must come back as ErrConnectionAborted.
	Canonical(err error) error

	// ResetHeader reinitializes the operation's kernel header for reuse.
	ResetHeader(op *AcceptOp)

	// NewPeerSocket provisions a fresh socket for the next connection.
	// The platform forbids reusing the socket of a failed accept.
	NewPeerSocket(op *AcceptOp) error

	// Reissue restarts the accept call and classifies the outcome.
	Reissue(op *AcceptOp) (ReissueStatus, error)

	// CommitPending registers the reissued operation with the polling
	// task. Called after the work count covers the new attempt.
	CommitPending(op *AcceptOp)

	// Finalize completes a successful accept: parse the peer address out
	// of the output buffer (bounds overflow yields ErrInvalidArgument),
	// apply the accept-context socket option, transfer the socket into the
	// peer handle and copy the endpoint out to the caller.
	Finalize(op *AcceptOp) error

	// Release frees the platform resources still held by the operation:
	// an untransferred socket and the output buffer.
	Release(op *AcceptOp)
}
