// File: reactor/peer.go
// Package reactor defines the accepted-socket handle.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

// PeerSocket receives ownership of an accepted kernel socket on successful
// completion of an accept operation.
type PeerSocket struct {
	fd   uintptr
	open bool
	ep   Endpoint
}

// Assign transfers a live socket and its peer address into the handle.
// A previously held socket is closed first.
func (p *PeerSocket) Assign(fd uintptr, ep Endpoint) {
	if p.open {
		_ = closeSocket(p.fd)
	}
	p.fd = fd
	p.ep = ep
	p.open = true
}

// Open reports whether the handle holds a live socket.
func (p *PeerSocket) Open() bool { return p.open }

// FD returns the raw socket. Valid only while Open.
func (p *PeerSocket) FD() uintptr { return p.fd }

// Endpoint returns the peer address recorded at accept time.
func (p *PeerSocket) Endpoint() Endpoint { return p.ep }

// Close releases the held socket.
func (p *PeerSocket) Close() error {
	if !p.open {
		return nil
	}
	p.open = false
	return closeSocket(p.fd)
}
