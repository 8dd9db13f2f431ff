// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor provides the polling tasks that feed kernel completions
// into a dispatcher, and the accept operation built on the completion
// protocol. Linux uses an epoll readiness task with an eventfd interrupt;
// Windows uses an I/O completion port. The accept decision table itself is
// platform-neutral and runs over an AcceptTransport.
package reactor
