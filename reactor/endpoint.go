// File: reactor/endpoint.go
// Package reactor defines bounded peer address storage.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-aio/api"
)

// EndpointCapacity is the raw address storage size, sized for the largest
// platform sockaddr.
const EndpointCapacity = 128

// Endpoint holds one raw transport address. Writes are bounds-checked
// against the fixed capacity.
type Endpoint struct {
	data [EndpointCapacity]byte
	size int
}

// Capacity returns the maximum raw address size.
func (e *Endpoint) Capacity() int { return EndpointCapacity }

// Len returns the current raw address size.
func (e *Endpoint) Len() int { return e.size }

// Bytes returns the raw address.
func (e *Endpoint) Bytes() []byte { return e.data[:e.size] }

// Set copies a raw address in. Oversized input yields ErrInvalidArgument.
func (e *Endpoint) Set(raw []byte) error {
	if len(raw) > EndpointCapacity {
		return api.ErrInvalidArgument
	}
	copy(e.data[:], raw)
	e.size = len(raw)
	return nil
}

// Raw sockaddr layout constants shared by the platform encoders: a 2-byte
// family field followed by the family-specific body.
const (
	familyInet4 = 2
	sizeInet4   = 16
	sizeInet6   = 28
)

// String renders an IPv4 endpoint as a.b.c.d:port. Any other address of at
// least 24 bytes is rendered as IPv6, [hex address]:port, whatever its
// family field; shorter addresses of other families come out as a family
// tag.
func (e *Endpoint) String() string {
	if e.size < 4 {
		return "<empty>"
	}
	family := binary.LittleEndian.Uint16(e.data[0:2])
	port := binary.BigEndian.Uint16(e.data[2:4])
	if family == familyInet4 && e.size >= 8 {
		return fmt.Sprintf("%d.%d.%d.%d:%d", e.data[4], e.data[5], e.data[6], e.data[7], port)
	}
	if e.size >= 24 {
		return fmt.Sprintf("[%x]:%d", e.data[8:24], port)
	}
	return fmt.Sprintf("<family %d>", family)
}
