//go:build !linux && !windows
// +build !linux,!windows

// File: reactor/socket_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "errors"

func closeSocket(fd uintptr) error {
	return errors.New("reactor: this platform is not supported")
}
