//go:build windows
// +build windows

// File: reactor/socket_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "golang.org/x/sys/windows"

func closeSocket(fd uintptr) error {
	return windows.Closesocket(windows.Handle(fd))
}
