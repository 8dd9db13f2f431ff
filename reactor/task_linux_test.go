//go:build linux
// +build linux

// File: reactor/task_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// End-to-end accept through the real epoll task.

package reactor_test

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-aio/reactor"
	"github.com/momentics/hioload-aio/sched"
)

func TestEpollTaskAcceptEndToEnd(t *testing.T) {
	d := sched.New()
	task, err := reactor.NewEpollTask(d)
	require.NoError(t, err)

	l, err := reactor.Listen(0)
	require.NoError(t, err)
	defer l.Close()
	port, err := l.Port()
	require.NoError(t, err)

	peer := &reactor.PeerSocket{}
	var ep reactor.Endpoint
	var acceptErr error
	accepted := false
	task.AsyncAccept(l, peer, &ep, false, func(err error) {
		acceptErr = err
		accepted = true
	})

	go func() {
		conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			defer conn.Close()
			time.Sleep(50 * time.Millisecond)
		}
	}()

	// Run returns once the accept completes and the work count drains.
	require.NoError(t, d.Run())
	require.True(t, accepted)
	require.NoError(t, acceptErr)
	require.True(t, peer.Open())
	require.True(t, strings.HasPrefix(ep.String(), "127.0.0.1:"),
		"unexpected peer endpoint %q", ep.String())

	require.NoError(t, peer.Close())
	require.NoError(t, task.Shutdown())
}

func TestEpollTaskShutdownDrainsPendingAccept(t *testing.T) {
	d := sched.New()
	task, err := reactor.NewEpollTask(d)
	require.NoError(t, err)

	l, err := reactor.Listen(0)
	require.NoError(t, err)
	defer l.Close()

	peer := &reactor.PeerSocket{}
	called := false
	task.AsyncAccept(l, peer, nil, false, func(error) { called = true })

	// No connection ever arrives; the drain must free the operation
	// without the upcall and release the work anchor.
	require.NoError(t, task.Shutdown())
	require.False(t, called)
	require.Zero(t, d.Stats()["outstanding"])
}

func TestEpollTaskInterruptWhileBlocking(t *testing.T) {
	d := sched.New()
	_, err := reactor.NewEpollTask(d)
	require.NoError(t, err)
	d.WorkStarted()

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	time.Sleep(20 * time.Millisecond) // worker is asleep in epoll_wait
	d.Interrupt()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("interrupt did not unblock the epoll task")
	}
}
