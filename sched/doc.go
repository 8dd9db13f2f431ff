// File: sched/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package sched implements the dispatcher core of hioload-aio: an intrusive
// handler FIFO, a parked-worker ring with per-worker wakeup events, counted
// outstanding work, and the completion-operation protocol that platform
// polling tasks feed.
//
// Workers are the goroutines that call Run. Handlers run without holding
// the dispatcher mutex; exactly one worker at a time drives the polling
// task, enforced by the task sentinel appearing in the queue at most once.
package sched
