// File: api/task.go
// Package api defines the polling task contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Task is a pluggable kernel-polling component driven by the dispatcher.
// The dispatcher schedules the task as a pseudo-handler: exactly one worker
// runs it at a time.
type Task interface {
	// Run drives one poll cycle. When block is true the task may sleep
	// until a completion is available or Interrupt is called; when false it
	// must return promptly after draining ready completions. The task
	// delivers completions by posting handlers into its dispatcher.
	Run(block bool) error

	// Interrupt unblocks a currently blocking Run. Idempotent, safe from
	// any goroutine.
	Interrupt()
}
