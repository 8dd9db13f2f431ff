// File: sched/callstack.go
// Package sched implements the per-goroutine run marker.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"sync"

	"github.com/petermattis/goid"
)

// runMarkers tracks which dispatchers each goroutine is currently running.
// Dispatch consults it to detect re-entry from inside one of the
// dispatcher's own handlers. The value slice is only ever mutated by the
// goroutine that owns the key, so the map carries no further locking.
var runMarkers sync.Map // map[int64][]*Dispatcher

// markRunning records that the current goroutine entered d.Run.
func markRunning(d *Dispatcher) {
	gid := goid.Get()
	var frames []*Dispatcher
	if v, ok := runMarkers.Load(gid); ok {
		frames = v.([]*Dispatcher)
	}
	runMarkers.Store(gid, append(frames, d))
}

// unmarkRunning removes the innermost marker for d on the current goroutine.
func unmarkRunning(d *Dispatcher) {
	gid := goid.Get()
	v, ok := runMarkers.Load(gid)
	if !ok {
		return
	}
	frames := v.([]*Dispatcher)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i] == d {
			frames = append(frames[:i], frames[i+1:]...)
			break
		}
	}
	if len(frames) == 0 {
		runMarkers.Delete(gid)
		return
	}
	runMarkers.Store(gid, frames)
}

// runningHere reports whether the current goroutine is inside d.Run.
// A linear scan suffices: nesting depth is tiny in practice.
func runningHere(d *Dispatcher) bool {
	v, ok := runMarkers.Load(goid.Get())
	if !ok {
		return false
	}
	for _, f := range v.([]*Dispatcher) {
		if f == d {
			return true
		}
	}
	return false
}
