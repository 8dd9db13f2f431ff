// File: sched/dispatcher_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Core loop laws: delivery, ordering, parking, interruption, recovery.

package sched_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-aio/fake"
	"github.com/momentics/hioload-aio/sched"
)

func TestRunDeliversSinglePost(t *testing.T) {
	d := sched.New()
	ran := false
	d.Post(func() { ran = true })
	if err := d.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !ran {
		t.Error("posted handler did not run")
	}
}

func TestPostOrderFIFO(t *testing.T) {
	d := sched.New()
	var order []string
	for _, name := range []string{"A", "B", "C"} {
		name := name
		d.Post(func() { order = append(order, name) })
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(order) != 3 || order[0] != "A" || order[1] != "B" || order[2] != "C" {
		t.Errorf("expected delivery order A,B,C got %v", order)
	}
}

func TestDispatchInsideHandlerRunsInline(t *testing.T) {
	d := sched.New()
	var order []string
	d.Post(func() {
		order = append(order, "A")
		d.Dispatch(func() { order = append(order, "X") })
		d.Post(func() { order = append(order, "Y") })
	})
	if err := d.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(order) != 3 || order[0] != "A" || order[1] != "X" || order[2] != "Y" {
		t.Errorf("expected order A,X,Y got %v", order)
	}
	if d.Stats()["inlined"] != 1 {
		t.Errorf("expected 1 inline dispatch, stats: %v", d.Stats())
	}
}

func TestDispatchFromOutsideBehavesAsPost(t *testing.T) {
	d := sched.New()
	ran := false
	d.Dispatch(func() { ran = true })
	if ran {
		t.Fatal("handler ran before Run")
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !ran {
		t.Error("dispatched handler did not run")
	}
	if d.Stats()["inlined"] != 0 {
		t.Errorf("expected no inline dispatch, stats: %v", d.Stats())
	}
}

func TestInterruptWhileParked(t *testing.T) {
	d := sched.New()
	d.WorkStarted() // keep the loop alive with an empty queue

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	time.Sleep(10 * time.Millisecond) // let the worker park
	d.Interrupt()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("interrupt did not wake the parked worker")
	}

	// After reset, delivery resumes normally.
	d.Reset()
	ran := false
	d.Post(func() { ran = true; d.Interrupt() })
	if err := d.Run(); err != nil {
		t.Fatalf("Run() after reset error: %v", err)
	}
	if !ran {
		t.Error("handler did not run after reset")
	}
}

func TestInterruptThenRunSkipsPendingHandlers(t *testing.T) {
	d := sched.New()
	for i := 0; i < 3; i++ {
		d.Post(func() { t.Error("handler ran on an interrupted dispatcher") })
	}
	d.Interrupt()
	if err := d.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if d.Stats()["executed"] != 0 {
		t.Errorf("expected no execution, stats: %v", d.Stats())
	}
}

func TestResetResumesDraining(t *testing.T) {
	d := sched.New()
	var executed atomic.Int64
	for i := 0; i < 3; i++ {
		d.Post(func() { executed.Add(1) })
	}
	d.Interrupt()
	if err := d.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	d.Reset()
	if err := d.Run(); err != nil {
		t.Fatalf("Run() after reset error: %v", err)
	}
	if executed.Load() != 3 {
		t.Errorf("expected 3 handlers after reset, got %d", executed.Load())
	}
}

func TestInterruptWakesAllWorkers(t *testing.T) {
	d := sched.New()
	d.WorkStarted()

	const workers = 4
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Run(); err != nil {
				t.Errorf("Run() error: %v", err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond) // let every worker park
	d.Interrupt()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("interrupt did not wake every parked worker")
	}
}

func TestPostDeliversExactlyOnceAcrossWorkers(t *testing.T) {
	d := sched.New()
	d.WorkStarted() // anchor while posting

	const workers = 4
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Run(); err != nil {
				t.Errorf("Run() error: %v", err)
			}
		}()
	}

	const posts = 1000
	var delivered atomic.Int64
	var posters sync.WaitGroup
	for p := 0; p < 4; p++ {
		posters.Add(1)
		go func() {
			defer posters.Done()
			for i := 0; i < posts/4; i++ {
				d.Post(func() { delivered.Add(1) })
			}
		}()
	}
	posters.Wait()
	d.WorkFinished() // allow natural termination once the queue drains

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not terminate after work was exhausted")
	}
	if delivered.Load() != posts {
		t.Errorf("expected %d deliveries, got %d", posts, delivered.Load())
	}
}

func TestWorkFinishedTriggersTermination(t *testing.T) {
	d := sched.New()
	d.WorkStarted()

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	time.Sleep(10 * time.Millisecond)
	d.WorkFinished()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not observe work exhaustion")
	}
}

func TestHandlerPanicLeavesDispatcherReusable(t *testing.T) {
	d := sched.New()
	d.Post(func() { panic("boom") })
	ran := false
	d.Post(func() { ran = true })

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected handler panic to propagate out of Run")
			}
		}()
		_ = d.Run()
	}()

	if err := d.Run(); err != nil {
		t.Fatalf("Run() after panic error: %v", err)
	}
	if !ran {
		t.Error("second handler did not run after recovery")
	}
}

func TestTaskErrorPropagatesAndSentinelRequeues(t *testing.T) {
	d := sched.New()
	ft := fake.NewTask()
	errBoom := errors.New("poll failed")
	calls := 0
	ft.OnRun = func(block bool) error {
		calls++
		if calls == 1 {
			return errBoom
		}
		d.WorkFinished()
		return nil
	}
	d.AttachTask(ft)
	d.WorkStarted()

	if err := d.Run(); !errors.Is(err, errBoom) {
		t.Fatalf("expected task error from Run, got %v", err)
	}
	// The cleanup reinserted the sentinel, so the next Run drives the task
	// again.
	if err := d.Run(); err != nil {
		t.Fatalf("Run() after task error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected the task to run twice, ran %d times", calls)
	}
}

func TestTaskBlockFlagFollowsQueueDepth(t *testing.T) {
	d := sched.New()
	ft := fake.NewTask()
	d.AttachTask(ft)
	d.Post(func() {})
	if err := d.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	flags := ft.BlockFlags()
	if len(flags) == 0 || flags[0] {
		t.Errorf("task should not block while handlers are queued, flags %v", flags)
	}
}

func TestInterruptUnblocksBlockingTask(t *testing.T) {
	d := sched.New()
	ft := fake.NewTask()
	d.AttachTask(ft)
	d.WorkStarted()

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	time.Sleep(10 * time.Millisecond) // worker is inside the blocking poll
	d.Interrupt()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("interrupt did not unblock the polling task")
	}
	flags := ft.BlockFlags()
	if len(flags) == 0 || !flags[len(flags)-1] {
		t.Errorf("expected a blocking poll cycle, flags %v", flags)
	}
	if ft.Interrupts() == 0 {
		t.Error("expected the task to be interrupted")
	}
}

func TestPostInterruptsBlockingTask(t *testing.T) {
	d := sched.New()
	ft := fake.NewTask()
	d.AttachTask(ft)
	d.WorkStarted()

	done := make(chan error, 1)
	go func() { done <- d.Run() }()
	time.Sleep(10 * time.Millisecond)

	ran := make(chan struct{})
	d.Post(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("post did not interrupt the blocking task")
	}

	d.Interrupt()
	if err := <-done; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}
