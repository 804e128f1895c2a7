// Package scheduler implements BeatBax's tick scheduler: a deterministic,
// time-ordered event dispatcher with bounded lookahead driven by an
// injected clock and loop source (spec.md §4.E).
package scheduler

import (
	"container/heap"
	"sync"
)

// Func is a scheduled callback. It must never panic out of tick(); the
// scheduler recovers and drops a panicking callback rather than letting
// it break the dispatch loop (spec.md §7 propagation policy).
type Func func()

// Clock returns the current time in seconds. Tests and offline rendering
// inject a synthetic clock; realtime playback injects a host now().
type Clock func() float64

// Driver pumps tick() on some cadence. The CLI's realtime driver uses a
// time.Ticker; tests drive it manually by calling Scheduler.Tick.
type Driver interface {
	Start(tick func())
	Stop()
}

const (
	// DefaultLookahead is the window, in seconds, within which a
	// scheduled event is eligible to fire on the next tick.
	DefaultLookahead = 0.1
	// DefaultIntervalSec is the suggested driver polling cadence.
	DefaultIntervalSec = 0.025
)

type event struct {
	time float64
	seq  uint64 // insertion order, breaks time ties deterministically
	fn   Func
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler is a min-heap keyed by absolute time, with a driver-agnostic
// tick() that dequeues and invokes every event due within Lookahead of
// now().
type Scheduler struct {
	mu        sync.Mutex
	now       Clock
	lookahead float64
	heap      eventHeap
	nextSeq   uint64
	driver    Driver
}

// New returns a Scheduler using now as its time source and the default
// 0.1s lookahead.
func New(now Clock) *Scheduler {
	return &Scheduler{now: now, lookahead: DefaultLookahead}
}

// WithLookahead overrides the default lookahead window, in seconds.
func (s *Scheduler) WithLookahead(sec float64) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookahead = sec
	return s
}

// Schedule enqueues fn to run at absTime (seconds, same timebase as the
// injected Clock).
func (s *Scheduler) Schedule(absTime float64, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := &event{time: absTime, seq: s.nextSeq, fn: fn}
	s.nextSeq++
	heap.Push(&s.heap, ev)
}

// ScheduleAligned snaps absTime to the nearest multiple of 1/frameHz
// before scheduling, so chip-native effects (retrigger, arpeggio) land
// on frame boundaries.
func (s *Scheduler) ScheduleAligned(absTime float64, fn Func, frameHz float64) {
	if frameHz <= 0 {
		frameHz = 512
	}
	frame := 1.0 / frameHz
	aligned := float64(round(absTime/frame)) * frame
	s.Schedule(aligned, fn)
}

func round(f float64) int64 {
	if f < 0 {
		return int64(f - 0.5)
	}
	return int64(f + 0.5)
}

// Start begins pumping tick() via an injected Driver. A nil driver uses
// no automatic pump; callers must invoke Tick themselves (the offline
// rendering path does this to advance deterministically).
func (s *Scheduler) Start(driver Driver) {
	s.mu.Lock()
	s.driver = driver
	s.mu.Unlock()
	if driver != nil {
		driver.Start(s.Tick)
	}
}

// Stop halts the driver, if any, and clears the queue. After Stop
// returns, no further scheduled Func fires (spec.md §5 cancellation).
func (s *Scheduler) Stop() {
	s.mu.Lock()
	driver := s.driver
	s.driver = nil
	s.mu.Unlock()
	if driver != nil {
		driver.Stop()
	}
	s.Clear()
}

// Clear discards every pending event without running it.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heap = nil
}

// Tick dequeues and runs every event due within Lookahead of now(), in
// time order (ties broken by insertion order). A panicking Func is
// recovered and dropped; it never aborts the remaining dequeue.
func (s *Scheduler) Tick() {
	now := s.now()
	var due []*event
	s.mu.Lock()
	deadline := now + s.lookahead
	for len(s.heap) > 0 && s.heap[0].time <= deadline {
		due = append(due, heap.Pop(&s.heap).(*event))
	}
	s.mu.Unlock()

	for _, ev := range due {
		runSafely(ev.fn)
	}
}

func runSafely(fn Func) {
	defer func() { _ = recover() }()
	fn()
}

// Len reports the number of pending events, for tests and diagnostics.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}
