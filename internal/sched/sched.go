// Package sched computes the randomized pre-reply delay and runs a single
// deferred task. Randomizing the delay keeps the reply timing from looking
// machine-instant; the range tightens during the morning rush when other
// drivers react fastest.
package sched

import (
	"math/rand"
	"sync"
	"time"
)

// Delay ranges in milliseconds, inclusive.
const (
	rushMinMs = 300
	rushMaxMs = 800
	baseMinMs = 500
	baseMaxMs = 1200

	// rushStartHour..rushEndHour (inclusive) is the high-competition window.
	rushStartHour = 7
	rushEndHour   = 10
)

// PickDelay draws a uniform random delay for the given wall-clock hour.
func PickDelay(hour int, intN func(int) int) time.Duration {
	if intN == nil {
		intN = rand.Intn
	}
	min, max := baseMinMs, baseMaxMs
	if hour >= rushStartHour && hour <= rushEndHour {
		min, max = rushMinMs, rushMaxMs
	}
	ms := min + intN(max-min+1)
	return time.Duration(ms) * time.Millisecond
}

// Task is a handle to one pending deferred invocation.
type Task struct {
	timer *time.Timer
	owner *Scheduler
}

// Cancel stops the task if it has not fired yet. Safe to call multiple times.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	if t.timer.Stop() {
		t.owner.clear(t)
	}
}

// Scheduler runs at most one pending deferred task. Scheduling while a task
// is pending is refused, which closes the double-fire window between two
// qualifying events arriving inside one delay period.
type Scheduler struct {
	mu      sync.Mutex
	pending *Task
	intN    func(int) int // injectable for tests; nil = math/rand/v2
}

// New creates a Scheduler using the default random source.
func New() *Scheduler { return &Scheduler{} }

// NewWithRand creates a Scheduler with an injected random source.
func NewWithRand(intN func(int) int) *Scheduler { return &Scheduler{intN: intN} }

// Schedule draws a delay for hour and defers fire by it. Returns the task
// handle and the chosen delay, or ok=false if a task is already pending.
// fire runs on a timer goroutine after the delay.
func (s *Scheduler) Schedule(hour int, fire func()) (*Task, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return nil, 0, false
	}

	delay := PickDelay(hour, s.intN)
	task := &Task{owner: s}
	task.timer = time.AfterFunc(delay, func() {
		s.clear(task)
		fire()
	})
	s.pending = task
	return task, delay, true
}

// Pending reports whether a deferred task is waiting to fire.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Scheduler) clear(task *Task) {
	s.mu.Lock()
	if s.pending == task {
		s.pending = nil
	}
	s.mu.Unlock()
}
