package board

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d. It is time.AfterFunc outside of tests.
type AfterFunc func(d time.Duration, fn func()) Timer

func realAfterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

// Scheduler holds at most one delayed task. Scheduling replaces the pending task and restarts the delay.
type Scheduler struct {
	delay     time.Duration
	afterFunc AfterFunc

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

func NewScheduler(delay time.Duration, afterFunc AfterFunc) *Scheduler {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &Scheduler{delay: delay, afterFunc: afterFunc}
}

func (s *Scheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stop()
	gen := s.gen
	s.timer = s.afterFunc(s.delay, func() {
		s.mu.Lock()
		if gen != s.gen { // replaced or cancelled after firing
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending task, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.stop()
	s.mu.Unlock()
}

func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// stop invalidates the current task. s.mu must be held.
func (s *Scheduler) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}
