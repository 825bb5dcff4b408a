package engine

import (
	"sync"
	"time"
)

// Scheduler abstracts timer creation so playback runs on wall-clock time
// in production and on virtual time in tests and offline rendering.
type Scheduler interface {
	// Every runs fn repeatedly with the given period until the returned
	// cancel function is called.
	Every(period time.Duration, fn func()) (cancel func())
	// After runs fn once after the given delay unless cancelled first.
	After(delay time.Duration, fn func()) (cancel func())
}

// TimerScheduler runs scheduled work on real timers
type TimerScheduler struct{}

// Every starts a ticker goroutine that calls fn each period
func (TimerScheduler) Every(period time.Duration, fn func()) func() {
	ticker := time.NewTicker(period)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// After schedules fn once after delay
func (TimerScheduler) After(delay time.Duration, fn func()) func() {
	timer := time.AfterFunc(delay, fn)
	return func() { timer.Stop() }
}

// ManualScheduler runs scheduled work on a virtual clock that only moves
// when Advance is called. Work fires in due-time order, deterministically.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	due       time.Duration
	period    time.Duration // 0 for one-shots
	fn        func()
	seq       int
	cancelled bool
}

// NewManualScheduler returns a scheduler with its clock at zero
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Every registers periodic work starting one period from now
func (s *ManualScheduler) Every(period time.Duration, fn func()) func() {
	return s.add(period, period, fn)
}

// After registers one-shot work
func (s *ManualScheduler) After(delay time.Duration, fn func()) func() {
	return s.add(delay, 0, fn)
}

// Now returns the current virtual time
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns how many tasks are waiting to fire
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (s *ManualScheduler) add(delay, period time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{due: s.now + delay, period: period, fn: fn, seq: s.seq}
	s.seq++
	s.tasks = append(s.tasks, t)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		t.cancelled = true
	}
}

// Advance moves the virtual clock forward by d, firing everything that
// comes due along the way in time order. Callbacks run with the scheduler
// unlocked, so they are free to schedule or cancel work themselves.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		t := s.nextDueLocked(target)
		if t == nil {
			break
		}
		s.now = t.due
		if t.period > 0 {
			t.due += t.period
		} else {
			s.removeLocked(t)
		}
		s.mu.Unlock()
		t.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

// nextDueLocked finds the earliest uncancelled task due by target,
// breaking ties by registration order, and prunes cancelled tasks.
func (s *ManualScheduler) nextDueLocked(target time.Duration) *manualTask {
	kept := s.tasks[:0]
	var best *manualTask
	for _, t := range s.tasks {
		if t.cancelled {
			continue
		}
		kept = append(kept, t)
		if t.due > target {
			continue
		}
		if best == nil || t.due < best.due || (t.due == best.due && t.seq < best.seq) {
			best = t
		}
	}
	s.tasks = kept
	return best
}

func (s *ManualScheduler) removeLocked(target *manualTask) {
	for i, t := range s.tasks {
		if t == target {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}
