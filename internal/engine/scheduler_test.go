package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManualSchedulerEvery(t *testing.T) {
	s := NewManualScheduler()
	fired := 0
	s.Every(100*time.Millisecond, func() { fired++ })

	s.Advance(99 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired %d times before first period, want 0", fired)
	}
	s.Advance(1 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired %d times at first period, want 1", fired)
	}
	s.Advance(300 * time.Millisecond)
	if fired != 4 {
		t.Errorf("fired %d times after three more periods, want 4", fired)
	}
}

func TestManualSchedulerAfter(t *testing.T) {
	s := NewManualScheduler()
	fired := 0
	s.After(50*time.Millisecond, func() { fired++ })

	s.Advance(200 * time.Millisecond)
	if fired != 1 {
		t.Errorf("one-shot fired %d times, want 1", fired)
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d after one-shot fired, want 0", got)
	}
}

func TestManualSchedulerCancel(t *testing.T) {
	s := NewManualScheduler()
	fired := 0
	cancel := s.Every(10*time.Millisecond, func() { fired++ })

	s.Advance(25 * time.Millisecond)
	if fired != 2 {
		t.Fatalf("fired %d times, want 2", fired)
	}
	cancel()
	cancel() // cancelling twice is harmless
	s.Advance(100 * time.Millisecond)
	if fired != 2 {
		t.Errorf("fired %d times after cancel, want still 2", fired)
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d after cancel, want 0", got)
	}
}

func TestManualSchedulerFiresInTimeOrder(t *testing.T) {
	s := NewManualScheduler()
	var order []string
	s.After(30*time.Millisecond, func() { order = append(order, "late") })
	s.After(10*time.Millisecond, func() { order = append(order, "early") })
	s.Every(25*time.Millisecond, func() { order = append(order, "tick") })

	s.Advance(50 * time.Millisecond)

	want := []string{"early", "tick", "late", "tick"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestManualSchedulerCallbackMaySchedule(t *testing.T) {
	s := NewManualScheduler()
	fired := 0
	s.After(10*time.Millisecond, func() {
		s.After(10*time.Millisecond, func() { fired++ })
	})

	s.Advance(20 * time.Millisecond)
	if fired != 1 {
		t.Errorf("nested one-shot fired %d times, want 1", fired)
	}
	if got := s.Now(); got != 20*time.Millisecond {
		t.Errorf("Now() = %v, want 20ms", got)
	}
}

func TestTimerSchedulerEvery(t *testing.T) {
	var fired atomic.Int32
	s := TimerScheduler{}
	cancel := s.Every(5*time.Millisecond, func() { fired.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fired.Load() < 2 {
		t.Fatal("periodic timer never fired twice")
	}

	cancel()
	cancel() // idempotent
	settled := fired.Load()
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != settled {
		t.Errorf("timer fired after cancel: %d -> %d", settled, fired.Load())
	}
}

func TestTimerSchedulerAfter(t *testing.T) {
	var fired atomic.Int32
	s := TimerScheduler{}
	s.After(5*time.Millisecond, func() { fired.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("one-shot fired %d times, want 1", fired.Load())
	}
}

func TestTimerSchedulerAfterCancel(t *testing.T) {
	var fired atomic.Int32
	s := TimerScheduler{}
	cancel := s.After(100*time.Millisecond, func() { fired.Add(1) })
	cancel()
	time.Sleep(150 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("cancelled one-shot fired %d times, want 0", fired.Load())
	}
}
