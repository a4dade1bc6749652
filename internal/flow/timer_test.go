package flow

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSimpleTimerScheduleAfter(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	id, err := timer.ScheduleAfter(10*time.Millisecond, func() { close(fired) })
	if err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty timer ID")
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	var fired atomic.Bool
	id, err := timer.ScheduleAfter(50*time.Millisecond, func() { fired.Store(true) })
	if err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Error("cancelled timer fired")
	}

	// Cancelling an unknown ID is not an error.
	if err := timer.Cancel("timer_999"); err != nil {
		t.Errorf("Cancel of unknown ID failed: %v", err)
	}
}

func TestSimpleTimerScheduleRepeating(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	var ticks atomic.Int32
	id, err := timer.ScheduleRepeating(10*time.Millisecond, func() { ticks.Add(1) })
	if err != nil {
		t.Fatalf("ScheduleRepeating failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if ticks.Load() < 2 {
		t.Errorf("expected at least 2 ticks, got %d", ticks.Load())
	}

	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	before := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if ticks.Load() > before+1 {
		t.Error("repeating timer kept ticking after cancel")
	}
}

func TestSimpleTimerRejectsNonPositiveInterval(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	if _, err := timer.ScheduleRepeating(0, func() {}); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestSimpleTimerStop(t *testing.T) {
	timer := NewSimpleTimer()

	var fired atomic.Bool
	if _, err := timer.ScheduleAfter(50*time.Millisecond, func() { fired.Store(true) }); err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	timer.Stop()

	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Error("timer fired after Stop")
	}
}
