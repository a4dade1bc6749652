// Package flow provides timer implementations for scheduled actions.
package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// timerEntry tracks information about a scheduled timer.
type timerEntry struct {
	timer  *time.Timer
	ticker *time.Ticker
	done   chan struct{}
}

// SimpleTimer implements the Timer interface using Go's standard time package.
type SimpleTimer struct {
	timers map[string]*timerEntry
	mu     sync.Mutex
	nextID int64
}

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	slog.Debug("Creating SimpleTimer")
	return &SimpleTimer{
		timers: make(map[string]*timerEntry),
	}
}

func (t *SimpleTimer) newID() string {
	t.nextID++
	return fmt.Sprintf("timer_%d", t.nextID)
}

// ScheduleAfter schedules a function to run once after a delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.mu.Lock()
	id := t.newID()
	t.mu.Unlock()

	slog.Debug("SimpleTimer ScheduleAfter", "id", id, "delay", delay)

	timer := time.AfterFunc(delay, func() {
		slog.Debug("SimpleTimer executing scheduled function", "id", id)
		fn()
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
	})

	t.mu.Lock()
	t.timers[id] = &timerEntry{timer: timer}
	t.mu.Unlock()

	return id, nil
}

// ScheduleRepeating schedules a function to run on every interval tick
// until cancelled.
func (t *SimpleTimer) ScheduleRepeating(interval time.Duration, fn func()) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("repeating interval must be positive, got %v", interval)
	}

	t.mu.Lock()
	id := t.newID()
	t.mu.Unlock()

	slog.Debug("SimpleTimer ScheduleRepeating", "id", id, "interval", interval)

	ticker := time.NewTicker(interval)
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

	t.mu.Lock()
	t.timers[id] = &timerEntry{ticker: ticker, done: done}
	t.mu.Unlock()

	return id, nil
}

// Cancel cancels a scheduled function by ID.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.timers[id]; exists {
		stopEntry(entry)
		delete(t.timers, id)
		slog.Debug("SimpleTimer Cancel succeeded", "id", id)
		return nil
	}

	slog.Debug("SimpleTimer Cancel: timer not found", "id", id)
	return nil
}

// Stop cancels all scheduled timers.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	slog.Debug("SimpleTimer stopping all timers", "count", len(t.timers))
	for id, entry := range t.timers {
		stopEntry(entry)
		slog.Debug("SimpleTimer stopped timer", "id", id)
	}
	t.timers = make(map[string]*timerEntry)
}

func stopEntry(entry *timerEntry) {
	if entry.timer != nil {
		entry.timer.Stop()
	}
	if entry.ticker != nil {
		entry.ticker.Stop()
	}
	if entry.done != nil {
		close(entry.done)
	}
}
