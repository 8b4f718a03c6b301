// Package worktime tracks how long a kid has actively worked on a task.
// The total is the persisted base plus the current session's wall-clock
// elapsed time; pausing folds the session into the base. The total never
// decreases.
package worktime

import (
	"sync"
	"time"
)

type Tracker struct {
	mu     sync.Mutex
	base   time.Duration // accumulated time from finished sessions
	anchor time.Time     // start of the running session; zero while paused
	now    func() time.Time
}

// NewTracker creates a tracker seeded with the persisted total for a task.
func NewTracker(base time.Duration) *Tracker {
	return &Tracker{base: base, now: time.Now}
}

// NewTrackerWithClock is NewTracker with an injected time source.
func NewTrackerWithClock(base time.Duration, now func() time.Time) *Tracker {
	return &Tracker{base: base, now: now}
}

// Start anchors a new work session at the current time. No-op if a session
// is already running.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.anchor.IsZero() {
		t.anchor = t.now()
	}
}

// Pause folds the running session into the base and clears the anchor.
// Returns the new total. Idempotent while paused.
func (t *Tracker) Pause() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.anchor.IsZero() {
		t.base += t.now().Sub(t.anchor)
		t.anchor = time.Time{}
	}
	return t.base
}

// Resume starts a new session. The base is untouched until the next pause,
// periodic save, or completion.
func (t *Tracker) Resume() {
	t.Start()
}

// Running reports whether a session is in progress.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.anchor.IsZero()
}

// Elapsed returns the current total: persisted base plus the running
// session, if any.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

func (t *Tracker) elapsedLocked() time.Duration {
	total := t.base
	if !t.anchor.IsZero() {
		total += t.now().Sub(t.anchor)
	}
	return total
}
