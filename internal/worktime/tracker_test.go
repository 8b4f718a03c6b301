package worktime

import (
	"testing"
	"time"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTrackerPauseResume(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tr := NewTrackerWithClock(0, clock.now)

	tr.Start()
	clock.advance(45 * time.Second)

	got := tr.Pause()
	if got != 45*time.Second {
		t.Errorf("total after first session = %v, want 45s", got)
	}

	// Paused time does not count.
	clock.advance(5 * time.Minute)
	if tr.Elapsed() != 45*time.Second {
		t.Errorf("elapsed while paused = %v, want 45s", tr.Elapsed())
	}

	tr.Resume()
	clock.advance(10 * time.Second)

	if tr.Elapsed() != 55*time.Second {
		t.Errorf("total = %v, want 55s", tr.Elapsed())
	}
}

func TestTrackerSeededBase(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tr := NewTrackerWithClock(2*time.Minute, clock.now)

	if tr.Elapsed() != 2*time.Minute {
		t.Errorf("elapsed = %v, want 2m", tr.Elapsed())
	}

	tr.Start()
	clock.advance(30 * time.Second)
	if tr.Elapsed() != 2*time.Minute+30*time.Second {
		t.Errorf("elapsed = %v, want 2m30s", tr.Elapsed())
	}
}

func TestTrackerStartIsIdempotent(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tr := NewTrackerWithClock(0, clock.now)

	tr.Start()
	clock.advance(10 * time.Second)
	tr.Start() // must not reset the anchor
	clock.advance(10 * time.Second)

	if tr.Elapsed() != 20*time.Second {
		t.Errorf("elapsed = %v, want 20s", tr.Elapsed())
	}
}

func TestTrackerPauseIsIdempotent(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tr := NewTrackerWithClock(0, clock.now)

	tr.Start()
	clock.advance(10 * time.Second)
	tr.Pause()
	clock.advance(10 * time.Second)

	if got := tr.Pause(); got != 10*time.Second {
		t.Errorf("second pause = %v, want 10s", got)
	}
}

func TestTrackerNeverDecreases(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tr := NewTrackerWithClock(0, clock.now)

	tr.Start()
	var prev time.Duration
	for i := 0; i < 10; i++ {
		clock.advance(time.Second)
		if i%3 == 0 {
			tr.Pause()
			tr.Resume()
		}
		got := tr.Elapsed()
		if got < prev {
			t.Fatalf("elapsed went backwards: %v -> %v", prev, got)
		}
		prev = got
	}
}

func TestTrackerRunning(t *testing.T) {
	tr := NewTracker(0)

	if tr.Running() {
		t.Error("new tracker should not be running")
	}
	tr.Start()
	if !tr.Running() {
		t.Error("tracker should be running after start")
	}
	tr.Pause()
	if tr.Running() {
		t.Error("tracker should not be running after pause")
	}
}
