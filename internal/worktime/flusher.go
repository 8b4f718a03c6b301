package worktime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FlushInterval bounds how much tracked time a crash can lose.
const FlushInterval = 30 * time.Second

// SaveFunc persists a running total in milliseconds. Writes are fire-once;
// a failed flush is logged and retried only by the next tick.
type SaveFunc func(workTimeMS int64) error

// Flusher periodically persists a tracker's running total while a session
// is active.
type Flusher struct {
	mu       sync.RWMutex
	tracker  *Tracker
	save     SaveFunc
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewFlusher(tracker *Tracker, save SaveFunc, logger *slog.Logger) *Flusher {
	return &Flusher{
		tracker:  tracker,
		save:     save,
		interval: FlushInterval,
		logger:   logger,
	}
}

// Start begins the flush loop.
func (f *Flusher) Start(ctx context.Context) {
	f.mu.Lock()
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	f.mu.Unlock()

	go func() {
		defer close(f.done)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.flush()
			}
		}
	}()
}

// Stop flushes once more and stops the loop.
func (f *Flusher) Stop() {
	f.mu.RLock()
	cancel := f.cancel
	done := f.done
	f.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	f.flush()
}

func (f *Flusher) flush() {
	if !f.tracker.Running() {
		return
	}
	ms := f.tracker.Elapsed().Milliseconds()
	if err := f.save(ms); err != nil {
		f.logger.Warn("flush work time", "error", err)
	}
}
