package player

import (
	"context"
	"time"
)

// Clock abstracts wall time so playback can be driven deterministically.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// timeline measures elapsed playback time with pauses excluded.
type timeline struct {
	clock Clock

	start            time.Time
	paused           bool
	pausedAt         time.Time
	accumulatedPause time.Duration
}

func newTimeline(c Clock) *timeline {
	return &timeline{clock: c, start: c.Now()}
}

func (t *timeline) elapsed() time.Duration {
	if t.paused {
		return t.pausedAt.Sub(t.start) - t.accumulatedPause
	}
	return t.clock.Now().Sub(t.start) - t.accumulatedPause
}

func (t *timeline) pause() {
	if !t.paused {
		t.paused = true
		t.pausedAt = t.clock.Now()
	}
}

func (t *timeline) resume() {
	if t.paused {
		t.accumulatedPause += t.clock.Now().Sub(t.pausedAt)
		t.paused = false
	}
}

// sleepUntil waits until the elapsed playback time reaches at.
func (t *timeline) sleepUntil(ctx context.Context, at time.Duration) error {
	if d := at - t.elapsed(); d > 0 {
		return t.clock.Sleep(ctx, d)
	}
	return ctx.Err()
}
