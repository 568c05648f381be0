package player

import (
	"context"
	"sync"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/macro"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

type fakeClock struct {
	mu   sync.Mutex
	base time.Time
	now  time.Time
}

func newFakeClock() *fakeClock {
	t := time.Unix(1_700_000_000, 0)
	return &fakeClock{base: t, now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		c.mu.Lock()
		c.now = c.now.Add(d)
		c.mu.Unlock()
	}
	return nil
}

func (c *fakeClock) since() time.Duration {
	return c.Now().Sub(c.base)
}

type keyCall struct {
	Op  string
	Key keymap.Key
	At  time.Duration
}

type fakeKeys struct {
	mu      sync.Mutex
	clock   interface{ since() time.Duration }
	calls   []keyCall
	onPress func(keymap.Key)
}

func (f *fakeKeys) record(op string, k keymap.Key) {
	var at time.Duration
	if f.clock != nil {
		at = f.clock.since()
	}
	f.mu.Lock()
	f.calls = append(f.calls, keyCall{Op: op, Key: k, At: at})
	hook := f.onPress
	f.mu.Unlock()
	if op == "press" && hook != nil {
		hook(k)
	}
}

func (f *fakeKeys) Press(k keymap.Key) error {
	f.record("press", k)
	return nil
}

func (f *fakeKeys) Release(k keymap.Key) error {
	f.record("release", k)
	return nil
}

func (f *fakeKeys) snapshot() []keyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]keyCall(nil), f.calls...)
}

// ops drops timestamps.
func ops(calls []keyCall) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Op + " " + string(c.Key)
	}
	return out
}

type fakeWindow struct {
	focused  func() bool
	activate func() error
}

func (w *fakeWindow) Activate() error {
	if w.activate == nil {
		return nil
	}
	return w.activate()
}

func (w *fakeWindow) Focused() bool {
	if w.focused == nil {
		return true
	}
	return w.focused()
}

type fakeTracker struct {
	mu     sync.Mutex
	pos    geom.Point
	ok     bool
	region geom.Rect
}

func (t *fakeTracker) set(p geom.Point) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pos, t.ok = p, true
}

func (t *fakeTracker) Locate() (geom.Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos, t.ok
}

func (t *fakeTracker) Region() (geom.Rect, bool) {
	return t.region, true
}

type statusRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *statusRecorder) sink(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State)
}

func (r *statusRecorder) seen(st State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == st {
			return true
		}
	}
	return false
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func ev(k keymap.Key, edge macro.Edge, at time.Duration, pos *geom.Point) macro.InputEvent {
	return macro.InputEvent{Kind: macro.KindKeyboard, Key: k, Edge: edge, Time: at, Position: pos}
}

func noVerify() Options {
	o := DefaultOptions()
	o.VerifyPosition = false
	return o
}
