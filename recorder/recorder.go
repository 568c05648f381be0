// Package recorder samples logical key states and turns state changes into
// timestamped macro events.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/macro"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSampleInterval = 10 * time.Millisecond
	DefaultHoldInterval   = 50 * time.Millisecond
)

// Window is the target application window.
type Window interface {
	Activate() error
	Focused() bool
}

// Locator returns the current avatar position.
type Locator interface {
	Locate() (geom.Point, bool)
}

type Options struct {
	SampleInterval time.Duration
	// HoldInterval is the minimum spacing between hold events of one key.
	HoldInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		SampleInterval: DefaultSampleInterval,
		HoldInterval:   DefaultHoldInterval,
	}
}

// Recorder appends events to a macro log while running.
type Recorder struct {
	mu      sync.Mutex
	log     *macro.Log
	keys    keymap.StateReader
	win     Window
	loc     Locator
	release keymap.Injector
	opts    Options

	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// 采样状态，仅由采样协程访问
	prev      keymap.Set
	lastHold  map[keymap.Key]time.Time
	first     time.Time
	lastStamp time.Duration
	holdEvery time.Duration
}

type Option func(*Recorder)

// WithInjector releases keys still held when recording stops.
func WithInjector(inj keymap.Injector) Option {
	return func(r *Recorder) { r.release = inj }
}

func WithOptions(opts Options) Option {
	return func(r *Recorder) { r.opts = opts }
}

func New(l *macro.Log, keys keymap.StateReader, win Window, loc Locator, opts ...Option) *Recorder {
	r := &Recorder{
		log:  l,
		keys: keys,
		win:  win,
		loc:  loc,
		opts: DefaultOptions(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetOptions replaces the sampling options. They take effect at the next
// Start.
func (r *Recorder) SetOptions(opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = opts
}

func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// View calls fn with the log while appends are blocked.
func (r *Recorder) View(fn func(*macro.Log)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.log)
}

// Len returns the number of events recorded so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Len()
}

// Start brings the window forward, stores the start position and begins
// sampling. Events are appended to the existing log.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("%w: recorder already running", macro.ErrConfiguration)
	}
	if r.keys == nil {
		return fmt.Errorf("%w: no key state reader", macro.ErrConfiguration)
	}
	if r.opts.SampleInterval <= 0 {
		return fmt.Errorf("%w: sample interval %v", macro.ErrConfiguration, r.opts.SampleInterval)
	}
	if r.win != nil {
		if err := r.win.Activate(); err != nil {
			return fmt.Errorf("%w: activate window: %w", macro.ErrConfiguration, err)
		}
	}

	r.resetSampling()
	if r.loc != nil && r.log.Start == nil {
		if pos, ok := r.loc.Locate(); ok {
			r.log.Start = pos.Ptr()
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.loop(ctx, r.done, r.opts.SampleInterval)

	log.Info().
		Dur("interval", r.opts.SampleInterval).
		Dur("hold_interval", r.opts.HoldInterval).
		Msg("[Recorder] Recording started")
	return nil
}

func (r *Recorder) loop(ctx context.Context, done chan struct{}, interval time.Duration) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.tick(now)
		}
	}
}

// Stop halts sampling, closes out keys still held and releases them.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false

	held := r.prev.Sorted()
	if len(held) > 0 {
		now := time.Now()
		stamp := r.stamp(now)
		pos := r.locate()
		remaining := keymap.NewSet(held...)
		for _, k := range held {
			remaining.Remove(k)
			r.appendLocked(k, macro.EdgeUp, stamp, remaining.Sorted(), pos)
			if r.release != nil {
				if err := r.release.Release(k); err != nil {
					log.Warn().Err(err).Str("key", string(k)).Msg("[Recorder] Failed to release key")
				}
			}
		}
		r.prev = keymap.NewSet()
	}

	log.Info().Int("events", r.log.Len()).Msg("[Recorder] Recording stopped")
}

// tick samples the key state once.
func (r *Recorder) tick(now time.Time) {
	if r.win != nil && !r.win.Focused() {
		return
	}
	pressed, err := r.keys.Pressed()
	if err != nil {
		log.Warn().Err(err).Msg("[Recorder] Failed to read key state")
		return
	}
	cur := keymap.NewSet(pressed...)

	var holds []keymap.Key
	for _, k := range cur.Sorted() {
		if !r.prev.Has(k) {
			continue
		}
		if now.Sub(r.lastHold[k]) >= r.holdEvery {
			holds = append(holds, k)
			r.lastHold[k] = now
		}
	}
	downs := cur.Minus(r.prev)
	ups := r.prev.Minus(cur)
	for _, k := range downs {
		r.lastHold[k] = now
	}
	for _, k := range ups {
		delete(r.lastHold, k)
	}
	r.prev = cur

	if len(holds)+len(downs)+len(ups) == 0 {
		return
	}

	pos := r.locate()
	active := cur.Sorted()

	r.mu.Lock()
	defer r.mu.Unlock()
	stamp := r.stamp(now)
	for _, k := range holds {
		r.appendLocked(k, macro.EdgeHold, stamp, active, pos)
	}
	for _, k := range downs {
		r.appendLocked(k, macro.EdgeDown, stamp, active, pos)
	}
	for _, k := range ups {
		r.appendLocked(k, macro.EdgeUp, stamp, active, pos)
	}
}

func (r *Recorder) resetSampling() {
	r.prev = keymap.NewSet()
	r.lastHold = make(map[keymap.Key]time.Time)
	r.first = time.Time{}
	r.lastStamp = r.log.Duration()
	r.holdEvery = r.opts.HoldInterval
}

// stamp converts now to a log timestamp. The first event of a recording is
// placed right after whatever the log already holds.
func (r *Recorder) stamp(now time.Time) time.Duration {
	if r.first.IsZero() {
		r.first = now.Add(-r.lastStamp)
	}
	d := now.Sub(r.first).Truncate(time.Millisecond)
	if d < r.lastStamp {
		d = r.lastStamp
	}
	r.lastStamp = d
	return d
}

func (r *Recorder) locate() *geom.Point {
	if r.loc == nil {
		return nil
	}
	if pos, ok := r.loc.Locate(); ok {
		return pos.Ptr()
	}
	return nil
}

func (r *Recorder) appendLocked(k keymap.Key, edge macro.Edge, stamp time.Duration, active []keymap.Key, pos *geom.Point) {
	var keys []keymap.Key
	if len(active) > 0 {
		keys = append([]keymap.Key(nil), active...)
	}
	ev := macro.InputEvent{
		Kind:       macro.KindKeyboard,
		Key:        k,
		Edge:       edge,
		Time:       stamp,
		ActiveKeys: keys,
	}
	if pos != nil {
		ev.Position = pos.Ptr()
	}
	if err := r.log.Append(ev); err != nil {
		log.Error().Err(err).Str("key", string(k)).Msg("[Recorder] Dropped event")
		return
	}
	log.Debug().
		Str("key", string(k)).
		Stringer("edge", edge).
		Dur("time", stamp).
		Msg("[Recorder] Event")
}
