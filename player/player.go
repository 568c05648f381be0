// Package player replays a macro log across loops while verifying the avatar
// position and correcting drift.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/macro"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrCorrectionFailed reports a correction that did not bring the avatar
// back near the expected position. It is only logged.
var ErrCorrectionFailed = errors.New("position correction did not converge")

// Window is the target application window.
type Window interface {
	Activate() error
	Focused() bool
}

// Tracker provides the live avatar position and the region it is measured in.
type Tracker interface {
	Locate() (geom.Point, bool)
	Region() (geom.Rect, bool)
}

type Player struct {
	keys    keymap.Injector
	win     Window
	tracker Tracker
	clock   Clock
	gate    *Gate
	busy    func() bool
	sink    StatusSink
	log     zerolog.Logger

	mu       sync.Mutex
	opts     Options
	baseline *macro.Log
	session  *session
	done     chan struct{}
	// set while Start activates the window outside mu
	starting bool

	state atomic.Int32
	// correction goroutines in flight
	wg sync.WaitGroup
}

type Option func(*Player)

func WithClock(c Clock) Option {
	return func(p *Player) { p.clock = c }
}

func WithStatusSink(sink StatusSink) Option {
	return func(p *Player) { p.sink = sink }
}

// WithBusyCheck makes Start fail while busy reports true, e.g. while the
// recorder is running.
func WithBusyCheck(busy func() bool) Option {
	return func(p *Player) { p.busy = busy }
}

func WithOptions(o Options) Option {
	return func(p *Player) { p.opts = o }
}

func New(keys keymap.Injector, win Window, tracker Tracker, opts ...Option) *Player {
	p := &Player{
		keys:    keys,
		win:     win,
		tracker: tracker,
		clock:   realClock{},
		gate:    NewGate(),
		opts:    DefaultOptions(),
		log:     log.With().Str("module", "player").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Player) SetOptions(o Options) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts = o
}

func (p *Player) Options() Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts
}

func (p *Player) State() State {
	return State(p.state.Load())
}

func (p *Player) Running() bool {
	return p.State().Active()
}

func (p *Player) Status() Status {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()
	return statusOf(s, p.State())
}

func statusOf(s *session, st State) Status {
	out := Status{State: st}
	if s != nil {
		out.SessionID = s.id
		out.Loop = int(s.loop.Load())
		out.TotalLoops = s.totalLoops
		out.Corrections = int(s.corrections.Load())
	}
	return out
}

// Baseline returns the log captured on the first successful Start.
func (p *Player) Baseline() *macro.Log {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baseline
}

// ResetBaseline forgets the baseline so the next Start captures a new one.
// Used when the log is cleared or replaced.
func (p *Player) ResetBaseline() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseline = nil
}

// Asserted returns the keys the current or last session holds down.
func (p *Player) Asserted() []keymap.Key {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.assertedKeys()
}

func (p *Player) setState(st State, s *session) {
	p.state.Store(int32(st))
	if p.sink != nil {
		p.sink(statusOf(s, st))
	}
}

// Start validates the request and replays l loops times in the background.
// All validation errors wrap macro.ErrConfiguration and are returned before
// any goroutine starts.
func (p *Player) Start(ctx context.Context, l *macro.Log, loops int) error {
	p.mu.Lock()
	switch {
	case loops < 1:
		p.mu.Unlock()
		return fmt.Errorf("%w: loop count %d", macro.ErrConfiguration, loops)
	case l.Empty():
		p.mu.Unlock()
		return fmt.Errorf("%w: no events to play", macro.ErrConfiguration)
	case p.busy != nil && p.busy():
		p.mu.Unlock()
		return fmt.Errorf("%w: recorder is active", macro.ErrConfiguration)
	case p.starting || p.State().Active():
		p.mu.Unlock()
		return fmt.Errorf("%w: playback already running", macro.ErrConfiguration)
	}
	p.starting = true
	p.mu.Unlock()

	if p.win != nil {
		if err := p.activate(); err != nil {
			p.mu.Lock()
			p.starting = false
			p.mu.Unlock()
			return fmt.Errorf("%w: target window: %w", macro.ErrConfiguration, err)
		}
	}

	p.mu.Lock()
	p.starting = false
	if p.baseline == nil {
		p.baseline = l.Clone()
		p.log.Info().Int("events", p.baseline.Len()).Msg("Baseline captured")
	}

	ctx, cancel := context.WithCancel(ctx)
	s := newSession(l.Clone(), p.baseline, loops, p.opts)
	s.cancel = cancel
	done := make(chan struct{})
	p.session = s
	p.done = done
	p.gate.Open()
	p.state.Store(int32(StateRunning))
	p.mu.Unlock()

	p.log.Info().
		Str("session", s.id).
		Int("loops", loops).
		Int("events", s.events.Len()).
		Bool("verify", s.opts.VerifyPosition).
		Msg("Playback started")
	p.setState(StateRunning, s)

	go p.run(ctx, s, done)
	return nil
}

// Stop cancels playback and waits for the replay goroutine to exit. No key
// is asserted once it returns.
func (p *Player) Stop() {
	p.mu.Lock()
	s, done := p.session, p.done
	p.mu.Unlock()
	if s == nil {
		return
	}
	s.cancel()
	p.gate.Open()
	<-done
}

// Wait blocks until the current session ends or ctx is done.
func (p *Player) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) activate() error {
	var err error
	for i := 0; i < activateAttempts; i++ {
		if err = p.win.Activate(); err == nil {
			_ = p.clock.Sleep(context.Background(), activateSettle)
			return nil
		}
		p.log.Debug().Err(err).Int("attempt", i+1).Msg("Window activation failed")
		_ = p.clock.Sleep(context.Background(), activateRetry)
	}
	return err
}

func (p *Player) run(ctx context.Context, s *session, done chan struct{}) {
	final := StateStopped
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Playback aborted")
			final = StateStopped
		}
		s.cancel()
		p.wg.Wait()
		p.releaseAll(s)
		p.gate.Open()
		s.deviation.Reset()
		p.setState(final, s)
		p.log.Info().
			Str("session", s.id).
			Stringer("state", final).
			Int32("corrections", s.corrections.Load()).
			Msg("Playback finished")
		close(done)
	}()

	for loop := 1; loop <= s.totalLoops; loop++ {
		s.loop.Store(int32(loop))
		p.setState(StateRunning, s)
		p.log.Info().Int("loop", loop).Int("total", s.totalLoops).Msg("Loop started")

		if !p.playLoop(ctx, s) {
			return
		}
		if loop < s.totalLoops {
			if err := p.clock.Sleep(ctx, s.opts.LoopGap); err != nil {
				return
			}
		}
	}

	p.releaseAll(s)
	if s.opts.ReturnToStart {
		p.returnToStart(ctx, s)
	}
	if ctx.Err() == nil {
		final = StateCompleted
	}
}

func (p *Player) playLoop(ctx context.Context, s *session) bool {
	s.suppressJump.Store(false)
	tl := newTimeline(p.clock)

	for i, ev := range s.events.Events {
		if err := p.waitReady(ctx, s, tl); err != nil {
			return false
		}
		if err := tl.sleepUntil(ctx, ev.Time); err != nil {
			return false
		}
		if !p.dispatch(ctx, s, tl, i, ev) {
			return false
		}
	}
	return ctx.Err() == nil
}

// waitReady blocks while a correction is in flight or the window is not
// focused. Both pauses are excluded from the playback clock.
func (p *Player) waitReady(ctx context.Context, s *session, tl *timeline) error {
	if err := p.waitCorrection(ctx, s, tl); err != nil {
		return err
	}
	if p.win == nil || p.win.Focused() {
		return ctx.Err()
	}

	tl.pause()
	p.setState(StatePausedFocusLost, s)
	p.log.Info().Msg("Window lost focus, playback paused")
	for !p.win.Focused() {
		if err := p.clock.Sleep(ctx, s.opts.FocusPoll); err != nil {
			return err
		}
	}
	tl.resume()
	p.setState(StateRunning, s)
	p.log.Info().Msg("Window focused again, playback resumed")
	return nil
}

func (p *Player) waitCorrection(ctx context.Context, s *session, tl *timeline) error {
	if p.gate.IsOpen() {
		return nil
	}
	tl.pause()
	p.setState(StatePausedCorrecting, s)
	err := p.gate.Wait(ctx)
	tl.resume()
	s.deviation.Reset()
	if err != nil {
		return err
	}
	p.setState(StateRunning, s)
	return nil
}

func (p *Player) dispatch(ctx context.Context, s *session, tl *timeline, i int, ev macro.InputEvent) bool {
	switch ev.Edge {
	case macro.EdgeDown:
		if s.opts.VerifyPosition && p.tracker != nil {
			if expected := s.expected(i); expected != nil && p.checkDrift(ctx, s, ev.Key, *expected) {
				if err := p.waitCorrection(ctx, s, tl); err != nil {
					return false
				}
			}
		}
		if p.jumpSuppressed(s, ev.Key, ev.Edge) {
			return true
		}
		p.assert(s, ev.Key)
	case macro.EdgeHold:
		if p.jumpSuppressed(s, ev.Key, ev.Edge) {
			return true
		}
		p.hold(s, ev.Key)
	case macro.EdgeUp:
		p.release(s, ev.Key)
	default:
		p.log.Warn().Stringer("edge", ev.Edge).Int("index", i).Msg("Unknown edge, skipped")
	}
	return true
}

func (p *Player) jumpSuppressed(s *session, k keymap.Key, edge macro.Edge) bool {
	if !s.suppressJump.Load() || !keymap.IsJump(k) {
		return false
	}
	p.log.Debug().Str("key", string(k)).Stringer("edge", edge).Msg("Jump suppressed")
	return true
}

func (p *Player) assert(s *session, k keymap.Key) {
	if s.isAsserted(k) {
		return
	}
	if err := p.keys.Press(k); err != nil {
		p.log.Warn().Err(err).Str("key", string(k)).Msg("Key press failed")
		return
	}
	s.markAsserted(k, true)
}

func (p *Player) release(s *session, k keymap.Key) {
	if !s.isAsserted(k) {
		return
	}
	if err := p.keys.Release(k); err != nil {
		p.log.Warn().Err(err).Str("key", string(k)).Msg("Key release failed")
	}
	s.markAsserted(k, false)
}

// hold replays a hold event as short pulses, then restores the key if it was
// asserted before.
func (p *Player) hold(s *session, k keymap.Key) {
	wasAsserted := s.isAsserted(k)
	for i := 0; i < holdPulses; i++ {
		p.tap(k, holdPulseOn)
		_ = p.clock.Sleep(context.Background(), holdPulseOff)
	}
	if wasAsserted {
		if err := p.keys.Press(k); err != nil {
			p.log.Warn().Err(err).Str("key", string(k)).Msg("Key re-press failed")
			s.markAsserted(k, false)
		}
	}
}

// tap presses k for d. The pair always completes, cancellation is not
// observed in between.
func (p *Player) tap(k keymap.Key, d time.Duration) {
	if err := p.keys.Press(k); err != nil {
		p.log.Warn().Err(err).Str("key", string(k)).Msg("Key press failed")
		return
	}
	_ = p.clock.Sleep(context.Background(), d)
	if err := p.keys.Release(k); err != nil {
		p.log.Warn().Err(err).Str("key", string(k)).Msg("Key release failed")
	}
}

func (p *Player) releaseAll(s *session) {
	for _, k := range s.assertedKeys() {
		if err := p.keys.Release(k); err != nil {
			p.log.Warn().Err(err).Str("key", string(k)).Msg("Key release failed")
		}
		s.markAsserted(k, false)
	}
}
