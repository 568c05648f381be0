package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/macro"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(t *testing.T, p *Player, l *macro.Log, loops int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Start(ctx, l, loops))
	require.NoError(t, p.Wait(ctx))
}

func TestSingleKeyTiming(t *testing.T) {
	clk := newFakeClock()
	keys := &fakeKeys{clock: clk}
	p := New(keys, nil, nil, WithClock(clk), WithOptions(noVerify()))

	l := &macro.Log{Events: []macro.InputEvent{
		ev(keymap.Right, macro.EdgeDown, 0, nil),
		ev(keymap.Right, macro.EdgeUp, ms(500), nil),
	}}
	play(t, p, l, 1)

	assert.Equal(t, []keyCall{
		{Op: "press", Key: keymap.Right, At: 0},
		{Op: "release", Key: keymap.Right, At: ms(500)},
	}, keys.snapshot())
	assert.Equal(t, StateCompleted, p.State())
	assert.Empty(t, p.Asserted())
}

func TestDuplicateDownIsNoop(t *testing.T) {
	clk := newFakeClock()
	keys := &fakeKeys{clock: clk}
	p := New(keys, nil, nil, WithClock(clk), WithOptions(noVerify()))

	l := &macro.Log{Events: []macro.InputEvent{
		ev("a", macro.EdgeDown, 0, nil),
		ev("a", macro.EdgeDown, ms(10), nil),
		ev("a", macro.EdgeUp, ms(20), nil),
		ev("a", macro.EdgeUp, ms(30), nil),
	}}
	play(t, p, l, 1)

	assert.Equal(t, []string{"press a", "release a"}, ops(keys.snapshot()))
}

func TestHoldPulsesRestoreAssertedKey(t *testing.T) {
	clk := newFakeClock()
	keys := &fakeKeys{clock: clk}
	p := New(keys, nil, nil, WithClock(clk), WithOptions(noVerify()))

	l := &macro.Log{Events: []macro.InputEvent{
		ev("a", macro.EdgeDown, 0, nil),
		ev("a", macro.EdgeHold, ms(50), nil),
		ev("a", macro.EdgeUp, ms(100), nil),
		ev("b", macro.EdgeHold, ms(150), nil),
	}}
	play(t, p, l, 1)

	calls := keys.snapshot()
	assert.Equal(t, []string{
		"press a",
		"press a", "release a", "press a", "release a",
		"press a",
		"release a",
		"press b", "release b", "press b", "release b",
	}, ops(calls))
	// 5ms on, 15ms off
	assert.Equal(t, ms(55), calls[2].At)
	assert.Equal(t, ms(70), calls[3].At)
}

func TestReplayIsDeterministicAcrossLoops(t *testing.T) {
	clk := newFakeClock()
	keys := &fakeKeys{clock: clk}
	p := New(keys, nil, nil, WithClock(clk), WithOptions(noVerify()))

	l := &macro.Log{Events: []macro.InputEvent{
		ev(keymap.Left, macro.EdgeDown, 0, nil),
		ev(keymap.Left, macro.EdgeHold, ms(50), nil),
		ev(keymap.Space, macro.EdgeDown, ms(80), nil),
		ev(keymap.Space, macro.EdgeUp, ms(120), nil),
		ev(keymap.Left, macro.EdgeUp, ms(300), nil),
	}}
	play(t, p, l, 3)

	calls := ops(keys.snapshot())
	require.Zero(t, len(calls)%3)
	n := len(calls) / 3
	assert.Equal(t, calls[:n], calls[n:2*n])
	assert.Equal(t, calls[:n], calls[2*n:])
	assert.Empty(t, p.Asserted())
}

func TestLoopGapBetweenLoops(t *testing.T) {
	clk := newFakeClock()
	keys := &fakeKeys{clock: clk}
	p := New(keys, nil, nil, WithClock(clk), WithOptions(noVerify()))

	l := &macro.Log{Events: []macro.InputEvent{
		ev("a", macro.EdgeDown, 0, nil),
		ev("a", macro.EdgeUp, ms(100), nil),
	}}
	play(t, p, l, 2)

	calls := keys.snapshot()
	require.Len(t, calls, 4)
	assert.Equal(t, ms(600), calls[2].At)
}

func TestStartRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	keys := &fakeKeys{}
	p := New(keys, nil, nil, WithClock(newFakeClock()))

	err := p.Start(ctx, &macro.Log{}, 1)
	assert.True(t, errors.Is(err, macro.ErrConfiguration))
	assert.Equal(t, StateIdle, p.State())
	assert.NoError(t, p.Wait(ctx))

	l := &macro.Log{Events: []macro.InputEvent{ev("a", macro.EdgeDown, 0, nil)}}
	assert.True(t, errors.Is(p.Start(ctx, l, 0), macro.ErrConfiguration))

	busy := New(keys, nil, nil, WithBusyCheck(func() bool { return true }))
	assert.True(t, errors.Is(busy.Start(ctx, l, 1), macro.ErrConfiguration))
	assert.Nil(t, busy.Baseline())
	assert.Empty(t, keys.snapshot())
}

func TestStopReleasesAssertedKeys(t *testing.T) {
	keys := &fakeKeys{}
	p := New(keys, nil, nil, WithOptions(noVerify()))

	l := &macro.Log{Events: []macro.InputEvent{
		ev("a", macro.EdgeDown, 0, nil),
		ev(keymap.Left, macro.EdgeDown, 0, nil),
		ev("a", macro.EdgeUp, 10*time.Second, nil),
	}}
	require.NoError(t, p.Start(context.Background(), l, 1))
	require.Eventually(t, func() bool { return len(p.Asserted()) == 2 }, time.Second, time.Millisecond)

	assert.True(t, errors.Is(p.Start(context.Background(), l, 1), macro.ErrConfiguration))

	p.Stop()
	assert.Empty(t, p.Asserted())
	assert.Equal(t, StateStopped, p.State())
	assert.True(t, p.gate.IsOpen())
	assert.ElementsMatch(t, []string{"press a", "press left", "release a", "release left"}, ops(keys.snapshot()))

	// stopping again is harmless
	p.Stop()
}

func TestFocusLossPausesClock(t *testing.T) {
	clk := newFakeClock()
	keys := &fakeKeys{clock: clk}
	win := &fakeWindow{focused: func() bool { return clk.since() >= ms(500) }}
	rec := &statusRecorder{}
	p := New(keys, win, nil, WithClock(clk), WithOptions(noVerify()), WithStatusSink(rec.sink))

	l := &macro.Log{Events: []macro.InputEvent{
		ev("a", macro.EdgeDown, 0, nil),
		ev("a", macro.EdgeUp, ms(500), nil),
	}}
	play(t, p, l, 1)

	// activation settles 200ms, then the window stays unfocused until 500ms
	assert.Equal(t, []keyCall{
		{Op: "press", Key: "a", At: ms(500)},
		{Op: "release", Key: "a", At: ms(1000)},
	}, keys.snapshot())
	assert.True(t, rec.seen(StatePausedFocusLost))
}

func TestBaselineCapturedOnce(t *testing.T) {
	clk := newFakeClock()
	p := New(&fakeKeys{}, nil, nil, WithClock(clk), WithOptions(noVerify()))

	first := &macro.Log{Events: []macro.InputEvent{ev("a", macro.EdgeDown, 0, geom.Pt(1, 1).Ptr())}}
	play(t, p, first, 1)
	second := &macro.Log{Events: []macro.InputEvent{ev("b", macro.EdgeDown, 0, geom.Pt(9, 9).Ptr())}}
	play(t, p, second, 1)

	require.NotNil(t, p.Baseline())
	assert.Equal(t, keymap.Key("a"), p.Baseline().Events[0].Key)

	p.ResetBaseline()
	play(t, p, second, 1)
	assert.Equal(t, keymap.Key("b"), p.Baseline().Events[0].Key)
}

func driftLog(pos geom.Point) *macro.Log {
	return &macro.Log{Events: []macro.InputEvent{
		ev("a", macro.EdgeDown, 0, pos.Ptr()),
		ev("a", macro.EdgeUp, ms(100), nil),
		ev("b", macro.EdgeDown, ms(1200), pos.Ptr()),
		ev("b", macro.EdgeUp, ms(1300), nil),
	}}
}

func indexOf(calls []keyCall, op string, k keymap.Key, nth int) int {
	for i, c := range calls {
		if c.Op == op && c.Key == k {
			if nth == 0 {
				return i
			}
			nth--
		}
	}
	return -1
}

func TestFirstLoopNeverCorrects(t *testing.T) {
	clk := newFakeClock()
	keys := &fakeKeys{clock: clk}
	tr := &fakeTracker{region: geom.Rect{0, 0, 100, 100}}
	tr.set(geom.Pt(10, 50))
	p := New(keys, nil, tr, WithClock(clk))

	play(t, p, driftLog(geom.Pt(80, 50)), 1)

	assert.Zero(t, p.Status().Corrections)
	assert.Equal(t, []string{"press a", "release a", "press b", "release b"}, ops(keys.snapshot()))
}

func TestPersistentDriftCorrectsOnceInSecondLoop(t *testing.T) {
	clk := newFakeClock()
	keys := &fakeKeys{clock: clk}
	tr := &fakeTracker{region: geom.Rect{0, 0, 100, 100}}
	tr.set(geom.Pt(10, 50))
	rec := &statusRecorder{}
	p := New(keys, nil, tr, WithClock(clk), WithStatusSink(rec.sink))

	play(t, p, driftLog(geom.Pt(80, 50)), 2)

	assert.Equal(t, 1, p.Status().Corrections)
	assert.True(t, rec.seen(StatePausedCorrecting))

	calls := keys.snapshot()
	loop1End := indexOf(calls, "release", "b", 0)
	loop2A := indexOf(calls, "press", "a", 1)
	walk := indexOf(calls, "press", keymap.Right, 0)
	require.NotEqual(t, -1, loop2A)
	require.NotEqual(t, -1, walk)
	assert.Greater(t, walk, loop1End)
	assert.Less(t, walk, loop2A, "correction must run before the event proceeds")
	// second Down of loop 2 is still pressed after the correction
	assert.NotEqual(t, -1, indexOf(calls, "press", "b", 1))
	assert.Empty(t, p.Asserted())
	assert.True(t, p.gate.IsOpen())
}

func TestSuccessfulCorrectionSuppressesJumps(t *testing.T) {
	clk := newFakeClock()
	tr := &fakeTracker{region: geom.Rect{0, 0, 100, 100}}
	tr.set(geom.Pt(10, 50))
	expected := geom.Pt(80, 50)
	keys := &fakeKeys{clock: clk}
	keys.onPress = func(k keymap.Key) {
		if k == keymap.Right {
			tr.set(expected)
		}
	}

	opts := DefaultOptions()
	opts.CorrectionDelay = 500 * time.Millisecond
	p := New(keys, nil, tr, WithClock(clk), WithOptions(opts))

	l := &macro.Log{Events: []macro.InputEvent{
		ev("a", macro.EdgeDown, 0, expected.Ptr()),
		ev("a", macro.EdgeUp, ms(50), nil),
		ev(keymap.Space, macro.EdgeDown, ms(100), expected.Ptr()),
		ev(keymap.Space, macro.EdgeHold, ms(150), nil),
		ev(keymap.Space, macro.EdgeUp, ms(200), nil),
	}}
	play(t, p, l, 2)

	assert.Equal(t, 1, p.Status().Corrections)
	calls := keys.snapshot()
	walk := indexOf(calls, "press", keymap.Right, 0)
	require.NotEqual(t, -1, walk)
	for _, c := range calls[walk:] {
		assert.NotEqual(t, keymap.Space, c.Key, "jump replayed after a settled correction")
	}
	// loop 1 still jumps
	assert.Less(t, indexOf(calls, "press", keymap.Space, 0), walk)
}

func TestImplausiblePositionIgnored(t *testing.T) {
	clk := newFakeClock()
	tr := &fakeTracker{region: geom.Rect{0, 0, 100, 100}}
	tr.set(geom.Pt(0, 0))
	p := New(&fakeKeys{}, nil, tr, WithClock(clk))

	play(t, p, driftLog(geom.Pt(80, 50)), 3)
	assert.Zero(t, p.Status().Corrections)
}

func TestReturnToStartAfterCompletion(t *testing.T) {
	clk := newFakeClock()
	tr := &fakeTracker{region: geom.Rect{0, 0, 100, 100}}
	tr.set(geom.Pt(10, 90))
	keys := &fakeKeys{clock: clk}

	opts := noVerify()
	opts.ReturnToStart = true
	p := New(keys, nil, tr, WithClock(clk), WithOptions(opts))

	l := &macro.Log{
		Start: geom.Pt(80, 20).Ptr(),
		Events: []macro.InputEvent{
			ev("a", macro.EdgeDown, 0, nil),
			ev("a", macro.EdgeUp, ms(100), nil),
		},
	}
	play(t, p, l, 1)

	calls := keys.snapshot()
	assert.Equal(t, []string{
		"press a", "release a",
		"press right", "release right",
		"press space", "release space",
		"press space", "release space",
	}, ops(calls))
	// 0.6 of min(dist/100, 3s)
	walk := calls[3].At - calls[2].At
	assert.InDelta(t, float64(time.Duration(0.6*float64(time.Second)*geom.Pt(10, 90).Dist(geom.Pt(80, 20))/100)), float64(walk), float64(time.Millisecond))
	assert.Equal(t, StateCompleted, p.State())
}

func TestStopDuringCorrection(t *testing.T) {
	keys := &fakeKeys{}
	tr := &fakeTracker{region: geom.Rect{0, 0, 100, 100}}
	tr.set(geom.Pt(10, 50))

	opts := DefaultOptions()
	opts.CorrectionDelay = 10 * time.Millisecond
	opts.LoopGap = 10 * time.Millisecond
	p := New(keys, nil, tr, WithOptions(opts))

	target := geom.Pt(80, 50)
	l := &macro.Log{Events: []macro.InputEvent{
		ev("a", macro.EdgeDown, 0, target.Ptr()),
		ev("a", macro.EdgeUp, ms(50), nil),
	}}
	require.NoError(t, p.Start(context.Background(), l, 3))
	require.Eventually(t, func() bool { return p.State() == StatePausedCorrecting }, 3*time.Second, time.Millisecond)

	begin := time.Now()
	p.Stop()
	assert.Less(t, time.Since(begin), 2*time.Second)

	assert.Empty(t, p.Asserted())
	assert.True(t, p.gate.IsOpen())
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, 1, p.Status().Corrections)

	n := len(keys.snapshot())
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, keys.snapshot(), n, "keys sent after Stop returned")
}

func TestStartDoesNotBlockStatusWhileActivating(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	win := &fakeWindow{activate: func() error {
		close(entered)
		<-release
		return nil
	}}
	p := New(&fakeKeys{}, win, nil, WithClock(newFakeClock()), WithOptions(noVerify()))

	l := &macro.Log{Events: []macro.InputEvent{
		ev("a", macro.EdgeDown, 0, nil),
		ev("a", macro.EdgeUp, ms(10), nil),
	}}
	started := make(chan error, 1)
	go func() { started <- p.Start(context.Background(), l, 1) }()
	<-entered

	queried := make(chan struct{})
	go func() {
		_ = p.Status()
		_ = p.Options()
		_ = p.Asserted()
		close(queried)
	}()
	select {
	case <-queried:
	case <-time.After(time.Second):
		t.Fatal("status queries blocked by window activation")
	}

	err := p.Start(context.Background(), l, 1)
	assert.True(t, errors.Is(err, macro.ErrConfiguration), "second Start during activation")

	close(release)
	require.NoError(t, <-started)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
	assert.Equal(t, StateCompleted, p.State())
}

func TestStartFailsWhenActivationFails(t *testing.T) {
	win := &fakeWindow{activate: func() error { return errors.New("no window") }}
	p := New(&fakeKeys{}, win, nil, WithClock(newFakeClock()), WithOptions(noVerify()))

	l := &macro.Log{Events: []macro.InputEvent{ev("a", macro.EdgeDown, 0, nil)}}
	assert.True(t, errors.Is(p.Start(context.Background(), l, 1), macro.ErrConfiguration))
	assert.Equal(t, StateIdle, p.State())

	// the guard is cleared, so a later Start reaches activation again
	win.activate = nil
	require.NoError(t, p.Start(context.Background(), l, 1))
	p.Stop()
}

func TestDeviationTimerStartsOnMinorSample(t *testing.T) {
	clk := newFakeClock()
	tr := &fakeTracker{region: geom.Rect{0, 0, 100, 100}}
	p := New(&fakeKeys{clock: clk}, nil, tr, WithClock(clk))
	expected := geom.Pt(80, 50)
	l := &macro.Log{Events: []macro.InputEvent{ev("a", macro.EdgeDown, 0, expected.Ptr())}}

	ctx, cancel := context.WithCancel(context.Background())
	s := newSession(l, l, 2, DefaultOptions())
	s.loop.Store(2)

	// skill tolerance is 25px, so 35px off is minor and 70px off is major
	tr.set(geom.Pt(45, 50))
	assert.False(t, p.checkDrift(ctx, s, "a", expected))
	assert.True(t, s.deviation.Deviating)

	_ = clk.Sleep(ctx, 600*time.Millisecond)
	tr.set(geom.Pt(10, 50))
	assert.False(t, p.checkDrift(ctx, s, "a", expected), "held 600ms")

	_ = clk.Sleep(ctx, 400*time.Millisecond)
	tr.set(geom.Pt(45, 50))
	assert.False(t, p.checkDrift(ctx, s, "a", expected), "held long enough but minor")

	tr.set(geom.Pt(10, 50))
	assert.True(t, p.checkDrift(ctx, s, "a", expected))
	assert.Equal(t, int32(1), s.corrections.Load())

	cancel()
	p.wg.Wait()
	assert.True(t, p.gate.IsOpen())
}
