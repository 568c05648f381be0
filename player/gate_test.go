package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	g := NewGate()
	require.True(t, g.IsOpen())
	require.NoError(t, g.Wait(context.Background()))

	require.True(t, g.TryClose())
	assert.False(t, g.TryClose())
	assert.False(t, g.IsOpen())

	released := make(chan error, 1)
	go func() { released <- g.Wait(context.Background()) }()
	select {
	case <-released:
		t.Fatal("Wait returned while the gate was closed")
	case <-time.After(20 * time.Millisecond):
	}

	g.Open()
	g.Open()
	assert.NoError(t, <-released)
	assert.True(t, g.IsOpen())

	require.True(t, g.TryClose())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(g.Wait(ctx), context.Canceled))
}

func TestTimelineExcludesPauses(t *testing.T) {
	clk := newFakeClock()
	tl := newTimeline(clk)
	ctx := context.Background()

	require.NoError(t, clk.Sleep(ctx, ms(100)))
	tl.pause()
	require.NoError(t, clk.Sleep(ctx, ms(400)))
	assert.Equal(t, ms(100), tl.elapsed())
	tl.resume()
	tl.resume()
	assert.Equal(t, ms(100), tl.elapsed())

	require.NoError(t, tl.sleepUntil(ctx, ms(250)))
	assert.Equal(t, ms(250), tl.elapsed())
	assert.Equal(t, ms(650), clk.since())

	// never sleeps backwards
	require.NoError(t, tl.sleepUntil(ctx, ms(10)))
	assert.Equal(t, ms(650), clk.since())
}

func TestToleranceOrderingAndSize(t *testing.T) {
	ts := DefaultTolerances()
	region := geom.Rect{0, 0, 200, 150}

	jx, jy := ts.For(keymap.Space).Size(region)
	sx, sy := ts.For("q").Size(region)
	dx, dy := ts.For(keymap.Left).Size(region)
	assert.Greater(t, jx, sx)
	assert.Greater(t, sx, dx)
	assert.Greater(t, jy, sy)
	assert.Greater(t, sy, dy)
	assert.InDelta(t, 36.0, dx, 1e-9)
	assert.InDelta(t, 37.5, dy, 1e-9)

	tiny := geom.Rect{0, 0, 10, 10}
	mx, my := ts.For(keymap.Left).Size(tiny)
	assert.Equal(t, 4.0, mx)
	assert.Equal(t, 6.0, my)
}

func TestPlausible(t *testing.T) {
	assert.True(t, plausible(geom.Pt(3, 0)))
	assert.False(t, plausible(geom.Pt(0, 0)))
	assert.False(t, plausible(geom.Pt(10001, 5)))
	assert.False(t, plausible(geom.Pt(5, -20000)))
}
