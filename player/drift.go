package player

import (
	"context"
	"math"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

// Tolerance is a region-relative allowance with absolute pixel floors.
type Tolerance struct {
	X    float64 `toml:"x"`
	Y    float64 `toml:"y"`
	MinX float64 `toml:"min_x"`
	MinY float64 `toml:"min_y"`
}

// Size resolves the tolerance in pixels for a region.
func (t Tolerance) Size(region geom.Rect) (tx, ty float64) {
	return math.Max(t.MinX, float64(region.Width())*t.X),
		math.Max(t.MinY, float64(region.Height())*t.Y)
}

// Tolerances holds one tolerance per key class.
type Tolerances struct {
	Jump        Tolerance `toml:"jump"`
	Skill       Tolerance `toml:"skill"`
	Directional Tolerance `toml:"directional"`
}

func DefaultTolerances() Tolerances {
	return Tolerances{
		Jump:        Tolerance{X: 0.35, Y: 0.45, MinX: 8, MinY: 10},
		Skill:       Tolerance{X: 0.25, Y: 0.35, MinX: 6, MinY: 8},
		Directional: Tolerance{X: 0.18, Y: 0.25, MinX: 4, MinY: 6},
	}
}

func (ts Tolerances) For(k keymap.Key) Tolerance {
	switch keymap.Classify(k) {
	case keymap.ClassJump:
		return ts.Jump
	case keymap.ClassDirectional:
		return ts.Directional
	default:
		return ts.Skill
	}
}

// Tolerances used around a correction maneuver.
var (
	// Steering stops once the avatar is this close to its target.
	arrivalTolerance = Tolerance{X: 0.06, Y: 0.08, MinX: 5, MinY: 6}
	// After a correction, being this close suppresses jumps for the loop.
	settledTolerance = Tolerance{X: 0.20, Y: 0.28, MinX: 5, MinY: 6}
)

// DeviationTracker remembers since when the avatar has been off course.
type DeviationTracker struct {
	Deviating bool
	Since     time.Time
}

func (d *DeviationTracker) Reset() {
	d.Deviating = false
	d.Since = time.Time{}
}

const implausibleCoord = 10000

// plausible rejects sensor noise: huge coordinates or an exact origin.
func plausible(p geom.Point) bool {
	if math.Abs(p.X) > implausibleCoord || math.Abs(p.Y) > implausibleCoord {
		return false
	}
	return !(math.Abs(p.X) < 1e-9 && math.Abs(p.Y) < 1e-9)
}

// checkDrift compares the live position with the recorded one before a Down
// event. It returns true when it started a correction; the caller must then
// wait on the gate before dispatching the event.
func (p *Player) checkDrift(ctx context.Context, s *session, k keymap.Key, expected geom.Point) bool {
	actual, ok := p.tracker.Locate()
	if !ok {
		return false
	}
	if !plausible(actual) {
		p.log.Debug().Str("pos", actual.String()).Msg("Ignoring implausible position")
		return false
	}
	region, ok := p.tracker.Region()
	if !ok || !geom.ValidRect(region) {
		return false
	}

	tx, ty := s.opts.Tolerances.For(k).Size(region)
	dx, dy := actual.AbsDelta(expected)
	if dx <= tx && dy <= ty {
		if s.deviation.Deviating {
			p.log.Debug().Msg("Position back within tolerance")
		}
		s.deviation.Reset()
		return false
	}

	now := p.clock.Now()
	if !s.deviation.Deviating {
		s.deviation.Deviating = true
		s.deviation.Since = now
		p.log.Debug().
			Float64("dx", dx).
			Float64("dy", dy).
			Str("key", string(k)).
			Msg("Deviation started")
	}

	major := dx > 2*tx || dy > 2*ty
	held := now.Sub(s.deviation.Since)
	// 第 1 轮只观察，不修正
	if !major || s.loop.Load() < 2 || held < s.opts.CorrectionDelay {
		return false
	}
	if !p.gate.TryClose() {
		return false
	}

	p.log.Info().
		Int32("loop", s.loop.Load()).
		Str("expected", expected.String()).
		Str("actual", actual.String()).
		Dur("held", held).
		Msg("Major deviation, pausing for correction")

	s.corrections.Add(1)
	p.wg.Add(1)
	go p.runCorrection(ctx, s, k, expected, actual, region)
	return true
}
