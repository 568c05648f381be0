package player

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

// Maneuver timings
const (
	descendLead     = 50 * time.Millisecond
	descendHold     = 100 * time.Millisecond
	descendSettle   = 300 * time.Millisecond
	jumpHold        = 80 * time.Millisecond
	jumpGap         = 150 * time.Millisecond
	maxCoarseJumps  = 3
	walkSettle      = 200 * time.Millisecond
	coarseSettle    = 300 * time.Millisecond
	correctionGrace = 500 * time.Millisecond

	steerInterval   = 100 * time.Millisecond
	steerPulseMin   = 100 * time.Millisecond
	steerPulseMax   = 300 * time.Millisecond
	steerJumpHold   = 100 * time.Millisecond
	steerDropLead   = 40 * time.Millisecond
	steerDropHold   = 50 * time.Millisecond
	steerMinImprove = 1.0
)

// runCorrection owns the closed gate until it returns.
func (p *Player) runCorrection(ctx context.Context, s *session, k keymap.Key, expected, actual geom.Point, region geom.Rect) {
	defer p.wg.Done()
	defer p.gate.Open()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Correction aborted")
		}
	}()

	err := p.correct(ctx, s, k, expected, actual, region)
	switch {
	case err == nil:
		p.log.Info().Msg("Correction settled, jumps suppressed for this loop")
	case ctx.Err() != nil:
		p.log.Info().Msg("Correction cancelled")
	default:
		p.log.Warn().Err(err).Msg("Correction failed, resuming with residual drift")
	}
}

func (p *Player) correct(ctx context.Context, s *session, k keymap.Key, expected, actual geom.Point, region geom.Rect) error {
	opts := s.opts.Correction

	tx, ty := s.opts.Tolerances.For(k).Size(region)
	if err := p.coarse(ctx, opts, region, tx, ty, expected, actual); err != nil {
		return err
	}

	ok, err := p.steer(ctx, opts, region, expected, opts.FineTimeout)
	if err != nil {
		return err
	}
	if !ok && s.start != nil {
		p.log.Info().Str("start", s.start.String()).Msg("Steering back to start position")
		if _, err := p.steer(ctx, opts, region, *s.start, opts.FallbackTimeout); err != nil {
			return err
		}
	}

	if err := p.clock.Sleep(ctx, correctionGrace); err != nil {
		return err
	}

	final, ok := p.tracker.Locate()
	if !ok {
		return fmt.Errorf("%w: position unknown after correction", ErrCorrectionFailed)
	}
	sx, sy := settledTolerance.Size(region)
	dx, dy := final.AbsDelta(expected)
	if dx > sx || dy > sy {
		return fmt.Errorf("%w: still %.1f,%.1f away", ErrCorrectionFailed, dx, dy)
	}
	s.suppressJump.Store(true)
	return nil
}

// coarse performs one large move toward expected. Minimap y grows downward.
func (p *Player) coarse(ctx context.Context, opts CorrectionOptions, region geom.Rect, tx, ty float64, expected, actual geom.Point) error {
	dx := expected.X - actual.X
	dy := expected.Y - actual.Y

	if math.Abs(dy) > 2*ty {
		if dy > 0 {
			p.log.Debug().Float64("dy", dy).Msg("Coarse: drop down")
			p.descend(descendLead, descendHold)
			if err := p.clock.Sleep(ctx, descendSettle); err != nil {
				return err
			}
		} else {
			jumps := int(math.Abs(dy) / (0.25 * float64(region.Height())))
			jumps = min(max(jumps, 1), maxCoarseJumps)
			p.log.Debug().Float64("dy", dy).Int("jumps", jumps).Msg("Coarse: jump up")
			for i := 0; i < jumps; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				p.tap(keymap.Space, jumpHold)
				if err := p.clock.Sleep(ctx, jumpGap); err != nil {
					return err
				}
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if math.Abs(dx) > 2*tx {
		dir := keymap.Right
		if dx < 0 {
			dir = keymap.Left
		}
		hold := time.Duration(math.Abs(dx) * float64(opts.CoarseHoldPerPixel))
		hold = min(hold, opts.CoarseHoldMax)
		p.log.Debug().Float64("dx", dx).Dur("hold", hold).Str("key", string(dir)).Msg("Coarse: walk")
		p.tap(dir, hold)
		if err := p.clock.Sleep(ctx, walkSettle); err != nil {
			return err
		}
	}
	return p.clock.Sleep(ctx, coarseSettle)
}

// steer pulses toward target until it is within the arrival tolerance, no
// progress was made for NoProgressTimeout, or limit expires.
func (p *Player) steer(ctx context.Context, opts CorrectionOptions, region geom.Rect, target geom.Point, limit time.Duration) (bool, error) {
	tolX, tolY := arrivalTolerance.Size(region)
	w := float64(region.Width())

	start := p.clock.Now()
	lastImprove := start
	prevDist := math.Inf(1)

	for p.clock.Now().Sub(start) < limit {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		cur, ok := p.tracker.Locate()
		if !ok {
			if err := p.clock.Sleep(ctx, steerInterval); err != nil {
				return false, err
			}
			continue
		}

		dx := target.X - cur.X
		dy := target.Y - cur.Y
		now := p.clock.Now()
		if dist := math.Hypot(dx, dy); dist < prevDist-steerMinImprove {
			prevDist = dist
			lastImprove = now
		}
		if math.Abs(dx) <= tolX && math.Abs(dy) <= tolY {
			p.log.Debug().Str("pos", cur.String()).Str("target", target.String()).Msg("Arrived")
			return true, nil
		}
		if now.Sub(lastImprove) > opts.NoProgressTimeout {
			p.log.Debug().Msg("No progress, steering aborted")
			return false, nil
		}

		if math.Abs(dx) > tolX {
			dir := keymap.Right
			if dx < 0 {
				dir = keymap.Left
			}
			secs := math.Min(steerPulseMax.Seconds(), math.Max(steerPulseMin.Seconds(), math.Abs(dx)/w*0.25))
			p.tap(dir, time.Duration(secs*float64(time.Second)))
		}
		if math.Abs(dy) > tolY {
			if dy < 0 {
				p.tap(keymap.Space, steerJumpHold)
			} else {
				p.descend(steerDropLead, steerDropHold)
			}
		}
		if err := p.clock.Sleep(ctx, steerInterval); err != nil {
			return false, err
		}
	}
	p.log.Debug().Str("target", target.String()).Dur("limit", limit).Msg("Steering timed out")
	return false, nil
}

// descend drops through a platform: down, then alt while down is held.
func (p *Player) descend(lead, hold time.Duration) {
	if err := p.keys.Press(keymap.Down); err != nil {
		p.log.Warn().Err(err).Msg("Key press failed")
		return
	}
	_ = p.clock.Sleep(context.Background(), lead)
	p.tap(keymap.Alt, hold)
	if err := p.keys.Release(keymap.Down); err != nil {
		p.log.Warn().Err(err).Msg("Key release failed")
	}
}
