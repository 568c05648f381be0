package player

import (
	"context"
	"math"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
)

const (
	returnNearby      = 10.0
	returnArrived     = 20.0
	returnPixelsPerS  = 100.0
	returnMaxMove     = 3 * time.Second
	returnWalkShare   = 0.6
	returnJumpPixels  = 50.0
	returnJumpHold    = 50 * time.Millisecond
	returnJumpGap     = 300 * time.Millisecond
	returnFocusSettle = 500 * time.Millisecond
	returnSettle      = 500 * time.Millisecond
)

// returnToStart walks back toward the recorded start position after the last
// loop. It is best effort: one walk and a few jumps, then a report.
func (p *Player) returnToStart(ctx context.Context, s *session) {
	if s.start == nil {
		p.log.Info().Msg("No start position recorded, skipping return")
		return
	}
	cur, ok := p.tracker.Locate()
	if !ok {
		p.log.Info().Msg("Position unknown, skipping return")
		return
	}
	target := *s.start

	if p.win != nil {
		if err := p.win.Activate(); err == nil {
			if err := p.clock.Sleep(ctx, returnFocusSettle); err != nil {
				return
			}
		}
	}

	dx := target.X - cur.X
	dy := target.Y - cur.Y
	dist := math.Hypot(dx, dy)
	if dist < returnNearby {
		p.log.Info().Msg("Already at start position")
		return
	}
	p.log.Info().Str("from", cur.String()).Str("to", target.String()).Msg("Returning to start")

	move := min(time.Duration(dist/returnPixelsPerS*float64(time.Second)), returnMaxMove)
	if math.Abs(dx) > returnNearby {
		dir := keymap.Right
		if dx < 0 {
			dir = keymap.Left
		}
		p.tap(dir, time.Duration(float64(move)*returnWalkShare))
	}
	if dy < -returnNearby {
		jumps := int(math.Abs(dy)/returnJumpPixels) + 1
		for i := 0; i < jumps; i++ {
			if ctx.Err() != nil {
				return
			}
			p.tap(keymap.Space, returnJumpHold)
			if err := p.clock.Sleep(ctx, returnJumpGap); err != nil {
				return
			}
		}
	}

	if err := p.clock.Sleep(ctx, returnSettle); err != nil {
		return
	}
	if final, ok := p.tracker.Locate(); ok {
		if left := final.Dist(target); left < returnArrived {
			p.log.Info().Msg("Returned to start position")
		} else {
			p.log.Info().Float64("remaining", left).Msg("Return incomplete")
		}
	}
}
