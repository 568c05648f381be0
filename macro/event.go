package macro

import (
	"fmt"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

// KindKeyboard is the only event kind produced by the recorder.
const KindKeyboard = "keyboard"

// Edge is the transition an event records.
type Edge int

const (
	EdgeDown Edge = iota
	EdgeUp
	EdgeHold
)

func (e Edge) String() string {
	switch e {
	case EdgeDown:
		return "down"
	case EdgeUp:
		return "up"
	case EdgeHold:
		return "hold"
	default:
		return fmt.Sprintf("edge(%d)", int(e))
	}
}

func ParseEdge(s string) (Edge, error) {
	switch s {
	case "down":
		return EdgeDown, nil
	case "up":
		return EdgeUp, nil
	case "hold":
		return EdgeHold, nil
	}
	return 0, fmt.Errorf("%w: unknown event_type %q", ErrInvalidLog, s)
}

// InputEvent is one recorded key transition.
type InputEvent struct {
	Kind string
	Key  keymap.Key
	Edge Edge
	// Time is measured from the first event of the loop, in whole milliseconds.
	Time       time.Duration
	ActiveKeys []keymap.Key
	// Position is the tracked avatar position when the event was recorded.
	Position *geom.Point
}

func (e InputEvent) clone() InputEvent {
	out := e
	if e.ActiveKeys != nil {
		out.ActiveKeys = append([]keymap.Key(nil), e.ActiveKeys...)
	}
	if e.Position != nil {
		out.Position = e.Position.Ptr()
	}
	return out
}

func (e InputEvent) String() string {
	pos := "-"
	if e.Position != nil {
		pos = e.Position.String()
	}
	return fmt.Sprintf("%7.3fs %-8s %-4s %s", e.Time.Seconds(), e.Key, e.Edge, pos)
}
