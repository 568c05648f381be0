package macro

import (
	"fmt"
	"strings"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

// Log is an ordered sequence of input events plus the position recording
// started from.
type Log struct {
	Events []InputEvent
	Start  *geom.Point
}

func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Events)
}

func (l *Log) Empty() bool {
	return l.Len() == 0
}

// Duration is the timestamp of the last event.
func (l *Log) Duration() time.Duration {
	if l.Empty() {
		return 0
	}
	return l.Events[len(l.Events)-1].Time
}

// Append adds ev to the end of the log. Timestamps must be non-negative and
// non-decreasing.
func (l *Log) Append(ev InputEvent) error {
	if ev.Time < 0 {
		return fmt.Errorf("%w: negative time %v", ErrOutOfOrder, ev.Time)
	}
	if n := len(l.Events); n > 0 && ev.Time < l.Events[n-1].Time {
		return fmt.Errorf("%w: %v before %v", ErrOutOfOrder, ev.Time, l.Events[n-1].Time)
	}
	if ev.Kind == "" {
		ev.Kind = KindKeyboard
	}
	l.Events = append(l.Events, ev)
	return nil
}

func (l *Log) Reset() {
	l.Events = nil
	l.Start = nil
}

// Validate checks time ordering and that no key is pressed twice without a
// release in between.
func (l *Log) Validate() error {
	down := keymap.NewSet()
	var prev time.Duration
	for i, ev := range l.Events {
		if ev.Time < 0 || ev.Time < prev {
			return fmt.Errorf("%w: event %d at %v", ErrOutOfOrder, i, ev.Time)
		}
		prev = ev.Time
		switch ev.Edge {
		case EdgeDown:
			if down.Has(ev.Key) {
				return fmt.Errorf("%w: event %d presses %q again before release", ErrInvalidLog, i, ev.Key)
			}
			down.Add(ev.Key)
		case EdgeUp:
			down.Remove(ev.Key)
		case EdgeHold:
		default:
			return fmt.Errorf("%w: event %d has edge %v", ErrInvalidLog, i, ev.Edge)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (l *Log) Clone() *Log {
	if l == nil {
		return nil
	}
	out := &Log{Events: make([]InputEvent, len(l.Events))}
	for i, ev := range l.Events {
		out.Events[i] = ev.clone()
	}
	if l.Start != nil {
		out.Start = l.Start.Ptr()
	}
	return out
}

// StartPosition returns the recorded start position, or the first event
// position when the log was loaded from a file.
func (l *Log) StartPosition() (geom.Point, bool) {
	if l == nil {
		return geom.Point{}, false
	}
	if l.Start != nil {
		return *l.Start, true
	}
	for _, ev := range l.Events {
		if ev.Position != nil {
			return *ev.Position, true
		}
	}
	return geom.Point{}, false
}

// Summary renders edge counts, the first hold events and the first events
// for debugging.
func (l *Log) Summary() string {
	const (
		maxHolds  = 10
		maxEvents = 20
	)

	var sb strings.Builder
	counts := map[Edge]int{}
	var holds []int
	positioned := 0
	for i, ev := range l.Events {
		counts[ev.Edge]++
		if ev.Edge == EdgeHold {
			holds = append(holds, i)
		}
		if ev.Position != nil {
			positioned++
		}
	}

	fmt.Fprintf(&sb, "events: %d (down %d, up %d, hold %d), positioned: %d, duration: %.3fs\n",
		l.Len(), counts[EdgeDown], counts[EdgeUp], counts[EdgeHold], positioned, l.Duration().Seconds())
	if start, ok := l.StartPosition(); ok {
		fmt.Fprintf(&sb, "start: %s\n", start)
	}

	if len(holds) > 0 {
		sb.WriteString("holds:\n")
		for n, i := range holds {
			if n == maxHolds {
				fmt.Fprintf(&sb, "  ... %d more\n", len(holds)-maxHolds)
				break
			}
			fmt.Fprintf(&sb, "  #%d (index %d): %s at %.3fs\n", n+1, i, l.Events[i].Key, l.Events[i].Time.Seconds())
		}
	}

	sb.WriteString("events:\n")
	for i, ev := range l.Events {
		if i == maxEvents {
			fmt.Fprintf(&sb, "  ... %d more\n", len(l.Events)-maxEvents)
			break
		}
		fmt.Fprintf(&sb, "  %3d: %s\n", i, ev)
	}
	return sb.String()
}
