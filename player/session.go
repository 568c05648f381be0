package player

import (
	"sync"
	"sync/atomic"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/macro"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
	"github.com/google/uuid"
)

// session is the state of one Start call.
type session struct {
	id         string
	cancel     func()
	opts       Options
	events     *macro.Log
	baseline   *macro.Log
	loop       atomic.Int32
	totalLoops int
	start      *geom.Point

	deviation    DeviationTracker
	suppressJump atomic.Bool
	corrections  atomic.Int32

	mu       sync.Mutex
	asserted keymap.Set
}

func newSession(events, baseline *macro.Log, loops int, opts Options) *session {
	s := &session{
		id:         uuid.NewString(),
		opts:       opts,
		events:     events,
		baseline:   baseline,
		totalLoops: loops,
		asserted:   keymap.NewSet(),
	}
	if pos, ok := baseline.StartPosition(); ok {
		s.start = pos.Ptr()
	}
	return s
}

// expected returns the recorded position for event i, taken from the
// baseline when it lines up with the log being replayed.
func (s *session) expected(i int) *geom.Point {
	if i < s.baseline.Len() && s.baseline.Len() == s.events.Len() {
		return s.baseline.Events[i].Position
	}
	return s.events.Events[i].Position
}

func (s *session) isAsserted(k keymap.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asserted.Has(k)
}

func (s *session) markAsserted(k keymap.Key, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.asserted.Add(k)
	} else {
		s.asserted.Remove(k)
	}
}

func (s *session) assertedKeys() []keymap.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asserted.Sorted()
}
