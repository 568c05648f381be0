//go:build !windows

package desktop

import (
	"sync"

	hook "github.com/robotn/gohook"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
)

// KeyState follows global key events from gohook and keeps the set of keys
// currently held.
type KeyState struct {
	mu   sync.Mutex
	held keymap.Set
	done chan struct{}
}

func NewKeyState() (*KeyState, error) {
	s := &KeyState{held: keymap.NewSet(), done: make(chan struct{})}
	events := hook.Start()
	go s.consume(events)
	return s, nil
}

func (s *KeyState) consume(events chan hook.Event) {
	defer close(s.done)
	for ev := range events {
		s.apply(ev)
	}
}

func (s *KeyState) apply(ev hook.Event) {
	k := keymap.Normalize(hook.RawcodetoKeychar(ev.Rawcode))
	if _, err := keymap.GetKeyCode(k); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Kind {
	// KeyHold is the raw press, KeyDown the typed character
	case hook.KeyDown, hook.KeyHold:
		s.held.Add(k)
	case hook.KeyUp:
		s.held.Remove(k)
	}
}

func (s *KeyState) Pressed() ([]keymap.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held.Sorted(), nil
}

// Close stops the global hook.
func (s *KeyState) Close() error {
	hook.End()
	<-s.done
	return nil
}
