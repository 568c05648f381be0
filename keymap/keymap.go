package keymap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Key is a logical key name independent of the physical keyboard encoding,
// e.g. "space", "left", "a", "f1".
type Key string

var (
	// ErrUnknownKey indicates the key has no mapping for the active backend.
	ErrUnknownKey = errors.New("unknown key")
	// ErrInjection wraps failures of the synthetic key backend.
	ErrInjection = errors.New("key injection failed")
)

// Injector asserts and releases logical keys on the target application.
type Injector interface {
	Press(k Key) error
	Release(k Key) error
}

// StateReader reports the logical keys currently held down.
type StateReader interface {
	Pressed() ([]Key, error)
}

// Class groups keys by how far the avatar is expected to drift while they are
// in use. The tolerance applied by the drift check depends on it.
type Class int

const (
	ClassSkill Class = iota
	ClassJump
	ClassDirectional
)

func (c Class) String() string {
	switch c {
	case ClassSkill:
		return "Skill"
	case ClassJump:
		return "Jump"
	case ClassDirectional:
		return "Directional"
	default:
		return "Unknown"
	}
}

// Keys with a fixed role in the correction maneuvers.
const (
	Space Key = "space"
	Alt   Key = "alt"
	Left  Key = "left"
	Right Key = "right"
	Up    Key = "up"
	Down  Key = "down"
)

var jumpKeys = map[Key]bool{
	Space:   true,
	"shift": true,
}

// Classify returns the semantic class of k.
func Classify(k Key) Class {
	switch {
	case jumpKeys[k]:
		return ClassJump
	case k == Left || k == Right || k == Up || k == Down:
		return ClassDirectional
	default:
		return ClassSkill
	}
}

// IsJump reports whether k is a jump-type key.
func IsJump(k Key) bool {
	return Classify(k) == ClassJump
}

// Normalize lowercases k and folds the aliases produced by different
// keyboard hooks onto one logical name.
func Normalize(k string) Key {
	s := strings.ToLower(strings.TrimSpace(k))
	if alias, ok := aliases[s]; ok {
		return alias
	}
	return Key(s)
}

var aliases = map[string]Key{
	"arrow left":  Left,
	"arrow right": Right,
	"arrow up":    Up,
	"arrow down":  Down,
	"left arrow":  Left,
	"right arrow": Right,
	"up arrow":    Up,
	"down arrow":  Down,
	"escape":      "esc",
	"return":      "enter",
	"spacebar":    Space,
	" ":           Space,
	"lshift":      "shift",
	"shiftleft":   "shift",
	"lctrl":       "ctrl",
	"ctrlleft":    "ctrl",
	"control":     "ctrl",
	"lalt":        Alt,
	"altleft":     Alt,
	"pageup":      "page up",
	"pagedown":    "page down",
}

// Monitored lists every key the recorder samples, in a stable order.
func Monitored() []Key {
	keys := make([]Key, 0, len(Win32Keymap))
	for k, code := range Win32Keymap {
		if code == unsupportedKey {
			continue
		}
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// SortKeys orders keys lexically in place.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}

// Set is a set of logical keys.
type Set map[Key]struct{}

func NewSet(keys ...Key) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s Set) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

func (s Set) Add(k Key) {
	s[k] = struct{}{}
}

func (s Set) Remove(k Key) {
	delete(s, k)
}

// Minus returns the keys in s that are not in other, sorted.
func (s Set) Minus(other Set) []Key {
	var out []Key
	for k := range s {
		if !other.Has(k) {
			out = append(out, k)
		}
	}
	SortKeys(out)
	return out
}

// Sorted returns the members of s in lexical order.
func (s Set) Sorted() []Key {
	out := make([]Key, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	SortKeys(out)
	return out
}

// Transfer logical key to Win32 virtual key code.
//
// Returns ErrUnknownKey if the key has no code.
func GetKeyCode(k Key) (int32, error) {
	code, ok := Win32Keymap[k]
	if !ok || code == unsupportedKey {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, k)
	}
	return code, nil
}
