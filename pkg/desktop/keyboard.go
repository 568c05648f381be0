// Package desktop implements the macro collaborators on the local desktop:
// key injection, key state, window focus and screen capture.
package desktop

import (
	"fmt"
	"strings"

	"github.com/go-vgo/robotgo"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
)

var _ keymap.Injector = (*Keyboard)(nil)

// Keyboard injects logical keys with robotgo.
type Keyboard struct{}

func (Keyboard) Press(k keymap.Key) error {
	return toggle(k, "down")
}

func (Keyboard) Release(k keymap.Key) error {
	return toggle(k, "up")
}

func toggle(k keymap.Key, dir string) error {
	name, err := robotgoKey(k)
	if err != nil {
		return err
	}
	if err := robotgo.KeyToggle(name, dir); err != nil {
		return fmt.Errorf("%w: %s %s: %w", keymap.ErrInjection, k, dir, err)
	}
	return nil
}

// robotgo spells some keys differently from the logical names.
var robotgoNames = map[keymap.Key]string{
	"page up":   "pageup",
	"page down": "pagedown",
	"esc":       "escape",
	"ctrl":      "control",
	"num lock":  "num_lock",
	"keypad *":  "num_multiply",
	"keypad +":  "num_plus",
	"keypad -":  "num_minus",
	"keypad .":  "num_decimal",
	"keypad /":  "num_divide",
}

func robotgoKey(k keymap.Key) (string, error) {
	if _, err := keymap.GetKeyCode(k); err != nil {
		return "", err
	}
	if name, ok := robotgoNames[k]; ok {
		return name, nil
	}
	if digit, ok := strings.CutPrefix(string(k), "keypad "); ok {
		return "num" + digit, nil
	}
	return string(k), nil
}
