//go:build windows

package desktop

import (
	"golang.org/x/sys/windows"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

// KeyState polls GetAsyncKeyState for every monitored key.
type KeyState struct {
	keys  []keymap.Key
	codes []int32
}

func NewKeyState() (*KeyState, error) {
	if err := procGetAsyncKeyState.Find(); err != nil {
		return nil, err
	}
	s := &KeyState{}
	for _, k := range keymap.Monitored() {
		code, err := keymap.GetKeyCode(k)
		if err != nil {
			continue
		}
		s.keys = append(s.keys, k)
		s.codes = append(s.codes, code)
	}
	return s, nil
}

func (s *KeyState) Pressed() ([]keymap.Key, error) {
	var out []keymap.Key
	for i, code := range s.codes {
		ret, _, _ := procGetAsyncKeyState.Call(uintptr(code))
		if ret&0x8000 != 0 {
			out = append(out, s.keys[i])
		}
	}
	return out, nil
}

func (s *KeyState) Close() error { return nil }
