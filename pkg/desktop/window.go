package desktop

import (
	"errors"
	"fmt"

	"github.com/go-vgo/robotgo"
	"github.com/rs/zerolog/log"
)

// ErrWindowNotFound is returned when no process matches the window name.
var ErrWindowNotFound = errors.New("target window not found")

// Window is the target application, identified by process id.
type Window struct {
	Name string
	pid  int
}

// FindWindow looks up the first process whose name matches name.
func FindWindow(name string) (*Window, error) {
	ids, err := robotgo.FindIds(name)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", name, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrWindowNotFound, name)
	}
	log.Debug().Str("name", name).Ints("pids", ids).Msg("[Desktop] Window candidates")
	return &Window{Name: name, pid: ids[0]}, nil
}

// Activate brings the window to the foreground.
func (w *Window) Activate() error {
	if err := robotgo.ActivePid(w.pid); err != nil {
		return fmt.Errorf("activate %q (pid %d): %w", w.Name, w.pid, err)
	}
	return nil
}

// Focused reports whether the foreground window belongs to the process.
func (w *Window) Focused() bool {
	return robotgo.GetPid() == w.pid
}

// AnyWindow is used when no target is configured. It is always focused.
type AnyWindow struct{}

func (AnyWindow) Activate() error { return nil }
func (AnyWindow) Focused() bool   { return true }
