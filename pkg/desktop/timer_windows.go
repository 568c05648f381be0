//go:build windows

package desktop

import "golang.org/x/sys/windows"

var (
	winmm               = windows.NewLazySystemDLL("winmm.dll")
	procTimeBeginPeriod = winmm.NewProc("timeBeginPeriod")
	procTimeEndPeriod   = winmm.NewProc("timeEndPeriod")
)

// HighResolutionTimer raises the system timer resolution to 1 ms so short
// key pulses keep their length. Call the returned func to restore it.
func HighResolutionTimer() func() {
	if procTimeBeginPeriod.Find() != nil {
		return func() {}
	}
	procTimeBeginPeriod.Call(1)
	return func() { procTimeEndPeriod.Call(1) }
}
