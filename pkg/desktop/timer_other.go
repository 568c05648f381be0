//go:build !windows

package desktop

// HighResolutionTimer is a no-op outside Windows.
func HighResolutionTimer() func() {
	return func() {}
}
