//go:build !gocv

package maptracker

func defaultMatcher() Matcher {
	return NCCMatcher{}
}
