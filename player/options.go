package player

import "time"

const (
	DefaultLoopGap         = 500 * time.Millisecond
	DefaultFocusPoll       = 100 * time.Millisecond
	DefaultCorrectionDelay = time.Second
)

// Hold events are replayed as short pulses.
const (
	holdPulses   = 2
	holdPulseOn  = 5 * time.Millisecond
	holdPulseOff = 15 * time.Millisecond
)

// Window activation before playback.
const (
	activateAttempts = 3
	activateRetry    = 100 * time.Millisecond
	activateSettle   = 200 * time.Millisecond
)

// Options configures a playback session. Changes apply at the next Start.
type Options struct {
	VerifyPosition  bool
	ReturnToStart   bool
	LoopGap         time.Duration
	FocusPoll       time.Duration
	CorrectionDelay time.Duration
	Tolerances      Tolerances
	Correction      CorrectionOptions
}

// CorrectionOptions bounds the correction maneuver.
type CorrectionOptions struct {
	FineTimeout        time.Duration
	FallbackTimeout    time.Duration
	NoProgressTimeout  time.Duration
	CoarseHoldPerPixel time.Duration
	CoarseHoldMax      time.Duration
}

func DefaultCorrectionOptions() CorrectionOptions {
	return CorrectionOptions{
		FineTimeout:        2500 * time.Millisecond,
		FallbackTimeout:    3 * time.Second,
		NoProgressTimeout:  1200 * time.Millisecond,
		CoarseHoldPerPixel: 10 * time.Millisecond,
		CoarseHoldMax:      500 * time.Millisecond,
	}
}

func DefaultOptions() Options {
	return Options{
		VerifyPosition:  true,
		ReturnToStart:   false,
		LoopGap:         DefaultLoopGap,
		FocusPoll:       DefaultFocusPoll,
		CorrectionDelay: DefaultCorrectionDelay,
		Tolerances:      DefaultTolerances(),
		Correction:      DefaultCorrectionOptions(),
	}
}
