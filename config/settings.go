// Package config loads the loop macro settings file and the minimap region.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/MaaXYZ/MaaEnd/loopmacro/maptracker"
	"github.com/MaaXYZ/MaaEnd/loopmacro/player"
	"github.com/MaaXYZ/MaaEnd/loopmacro/recorder"
)

// DefaultSettingsPath is used when no -config flag is given.
const DefaultSettingsPath = "loopmacro.toml"

// Settings mirrors loopmacro.toml. Durations are written as strings ("10ms").
type Settings struct {
	Record     RecordSettings     `toml:"record"`
	Tracker    TrackerSettings    `toml:"tracker"`
	Player     PlayerSettings     `toml:"player"`
	Tolerance  player.Tolerances  `toml:"tolerance"`
	Correction CorrectionSettings `toml:"correction"`
}

type RecordSettings struct {
	SampleInterval time.Duration `toml:"sample_interval"`
	HoldInterval   time.Duration `toml:"hold_interval"`
}

type TrackerSettings struct {
	MatchThreshold float64 `toml:"match_threshold"`
	LostFrameGrace int     `toml:"lost_frame_grace"`
	TrackTemplate  bool    `toml:"track_template"`
}

type PlayerSettings struct {
	LoopGap         time.Duration `toml:"loop_gap"`
	FocusPoll       time.Duration `toml:"focus_poll"`
	VerifyPosition  bool          `toml:"verify_position"`
	ReturnToStart   bool          `toml:"return_to_start"`
	CorrectionDelay time.Duration `toml:"correction_delay"`
}

type CorrectionSettings struct {
	FineTimeout        time.Duration `toml:"fine_timeout"`
	FallbackTimeout    time.Duration `toml:"fallback_timeout"`
	NoProgressTimeout  time.Duration `toml:"no_progress_timeout"`
	CoarseHoldPerPixel time.Duration `toml:"coarse_hold_per_pixel"`
	CoarseHoldMax      time.Duration `toml:"coarse_hold_max"`
}

// Default returns the built-in settings.
func Default() *Settings {
	tn := maptracker.DefaultTuning()
	rec := recorder.DefaultOptions()
	po := player.DefaultOptions()
	return &Settings{
		Record: RecordSettings{
			SampleInterval: rec.SampleInterval,
			HoldInterval:   rec.HoldInterval,
		},
		Tracker: TrackerSettings{
			MatchThreshold: tn.MatchThreshold,
			LostFrameGrace: tn.LostFrameGrace,
			TrackTemplate:  tn.TrackTemplate,
		},
		Player: PlayerSettings{
			LoopGap:         po.LoopGap,
			FocusPoll:       po.FocusPoll,
			VerifyPosition:  po.VerifyPosition,
			ReturnToStart:   po.ReturnToStart,
			CorrectionDelay: po.CorrectionDelay,
		},
		Tolerance: po.Tolerances,
		Correction: CorrectionSettings{
			FineTimeout:        po.Correction.FineTimeout,
			FallbackTimeout:    po.Correction.FallbackTimeout,
			NoProgressTimeout:  po.Correction.NoProgressTimeout,
			CoarseHoldPerPixel: po.Correction.CoarseHoldPerPixel,
			CoarseHoldMax:      po.Correction.CoarseHoldMax,
		},
	}
}

// ValidationError reports one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks ranges and the tolerance ordering jump > skill > directional.
func (s *Settings) Validate() error {
	var errs ValidationErrors
	positive := func(field string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("must be positive, got %s", d)})
		}
	}

	positive("record.sample_interval", s.Record.SampleInterval)
	positive("record.hold_interval", s.Record.HoldInterval)
	positive("player.loop_gap", s.Player.LoopGap)
	positive("player.focus_poll", s.Player.FocusPoll)
	positive("player.correction_delay", s.Player.CorrectionDelay)
	positive("correction.fine_timeout", s.Correction.FineTimeout)
	positive("correction.fallback_timeout", s.Correction.FallbackTimeout)
	positive("correction.no_progress_timeout", s.Correction.NoProgressTimeout)
	positive("correction.coarse_hold_per_pixel", s.Correction.CoarseHoldPerPixel)
	positive("correction.coarse_hold_max", s.Correction.CoarseHoldMax)

	if s.Tracker.MatchThreshold <= 0 || s.Tracker.MatchThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "tracker.match_threshold",
			Message: fmt.Sprintf("must be in (0,1], got %g", s.Tracker.MatchThreshold),
		})
	}
	if s.Tracker.LostFrameGrace < 0 {
		errs = append(errs, ValidationError{
			Field:   "tracker.lost_frame_grace",
			Message: fmt.Sprintf("must not be negative, got %d", s.Tracker.LostFrameGrace),
		})
	}

	classes := []struct {
		name string
		tol  player.Tolerance
	}{
		{"jump", s.Tolerance.Jump},
		{"skill", s.Tolerance.Skill},
		{"directional", s.Tolerance.Directional},
	}
	for _, c := range classes {
		if c.tol.X <= 0 || c.tol.Y <= 0 || c.tol.MinX < 0 || c.tol.MinY < 0 {
			errs = append(errs, ValidationError{Field: "tolerance." + c.name, Message: "fractions must be positive and floors non-negative"})
		}
	}
	for i := 0; i+1 < len(classes); i++ {
		wide, narrow := classes[i], classes[i+1]
		if wide.tol.X <= narrow.tol.X || wide.tol.Y <= narrow.tol.Y {
			errs = append(errs, ValidationError{
				Field:   "tolerance." + wide.name,
				Message: fmt.Sprintf("must be wider than tolerance.%s on both axes", narrow.name),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// LoadSettings reads path over the defaults. A missing file yields the
// defaults unchanged.
func LoadSettings(path string) (*Settings, error) {
	s := Default()
	md, err := toml.DecodeFile(path, s)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode %s: unknown keys %v", path, undecoded)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// TrackerTuning converts to maptracker.Tuning.
func (s *Settings) TrackerTuning() maptracker.Tuning {
	return maptracker.Tuning{
		MatchThreshold: s.Tracker.MatchThreshold,
		LostFrameGrace: s.Tracker.LostFrameGrace,
		TrackTemplate:  s.Tracker.TrackTemplate,
	}
}

func (s *Settings) RecorderOptions() recorder.Options {
	return recorder.Options{
		SampleInterval: s.Record.SampleInterval,
		HoldInterval:   s.Record.HoldInterval,
	}
}

func (s *Settings) PlayerOptions() player.Options {
	return player.Options{
		VerifyPosition:  s.Player.VerifyPosition,
		ReturnToStart:   s.Player.ReturnToStart,
		LoopGap:         s.Player.LoopGap,
		FocusPoll:       s.Player.FocusPoll,
		CorrectionDelay: s.Player.CorrectionDelay,
		Tolerances:      s.Tolerance,
		Correction: player.CorrectionOptions{
			FineTimeout:        s.Correction.FineTimeout,
			FallbackTimeout:    s.Correction.FallbackTimeout,
			NoProgressTimeout:  s.Correction.NoProgressTimeout,
			CoarseHoldPerPixel: s.Correction.CoarseHoldPerPixel,
			CoarseHoldMax:      s.Correction.CoarseHoldMax,
		},
	}
}
