// Package engine ties the macro log, the minimap tracker, the recorder and the
// player together and keeps recording and playback mutually exclusive.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/MaaXYZ/MaaEnd/loopmacro/config"
	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/macro"
	"github.com/MaaXYZ/MaaEnd/loopmacro/maptracker"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
	"github.com/MaaXYZ/MaaEnd/loopmacro/player"
	"github.com/MaaXYZ/MaaEnd/loopmacro/recorder"
)

// Window is the target application window.
type Window interface {
	Activate() error
	Focused() bool
}

// Deps are the platform collaborators. KeyState may be nil when only
// playback is needed.
type Deps struct {
	Keys     keymap.Injector
	KeyState keymap.StateReader
	Window   Window
	Frames   maptracker.FrameSource
	Matcher  maptracker.Matcher
}

// Status is a snapshot for status lines and the maa focus text.
type Status struct {
	Recording bool
	Events    int
	Region    geom.Rect
	HasRegion bool
	Tracking  bool
	Player    player.Status
}

func (s Status) String() string {
	switch {
	case s.Recording:
		return fmt.Sprintf("recording, %d events", s.Events)
	case s.Player.State.Active() || s.Player.TotalLoops > 0:
		return fmt.Sprintf("%s, loop %d/%d, corrections %d", s.Player.State, s.Player.Loop, s.Player.TotalLoops, s.Player.Corrections)
	default:
		return fmt.Sprintf("idle, %d events", s.Events)
	}
}

type Engine struct {
	mu       sync.Mutex
	log      *macro.Log
	tracker  *maptracker.Tracker
	recorder *recorder.Recorder
	player   *player.Player

	regionPath string
	onContext  func(*maa.Context)
}

type Option func(*options)

type options struct {
	settings   *config.Settings
	regionPath string
	sink       player.StatusSink
	clock      player.Clock
	onContext  func(*maa.Context)
}

// WithSettings applies tuning from the settings file.
func WithSettings(s *config.Settings) Option {
	return func(o *options) { o.settings = s }
}

// WithRegionPath loads the minimap region from path and writes it back on
// SetRegion.
func WithRegionPath(path string) Option {
	return func(o *options) { o.regionPath = path }
}

func WithStatusSink(sink player.StatusSink) Option {
	return func(o *options) { o.sink = sink }
}

func WithClock(c player.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithContextHook is called with the maa context of every LoopMacroPlay run
// before playback starts, e.g. to bind its controller.
func WithContextHook(fn func(*maa.Context)) Option {
	return func(o *options) { o.onContext = fn }
}

func New(d Deps, opts ...Option) *Engine {
	o := options{settings: config.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	trackerOpts := []maptracker.Option{maptracker.WithTuning(o.settings.TrackerTuning())}
	if d.Matcher != nil {
		trackerOpts = append(trackerOpts, maptracker.WithMatcher(d.Matcher))
	}
	if o.regionPath != "" {
		r, ok, err := config.LoadRegion(o.regionPath)
		if err != nil {
			log.Warn().Err(err).Str("path", o.regionPath).Msg("[Engine] Failed to load minimap region")
		} else if ok {
			trackerOpts = append(trackerOpts, maptracker.WithRegion(r))
		}
	}

	e := &Engine{
		log:        &macro.Log{},
		regionPath: o.regionPath,
		onContext:  o.onContext,
	}
	e.tracker = maptracker.New(d.Frames, trackerOpts...)

	var win recorder.Window
	if d.Window != nil {
		win = d.Window
	}
	e.recorder = recorder.New(e.log, d.KeyState, win, e.tracker,
		recorder.WithInjector(d.Keys),
		recorder.WithOptions(o.settings.RecorderOptions()),
	)

	playerOpts := []player.Option{
		player.WithOptions(o.settings.PlayerOptions()),
		player.WithBusyCheck(e.recorder.Running),
	}
	if o.sink != nil {
		playerOpts = append(playerOpts, player.WithStatusSink(o.sink))
	}
	if o.clock != nil {
		playerOpts = append(playerOpts, player.WithClock(o.clock))
	}
	var pwin player.Window
	if d.Window != nil {
		pwin = d.Window
	}
	e.player = player.New(d.Keys, pwin, e.tracker, playerOpts...)
	return e
}

// Tracker exposes the position tracker, e.g. for the maa recognition.
func (e *Engine) Tracker() *maptracker.Tracker {
	return e.tracker
}

func (e *Engine) Player() *player.Player {
	return e.player
}

// ApplySettings pushes new tuning into the components. The tracker changes
// immediately, recorder and player at their next Start.
func (e *Engine) ApplySettings(s *config.Settings) {
	e.tracker.SetTuning(s.TrackerTuning())
	e.recorder.SetOptions(s.RecorderOptions())
	e.player.SetOptions(s.PlayerOptions())
	log.Info().Msg("[Engine] Settings applied")
}

// Log returns a copy of the current macro log.
func (e *Engine) Log() *macro.Log {
	e.mu.Lock()
	defer e.mu.Unlock()
	// the sampler appends under the recorder lock
	var out *macro.Log
	e.recorder.View(func(l *macro.Log) { out = l.Clone() })
	return out
}

func (e *Engine) Status() Status {
	region, ok := e.tracker.Region()
	return Status{
		Recording: e.recorder.Running(),
		Events:    e.recorder.Len(),
		Region:    region,
		HasRegion: ok,
		Tracking:  e.tracker.Tracking(),
		Player:    e.player.Status(),
	}
}

// StartRecording appends newly recorded events to the current log.
func (e *Engine) StartRecording(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player.Running() {
		return fmt.Errorf("%w: playback is running", macro.ErrConfiguration)
	}
	return e.recorder.Start(ctx)
}

func (e *Engine) StopRecording() {
	e.recorder.Stop()
}

// StartPlayback replays the current log loops times in the background.
func (e *Engine) StartPlayback(ctx context.Context, loops int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.player.Start(ctx, e.log, loops)
}

func (e *Engine) StopPlayback() {
	e.player.Stop()
}

// WaitPlayback blocks until the running playback ends or ctx is done.
func (e *Engine) WaitPlayback(ctx context.Context) error {
	return e.player.Wait(ctx)
}

// Stop halts whatever is running.
func (e *Engine) Stop() {
	e.recorder.Stop()
	e.player.Stop()
}

func (e *Engine) idleLocked(op string) error {
	if e.recorder.Running() {
		return fmt.Errorf("%w: cannot %s while recording", macro.ErrConfiguration, op)
	}
	if e.player.Running() {
		return fmt.Errorf("%w: cannot %s during playback", macro.ErrConfiguration, op)
	}
	return nil
}

func (e *Engine) Save(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.idleLocked("save"); err != nil {
		return err
	}
	return macro.Save(path, e.log)
}

// Load replaces the log with the file at path and forgets the playback
// baseline.
func (e *Engine) Load(path string) error {
	l, err := macro.Load(path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.idleLocked("load"); err != nil {
		return err
	}
	e.log.Events, e.log.Start = l.Events, l.Start
	e.player.ResetBaseline()
	return nil
}

// Clear empties the log, the recorded start position and the baseline.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.idleLocked("clear"); err != nil {
		return err
	}
	e.log.Reset()
	e.player.ResetBaseline()
	log.Info().Msg("[Engine] Log cleared")
	return nil
}

// SetRegion selects the minimap rectangle and persists it.
func (e *Engine) SetRegion(r geom.Rect) error {
	if err := e.tracker.SetRegion(r); err != nil {
		return err
	}
	if e.regionPath == "" {
		return nil
	}
	return config.SaveRegion(e.regionPath, r, true)
}

// Calibrate marks pt, in minimap coordinates, as the avatar on a live frame.
func (e *Engine) Calibrate(pt geom.Point) error {
	return e.tracker.CalibrateLive(pt)
}

// Position queries the tracker once.
func (e *Engine) Position() (maptracker.Result, error) {
	return e.tracker.LocateDetailed()
}
