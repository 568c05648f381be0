package maptracker

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

var (
	ErrNoRegion      = errors.New("minimap region not set")
	ErrCaptureFailed = errors.New("minimap capture failed")
	ErrTrackingLost  = errors.New("player position lost")
)

// FrameSource captures a screen rectangle.
type FrameSource interface {
	Capture(r geom.Rect) (image.Image, error)
}

// Source tells which stage of the locate pipeline produced a position.
type Source int

const (
	SourceNone Source = iota
	SourceTemplate
	SourceCached
	SourceColor
)

func (s Source) String() string {
	switch s {
	case SourceTemplate:
		return "template"
	case SourceCached:
		return "cached"
	case SourceColor:
		return "color"
	default:
		return "none"
	}
}

// Result is a located position plus how it was obtained.
type Result struct {
	Pos        geom.Point
	Source     Source
	Confidence float64
}

// Tuning holds the adjustable tracker knobs.
type Tuning struct {
	MatchThreshold float64
	LostFrameGrace int
	// TrackTemplate enables template tracking after calibration. When false
	// only the colour fallback is used.
	TrackTemplate bool
}

func DefaultTuning() Tuning {
	return Tuning{
		MatchThreshold: DefaultMatchThreshold,
		LostFrameGrace: DefaultLostFrameGrace,
		TrackTemplate:  true,
	}
}

// Tracker estimates the avatar position on the minimap. All methods are safe
// for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	src     FrameSource
	matcher Matcher
	tuning  Tuning

	region    geom.Rect
	hasRegion bool

	reference      image.Image
	template       image.Image
	templateOffset geom.Point
	tracking       bool

	lastKnown  *geom.Point
	lostFrames int
}

type Option func(*Tracker)

func WithMatcher(m Matcher) Option {
	return func(t *Tracker) { t.matcher = m }
}

func WithTuning(tn Tuning) Option {
	return func(t *Tracker) { t.tuning = tn }
}

func WithRegion(r geom.Rect) Option {
	return func(t *Tracker) {
		if geom.ValidRect(r) {
			t.region, t.hasRegion = r, true
		}
	}
}

func New(src FrameSource, opts ...Option) *Tracker {
	t := &Tracker{
		src:     src,
		matcher: defaultMatcher(),
		tuning:  DefaultTuning(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Region returns the configured capture rectangle.
func (t *Tracker) Region() (geom.Rect, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.region, t.hasRegion
}

// SetRegion replaces the capture rectangle. Positions, template and cache from
// the previous region are dropped.
func (t *Tracker) SetRegion(r geom.Rect) error {
	if !geom.ValidRect(r) {
		return fmt.Errorf("invalid region %v", r)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.region, t.hasRegion = r, true
	t.resetLocked()
	log.Info().Ints("region", r[:]).Msg("[Tracker] Region set")
	return nil
}

func (t *Tracker) resetLocked() {
	t.reference = nil
	t.template = nil
	t.templateOffset = geom.Point{}
	t.tracking = false
	t.lastKnown = nil
	t.lostFrames = 0
}

func (t *Tracker) SetTuning(tn Tuning) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tuning = tn
}

// Tracking reports whether a calibrated template is in use.
func (t *Tracker) Tracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracking && t.template != nil && t.tuning.TrackTemplate
}

// Capture grabs the current minimap frame.
func (t *Tracker) Capture() (image.Image, error) {
	t.mu.Lock()
	region, ok := t.region, t.hasRegion
	t.mu.Unlock()
	if !ok {
		return nil, ErrNoRegion
	}
	frame, err := t.src.Capture(region)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	if frame == nil {
		return nil, ErrCaptureFailed
	}
	return frame, nil
}

// Locate captures a frame and returns the avatar position, or false when it
// cannot be determined.
func (t *Tracker) Locate() (geom.Point, bool) {
	res, err := t.LocateDetailed()
	if err != nil {
		return geom.Point{}, false
	}
	return res.Pos, true
}

// LocateDetailed is Locate with the failure reason and the producing stage.
func (t *Tracker) LocateDetailed() (Result, error) {
	frame, err := t.Capture()
	if err != nil {
		return Result{}, err
	}
	res := t.locate(frame)
	if res.Source == SourceNone {
		return res, ErrTrackingLost
	}
	return res, nil
}

// LocateIn runs the locate pipeline on an already captured frame, e.g. a
// screenshot handed over by maa.
func (t *Tracker) LocateIn(frame image.Image) Result {
	return t.locate(frame)
}

func (t *Tracker) locate(frame image.Image) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tracking && t.template != nil && t.tuning.TrackTemplate {
		if res, ok := t.matchLocked(frame); ok {
			return res
		}
	}

	if pos, ok := findPlayerDot(frame); ok {
		return Result{Pos: pos, Source: SourceColor}
	}
	return Result{Source: SourceNone}
}

// matchLocked runs template matching, falling back to the cached position
// for up to LostFrameGrace consecutive misses.
func (t *Tracker) matchLocked(frame image.Image) (Result, bool) {
	loc, score, err := t.matcher.Match(frame, t.template)
	if err == nil && score >= t.tuning.MatchThreshold {
		pos := geom.Pt(float64(loc.X), float64(loc.Y)).Add(t.templateOffset)
		t.lastKnown = pos.Ptr()
		t.lostFrames = 0
		return Result{Pos: pos, Source: SourceTemplate, Confidence: score}, true
	}
	if err != nil {
		log.Debug().Err(err).Msg("[Tracker] Template match failed")
	}

	t.lostFrames++
	if t.lostFrames <= t.tuning.LostFrameGrace && t.lastKnown != nil {
		return Result{Pos: *t.lastKnown, Source: SourceCached, Confidence: score}, true
	}
	return Result{}, false
}

// Calibrate cuts the template around pt, which is the avatar position in
// frame coordinates, and enables template tracking.
func (t *Tracker) Calibrate(frame image.Image, pt geom.Point) error {
	b := frame.Bounds()
	px, py := int(math.Round(pt.X)), int(math.Round(pt.Y))
	if px < 0 || py < 0 || px >= b.Dx() || py >= b.Dy() {
		return fmt.Errorf("calibration point %s outside %dx%d frame", pt, b.Dx(), b.Dy())
	}

	x1, y1 := max(px-TemplateHalf, 0), max(py-TemplateHalf, 0)
	x2, y2 := min(px+TemplateHalf+1, b.Dx()), min(py+TemplateHalf+1, b.Dy())
	tpl := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	draw.Copy(tpl, image.Point{}, frame, image.Rect(x1, y1, x2, y2).Add(b.Min), draw.Src, nil)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.reference = frame
	t.template = tpl
	t.templateOffset = geom.Pt(float64(px-x1), float64(py-y1))
	t.tracking = true
	t.lastKnown = geom.Pt(float64(px), float64(py)).Ptr()
	t.lostFrames = 0

	log.Info().
		Str("point", pt.String()).
		Int("width", x2-x1).
		Int("height", y2-y1).
		Msg("[Tracker] Calibrated player template")
	return nil
}

// CalibrateLive captures a fresh frame and calibrates on it.
func (t *Tracker) CalibrateLive(pt geom.Point) error {
	frame, err := t.Capture()
	if err != nil {
		return err
	}
	return t.Calibrate(frame, pt)
}

// TemplateOffset returns the avatar offset inside the calibrated template.
func (t *Tracker) TemplateOffset() (geom.Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.templateOffset, t.template != nil
}
