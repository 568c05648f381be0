package maptracker

import (
	"image"

	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
	maa "github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

// LocateRecognition reports the avatar position found in the maa screenshot.
// The optional param `{"region":[x,y,w,h]}` overrides the tracker region.
type LocateRecognition struct {
	tracker *Tracker
}

type locateParam struct {
	Region []int `json:"region,omitempty"`
}

type locateDetail struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Source string  `json:"source"`
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func (r *LocateRecognition) Run(ctx *maa.Context, arg *maa.CustomRecognitionArg) (*maa.CustomRecognitionResult, bool) {
	fail := &maa.CustomRecognitionResult{Box: arg.Roi, Detail: `{}`}

	if r.tracker == nil || arg.Img == nil {
		log.Error().Msg("[MacroTrackerLocate] Tracker or image unavailable")
		return fail, false
	}

	region, ok := r.tracker.Region()
	if arg.CustomRecognitionParam != "" {
		var param locateParam
		if err := sonic.UnmarshalString(arg.CustomRecognitionParam, &param); err != nil {
			log.Error().Err(err).Msg("[MacroTrackerLocate] Failed to parse param")
			return fail, false
		}
		if len(param.Region) == 4 {
			region, ok = geom.Rect{param.Region[0], param.Region[1], param.Region[2], param.Region[3]}, true
		}
	}
	if !ok || !geom.ValidRect(region) {
		log.Error().Err(ErrNoRegion).Msg("[MacroTrackerLocate] No region")
		return fail, false
	}

	img, ok := arg.Img.(subImager)
	if !ok {
		log.Error().Msg("[MacroTrackerLocate] Image cannot be cropped")
		return fail, false
	}
	b := arg.Img.Bounds()
	crop := image.Rect(region.X(), region.Y(), region.X()+region.Width(), region.Y()+region.Height()).Add(b.Min).Intersect(b)
	if crop.Empty() {
		log.Error().Ints("region", region[:]).Msg("[MacroTrackerLocate] Region outside screenshot")
		return fail, false
	}

	res := r.tracker.LocateIn(img.SubImage(crop))
	if res.Source == SourceNone {
		log.Debug().Msg("[MacroTrackerLocate] Player not found")
		return fail, false
	}

	detail, err := sonic.MarshalString(locateDetail{X: res.Pos.X, Y: res.Pos.Y, Source: res.Source.String()})
	if err != nil {
		log.Error().Err(err).Msg("[MacroTrackerLocate] Failed to marshal detail")
		return fail, false
	}

	// the crop may be clipped to the screenshot
	origin := crop.Min.Sub(b.Min)
	return &maa.CustomRecognitionResult{
		Box:    maa.Rect{origin.X + int(res.Pos.X), origin.Y + int(res.Pos.Y), 1, 1},
		Detail: detail,
	}, true
}
