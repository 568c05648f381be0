//go:build gocv

package maptracker

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// GocvMatcher runs OpenCV's TM_CCOEFF_NORMED template matching.
type GocvMatcher struct{}

var _ Matcher = GocvMatcher{}

func defaultMatcher() Matcher {
	return GocvMatcher{}
}

func toGrayMat(img image.Image) (gocv.Mat, error) {
	rgb, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer rgb.Close()
	gray := gocv.NewMat()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)
	return gray, nil
}

func (GocvMatcher) Match(frame, tpl image.Image) (image.Point, float64, error) {
	fb, tb := frame.Bounds(), tpl.Bounds()
	if tb.Dx() > fb.Dx() || tb.Dy() > fb.Dy() || tb.Empty() {
		return image.Point{}, 0, ErrTemplateTooLarge
	}

	f, err := toGrayMat(frame)
	if err != nil {
		return image.Point{}, 0, fmt.Errorf("convert frame: %w", err)
	}
	defer f.Close()
	t, err := toGrayMat(tpl)
	if err != nil {
		return image.Point{}, 0, fmt.Errorf("convert template: %w", err)
	}
	defer t.Close()

	res := gocv.NewMat()
	defer res.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(f, t, &res, gocv.TmCcoeffNormed, mask)

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(res)
	return maxLoc, float64(maxVal), nil
}
