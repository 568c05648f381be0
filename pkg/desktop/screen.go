package desktop

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

// Screen captures desktop rectangles.
type Screen struct{}

func (Screen) Capture(r geom.Rect) (image.Image, error) {
	img, err := screenshot.CaptureRect(image.Rect(r.X(), r.Y(), r.X()+r.Width(), r.Y()+r.Height()))
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", r, err)
	}
	return img, nil
}

// PrimaryBounds returns the bounds of display 0, or an empty rect when no
// display is available.
func PrimaryBounds() geom.Rect {
	b := screenshot.GetDisplayBounds(0)
	return geom.Rect{b.Min.X, b.Min.Y, b.Dx(), b.Dy()}
}
