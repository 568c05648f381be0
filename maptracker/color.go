package maptracker

import (
	"image"

	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

// findPlayerDot returns the centroid of the yellow player marker pixels,
// relative to the frame origin.
func findPlayerDot(frame image.Image) (geom.Point, bool) {
	b := frame.Bounds()
	var sumX, sumY float64
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := frame.At(x, y).RGBA()
			if r>>8 > dotMinR && g>>8 > dotMinG && bl>>8 < dotMaxB {
				sumX += float64(x - b.Min.X)
				sumY += float64(y - b.Min.Y)
				n++
			}
		}
	}
	if n == 0 {
		return geom.Point{}, false
	}
	return geom.Pt(sumX/float64(n), sumY/float64(n)), true
}
