package maptracker

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Matcher locates tpl inside frame. The returned point is the top-left corner
// of the best match relative to frame.Bounds().Min, with a confidence in
// [-1, 1] following TM_CCOEFF_NORMED semantics.
type Matcher interface {
	Match(frame, tpl image.Image) (image.Point, float64, error)
}

var ErrTemplateTooLarge = errors.New("template larger than frame")

// NCCMatcher is a pure-Go normalized cross-correlation matcher over grayscale.
type NCCMatcher struct{}

var _ Matcher = NCCMatcher{}

type grayGrid struct {
	w, h int
	pix  []float64
}

func toGrid(img image.Image) *grayGrid {
	b := img.Bounds()
	g, ok := img.(*image.Gray)
	if !ok || b.Min != (image.Point{}) {
		g = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	}
	grid := &grayGrid{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < grid.h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+grid.w]
		for x, v := range row {
			grid.pix[y*grid.w+x] = float64(v)
		}
	}
	return grid
}

func halfScale(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx()/2, b.Dy()/2))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// templateStats returns the template mean and sum of squared deviations.
func templateStats(t *grayGrid) (mean, norm float64) {
	for _, v := range t.pix {
		mean += v
	}
	mean /= float64(len(t.pix))
	for _, v := range t.pix {
		d := v - mean
		norm += d * d
	}
	return mean, norm
}

const nccEpsilon = 1e-9

func nccAt(f, t *grayGrid, x, y int, tMean, tNorm float64) float64 {
	var sumI, sumI2, sumTI float64
	for j := 0; j < t.h; j++ {
		frow := (y+j)*f.w + x
		trow := j * t.w
		for i := 0; i < t.w; i++ {
			v := f.pix[frow+i]
			sumI += v
			sumI2 += v * v
			sumTI += (t.pix[trow+i] - tMean) * v
		}
	}
	n := float64(t.w * t.h)
	varI := sumI2 - sumI*sumI/n
	if varI <= nccEpsilon || tNorm <= nccEpsilon {
		return 0
	}
	return sumTI / math.Sqrt(varI*tNorm)
}

// search scans the window [x0,x1]x[y0,y1] of top-left positions.
func search(f, t *grayGrid, x0, y0, x1, y1 int) (image.Point, float64) {
	tMean, tNorm := templateStats(t)
	best := image.Pt(x0, y0)
	bestScore := math.Inf(-1)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if s := nccAt(f, t, x, y, tMean, tNorm); s > bestScore {
				best, bestScore = image.Pt(x, y), s
			}
		}
	}
	return best, bestScore
}

// candidates returns up to k peaks of the score surface over all positions,
// suppressing hits within candidateSpacing of a stronger one.
func candidates(f, t *grayGrid, k int) []image.Point {
	tMean, tNorm := templateStats(t)
	w, h := f.w-t.w+1, f.h-t.h+1
	scores := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			scores[y*w+x] = nccAt(f, t, x, y, tMean, tNorm)
		}
	}

	var out []image.Point
	for len(out) < k {
		bi := -1
		for i, s := range scores {
			if !math.IsInf(s, -1) && (bi < 0 || s > scores[bi]) {
				bi = i
			}
		}
		if bi < 0 {
			break
		}
		pt := image.Pt(bi%w, bi/w)
		out = append(out, pt)
		for y := max(pt.Y-candidateSpacing, 0); y <= min(pt.Y+candidateSpacing, h-1); y++ {
			for x := max(pt.X-candidateSpacing, 0); x <= min(pt.X+candidateSpacing, w-1); x++ {
				scores[y*w+x] = math.Inf(-1)
			}
		}
	}
	return out
}

// Match returns the best full-resolution position. Small inputs are scanned
// exhaustively. Large ones refine the strongest half-scale peaks and fall back
// to the full scan when no refined peak reaches DefaultMatchThreshold.
func (NCCMatcher) Match(frame, tpl image.Image) (image.Point, float64, error) {
	fb, tb := frame.Bounds(), tpl.Bounds()
	if tb.Dx() > fb.Dx() || tb.Dy() > fb.Dy() || tb.Empty() {
		return image.Point{}, 0, ErrTemplateTooLarge
	}

	f := toGrid(frame)
	t := toGrid(tpl)
	maxX, maxY := f.w-t.w, f.h-t.h

	ops := (maxX + 1) * (maxY + 1) * t.w * t.h
	if ops <= exhaustiveMaxOps || t.w < 4 || t.h < 4 {
		pt, score := search(f, t, 0, 0, maxX, maxY)
		return pt, score, nil
	}

	fs := toGrid(halfScale(frame))
	ts := toGrid(halfScale(tpl))
	best, bestScore := image.Point{}, math.Inf(-1)
	for _, c := range candidates(fs, ts, coarseCandidates) {
		cx, cy := c.X*2, c.Y*2
		pt, score := search(f, t,
			clamp(cx-refineRadius, 0, maxX), clamp(cy-refineRadius, 0, maxY),
			clamp(cx+refineRadius, 0, maxX), clamp(cy+refineRadius, 0, maxY))
		if score > bestScore {
			best, bestScore = pt, score
		}
	}
	if bestScore < DefaultMatchThreshold {
		best, bestScore = search(f, t, 0, 0, maxX, maxY)
	}
	return best, bestScore, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
