// Package geom holds the minimap coordinate types shared by the tracker, the
// event log and the player.
package geom

import (
	"fmt"
	"math"

	maa "github.com/MaaXYZ/maa-framework-go/v4"
)

// Rect is a screen rectangle [x, y, w, h].
type Rect = maa.Rect

// Point is a position in minimap-pixel space. It is only meaningful for the
// region it was measured in.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// AbsDelta returns |p.X-q.X| and |p.Y-q.Y|.
func (p Point) AbsDelta(q Point) (dx, dy float64) {
	return math.Abs(p.X - q.X), math.Abs(p.Y - q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
}

// Ptr returns a copy of p on the heap, used for optional positions.
func (p Point) Ptr() *Point {
	return &p
}

// ValidRect reports whether r has a positive size.
func ValidRect(r Rect) bool {
	return r.Width() > 0 && r.Height() > 0
}
