// Package detection holds the geometry shared by detectors, the novelty
// filter and the annotator: axis-aligned regions, region sets and the
// overlap ratio used to compare them.
package detection

import (
	"fmt"
	"image"
	"math"
)

// Region is an axis-aligned rectangle in pixel coordinates with its origin at
// the top-left corner.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FromCorners builds a Region from the (x1, y1, x2, y2) corner form most
// detectors emit.
func FromCorners(x1, y1, x2, y2 float64) Region {
	return Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}.Canon()
}

// Canon returns the same rectangle with non-negative width and height.
func (r Region) Canon() Region {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// Corners returns the region as (x1, y1, x2, y2).
func (r Region) Corners() (x1, y1, x2, y2 float64) {
	return r.X, r.Y, r.X + r.Width, r.Y + r.Height
}

func (r Region) Area() float64 {
	return r.Width * r.Height
}

// Rect rounds the region to integer pixel bounds.
func (r Region) Rect() image.Rectangle {
	c := r.Canon()
	x1, y1, x2, y2 := c.Corners()
	return image.Rect(
		int(math.Round(x1)), int(math.Round(y1)),
		int(math.Round(x2)), int(math.Round(y2)),
	)
}

func (r Region) String() string {
	return fmt.Sprintf("(%.1f,%.1f %.1fx%.1f)", r.X, r.Y, r.Width, r.Height)
}

// RegionSet is an ordered list of regions for a single frame. Order decides
// colour and numbering when the set is drawn.
type RegionSet []Region

// Detection is one detector hit. Only the region takes part in novelty checks.
type Detection struct {
	Region     Region  `json:"region"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class,omitempty"`
}

// Regions drops everything but the geometry, keeping detector order.
func Regions(dets []Detection) RegionSet {
	if len(dets) == 0 {
		return nil
	}
	out := make(RegionSet, len(dets))
	for i, d := range dets {
		out[i] = d.Region
	}
	return out
}
