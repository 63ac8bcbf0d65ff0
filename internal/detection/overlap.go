package detection

import "math"

// OverlapRatio returns the intersection over union of two regions. The result
// is in [0, 1] and is 0 when the union has no area.
func OverlapRatio(a, b Region) float64 {
	a, b = a.Canon(), b.Canon()
	ax1, ay1, ax2, ay2 := a.Corners()
	bx1, by1, bx2, by2 := b.Corners()

	xi1 := math.Max(ax1, bx1)
	yi1 := math.Max(ay1, by1)
	xi2 := math.Min(ax2, bx2)
	yi2 := math.Min(ay2, by2)

	inter := math.Max(0, xi2-xi1) * math.Max(0, yi2-yi1)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
