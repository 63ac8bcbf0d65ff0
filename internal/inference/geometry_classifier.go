package inference

import (
	"context"
	"image"

	"gonum.org/v1/gonum/stat"
)

// GeometryClassifier labels orientation from the spread of dark pixels: a
// stroke spread along x is horizontal, along y vertical, anything in between
// (diagonal or branching) unprecedented.
type GeometryClassifier struct {
	det *ThresholdDetector
}

func NewGeometryClassifier(det *ThresholdDetector) *GeometryClassifier {
	if det == nil {
		det = NewThresholdDetector(0, 0)
	}
	return &GeometryClassifier{det: det}
}

func (g *GeometryClassifier) Classify(ctx context.Context, img image.Image) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	mask, _ := g.det.darkMask(img)
	b := mask.Bounds()
	var xs, ys []float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y == 0 {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}
	if len(xs) < 2 {
		return Classification{Label: LabelUnknown}, nil
	}
	return FromProbabilities(orientationProbabilities(stat.Variance(xs, nil), stat.Variance(ys, nil)))
}

// orientationProbabilities maps the share r of x variance to
// (r², (1-r)², 2r(1-r)), which sums to one and peaks on horizontal for
// r > 2/3 and vertical for r < 1/3.
func orientationProbabilities(varX, varY float64) []float64 {
	total := varX + varY
	if total == 0 {
		return []float64{0, 0, 1}
	}
	r := varX / total
	return []float64{r * r, (1 - r) * (1 - r), 2 * r * (1 - r)}
}
