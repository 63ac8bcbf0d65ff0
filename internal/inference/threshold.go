package inference

import (
	"context"
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"

	"github.com/kdimtricp/crackscan/internal/detection"
)

const (
	defaultDarkThreshold = 80
	defaultMinArea       = 50
	blurRadius           = 1.0
)

// ThresholdDetector finds dark connected components after a light blur. It
// serves local mode, when no model server is configured.
type ThresholdDetector struct {
	level   uint8
	minArea int
}

func NewThresholdDetector(level uint8, minArea int) *ThresholdDetector {
	if level == 0 {
		level = defaultDarkThreshold
	}
	if minArea <= 0 {
		minArea = defaultMinArea
	}
	return &ThresholdDetector{level: level, minArea: minArea}
}

// darkMask returns a grayscale image where dark pixels are 0 and the rest
// 255, plus the blurred luminance it was cut from.
func (d *ThresholdDetector) darkMask(img image.Image) (*image.Gray, *image.RGBA) {
	blurred := blur.Gaussian(effect.Grayscale(img), blurRadius)
	return segment.Threshold(blurred, d.level), blurred
}

type component struct {
	x0, y0, x1, y1 int
	pixels         int
	darkness       float64
}

func (d *ThresholdDetector) Detect(ctx context.Context, img image.Image) ([]detection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mask, lum := d.darkMask(img)
	offset := img.Bounds().Min.Sub(mask.Bounds().Min)

	var out []detection.Detection
	for _, c := range components(mask, lum, d.level) {
		if c.pixels < d.minArea {
			continue
		}
		r := detection.FromCorners(
			float64(c.x0+offset.X), float64(c.y0+offset.Y),
			float64(c.x1+1+offset.X), float64(c.y1+1+offset.Y),
		)
		out = append(out, detection.Detection{
			Region:     r,
			Confidence: c.darkness / float64(c.pixels),
			Class:      "crack",
		})
	}
	return out, nil
}

// components labels 4-connected dark pixels of mask in row-major order.
func components(mask *image.Gray, lum *image.RGBA, level uint8) []component {
	b := mask.Bounds()
	w := b.Dx()
	seen := make([]bool, w*b.Dy())
	idx := func(p image.Point) int { return (p.Y-b.Min.Y)*w + (p.X - b.Min.X) }
	dark := func(p image.Point) bool { return mask.GrayAt(p.X, p.Y).Y == 0 }

	var out []component
	var queue []image.Point
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			start := image.Point{X: x, Y: y}
			if seen[idx(start)] || !dark(start) {
				continue
			}
			seen[idx(start)] = true
			c := component{x0: x, y0: y, x1: x, y1: y}
			queue = append(queue[:0], start)
			for len(queue) > 0 {
				p := queue[0]
				queue = queue[1:]
				c.pixels++
				if l := lumAt(lum, p); l < level {
					c.darkness += float64(level-l) / float64(level)
				}
				c.x0, c.x1 = min(c.x0, p.X), max(c.x1, p.X)
				c.y0, c.y1 = min(c.y0, p.Y), max(c.y1, p.Y)

				for _, n := range [4]image.Point{{p.X, p.Y - 1}, {p.X, p.Y + 1}, {p.X - 1, p.Y}, {p.X + 1, p.Y}} {
					if !n.In(b) || seen[idx(n)] {
						continue
					}
					if dark(n) {
						seen[idx(n)] = true
						queue = append(queue, n)
					}
				}
			}
			out = append(out, c)
		}
	}
	return out
}

func lumAt(img *image.RGBA, p image.Point) uint8 {
	if !p.In(img.Bounds()) {
		return 255
	}
	return img.RGBAAt(p.X, p.Y).R
}
