// Package annotate renders detected regions onto copies of a frame and
// encodes the results as PNG data URIs.
package annotate

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/kdimtricp/crackscan/internal/detection"
)

const dataURIPrefix = "data:image/png;base64,"

// ErrNoFrame is returned when Annotate is called without an image.
var ErrNoFrame = errors.New("annotate: nil frame")

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Artifact is one encoded image. Index, Label and Color are only set on
// per-region artifacts.
type Artifact struct {
	DataURI string `json:"data_uri"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Index   int    `json:"index,omitempty"`
	Label   string `json:"label,omitempty"`
	Color   string `json:"color,omitempty"`
}

// Annotation is the output for one frame: all regions on a single image plus
// one image per region, in region order.
type Annotation struct {
	Composite Artifact   `json:"composite"`
	PerRegion []Artifact `json:"per_region"`
}

// DataURIs returns the per-region data URIs in order.
func (a *Annotation) DataURIs() []string {
	out := make([]string, len(a.PerRegion))
	for i, art := range a.PerRegion {
		out[i] = art.DataURI
	}
	return out
}

type Options struct {
	LineWidth int
	FontSize  float64
}

// Annotator draws outlined, numbered regions. It holds no per-frame state and
// is safe for concurrent use.
type Annotator struct {
	lineWidth int
	fontSize  float64
}

func New(opts Options) *Annotator {
	if opts.LineWidth <= 0 {
		opts.LineWidth = 2
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 12
	}
	return &Annotator{lineWidth: opts.LineWidth, fontSize: opts.FontSize}
}

// RegionLabel is the caption drawn next to the i-th (0-based) region.
func RegionLabel(i int) string {
	return fmt.Sprintf("Crack %d", i+1)
}

// Annotate draws every region onto a composite copy of frame and each region
// alone onto its own copy. frame itself is left untouched.
func (a *Annotator) Annotate(frame image.Image, regions detection.RegionSet) (*Annotation, error) {
	if frame == nil {
		return nil, ErrNoFrame
	}

	composite := gg.NewContextForImage(frame)
	for i, r := range regions {
		a.outline(composite.Image().(*image.RGBA), r.Rect(), rgba(ColorFor(i)))
		a.label(composite, i, r)
	}
	compositeArt, err := encodeArtifact(composite.Image())
	if err != nil {
		return nil, errors.Wrap(err, "encoding composite")
	}

	out := &Annotation{
		Composite: compositeArt,
		PerRegion: make([]Artifact, 0, len(regions)),
	}
	for i, r := range regions {
		dc := gg.NewContextForImage(frame)
		a.outline(dc.Image().(*image.RGBA), r.Rect(), rgba(ColorFor(i)))
		art, err := encodeArtifact(dc.Image())
		if err != nil {
			return nil, errors.Wrapf(err, "encoding region %d", i+1)
		}
		art.Index = i + 1
		art.Label = RegionLabel(i)
		art.Color = ColorFor(i).Hex()
		out.PerRegion = append(out.PerRegion, art)
	}
	return out, nil
}

// label captions the i-th region in its palette colour. Only the composite is
// captioned; per-region images carry the outline alone.
func (a *Annotator) label(dc *gg.Context, i int, r detection.Region) {
	dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: a.fontSize}))
	dc.SetColor(rgba(ColorFor(i)))
	x, y := a.labelAnchor(r.Rect(), dc.Image().Bounds())
	dc.DrawString(RegionLabel(i), x, y)
}

// outline fills the four edges of rect with c; outline pixels hold c exactly.
func (a *Annotator) outline(dst *image.RGBA, rect image.Rectangle, c color.Color) {
	w := a.lineWidth
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+w),
		image.Rect(rect.Min.X, rect.Max.Y-w, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+w, rect.Max.Y),
		image.Rect(rect.Max.X-w, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// labelAnchor returns the text baseline just above the top-left corner, or
// just inside the box when the frame has no room above it.
func (a *Annotator) labelAnchor(rect, bounds image.Rectangle) (float64, float64) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y - 4)
	if y-a.fontSize < float64(bounds.Min.Y) {
		y = float64(rect.Min.Y+a.lineWidth) + a.fontSize
	}
	return x, y
}

func encodeArtifact(img image.Image) (Artifact, error) {
	uri, err := EncodePNG(img)
	if err != nil {
		return Artifact{}, err
	}
	b := img.Bounds()
	return Artifact{DataURI: uri, Width: b.Dx(), Height: b.Dy()}, nil
}

// EncodePNG returns img as a PNG data URI.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", errors.Wrap(err, "png encode")
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
