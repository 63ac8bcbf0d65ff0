package annotate

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette is the fixed, ordered set of outline colours. Region i of a set is
// drawn with Palette[i%len(Palette)].
var Palette = mustPalette(
	"#0000ff",
	"#00ff00",
	"#ff0000",
	"#00ffff",
	"#ff00ff",
	"#ffff00",
	"#800080",
	"#808000",
	"#008080",
	"#000000",
)

func mustPalette(hexes ...string) []colorful.Color {
	out := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(err)
		}
		out[i] = c
	}
	return out
}

// ColorFor returns the palette entry for the i-th (0-based) region.
func ColorFor(i int) colorful.Color {
	return Palette[i%len(Palette)]
}

// rgba converts to an opaque color.RGBA without rounding drift.
func rgba(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
