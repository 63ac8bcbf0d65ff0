package inference

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ClassifierInputSize is the square edge the orientation model expects.
const ClassifierInputSize = 227

// ClassifierInput converts img to the grayscale 227x227 input of the
// orientation model.
func ClassifierInput(img image.Image) *image.NRGBA {
	resized := imaging.Resize(img, ClassifierInputSize, ClassifierInputSize, imaging.Linear)
	return imaging.Grayscale(resized)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "png encode")
	}
	return buf.Bytes(), nil
}
