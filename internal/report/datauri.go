package report

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var hrefDataURI = regexp.MustCompile(`href="(data:image[^"]+)"`)

// DecodeImage accepts raw base64, a data URI, or an HTML anchor wrapping a
// data URI, and decodes the image inside.
func DecodeImage(s string) (image.Image, error) {
	s = strings.TrimSpace(s)
	if m := hrefDataURI.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data uri")
		}
		s = payload
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decoding base64 image")
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	return img, nil
}
