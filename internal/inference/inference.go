// Package inference defines the detector and classifier contracts used by the
// scanner and provides a remote model-server client plus local fallbacks.
package inference

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"

	"github.com/kdimtricp/crackscan/internal/detection"
)

const (
	LabelHorizontal    = "Horizontal Crack"
	LabelVertical      = "Vertical Crack"
	LabelUnprecedented = "Unprecedented Crack"
	LabelUnknown       = "Unknown"
)

// Labels is the classifier output order: probability i belongs to Labels[i].
var Labels = []string{LabelHorizontal, LabelVertical, LabelUnprecedented}

// Detector finds crack regions in an image. Regions come back in detector
// order and may be empty.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]detection.Detection, error)
}

// Classifier assigns one orientation label to a whole image.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) (Classification, error)
}

type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FromProbabilities picks the most likely label. An argmax outside Labels
// yields LabelUnknown; an empty distribution is an error.
func FromProbabilities(probs []float64) (Classification, error) {
	if len(probs) == 0 {
		return Classification{}, errors.New("empty probability distribution")
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	label := LabelUnknown
	if best < len(Labels) {
		label = Labels[best]
	}
	return Classification{Label: label, Confidence: probs[best]}, nil
}

const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

type Config struct {
	Mode    string
	URL     string
	Timeout time.Duration

	// local mode
	DarkThreshold uint8
	MinArea       int
}

// Open builds the detector and classifier pair for cfg.
func Open(cfg Config) (Detector, Classifier, error) {
	switch cfg.Mode {
	case ModeRemote:
		if cfg.URL == "" {
			return nil, nil, errors.New("remote inference requires a URL")
		}
		c := NewRemoteClient(cfg.URL, cfg.Timeout)
		return c, c, nil
	case ModeLocal, "":
		det := NewThresholdDetector(cfg.DarkThreshold, cfg.MinArea)
		return det, NewGeometryClassifier(det), nil
	default:
		return nil, nil, errors.Errorf("unknown inference mode %q", cfg.Mode)
	}
}
