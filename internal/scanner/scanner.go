// Package scanner walks a frame source and records the frames whose crack
// regions are new relative to the last reported set.
package scanner

import (
	"context"
	"image"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kdimtricp/crackscan/internal/annotate"
	"github.com/kdimtricp/crackscan/internal/detection"
	"github.com/kdimtricp/crackscan/internal/inference"
)

var (
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrInvalidFrameRate = errors.New("frame rate must be positive")
)

// TimelineEntry is one reported frame.
type TimelineEntry struct {
	Frame      int                 `json:"frame"`
	Timestamp  float64             `json:"timestamp"`
	Label      string              `json:"label"`
	Confidence float64             `json:"confidence"`
	Regions    detection.RegionSet `json:"regions"`
	Composite  annotate.Artifact   `json:"composite"`
	PerRegion  []annotate.Artifact `json:"per_region"`
}

// State is carried from one frame to the next. History is the region set of
// the most recent entry and is replaced, never merged.
type State struct {
	Frame   int
	History detection.RegionSet
	Entries []TimelineEntry
}

type Scanner struct {
	detector   inference.Detector
	classifier inference.Classifier
	annotator  *annotate.Annotator
	novelty    detection.NoveltyFilter
	logger     *zap.SugaredLogger
}

func New(
	detector inference.Detector,
	classifier inference.Classifier,
	annotator *annotate.Annotator,
	novelty detection.NoveltyFilter,
	logger *zap.SugaredLogger,
) *Scanner {
	if annotator == nil {
		annotator = annotate.New(annotate.Options{})
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scanner{
		detector:   detector,
		classifier: classifier,
		annotator:  annotator,
		novelty:    novelty,
		logger:     logger,
	}
}

// Scan consumes src to exhaustion and returns the timeline. Any failure aborts
// the scan and no entries are returned.
func (s *Scanner) Scan(ctx context.Context, src FrameSource) ([]TimelineEntry, error) {
	fps := src.FrameRate()
	if !(fps > 0) {
		return nil, errors.Wrapf(ErrInvalidFrameRate, "got %v", fps)
	}

	var st State
	for {
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading frame %d", st.Frame+1)
		}

		st, err = s.Step(ctx, st, frame, fps)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Infow("scan complete", "frames", st.Frame, "entries", len(st.Entries))
	return st.Entries, nil
}

// Step advances the scan by one frame and returns the next state.
func (s *Scanner) Step(ctx context.Context, st State, frame image.Image, fps float64) (State, error) {
	st.Frame++
	if frame == nil {
		return st, errors.Wrapf(ErrInvalidFrame, "frame %d is empty", st.Frame)
	}
	timestamp := float64(st.Frame) / fps

	dets, err := s.detector.Detect(ctx, frame)
	if err != nil {
		return st, errors.Wrapf(err, "detecting frame %d", st.Frame)
	}
	candidates := detection.Regions(dets)
	if !s.novelty.IsNovel(st.History, candidates) {
		return st, nil
	}

	cls, err := s.classifier.Classify(ctx, frame)
	if err != nil {
		return st, errors.Wrapf(err, "classifying frame %d", st.Frame)
	}
	ann, err := s.annotator.Annotate(frame, candidates)
	if err != nil {
		return st, errors.Wrapf(err, "annotating frame %d", st.Frame)
	}

	s.logger.Debugw("novel detections",
		"frame", st.Frame,
		"timestamp", timestamp,
		"regions", len(candidates),
		"label", cls.Label,
	)

	st.Entries = append(st.Entries, TimelineEntry{
		Frame:      st.Frame,
		Timestamp:  timestamp,
		Label:      cls.Label,
		Confidence: cls.Confidence,
		Regions:    candidates,
		Composite:  ann.Composite,
		PerRegion:  ann.PerRegion,
	})
	st.History = candidates
	return st, nil
}
