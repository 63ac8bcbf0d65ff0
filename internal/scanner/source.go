package scanner

import (
	"context"
	"image"
	"io"
)

// FrameSource yields frames in playback order. Next returns io.EOF once the
// source is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	FrameRate() float64
}

// SliceSource replays frames held in memory.
type SliceSource struct {
	frames []image.Image
	fps    float64
	pos    int
}

func NewSliceSource(frames []image.Image, fps float64) *SliceSource {
	return &SliceSource{frames: frames, fps: fps}
}

func (s *SliceSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceSource) FrameRate() float64 { return s.fps }
