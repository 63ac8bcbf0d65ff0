package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/kdimtricp/crackscan/internal/models"
	"github.com/kdimtricp/crackscan/internal/report"
	"github.com/kdimtricp/crackscan/internal/scanner"
	"github.com/kdimtricp/crackscan/internal/storage"
	"github.com/kdimtricp/crackscan/internal/video"
)

var videoExtensions = []string{".mp4", ".avi", ".mov"}

// IsVideoName reports whether name has one of the accepted video extensions.
func IsVideoName(name string) bool {
	return lo.Contains(videoExtensions, strings.ToLower(filepath.Ext(name)))
}

// VideoEntry is a reported frame as served to clients.
type VideoEntry struct {
	Frame           int      `json:"frame"`
	Timestamp       float64  `json:"timestamp"`
	CrackStatus     string   `json:"crack_status"`
	Classification  string   `json:"classification"`
	Confidence      float64  `json:"confidence"`
	AnnotatedImage  string   `json:"annotated_image"`
	IndividualBoxes []string `json:"individual_bboxes"`
}

type VideoResult struct {
	AnalysisID      string       `json:"analysis_id"`
	FrameRate       float64      `json:"frame_rate"`
	FramesProcessed int          `json:"frames_processed"`
	Entries         []VideoEntry `json:"entries"`
}

// countingSource counts the frames handed to the scanner.
type countingSource struct {
	scanner.FrameSource
	n int
}

func (c *countingSource) Next(ctx context.Context) (image.Image, error) {
	img, err := c.FrameSource.Next(ctx)
	if err == nil {
		c.n++
	}
	return img, err
}

// ProcessVideo stages an uploaded video in storage, scans it and removes it.
func (s *Service) ProcessVideo(ctx context.Context, r io.Reader, filename string) (*VideoResult, error) {
	if !IsVideoName(filename) {
		return nil, fmt.Errorf("%w: %s must be one of %s", ErrUnsupportedVideo, filename, strings.Join(videoExtensions, ", "))
	}
	if s.storage == nil {
		return nil, errors.New("no upload storage configured")
	}

	name, err := s.storage.SaveFile(r, storage.FileInfo{Filename: filename})
	if err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}
	defer func() {
		if err := s.storage.DeleteFile(name); err != nil {
			s.logger.Warnw("failed to remove staged upload", "file", name, "error", err)
		}
	}()

	path, err := s.storage.Path(name)
	if err != nil {
		return nil, err
	}
	return s.ScanFile(ctx, path, filename)
}

// ScanFile runs the temporal scan over a video on disk and persists the
// timeline.
func (s *Service) ScanFile(ctx context.Context, path, sourceName string) (res *VideoResult, err error) {
	src, err := s.openVideo(path, s.logger)
	if err != nil {
		if errors.Is(err, video.ErrNotVideo) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedVideo, err)
		}
		return nil, fmt.Errorf("opening video: %w", err)
	}
	defer func() {
		err = multierr.Append(err, src.Close())
		if err != nil {
			res = nil
		}
	}()

	counted := &countingSource{FrameSource: src}
	sc := scanner.New(s.detector, s.classifier, s.annotator, s.novelty, s.logger)
	entries, err := sc.Scan(ctx, counted)
	if err != nil {
		return nil, fmt.Errorf("scanning video: %w", err)
	}

	a := models.NewAnalysis(models.KindVideo, sourceName)
	a.FrameRate = src.FrameRate()
	a.FramesProcessed = counted.n
	records := models.RecordsFromTimeline(a.ID, entries)
	if err := s.save(ctx, a, records); err != nil {
		return nil, err
	}

	s.logger.Infow("video analysed",
		"analysis_id", a.ID,
		"source", sourceName,
		"frames", counted.n,
		"entries", len(entries),
	)
	return &VideoResult{
		AnalysisID:      a.ID,
		FrameRate:       a.FrameRate,
		FramesProcessed: a.FramesProcessed,
		Entries:         VideoEntries(records),
	}, nil
}

// VideoEntries converts stored timeline records into client entries.
func VideoEntries(records []models.TimelineRecord) []VideoEntry {
	return lo.Map(records, func(r models.TimelineRecord, _ int) VideoEntry {
		boxes := r.PerRegion
		if boxes == nil {
			boxes = []string{}
		}
		return VideoEntry{
			Frame:           r.Frame,
			Timestamp:       roundSeconds(r.Timestamp),
			CrackStatus:     CrackStatus,
			Classification:  r.Label,
			Confidence:      r.Confidence,
			AnnotatedImage:  r.Composite,
			IndividualBoxes: boxes,
		}
	})
}

// ReportItems converts stored timeline records into video report rows.
func ReportItems(records []models.TimelineRecord) []report.VideoItem {
	return lo.Map(records, func(r models.TimelineRecord, _ int) report.VideoItem {
		return report.VideoItem{
			Frame:          r.Frame,
			Timestamp:      roundSeconds(r.Timestamp),
			Classification: r.Label,
			AnnotatedImage: r.Composite,
		}
	})
}
