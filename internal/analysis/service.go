// Package analysis runs detection, classification and annotation over single
// images, zip archives and videos, and records what was found.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/kdimtricp/crackscan/internal/annotate"
	"github.com/kdimtricp/crackscan/internal/detection"
	"github.com/kdimtricp/crackscan/internal/inference"
	"github.com/kdimtricp/crackscan/internal/models"
	"github.com/kdimtricp/crackscan/internal/scanner"
	"github.com/kdimtricp/crackscan/internal/storage"
	"github.com/kdimtricp/crackscan/internal/video"
)

var (
	ErrInvalidImage     = errors.New("invalid image format")
	ErrInvalidArchive   = errors.New("invalid zip archive")
	ErrUnsupportedVideo = errors.New("unsupported video")
	ErrTooLarge         = errors.New("input too large")
)

const (
	DefaultMaxEntryBytes  = 64 << 20
	DefaultMaxImagePixels = 50_000_000
)

// CrackStatus is reported for every video timeline entry.
const CrackStatus = "Cracked"

type Repository interface {
	Create(ctx context.Context, a *models.Analysis, records []models.TimelineRecord) error
	GetByID(ctx context.Context, id string) (*models.Analysis, error)
	List(ctx context.Context, limit int) ([]models.Analysis, error)
	Timeline(ctx context.Context, analysisID string) ([]models.TimelineRecord, error)
}

// VideoSource is a frame source that owns a decoder.
type VideoSource interface {
	scanner.FrameSource
	io.Closer
}

type VideoOpener func(path string, logger *zap.SugaredLogger) (VideoSource, error)

func openFFmpeg(path string, logger *zap.SugaredLogger) (VideoSource, error) {
	src, err := video.Open(path, logger)
	if err != nil {
		return nil, err
	}
	return src, nil
}

type Service struct {
	detector   inference.Detector
	classifier inference.Classifier
	annotator  *annotate.Annotator
	novelty    detection.NoveltyFilter
	repo       Repository
	storage    storage.Storage
	openVideo  VideoOpener
	maxEntry   int64
	maxPixels  int
	logger     *zap.SugaredLogger
}

type Config struct {
	NoveltyThreshold float64
	// OpenVideo defaults to the ffmpeg decoder.
	OpenVideo VideoOpener
	// MaxEntryBytes caps the uncompressed size of one archive entry.
	MaxEntryBytes int64
	// MaxImagePixels caps width*height of any image before it is decoded.
	MaxImagePixels int
}

// NewService wires the pipeline. repo and store may be nil: nothing is
// persisted without a repository, and uploads cannot be staged without
// storage.
func NewService(
	detector inference.Detector,
	classifier inference.Classifier,
	repo Repository,
	store storage.Storage,
	config Config,
	logger *zap.SugaredLogger,
) *Service {
	if config.OpenVideo == nil {
		config.OpenVideo = openFFmpeg
	}
	if config.MaxEntryBytes <= 0 {
		config.MaxEntryBytes = DefaultMaxEntryBytes
	}
	if config.MaxImagePixels <= 0 {
		config.MaxImagePixels = DefaultMaxImagePixels
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		detector:   detector,
		classifier: classifier,
		annotator:  annotate.New(annotate.Options{}),
		novelty:    detection.NoveltyFilter{Threshold: config.NoveltyThreshold},
		repo:       repo,
		storage:    store,
		openVideo:  config.OpenVideo,
		maxEntry:   config.MaxEntryBytes,
		maxPixels:  config.MaxImagePixels,
		logger:     logger,
	}
}

// Prediction is the result for one image.
type Prediction struct {
	AnalysisID      string              `json:"analysis_id,omitempty"`
	Cracked         bool                `json:"cracked"`
	Orientation     string              `json:"orientation"`
	Confidence      float64             `json:"confidence"`
	AnnotatedImage  string              `json:"annotated_image"`
	IndividualBoxes []string            `json:"individual_bboxes"`
	Regions         detection.RegionSet `json:"regions"`
}

// decodeImage reads the header first so oversized images are refused before
// any pixel buffer is allocated.
func (s *Service) decodeImage(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > s.maxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: image is %dx%d, limit is %d pixels", ErrTooLarge, cfg.Width, cfg.Height, s.maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// inspect runs the detector and, when it finds anything, the classifier and
// annotator.
func (s *Service) inspect(ctx context.Context, img image.Image) (*Prediction, error) {
	dets, err := s.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detecting cracks: %w", err)
	}
	regions := detection.Regions(dets)
	if len(regions) == 0 {
		return &Prediction{IndividualBoxes: []string{}}, nil
	}

	cls, err := s.classifier.Classify(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("classifying orientation: %w", err)
	}
	ann, err := s.annotator.Annotate(img, regions)
	if err != nil {
		return nil, fmt.Errorf("annotating image: %w", err)
	}
	return &Prediction{
		Cracked:         true,
		Orientation:     cls.Label,
		Confidence:      cls.Confidence,
		AnnotatedImage:  ann.Composite.DataURI,
		IndividualBoxes: ann.DataURIs(),
		Regions:         regions,
	}, nil
}

// PredictImage analyses one encoded image.
func (s *Service) PredictImage(ctx context.Context, data []byte, name string) (*Prediction, error) {
	img, err := s.decodeImage(data)
	if err != nil {
		return nil, err
	}
	pred, err := s.inspect(ctx, img)
	if err != nil {
		return nil, err
	}

	a := models.NewAnalysis(models.KindImage, name)
	a.FramesProcessed = 1
	var records []models.TimelineRecord
	if pred.Cracked {
		records = append(records, pred.record(a.ID, 1))
	}
	if err := s.save(ctx, a, records); err != nil {
		return nil, err
	}
	pred.AnalysisID = a.ID

	s.logger.Infow("image analysed", "analysis_id", a.ID, "source", name, "cracked", pred.Cracked, "regions", len(pred.Regions))
	return pred, nil
}

func (p *Prediction) record(analysisID string, frame int) models.TimelineRecord {
	return models.TimelineRecord{
		AnalysisID: analysisID,
		Frame:      frame,
		Label:      p.Orientation,
		Confidence: p.Confidence,
		Regions:    p.Regions,
		Composite:  p.AnnotatedImage,
		PerRegion:  p.IndividualBoxes,
	}
}

func (s *Service) save(ctx context.Context, a *models.Analysis, records []models.TimelineRecord) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Create(ctx, a, records); err != nil {
		return fmt.Errorf("saving analysis: %w", err)
	}
	return nil
}

// roundSeconds rounds to centiseconds for display.
func roundSeconds(t float64) float64 {
	return math.Round(t*100) / 100
}
