package analysis

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/samber/lo"

	"github.com/kdimtricp/crackscan/internal/annotate"
	"github.com/kdimtricp/crackscan/internal/models"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg"}

// ArchiveResult is the outcome for one image inside an uploaded archive.
type ArchiveResult struct {
	Filename       string   `json:"filename"`
	InputImage     string   `json:"input_image"`
	Cracked        bool     `json:"cracked"`
	Orientation    string   `json:"orientation"`
	Confidence     float64  `json:"confidence"`
	AnnotatedImage string   `json:"annotated_image"`
	SeparateBoxes  []string `json:"separate_bounding_box_images"`
}

func isImageName(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return lo.Contains(imageExtensions, ext)
}

// ProcessArchive analyses every png/jpg/jpeg entry of a zip archive in archive
// order. Entries that fail to decode are skipped.
func (s *Service) ProcessArchive(ctx context.Context, r io.ReaderAt, size int64, name string) ([]ArchiveResult, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	files := lo.Filter(zr.File, func(f *zip.File, _ int) bool {
		return !f.FileInfo().IsDir() && isImageName(f.Name)
	})

	a := models.NewAnalysis(models.KindArchive, name)
	results := make([]ArchiveResult, 0, len(files))
	var records []models.TimelineRecord

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readEntry(f, s.maxEntry)
		if err != nil {
			s.logger.Warnw("skipping unreadable archive entry", "entry", f.Name, "error", err)
			continue
		}
		img, err := s.decodeImage(data)
		if err != nil {
			s.logger.Warnw("skipping undecodable archive entry", "entry", f.Name, "error", err)
			continue
		}
		input, err := annotate.EncodePNG(img)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", f.Name, err)
		}

		pred, err := s.inspect(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("analysing %s: %w", f.Name, err)
		}

		results = append(results, ArchiveResult{
			Filename:       f.Name,
			InputImage:     input,
			Cracked:        pred.Cracked,
			Orientation:    pred.Orientation,
			Confidence:     pred.Confidence,
			AnnotatedImage: pred.AnnotatedImage,
			SeparateBoxes:  pred.IndividualBoxes,
		})
		if pred.Cracked {
			records = append(records, pred.record(a.ID, len(results)))
		}
	}

	a.FramesProcessed = len(results)
	if err := s.save(ctx, a, records); err != nil {
		return nil, err
	}
	s.logger.Infow("archive analysed", "analysis_id", a.ID, "source", name, "images", len(results), "cracked", len(records))
	return results, nil
}

// readEntry returns the contents of f, refusing anything that inflates past
// limit bytes whatever its header claims.
func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%w: entry is %d bytes, limit is %d", ErrTooLarge, f.UncompressedSize64, limit)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: entry inflates past %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
