package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/kdimtricp/crackscan/internal/models"
)

var ErrNoRepository = errors.New("analysis history is not configured")

// Detail is a stored analysis with its timeline.
type Detail struct {
	models.Analysis
	Entries []VideoEntry `json:"entries"`
}

func (s *Service) Recent(ctx context.Context, limit int) ([]models.Analysis, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	return s.repo.List(ctx, limit)
}

// Get loads an analysis and its stored timeline.
func (s *Service) Get(ctx context.Context, id string) (*Detail, []models.TimelineRecord, error) {
	if s.repo == nil {
		return nil, nil, ErrNoRepository
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.repo.Timeline(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading timeline: %w", err)
	}
	return &Detail{Analysis: *a, Entries: VideoEntries(records)}, records, nil
}
