package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kdimtricp/crackscan/internal/detection"
	"github.com/kdimtricp/crackscan/internal/models"
)

func TestAnalysisRepo(t *testing.T) {
	backends := map[string]func(*testing.T) *DB{
		"sqlite":   setupSQLiteDB,
		"postgres": setupPostgresDB,
	}
	for name, setup := range backends {
		t.Run(name, func(t *testing.T) {
			runAnalysisRepoSuite(t, setup(t))
		})
	}
}

func runAnalysisRepoSuite(t *testing.T, db *DB) {
	ctx := context.Background()
	repo := NewAnalysisRepo(db)

	older := models.NewAnalysis(models.KindImage, "wall.png")
	older.CreatedAt = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	video := models.NewAnalysis(models.KindVideo, "bridge.mp4")
	video.CreatedAt = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	video.FrameRate = 25
	video.FramesProcessed = 250

	records := []models.TimelineRecord{
		{
			Frame:      3,
			Timestamp:  0.12,
			Label:      "Horizontal Crack",
			Confidence: 0.9,
			Regions:    detection.RegionSet{{X: 1, Y: 2, Width: 30, Height: 4}},
			Composite:  "data:image/png;base64,AAAA",
			PerRegion:  []string{"data:image/png;base64,BBBB"},
		},
		{
			Frame:     90,
			Timestamp: 3.6,
			Label:     "Vertical Crack",
			Regions:   detection.RegionSet{{X: 50, Y: 2, Width: 3, Height: 40}},
			Composite: "data:image/png;base64,CCCC",
		},
	}

	t.Run("Create", func(t *testing.T) {
		if err := repo.Create(ctx, older, nil); err != nil {
			t.Fatalf("Failed to create analysis: %v", err)
		}
		if err := repo.Create(ctx, video, records); err != nil {
			t.Fatalf("Failed to create analysis: %v", err)
		}
		if video.EntryCount != 2 {
			t.Errorf("EntryCount = %d, want 2", video.EntryCount)
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, video.ID)
		if err != nil {
			t.Fatalf("Failed to get analysis: %v", err)
		}
		if got.Kind != models.KindVideo || got.SourceName != "bridge.mp4" || got.FrameRate != 25 ||
			got.FramesProcessed != 250 || got.EntryCount != 2 {
			t.Errorf("unexpected analysis: %+v", got)
		}
		if !got.CreatedAt.Equal(video.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, video.CreatedAt)
		}

		if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		list, err := repo.List(ctx, 10)
		if err != nil {
			t.Fatalf("Failed to list analyses: %v", err)
		}
		if len(list) != 2 || list[0].ID != video.ID || list[1].ID != older.ID {
			t.Errorf("unexpected order: %+v", list)
		}
	})

	t.Run("Timeline", func(t *testing.T) {
		got, err := repo.Timeline(ctx, video.ID)
		if err != nil {
			t.Fatalf("Failed to load timeline: %v", err)
		}
		want := make([]models.TimelineRecord, len(records))
		copy(want, records)
		for i := range want {
			want[i].AnalysisID = video.ID
		}
		want[1].PerRegion = []string{}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("timeline mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Counts", func(t *testing.T) {
		analyses, entries, err := repo.Counts(ctx)
		if err != nil {
			t.Fatalf("Counts failed: %v", err)
		}
		if analyses != 2 || entries != 2 {
			t.Errorf("Counts = %d, %d", analyses, entries)
		}
	})
}
