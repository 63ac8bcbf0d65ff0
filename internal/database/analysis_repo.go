package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kdimtricp/crackscan/internal/models"
)

var ErrNotFound = errors.New("record not found")

type AnalysisRepo struct {
	db *DB
}

func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Create stores an analysis together with its timeline in one transaction.
func (r *AnalysisRepo) Create(ctx context.Context, a *models.Analysis, records []models.TimelineRecord) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analyses (id, kind, source_name, frame_rate, frames_processed, entry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Kind, a.SourceName, a.FrameRate, a.FramesProcessed, len(records), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	for _, rec := range records {
		regions, err := json.Marshal(rec.Regions)
		if err != nil {
			return fmt.Errorf("failed to marshal regions: %w", err)
		}
		perRegion := rec.PerRegion
		if perRegion == nil {
			perRegion = []string{}
		}
		perRegionJSON, err := json.Marshal(perRegion)
		if err != nil {
			return fmt.Errorf("failed to marshal region images: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO timeline_entries (
				analysis_id, frame, timestamp_seconds, label, confidence,
				regions, composite, per_region
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			a.ID, rec.Frame, rec.Timestamp, rec.Label, rec.Confidence,
			string(regions), rec.Composite, string(perRegionJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert timeline entry for frame %d: %w", rec.Frame, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}
	a.EntryCount = len(records)
	return nil
}

const analysisColumns = `id, kind, source_name, frame_rate, frames_processed, entry_count, created_at`

func scanAnalysis(row interface{ Scan(...any) error }) (*models.Analysis, error) {
	a := &models.Analysis{}
	err := row.Scan(&a.ID, &a.Kind, &a.SourceName, &a.FrameRate, &a.FramesProcessed, &a.EntryCount, &a.CreatedAt)
	return a, err
}

func (r *AnalysisRepo) GetByID(ctx context.Context, id string) (*models.Analysis, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// List returns the most recent analyses first.
func (r *AnalysisRepo) List(ctx context.Context, limit int) ([]models.Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AnalysisRepo) Timeline(ctx context.Context, analysisID string) ([]models.TimelineRecord, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT frame, timestamp_seconds, label, confidence, regions, composite, per_region
		FROM timeline_entries
		WHERE analysis_id = $1
		ORDER BY frame`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var out []models.TimelineRecord
	for rows.Next() {
		rec := models.TimelineRecord{AnalysisID: analysisID}
		var regions, perRegion string
		if err := rows.Scan(&rec.Frame, &rec.Timestamp, &rec.Label, &rec.Confidence, &regions, &rec.Composite, &perRegion); err != nil {
			return nil, fmt.Errorf("failed to scan timeline entry: %w", err)
		}
		if err := json.Unmarshal([]byte(regions), &rec.Regions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal regions: %w", err)
		}
		if err := json.Unmarshal([]byte(perRegion), &rec.PerRegion); err != nil {
			return nil, fmt.Errorf("failed to unmarshal region images: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Counts returns the number of stored analyses and timeline entries.
func (r *AnalysisRepo) Counts(ctx context.Context) (analyses, entries int, err error) {
	if err = r.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&analyses); err != nil {
		return 0, 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	if err = r.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM timeline_entries`).Scan(&entries); err != nil {
		return 0, 0, fmt.Errorf("failed to count timeline entries: %w", err)
	}
	return analyses, entries, nil
}
