package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/crackscan/internal/detection"
	"github.com/kdimtricp/crackscan/internal/scanner"
)

const (
	KindImage   = "image"
	KindArchive = "archive"
	KindVideo   = "video"
)

// Analysis is one processed upload.
type Analysis struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	SourceName      string    `json:"source_name"`
	FrameRate       float64   `json:"frame_rate,omitempty"`
	FramesProcessed int       `json:"frames_processed,omitempty"`
	EntryCount      int       `json:"entry_count"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewAnalysis(kind, sourceName string) *Analysis {
	return &Analysis{
		ID:         uuid.New().String(),
		Kind:       kind,
		SourceName: sourceName,
		CreatedAt:  time.Now().UTC(),
	}
}

// TimelineRecord is the stored form of a reported frame. Images are kept as
// data URIs.
type TimelineRecord struct {
	AnalysisID string              `json:"analysis_id"`
	Frame      int                 `json:"frame"`
	Timestamp  float64             `json:"timestamp"`
	Label      string              `json:"label"`
	Confidence float64             `json:"confidence"`
	Regions    detection.RegionSet `json:"regions"`
	Composite  string              `json:"annotated_image"`
	PerRegion  []string            `json:"individual_bboxes"`
}

func RecordsFromTimeline(analysisID string, entries []scanner.TimelineEntry) []TimelineRecord {
	out := make([]TimelineRecord, len(entries))
	for i, e := range entries {
		per := make([]string, len(e.PerRegion))
		for j, a := range e.PerRegion {
			per[j] = a.DataURI
		}
		out[i] = TimelineRecord{
			AnalysisID: analysisID,
			Frame:      e.Frame,
			Timestamp:  e.Timestamp,
			Label:      e.Label,
			Confidence: e.Confidence,
			Regions:    e.Regions,
			Composite:  e.Composite.DataURI,
			PerRegion:  per,
		}
	}
	return out
}
