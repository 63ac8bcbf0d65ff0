package inference

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kdimtricp/crackscan/internal/detection"
)

func newModelServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if _, err := png.Decode(file); err != nil {
			http.Error(w, "not a png", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"detections": []map[string]any{
				{"x1": 10, "y1": 20, "x2": 50, "y2": 30, "confidence": 0.91, "class": "crack"},
				{"x1": 5, "y1": 5, "x2": 15, "y2": 45, "confidence": 0.42, "class": "crack"},
			},
		})
	})
	mux.HandleFunc("/classify", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		img, err := png.Decode(file)
		if err != nil || img.Bounds().Dx() != ClassifierInputSize || img.Bounds().Dy() != ClassifierInputSize {
			http.Error(w, "bad classifier input", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"probabilities": []float64{0.1, 0.85, 0.05}})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteClient(t *testing.T) {
	srv := newModelServer(t)
	client := NewRemoteClient(srv.URL, 5*time.Second)
	ctx := context.Background()
	frame := image.NewRGBA(image.Rect(0, 0, 64, 48))

	t.Run("Detect", func(t *testing.T) {
		dets, err := client.Detect(ctx, frame)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		want := []detection.Detection{
			{Region: detection.Region{X: 10, Y: 20, Width: 40, Height: 10}, Confidence: 0.91, Class: "crack"},
			{Region: detection.Region{X: 5, Y: 5, Width: 10, Height: 40}, Confidence: 0.42, Class: "crack"},
		}
		if diff := cmp.Diff(want, dets); diff != "" {
			t.Errorf("detections mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Classify", func(t *testing.T) {
		got, err := client.Classify(ctx, frame)
		if err != nil {
			t.Fatalf("Classify failed: %v", err)
		}
		if got.Label != LabelVertical || got.Confidence != 0.85 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("CheckHealth", func(t *testing.T) {
		if err := client.CheckHealth(ctx); err != nil {
			t.Errorf("CheckHealth failed: %v", err)
		}
	})
}

func TestRemoteClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL, time.Second)
	_, err := client.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if !errors.Is(err, ErrInferenceStatus) {
		t.Errorf("expected ErrInferenceStatus, got %v", err)
	}
	if err := client.CheckHealth(context.Background()); !errors.Is(err, ErrInferenceStatus) {
		t.Errorf("expected ErrInferenceStatus from health, got %v", err)
	}
}
