package api

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kdimtricp/crackscan/internal/analysis"
	"github.com/kdimtricp/crackscan/internal/database"
	"github.com/kdimtricp/crackscan/internal/detection"
	"github.com/kdimtricp/crackscan/internal/inference"
	"github.com/kdimtricp/crackscan/internal/report"
	"github.com/kdimtricp/crackscan/internal/scanner"
	"github.com/kdimtricp/crackscan/internal/storage"
)

var fixedNow = time.Date(2024, 3, 1, 8, 5, 9, 0, time.UTC)

// redCornerDetector finds one region when pixel (0,0) is red.
type redCornerDetector struct{}

func (redCornerDetector) Detect(ctx context.Context, img image.Image) ([]detection.Detection, error) {
	r, g, _, _ := img.At(0, 0).RGBA()
	if r>>8 < 200 {
		return nil, nil
	}
	return []detection.Detection{{
		Region:     detection.Region{X: 4 + float64(g>>8), Y: 4, Width: 16, Height: 16},
		Confidence: 0.88,
	}}, nil
}

type horizontalClassifier struct{}

func (horizontalClassifier) Classify(ctx context.Context, img image.Image) (inference.Classification, error) {
	return inference.Classification{Label: inference.LabelHorizontal, Confidence: 0.91}, nil
}

type nopCloser struct{ *scanner.SliceSource }

func (nopCloser) Close() error { return nil }

type TestServer struct {
	Server  *httptest.Server
	App     *App
	DB      *database.DB
	Storage storage.Storage
	TempDir string
}

func setupTestServer(t *testing.T) *TestServer {
	t.Helper()
	tempDir := t.TempDir()

	localStorage, err := storage.NewLocalStorage(filepath.Join(tempDir, "uploads"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	db, err := database.NewDB(database.Config{
		Type:       database.TypeSQLite,
		SQLitePath: filepath.Join(tempDir, "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if err := db.RunMigrations(database.MigrationSource(""), nil); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	// Every uploaded video decodes to: clean, cracked, cracked (same place),
	// cracked (moved) at 4 fps.
	opener := func(string, *zap.SugaredLogger) (analysis.VideoSource, error) {
		return nopCloser{scanner.NewSliceSource([]image.Image{
			testImage(false, 0),
			testImage(true, 0),
			testImage(true, 0),
			testImage(true, 30),
		}, 4)}, nil
	}

	svc := analysis.NewService(
		redCornerDetector{},
		horizontalClassifier{},
		database.NewAnalysisRepo(db),
		localStorage,
		analysis.Config{OpenVideo: opener},
		nil,
	)

	app := &App{
		Analysis:      svc,
		Reports:       report.NewGenerator(nil),
		DB:            db,
		MaxUploadSize: 10 * 1024 * 1024,
		now:           func() time.Time { return fixedNow },
	}
	server := httptest.NewServer(NewRouter(app, nil))

	ts := &TestServer{
		Server:  server,
		App:     app,
		DB:      db,
		Storage: localStorage,
		TempDir: tempDir,
	}
	t.Cleanup(ts.Cleanup)
	return ts
}

func (ts *TestServer) Cleanup() {
	ts.Server.Close()
	ts.DB.Close()
}

func testImage(cracked bool, shift uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	if cracked {
		img.Set(0, 0, color.RGBA{R: 255, G: shift, A: 255})
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func zipBytes(t *testing.T, files map[string][]byte, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to add %s: %v", name, err)
		}
		w.Write(files[name])
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func createMultipartUpload(filename string, content []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func upload(t *testing.T, ts *TestServer, path, filename string, content []byte) *http.Response {
	t.Helper()
	body, contentType, err := createMultipartUpload(filename, content)
	if err != nil {
		t.Fatalf("Failed to create multipart upload: %v", err)
	}
	resp, err := http.Post(ts.Server.URL+path, contentType, body)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func postJSON(t *testing.T, ts *TestServer, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.Server.URL+path, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *TestServer, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.Server.URL + path)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
