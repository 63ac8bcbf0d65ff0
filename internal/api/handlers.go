package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kdimtricp/crackscan/internal/analysis"
	"github.com/kdimtricp/crackscan/internal/database"
	"github.com/kdimtricp/crackscan/internal/models"
	"github.com/kdimtricp/crackscan/internal/report"
)

type App struct {
	Analysis      *analysis.Service
	Reports       *report.Generator
	DB            *database.DB
	MaxUploadSize int64
	Logger        *zap.SugaredLogger

	now func() time.Time
}

func (app *App) logger() *zap.SugaredLogger {
	if app.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return app.Logger
}

func (app *App) clock() time.Time {
	if app.now != nil {
		return app.now()
	}
	return time.Now()
}

func (app *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"status":    "healthy",
		"timestamp": app.clock().Format(time.RFC3339),
	}
	status := http.StatusOK
	if app.DB != nil {
		if err := app.DB.Ping(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp["database"] = app.DB.Type()
		}
	}
	renderJSON(w, status, resp)
}

// readUpload returns the "file" part of a multipart request.
func (app *App) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, "", fmt.Errorf("file too large or malformed upload: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	return data, header.Filename, nil
}

// decodeJSON reads a JSON request body of at most MaxUploadSize bytes into v.
// It renders the error response itself and reports whether to continue.
func (app *App) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	err := json.NewDecoder(r.Body).Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		renderError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	case err != nil:
		renderError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (app *App) PredictHandler(w http.ResponseWriter, r *http.Request) {
	data, name, err := app.readUpload(w, r)
	if err != nil {
		renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	pred, err := app.Analysis.PredictImage(r.Context(), data, name)
	if err != nil {
		app.renderFailure(w, "prediction failed", err)
		return
	}
	renderJSON(w, http.StatusOK, pred)
}

func (app *App) ZipUploadHandler(w http.ResponseWriter, r *http.Request) {
	data, name, err := app.readUpload(w, r)
	if err != nil {
		renderError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		renderError(w, http.StatusBadRequest, "File must be a zip archive")
		return
	}

	results, err := app.Analysis.ProcessArchive(r.Context(), bytes.NewReader(data), int64(len(data)), name)
	if err != nil {
		app.renderFailure(w, "archive processing failed", err)
		return
	}
	renderJSON(w, http.StatusOK, results)
}

func (app *App) VideoHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		renderError(w, http.StatusBadRequest, "file too large or malformed upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		renderError(w, http.StatusBadRequest, "failed to get file")
		return
	}
	defer file.Close()

	if !analysis.IsVideoName(header.Filename) {
		renderError(w, http.StatusBadRequest, "File must be a video format (.mp4, .avi, .mov)")
		return
	}

	res, err := app.Analysis.ProcessVideo(r.Context(), file, header.Filename)
	if err != nil {
		app.renderFailure(w, "video processing failed", err)
		return
	}
	renderJSON(w, http.StatusOK, res)
}

func (app *App) ReportPreviewHandler(w http.ResponseWriter, r *http.Request) {
	crackType := r.URL.Query().Get("crack_type")
	if crackType == "" {
		renderError(w, http.StatusBadRequest, "crack_type is required")
		return
	}
	renderJSON(w, http.StatusOK, report.NewPreview(crackType))
}

func (app *App) GenerateReportHandler(w http.ResponseWriter, r *http.Request) {
	var in report.SingleInput
	if !app.decodeJSON(w, r, &in) {
		return
	}
	if in.CrackType == "" {
		renderError(w, http.StatusBadRequest, "crack_type is required")
		return
	}

	var buf bytes.Buffer
	if err := app.Reports.Single(&buf, in); err != nil {
		app.renderFailure(w, "Error generating report", err)
		return
	}
	app.renderPDF(w, report.SingleFilename(in.CrackType, app.clock()), buf.Bytes())
}

type batchReportRequest struct {
	Results []report.BatchItem `json:"results"`
}

func (app *App) BatchReportHandler(w http.ResponseWriter, r *http.Request) {
	var req batchReportRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}

	var buf bytes.Buffer
	if err := app.Reports.Batch(&buf, req.Results); err != nil {
		app.renderFailure(w, "Error generating batch report", err)
		return
	}
	app.renderPDF(w, report.BatchFilename(app.clock()), buf.Bytes())
}

type videoReportRequest struct {
	Results []report.VideoItem `json:"results"`
}

func (app *App) VideoReportHandler(w http.ResponseWriter, r *http.Request) {
	var req videoReportRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	app.writeVideoReport(w, req.Results)
}

func (app *App) writeVideoReport(w http.ResponseWriter, items []report.VideoItem) {
	var buf bytes.Buffer
	if err := app.Reports.Video(&buf, items); err != nil {
		app.renderFailure(w, "Error generating video report", err)
		return
	}
	app.renderPDF(w, report.VideoFilename(app.clock()), buf.Bytes())
}

func (app *App) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			renderError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	analyses, err := app.Analysis.Recent(r.Context(), limit)
	if err != nil {
		app.renderFailure(w, "Error loading analyses", err)
		return
	}
	if analyses == nil {
		analyses = []models.Analysis{}
	}
	renderJSON(w, http.StatusOK, analyses)
}

func (app *App) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	detail, _, err := app.Analysis.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.renderFailure(w, "Error loading analysis", err)
		return
	}
	renderJSON(w, http.StatusOK, detail)
}

func (app *App) AnalysisReportHandler(w http.ResponseWriter, r *http.Request) {
	_, records, err := app.Analysis.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.renderFailure(w, "Error loading analysis", err)
		return
	}
	app.writeVideoReport(w, analysis.ReportItems(records))
}

func (app *App) renderPDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// renderFailure maps service errors onto status codes.
func (app *App) renderFailure(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, analysis.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, analysis.ErrInvalidImage),
		errors.Is(err, analysis.ErrInvalidArchive),
		errors.Is(err, analysis.ErrUnsupportedVideo):
		status = http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, analysis.ErrNoRepository):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		app.logger().Errorw(msg, "error", err)
	}
	renderError(w, status, fmt.Sprintf("%s: %v", msg, err))
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func renderError(w http.ResponseWriter, status int, detail string) {
	renderJSON(w, status, map[string]string{"detail": detail})
}
