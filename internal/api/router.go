package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func NewRouter(app *App, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(app.logger()))
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(corsOrigins).Handler)

	r.Get("/health", app.HealthHandler)

	r.Post("/predict", app.PredictHandler)
	r.Post("/zip_upload", app.ZipUploadHandler)
	r.Post("/video", app.VideoHandler)

	r.Post("/report-preview", app.ReportPreviewHandler)
	r.Post("/generate-report", app.GenerateReportHandler)
	r.Post("/generate-batch-report", app.BatchReportHandler)
	r.Post("/generate-video-report", app.VideoReportHandler)

	r.Route("/analyses", func(r chi.Router) {
		r.Get("/", app.ListAnalysesHandler)
		r.Get("/{id}", app.GetAnalysisHandler)
		r.Get("/{id}/report", app.AnalysisReportHandler)
	})

	return r
}

// corsHandler allows any origin unless a list is configured.
func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		return cors.AllowAll()
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	})
}

func requestLogger(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Infow("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
