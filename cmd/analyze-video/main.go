package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kdimtricp/crackscan/internal/analysis"
	"github.com/kdimtricp/crackscan/internal/config"
	"github.com/kdimtricp/crackscan/internal/database"
	"github.com/kdimtricp/crackscan/internal/detection"
	"github.com/kdimtricp/crackscan/internal/inference"
	"github.com/kdimtricp/crackscan/internal/logging"
	"github.com/kdimtricp/crackscan/internal/report"
)

func main() {
	app := &cli.App{
		Name:      "analyze-video",
		Usage:     "scan a local video for new cracks",
		ArgsUsage: "VIDEO",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "-",
				Usage:   "write the timeline as JSON to `FILE` (- for stdout)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "also write a PDF report to `FILE`",
			},
			&cli.Float64Flag{
				Name:    "threshold",
				Value:   detection.DefaultNoveltyThreshold,
				Usage:   "IoU below which a region counts as new",
				EnvVars: []string{"NOVELTY_IOU_THRESHOLD"},
			},
			&cli.StringFlag{
				Name:    "mode",
				Value:   inference.ModeLocal,
				Usage:   "inference mode (local or remote)",
				EnvVars: []string{"INFERENCE_MODE"},
			},
			&cli.StringFlag{
				Name:    "url",
				Usage:   "model server base URL for remote mode",
				EnvVars: []string{"INFERENCE_URL"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "per-request timeout for remote inference",
			},
			&cli.BoolFlag{
				Name:  "persist",
				Usage: "store the analysis in the database configured by the environment",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: analyze,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func analyze(c *cli.Context) (err error) {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("please provide a video file", 2)
	}

	level := "info"
	if c.Bool("debug") {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Format: logging.FormatConsole})
	if err != nil {
		return err
	}
	defer logger.Sync()

	detector, classifier, err := inference.Open(inference.Config{
		Mode:    c.String("mode"),
		URL:     c.String("url"),
		Timeout: c.Duration("timeout"),
	})
	if err != nil {
		return err
	}

	var repo analysis.Repository
	if c.Bool("persist") {
		db, dbErr := openDatabase(logger)
		if dbErr != nil {
			return dbErr
		}
		defer func() { err = multierr.Append(err, db.Close()) }()
		repo = database.NewAnalysisRepo(db)
	}

	svc := analysis.NewService(detector, classifier, repo, nil,
		analysis.Config{NoveltyThreshold: c.Float64("threshold")}, logger)

	res, err := svc.ScanFile(c.Context, path, path)
	if err != nil {
		return err
	}

	if err := writeJSON(c.String("output"), res); err != nil {
		return err
	}
	if out := c.String("report"); out != "" {
		if err := writeReport(out, res, logger); err != nil {
			return err
		}
		logger.Infow("report written", "path", out)
	}
	return nil
}

func openDatabase(logger *zap.SugaredLogger) (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := database.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(database.MigrationSource(cfg.MigrationsPath), logger); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return db, nil
}

func writeJSON(path string, v any) (err error) {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, createErr := os.Create(path)
		if createErr != nil {
			return createErr
		}
		defer func() { err = multierr.Append(err, f.Close()) }()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(path string, res *analysis.VideoResult, logger *zap.SugaredLogger) (err error) {
	items := make([]report.VideoItem, len(res.Entries))
	for i, e := range res.Entries {
		items[i] = report.VideoItem{
			Frame:          e.Frame,
			Timestamp:      e.Timestamp,
			Classification: e.Classification,
			AnnotatedImage: e.AnnotatedImage,
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return report.NewGenerator(logger).Video(f, items)
}
