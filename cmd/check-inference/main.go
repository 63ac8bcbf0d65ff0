package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kdimtricp/crackscan/internal/config"
	"github.com/kdimtricp/crackscan/internal/database"
	"github.com/kdimtricp/crackscan/internal/inference"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("Checking crack analysis setup")
	fmt.Println("=============================")

	switch cfg.Inference.Mode {
	case inference.ModeRemote:
		client := inference.NewRemoteClient(cfg.Inference.URL, cfg.Inference.Timeout)
		if err := client.CheckHealth(ctx); err != nil {
			fmt.Printf("Inference server %s: UNREACHABLE (%v)\n", cfg.Inference.URL, err)
		} else {
			fmt.Printf("Inference server %s: healthy\n", cfg.Inference.URL)
		}
	default:
		fmt.Printf("Inference: local (dark threshold %d, min area %d px)\n",
			cfg.Inference.DarkThreshold, cfg.Inference.MinArea)
	}
	fmt.Printf("Novelty IoU threshold: %.2f\n\n", cfg.NoveltyThreshold)

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	repo := database.NewAnalysisRepo(db)
	analyses, entries, err := repo.Counts(ctx)
	if err != nil {
		fmt.Println("No analyses table found (run migrations first)")
		return
	}
	fmt.Printf("Stored analyses: %d\n", analyses)
	fmt.Printf("Reported frames: %d\n\n", entries)

	recent, err := repo.List(ctx, 5)
	if err != nil {
		log.Fatal("Failed to list analyses:", err)
	}
	if len(recent) == 0 {
		return
	}
	fmt.Println("Recent analyses:")
	for _, a := range recent {
		fmt.Printf("  %s  %-7s %-30.30s entries=%d frames=%d\n",
			a.CreatedAt.Format("2006-01-02 15:04"), a.Kind, a.SourceName, a.EntryCount, a.FramesProcessed)
	}
}
