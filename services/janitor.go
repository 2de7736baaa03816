package services

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"

	"docqa-backend/internal/config"
	"docqa-backend/internal/logger"
	"docqa-backend/utils"
)

// Janitor periodically cleans up leftovers from interrupted ingestion runs:
// staged upload files nobody will process again, and document records stuck
// in the queued state.
type Janitor struct {
	scheduler  *gocron.Scheduler
	documents  *DocumentRepo
	storageDir string
	fileMaxAge time.Duration
	docMaxAge  time.Duration
	interval   time.Duration
}

func NewJanitor(cfg *config.Config, documents *DocumentRepo) *Janitor {
	return &Janitor{
		scheduler:  gocron.NewScheduler(time.UTC),
		documents:  documents,
		storageDir: cfg.FileStorageDir,
		fileMaxAge: time.Duration(cfg.TempFileMaxAge) * time.Hour,
		docMaxAge:  time.Duration(cfg.StuckDocMaxAge) * time.Hour,
		interval:   time.Duration(cfg.JanitorInterval) * time.Minute,
	}
}

func (j *Janitor) Start() error {
	if _, err := j.scheduler.Every(j.interval).Tag("janitor-sweep").Do(j.sweep); err != nil {
		return err
	}
	j.scheduler.StartAsync()
	logger.Info("Janitor started", "interval", j.interval.String())
	return nil
}

func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

func (j *Janitor) sweep() {
	ctx, cancel := utils.WithLongTimeout(context.Background())
	defer cancel()

	j.removeStaleFiles()

	failed, err := j.documents.FailStaleQueued(ctx, time.Now().UTC().Add(-j.docMaxAge))
	if err != nil {
		logger.Warn("Janitor failed to sweep stuck documents", "error", err)
	} else if failed > 0 {
		logger.Info("Janitor marked stuck documents failed", "count", failed)
	}
}

// removeStaleFiles deletes staged uploads past the age limit. The pipeline
// removes its own file on every completed run, so anything old here was
// orphaned by a crash.
func (j *Janitor) removeStaleFiles() {
	cutoff := time.Now().Add(-j.fileMaxAge)

	entries, err := os.ReadDir(j.storageDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Janitor could not read storage dir", "dir", j.storageDir, "error", err)
		}
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.storageDir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("Janitor could not remove stale file", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("Janitor removed stale upload files", "count", removed)
	}
}
