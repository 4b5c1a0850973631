package main

// Runs the periodic sweeps: archival of closed-case documents and recovery
// of documents stranded in processing. One instance per deployment.

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casedocs-backend/internal/bootstrap"
	"casedocs-backend/internal/shared/config"
	"casedocs-backend/internal/shared/telemetry"
)

const (
	defaultArchiveInterval = 24 * time.Hour
	defaultStuckInterval   = 10 * time.Minute
)

func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archiveInterval := envDuration("CD_ARCHIVE_SWEEP_INTERVAL", defaultArchiveInterval)
	stuckInterval := envDuration("CD_STUCK_SWEEP_INTERVAL", defaultStuckInterval)

	log.Printf("scheduler started archive_interval=%s stuck_interval=%s", archiveInterval, stuckInterval)

	archiveTicker := time.NewTicker(archiveInterval)
	defer archiveTicker.Stop()
	stuckTicker := time.NewTicker(stuckInterval)
	defer stuckTicker.Stop()

	// Run the stuck sweep once at startup so a scheduler restart does not
	// extend the stall window.
	runStuckSweep(ctx, app)

	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler shutting down")
			return
		case <-archiveTicker.C:
			runArchiveSweep(ctx, app)
		case <-stuckTicker.C:
			runStuckSweep(ctx, app)
		}
	}
}

func runArchiveSweep(ctx context.Context, app *bootstrap.App) {
	report, err := app.Reconciler.ArchiveOldDocuments(ctx, time.Now().UTC())
	if err != nil {
		telemetry.Error("scheduler.archive.failed", map[string]any{"error": err.Error()})
		return
	}
	log.Printf("archive sweep: cases=%d copied=%d skipped=%d", report.CasesScanned, report.Copied, report.Skipped)
}

func runStuckSweep(ctx context.Context, app *bootstrap.App) {
	reset, err := app.Reconciler.ResetStuckDocuments(ctx, time.Now().UTC())
	if err != nil {
		telemetry.Error("scheduler.stuck.failed", map[string]any{"error": err.Error()})
		return
	}
	if reset > 0 {
		log.Printf("stuck sweep: reset=%d", reset)
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("%s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}
