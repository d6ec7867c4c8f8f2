package service

// scheduler.go re-runs configured sources on an interval and trims run
// history. It runs once on start, then every Interval, and stops when its
// context ends. A failed job is logged and never stops the loop.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/extract"
)

// ScheduledSource is one entity=path pair.
type ScheduledSource struct {
	Entity string
	Path   string
}

// ParseSchedule parses entity=path pairs as given in SCHEDULE_SOURCES.
func ParseSchedule(pairs []string) ([]ScheduledSource, error) {
	out := make([]ScheduledSource, 0, len(pairs))
	for _, pair := range pairs {
		entity, path, ok := strings.Cut(pair, "=")
		entity = strings.TrimSpace(entity)
		path = strings.TrimSpace(path)
		if !ok || entity == "" || path == "" {
			return nil, fmt.Errorf("invalid schedule entry %q, want entity=path", pair)
		}
		out = append(out, ScheduledSource{Entity: entity, Path: path})
	}
	return out, nil
}

// ScheduleConfig drives StartScheduler.
type ScheduleConfig struct {
	Sources   []ScheduledSource
	Interval  time.Duration // default: 1h
	Retention time.Duration // zero keeps history forever
	MaxBytes  int64         // CSV size limit per source
}

// StartScheduler blocks until ctx ends.
func (s *Service) StartScheduler(ctx context.Context, cfg ScheduleConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	s.logger.Info("scheduler started",
		"sources", len(cfg.Sources),
		"interval", cfg.Interval,
		"retention", cfg.Retention,
	)

	s.runScheduledJobs(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runScheduledJobs(ctx, cfg)
		}
	}
}

// runScheduledJobs performs one pass: every source in order, then a purge.
func (s *Service) runScheduledJobs(ctx context.Context, cfg ScheduleConfig) {
	start := time.Now()

	for _, src := range cfg.Sources {
		if ctx.Err() != nil {
			return
		}
		s.runScheduledSource(ctx, src, cfg.MaxBytes)
	}

	if cfg.Retention > 0 {
		purged, err := s.Purge(ctx, cfg.Retention)
		if err != nil {
			s.logger.Error("purge run history failed", "error", err)
		} else if purged > 0 {
			s.logger.Info("purged run history", "runs_purged", purged)
		}
	}

	s.logger.Debug("scheduled jobs completed", "duration_ms", time.Since(start).Milliseconds())
}

func (s *Service) runScheduledSource(ctx context.Context, src ScheduledSource, maxBytes int64) {
	log := s.logger.With("entity", src.Entity, "path", src.Path)

	ex, err := extract.FromFile(src.Path, extract.FileOptions{MaxBytes: maxBytes})
	if err != nil {
		log.Error("scheduled run skipped", "error", err)
		return
	}

	res, err := s.Run(ctx, RunRequest{Entity: src.Entity, Source: ex})
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("scheduled run interrupted", "run_id", res.Report.RunID)
	case core.IsFatal(err):
		log.Error("scheduled run aborted before loading", "error", err)
	case err != nil:
		log.Error("scheduled run failed", "error", err, "run_id", res.Report.RunID)
	default:
		log.Info("scheduled run finished",
			"run_id", res.Report.RunID,
			"loaded", res.Report.RecordsLoaded,
			"skipped", res.Report.RecordsSkipped,
			"rejected", res.Report.RecordsRejected,
		)
	}
}
