package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/fluentia/internal/config"
	"github.com/MrWong99/fluentia/internal/health"
	"github.com/MrWong99/fluentia/internal/store"
	"github.com/MrWong99/fluentia/internal/store/postgres"
	"github.com/MrWong99/fluentia/internal/store/redis"
)

// storage bundles the opened persistence backends.
type storage struct {
	Assessments     store.AssessmentStore
	AssessmentsName string

	Live     store.LiveCache
	LiveName string

	Checkers []health.Checker
	closers  []func()
}

// Close releases every backend connection.
func (s *storage) Close() {
	for _, c := range s.closers {
		c()
	}
}

// openStores selects the assessment store (postgres, file or memory) and the
// live cache (redis or memory) from cfg.
func openStores(ctx context.Context, cfg config.StorageConfig) (*storage, error) {
	s := &storage{}
	mem := store.NewMemStore(cfg.LiveTTL)

	switch {
	case cfg.PostgresDSN != "":
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.Assessments, s.AssessmentsName = pg, "postgres"
		s.Checkers = append(s.Checkers, health.Ping("postgres", pg))
		s.closers = append(s.closers, pg.Close)
	case cfg.FilePath != "":
		s.Assessments, s.AssessmentsName = store.NewFileStore(cfg.FilePath), "file"
	default:
		slog.Warn("no persistent storage configured; assessments are kept in memory only")
		s.Assessments, s.AssessmentsName = mem, "memory"
	}

	if cfg.RedisURL != "" {
		rc, err := redis.Open(cfg.RedisURL, cfg.LiveTTL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.Live, s.LiveName = rc, "redis"
		s.Checkers = append(s.Checkers, health.Ping("redis", rc))
		s.closers = append(s.closers, func() {
			if err := rc.Close(); err != nil {
				slog.Warn("redis close error", "err", err)
			}
		})
	} else {
		s.Live, s.LiveName = mem, "memory"
	}
	return s, nil
}
