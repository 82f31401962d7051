// Package purge removes sessions that were abandoned before finishing
package purge

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/noughts/internal/dependencies/clock"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage"
)

// Config holds janitor timing
type Config struct {
	// Interval between sweeps
	Interval time.Duration
	// After is how long an unfinished session may go without an update
	After time.Duration
}

// DefaultConfig returns the default sweep timing
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		After:    5 * time.Minute,
	}
}

// staleStatuses are swept; completed sessions are history and kept
var staleStatuses = []model.SessionStatus{model.SessionInProgress, model.SessionWaiting}

// Janitor periodically deletes unfinished sessions that have gone idle
type Janitor struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	config  Config
}

// New creates a new Janitor
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger, config Config) *Janitor {
	return &Janitor{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "purge")),
		config:  config,
	}
}

// Run sweeps every Interval until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info("janitor started",
		slog.Duration("interval", j.config.Interval),
		slog.Duration("after", j.config.After))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			// Failures are logged; the next tick tries again
			_, _ = j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns how many sessions it removed
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	cutoff := j.clock.Now().Add(-j.config.After)

	total := 0
	for _, status := range staleStatuses {
		n, err := j.storage.PurgeSessions(ctx, status, cutoff)
		total += n
		if err != nil {
			j.logger.Error("purge failed",
				slog.String("status", string(status)),
				slog.String("error", err.Error()))
			return total, err
		}
	}

	if total > 0 {
		j.logger.Info("stale sessions purged",
			slog.Int("count", total),
			slog.Time("cutoff", cutoff))
	}
	return total, nil
}
