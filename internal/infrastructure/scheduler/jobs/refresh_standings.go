// Package jobs contains implementations of scheduled jobs for CubeScore.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cubescore/cubescore-backend/internal/application/saga"
	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH STANDINGS JOB
// Периодический пересчёт для активных соревнований. Во время живого
// соревнования результаты стекаются постоянно, и дашборд должен показывать
// промежуточные ранги, не дожидаясь финализации. Пересчёт идемпотентен:
// уже начисленные результаты пропускаются, производные таблицы
// перезаписываются целиком.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshStandingsJob recomputes standings for every active competition.
type RefreshStandingsJob struct {
	competitionRepo competition.Repository
	flow            *saga.CompletionFlow
	log             *logger.Logger

	config RefreshStandingsConfig

	lastRunStats atomic.Value // *RefreshStats
}

// RefreshStandingsConfig contains configuration for the refresh job.
type RefreshStandingsConfig struct {
	// Timeout is the maximum duration for one full refresh pass.
	Timeout time.Duration

	// PerCompetitionTimeout bounds the recompute of a single competition
	// so one stuck competition cannot starve the rest of the pass.
	PerCompetitionTimeout time.Duration
}

// DefaultRefreshStandingsConfig returns sensible defaults.
func DefaultRefreshStandingsConfig() RefreshStandingsConfig {
	return RefreshStandingsConfig{
		Timeout:               5 * time.Minute,
		PerCompetitionTimeout: time.Minute,
	}
}

// RefreshStats contains statistics from a refresh pass.
type RefreshStats struct {
	StartedAt          time.Time
	CompletedAt        time.Time
	Duration           time.Duration
	CompetitionsActive int
	CompetitionsDone   int
	ResultsScored      int
	Errors             []error
}

// NewRefreshStandingsJob creates a new refresh standings job.
func NewRefreshStandingsJob(
	competitionRepo competition.Repository,
	flow *saga.CompletionFlow,
	log *logger.Logger,
	config RefreshStandingsConfig,
) *RefreshStandingsJob {
	if log == nil {
		log = logger.Default()
	}

	return &RefreshStandingsJob{
		competitionRepo: competitionRepo,
		flow:            flow,
		log:             log.With(logger.F("job", "refresh_standings")),
		config:          config,
	}
}

// Name returns the job name.
func (j *RefreshStandingsJob) Name() string {
	return "refresh_standings"
}

// Description returns a human-readable description.
func (j *RefreshStandingsJob) Description() string {
	return "Recomputes live standings for all active competitions"
}

// Run executes the refresh pass.
func (j *RefreshStandingsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RefreshStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	active, err := j.competitionRepo.GetByStatus(ctx, competition.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to list active competitions: %w", err)
	}

	stats.CompetitionsActive = len(active)
	if len(active) == 0 {
		j.finish(stats)
		return nil
	}

	for _, comp := range active {
		if err := j.refreshOne(ctx, comp, stats); err != nil {
			stats.Errors = append(stats.Errors, err)
			j.log.Error("failed to refresh standings",
				logger.F("competition_id", comp.ID),
				logger.F("competition_name", comp.Name),
				logger.Err(err),
			)
		}
	}

	j.finish(stats)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("refresh completed with %d errors", len(stats.Errors))
	}
	return nil
}

// refreshOne recomputes a single competition's standings.
func (j *RefreshStandingsJob) refreshOne(ctx context.Context, comp *competition.Competition, stats *RefreshStats) error {
	if j.config.PerCompetitionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.PerCompetitionTimeout)
		defer cancel()
	}

	result, err := j.flow.RecomputeStandings(ctx, comp.ID)
	if err != nil {
		return err
	}

	stats.CompetitionsDone++
	stats.ResultsScored += result.ResultsScored

	j.log.Debug("standings refreshed",
		logger.F("competition_id", comp.ID),
		logger.F("schools_ranked", result.SchoolsRanked),
		logger.F("students_ranked", result.StudentsRanked),
		logger.F("results_scored", result.ResultsScored),
	)

	return nil
}

// finish closes out the stats and stores them for LastRunStats.
func (j *RefreshStandingsJob) finish(stats *RefreshStats) {
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastRunStats.Store(stats)

	j.log.Info("refresh_standings pass finished",
		logger.F("duration", stats.Duration.String()),
		logger.F("competitions_active", stats.CompetitionsActive),
		logger.F("competitions_done", stats.CompetitionsDone),
		logger.F("results_scored", stats.ResultsScored),
		logger.F("errors", len(stats.Errors)),
	)
}

// LastRunStats returns statistics from the last refresh pass.
func (j *RefreshStandingsJob) LastRunStats() *RefreshStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RefreshStats)
}
