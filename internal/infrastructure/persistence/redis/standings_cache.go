// Package redis implements Redis caching and pub/sub functionality.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/cubescore/cubescore-backend/internal/domain/standings"
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS CACHE ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrStandingsNotCached is returned when a competition's standings are not in cache.
	ErrStandingsNotCached = errors.New("standings_cache: standings not cached")
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StandingsCache keeps computed standings as JSON snapshots keyed by
// competition. Standings change only when the completion pipeline
// recomputes them, so the snapshots are written once per recomputation
// and explicitly invalidated; the TTL covers missed invalidations.
type StandingsCache struct {
	cache *Cache
}

// NewStandingsCache creates a new StandingsCache instance.
func NewStandingsCache(cache *Cache) *StandingsCache {
	return &StandingsCache{cache: cache}
}

// GetSchoolStandings returns the cached school standings of a competition.
// Returns ErrStandingsNotCached on a miss.
func (s *StandingsCache) GetSchoolStandings(ctx context.Context, competitionID string) ([]*standings.SchoolStanding, error) {
	var rows []*standings.SchoolStanding
	if err := s.cache.Get(ctx, SchoolStandingsKey(competitionID), &rows); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrStandingsNotCached
		}
		return nil, fmt.Errorf("failed to read school standings cache: %w", err)
	}
	return rows, nil
}

// SetSchoolStandings stores a competition's school standings snapshot.
func (s *StandingsCache) SetSchoolStandings(ctx context.Context, competitionID string, rows []*standings.SchoolStanding) error {
	return s.cache.Set(ctx, SchoolStandingsKey(competitionID), rows, TTLStandingsCache)
}

// GetStudentStandings returns the cached student standings of a competition.
// Returns ErrStandingsNotCached on a miss.
func (s *StandingsCache) GetStudentStandings(ctx context.Context, competitionID string) ([]*standings.StudentStanding, error) {
	var rows []*standings.StudentStanding
	if err := s.cache.Get(ctx, StudentStandingsKey(competitionID), &rows); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrStandingsNotCached
		}
		return nil, fmt.Errorf("failed to read student standings cache: %w", err)
	}
	return rows, nil
}

// SetStudentStandings stores a competition's student standings snapshot.
func (s *StandingsCache) SetStudentStandings(ctx context.Context, competitionID string, rows []*standings.StudentStanding) error {
	return s.cache.Set(ctx, StudentStandingsKey(competitionID), rows, TTLStandingsCache)
}

// Invalidate drops every cached snapshot of one competition.
// Called when the competition's standings are recomputed.
func (s *StandingsCache) Invalidate(ctx context.Context, competitionID string) error {
	return s.cache.Delete(ctx,
		SchoolStandingsKey(competitionID),
		StudentStandingsKey(competitionID),
		FeedKey(competitionID),
	)
}
