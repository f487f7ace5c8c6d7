package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubescore/cubescore-backend/internal/domain/standings"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

type fakeSchoolStandingRepo struct {
	rows  []*standings.SchoolStanding
	err   error
	calls int
}

func (r *fakeSchoolStandingRepo) ReplaceForCompetition(ctx context.Context, competitionID string, rows []*standings.SchoolStanding) error {
	return nil
}

func (r *fakeSchoolStandingRepo) ListByCompetition(ctx context.Context, competitionID string) ([]*standings.SchoolStanding, error) {
	r.calls++
	return r.rows, r.err
}

func (r *fakeSchoolStandingRepo) ListByDivision(ctx context.Context, competitionID, division string) ([]*standings.SchoolStanding, error) {
	return nil, errors.New("not used")
}

type fakeStandingsCache struct {
	stored map[string][]*standings.SchoolStanding
	getErr error
	sets   int
}

func newFakeStandingsCache() *fakeStandingsCache {
	return &fakeStandingsCache{stored: make(map[string][]*standings.SchoolStanding)}
}

func (c *fakeStandingsCache) GetSchoolStandings(ctx context.Context, competitionID string) ([]*standings.SchoolStanding, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.stored[competitionID], nil
}

func (c *fakeStandingsCache) SetSchoolStandings(ctx context.Context, competitionID string, rows []*standings.SchoolStanding) error {
	c.sets++
	c.stored[competitionID] = rows
	return nil
}

func (c *fakeStandingsCache) Invalidate(ctx context.Context, competitionID string) error {
	delete(c.stored, competitionID)
	return nil
}

func sampleStandings() []*standings.SchoolStanding {
	return []*standings.SchoolStanding{
		{SchoolID: "sch-1", SchoolName: "Lyceum 134", Division: "high", OverallRank: 1, DivisionRank: 1, TotalPoints: 120.5, AvgPointsPerStudent: 24.1, TotalStudentsParticipated: 5},
		{SchoolID: "sch-2", SchoolName: "Gymnasium 25", Division: "middle", OverallRank: 2, DivisionRank: 1, TotalPoints: 98, AvgPointsPerStudent: 19.6, TotalStudentsParticipated: 5},
		{SchoolID: "sch-3", SchoolName: "School 7", Division: "high", OverallRank: 3, DivisionRank: 2, TotalPoints: 77, AvgPointsPerStudent: 15.4, TotalStudentsParticipated: 5},
	}
}

func TestGetSchoolStandingsReadsRepoAndFillsCache(t *testing.T) {
	repo := &fakeSchoolStandingRepo{rows: sampleStandings()}
	cache := newFakeStandingsCache()
	h := NewGetSchoolStandingsHandler(repo, cache, logger.Default())

	res, err := h.Handle(context.Background(), GetSchoolStandingsQuery{CompetitionID: "comp-1"})
	require.NoError(t, err)

	assert.False(t, res.FromCache)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 1, cache.sets)
	require.Len(t, res.Standings, 3)
	assert.Equal(t, "Lyceum 134", res.Standings[0].SchoolName)
	assert.Equal(t, 1, res.Standings[0].Rank)
}

func TestGetSchoolStandingsServesFromCache(t *testing.T) {
	repo := &fakeSchoolStandingRepo{err: errors.New("repo must not be hit")}
	cache := newFakeStandingsCache()
	cache.stored["comp-1"] = sampleStandings()
	h := NewGetSchoolStandingsHandler(repo, cache, logger.Default())

	res, err := h.Handle(context.Background(), GetSchoolStandingsQuery{CompetitionID: "comp-1"})
	require.NoError(t, err)

	assert.True(t, res.FromCache)
	assert.Equal(t, 0, repo.calls)
	assert.Len(t, res.Standings, 3)
}

func TestGetSchoolStandingsCacheFailureFallsBack(t *testing.T) {
	repo := &fakeSchoolStandingRepo{rows: sampleStandings()}
	cache := newFakeStandingsCache()
	cache.getErr = errors.New("redis down")
	h := NewGetSchoolStandingsHandler(repo, cache, logger.Default())

	res, err := h.Handle(context.Background(), GetSchoolStandingsQuery{CompetitionID: "comp-1"})
	require.NoError(t, err)

	assert.False(t, res.FromCache)
	assert.Equal(t, 1, repo.calls)
	assert.Len(t, res.Standings, 3)
}

func TestGetSchoolStandingsDivisionFilter(t *testing.T) {
	repo := &fakeSchoolStandingRepo{rows: sampleStandings()}
	h := NewGetSchoolStandingsHandler(repo, nil, logger.Default())

	res, err := h.Handle(context.Background(), GetSchoolStandingsQuery{
		CompetitionID: "comp-1",
		Division:      "high",
	})
	require.NoError(t, err)

	// Overall and division ranks come from the stored rows, not from the
	// filtered slice position.
	require.Len(t, res.Standings, 2)
	assert.Equal(t, "sch-1", res.Standings[0].SchoolID)
	assert.Equal(t, 1, res.Standings[0].DivisionRank)
	assert.Equal(t, "sch-3", res.Standings[1].SchoolID)
	assert.Equal(t, 2, res.Standings[1].DivisionRank)
	assert.Equal(t, 3, res.Standings[1].Rank)
}

func TestGetSchoolStandingsRequiresCompetition(t *testing.T) {
	h := NewGetSchoolStandingsHandler(&fakeSchoolStandingRepo{}, nil, logger.Default())

	_, err := h.Handle(context.Background(), GetSchoolStandingsQuery{})
	assert.Error(t, err)
}
