// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cubescore/cubescore-backend/internal/domain/standings"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SCHOOL STANDINGS QUERY
// Возвращает таблицу школ соревнования, опционально срез по дивизиону.
// Читает сквозь Redis-кэш: стандинги пересчитываются только финализацией
// и плановым refresh-джобом, так что кэш почти всегда горячий.
// ══════════════════════════════════════════════════════════════════════════════

// StandingsCache is a read-through cache for computed standings.
type StandingsCache interface {
	GetSchoolStandings(ctx context.Context, competitionID string) ([]*standings.SchoolStanding, error)
	SetSchoolStandings(ctx context.Context, competitionID string, rows []*standings.SchoolStanding) error
	Invalidate(ctx context.Context, competitionID string) error
}

// GetSchoolStandingsQuery содержит параметры запроса таблицы школ.
type GetSchoolStandingsQuery struct {
	// CompetitionID - соревнование, чьи стандинги нужны.
	CompetitionID string

	// Division - фильтр по дивизиону (пустая строка = все дивизионы).
	Division string
}

// Validate проверяет корректность параметров запроса.
func (q *GetSchoolStandingsQuery) Validate() error {
	if q.CompetitionID == "" {
		return errors.New("competition_id is required")
	}
	return nil
}

// SchoolStandingDTO - строка таблицы школ для ответа API.
type SchoolStandingDTO struct {
	Rank                 int     `json:"rank"`
	DivisionRank         int     `json:"division_rank"`
	SchoolID             string  `json:"school_id"`
	SchoolName           string  `json:"school_name"`
	Division             string  `json:"division"`
	TotalPoints          float64 `json:"total_points"`
	AvgPointsPerStudent  float64 `json:"avg_points_per_student"`
	StudentsParticipated int     `json:"students_participated"`
}

// GetSchoolStandingsResult - результат запроса.
type GetSchoolStandingsResult struct {
	CompetitionID string              `json:"competition_id"`
	Standings     []SchoolStandingDTO `json:"standings"`
	FromCache     bool                `json:"-"`
	RetrievedAt   time.Time           `json:"retrieved_at"`
}

// GetSchoolStandingsHandler обрабатывает запрос таблицы школ.
type GetSchoolStandingsHandler struct {
	repo  standings.SchoolStandingRepository
	cache StandingsCache
	log   *logger.Logger
}

// NewGetSchoolStandingsHandler создаёт обработчик запроса.
func NewGetSchoolStandingsHandler(repo standings.SchoolStandingRepository, cache StandingsCache, log *logger.Logger) *GetSchoolStandingsHandler {
	return &GetSchoolStandingsHandler{repo: repo, cache: cache, log: log}
}

// Handle выполняет запрос.
func (h *GetSchoolStandingsHandler) Handle(ctx context.Context, q GetSchoolStandingsQuery) (*GetSchoolStandingsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, fromCache := h.load(ctx, q.CompetitionID)
	if rows == nil {
		var err error
		rows, err = h.repo.ListByCompetition(ctx, q.CompetitionID)
		if err != nil {
			return nil, fmt.Errorf("get_school_standings: %w", err)
		}
		if h.cache != nil {
			if err := h.cache.SetSchoolStandings(ctx, q.CompetitionID, rows); err != nil {
				h.log.Warn("standings cache write failed", logger.Err(err))
			}
		}
	}

	result := &GetSchoolStandingsResult{
		CompetitionID: q.CompetitionID,
		Standings:     make([]SchoolStandingDTO, 0, len(rows)),
		FromCache:     fromCache,
		RetrievedAt:   time.Now().UTC(),
	}
	for _, row := range rows {
		if q.Division != "" && string(row.Division) != q.Division {
			continue
		}
		result.Standings = append(result.Standings, SchoolStandingDTO{
			Rank:                 int(row.OverallRank),
			DivisionRank:         int(row.DivisionRank),
			SchoolID:             row.SchoolID,
			SchoolName:           row.SchoolName,
			Division:             string(row.Division),
			TotalPoints:          row.TotalPoints,
			AvgPointsPerStudent:  row.AvgPointsPerStudent,
			StudentsParticipated: row.TotalStudentsParticipated,
		})
	}
	return result, nil
}

// load tries the cache first. Cache failures degrade to a repo read.
func (h *GetSchoolStandingsHandler) load(ctx context.Context, competitionID string) ([]*standings.SchoolStanding, bool) {
	if h.cache == nil {
		return nil, false
	}
	rows, err := h.cache.GetSchoolStandings(ctx, competitionID)
	if err != nil || len(rows) == 0 {
		return nil, false
	}
	return rows, true
}
