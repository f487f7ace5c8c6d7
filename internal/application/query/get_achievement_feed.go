package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cubescore/cubescore-backend/internal/domain/records"
	"github.com/cubescore/cubescore-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACHIEVEMENT FEED QUERY
// Лента достижений: последние записи append-only журнала (рекорды, PB,
// дебюты) в человекочитаемом формате времени.
// ══════════════════════════════════════════════════════════════════════════════

// GetAchievementFeedQuery содержит параметры ленты достижений.
type GetAchievementFeedQuery struct {
	// CompetitionID - если задан, показывается журнал одного соревнования.
	CompetitionID string

	// Limit - количество записей (по умолчанию 50, максимум 200).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetAchievementFeedQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	return nil
}

// AchievementDTO - запись ленты достижений.
type AchievementDTO struct {
	StudentID       string    `json:"student_id"`
	CompetitionID   string    `json:"competition_id"`
	EventTypeID     string    `json:"event_type_id"`
	AchievementType string    `json:"achievement_type"`
	AchievedTime    string    `json:"achieved_time"`
	PreviousBest    string    `json:"previous_best,omitempty"`
	Improvement     string    `json:"improvement,omitempty"`
	AchievedAt      time.Time `json:"achieved_at"`
}

// GetAchievementFeedResult - результат запроса.
type GetAchievementFeedResult struct {
	Achievements []AchievementDTO `json:"achievements"`
}

// GetAchievementFeedHandler обрабатывает запрос ленты достижений.
type GetAchievementFeedHandler struct {
	repo records.AchievementLogRepository
}

// NewGetAchievementFeedHandler создаёт обработчик запроса.
func NewGetAchievementFeedHandler(repo records.AchievementLogRepository) *GetAchievementFeedHandler {
	return &GetAchievementFeedHandler{repo: repo}
}

// Handle выполняет запрос.
func (h *GetAchievementFeedHandler) Handle(ctx context.Context, q GetAchievementFeedQuery) (*GetAchievementFeedResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var entries []records.AchievementEntry
	var err error
	if q.CompetitionID != "" {
		entries, err = h.repo.ListByCompetition(ctx, q.CompetitionID)
	} else {
		entries, err = h.repo.ListRecent(ctx, q.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("get_achievement_feed: %w", err)
	}
	if len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}

	result := &GetAchievementFeedResult{Achievements: make([]AchievementDTO, 0, len(entries))}
	for _, e := range entries {
		dto := AchievementDTO{
			StudentID:       e.StudentID,
			CompetitionID:   e.CompetitionID,
			EventTypeID:     e.EventTypeID,
			AchievementType: string(e.AchievementType),
			AchievedTime:    timeutil.FormatSolveTime(e.AchievedTimeMs.Millis()),
			AchievedAt:      e.AchievedAt,
		}
		if e.ImprovementPercent != nil {
			dto.Improvement = timeutil.FormatImprovement(e.ImprovementPercent)
		}
		if e.PreviousBestMs.IsValid() {
			dto.PreviousBest = timeutil.FormatSolveTime(e.PreviousBestMs.Millis())
		}
		result.Achievements = append(result.Achievements, dto)
	}
	return result, nil
}
