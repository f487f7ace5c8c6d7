package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cubescore/cubescore-backend/internal/domain/standings"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT STANDINGS QUERY
// Индивидуальный зачёт соревнования: студенты по сумме очков с разделяемыми
// местами, той же политикой ничьих, что и у школ.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentStandingsQuery содержит параметры запроса индивидуального зачёта.
type GetStudentStandingsQuery struct {
	CompetitionID string

	// Limit ограничивает длину таблицы (0 = без ограничения).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetStudentStandingsQuery) Validate() error {
	if q.CompetitionID == "" {
		return errors.New("competition_id is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	return nil
}

// StudentStandingDTO - строка индивидуального зачёта.
type StudentStandingDTO struct {
	Rank        int     `json:"rank"`
	StudentID   string  `json:"student_id"`
	DisplayName string  `json:"display_name"`
	SchoolID    string  `json:"school_id,omitempty"`
	TotalPoints float64 `json:"total_points"`
}

// GetStudentStandingsResult - результат запроса.
type GetStudentStandingsResult struct {
	CompetitionID string               `json:"competition_id"`
	Standings     []StudentStandingDTO `json:"standings"`
	RetrievedAt   time.Time            `json:"retrieved_at"`
}

// GetStudentStandingsHandler обрабатывает запрос индивидуального зачёта.
type GetStudentStandingsHandler struct {
	repo standings.StudentStandingRepository
}

// NewGetStudentStandingsHandler создаёт обработчик запроса.
func NewGetStudentStandingsHandler(repo standings.StudentStandingRepository) *GetStudentStandingsHandler {
	return &GetStudentStandingsHandler{repo: repo}
}

// Handle выполняет запрос.
func (h *GetStudentStandingsHandler) Handle(ctx context.Context, q GetStudentStandingsQuery) (*GetStudentStandingsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, err := h.repo.ListByCompetition(ctx, q.CompetitionID)
	if err != nil {
		return nil, fmt.Errorf("get_student_standings: %w", err)
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	result := &GetStudentStandingsResult{
		CompetitionID: q.CompetitionID,
		Standings:     make([]StudentStandingDTO, 0, len(rows)),
		RetrievedAt:   time.Now().UTC(),
	}
	for _, row := range rows {
		dto := StudentStandingDTO{
			Rank:        int(row.Rank),
			StudentID:   row.StudentID,
			DisplayName: row.DisplayName,
			TotalPoints: row.TotalPoints,
		}
		if row.SchoolID != nil {
			dto.SchoolID = *row.SchoolID
		}
		result.Standings = append(result.Standings, dto)
	}
	return result, nil
}
