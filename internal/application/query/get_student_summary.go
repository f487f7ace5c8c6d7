package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/cubescore/cubescore-backend/internal/domain/records"
	"github.com/cubescore/cubescore-backend/internal/domain/roster"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/internal/domain/standings"
	"github.com/cubescore/cubescore-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT SUMMARY QUERY
// Карточка студента: профиль, личные рекорды по дисциплинам, сумма очков
// за всё время и место в последнем соревновании.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentSummaryQuery содержит параметры карточки студента.
type GetStudentSummaryQuery struct {
	StudentID string

	// CompetitionID - если задан, в карточку входит место в этом
	// соревновании.
	CompetitionID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetStudentSummaryQuery) Validate() error {
	if q.StudentID == "" {
		return errors.New("student_id is required")
	}
	return nil
}

// PersonalBestDTO - личный рекорд по одной дисциплине.
type PersonalBestDTO struct {
	EventTypeID string `json:"event_type_id"`
	Single      string `json:"single"`
	Average     string `json:"average"`
}

// StudentSummaryDTO - карточка студента.
type StudentSummaryDTO struct {
	StudentID      string            `json:"student_id"`
	DisplayName    string            `json:"display_name"`
	Grade          int               `json:"grade"`
	SchoolID       string            `json:"school_id,omitempty"`
	PersonalBests  []PersonalBestDTO `json:"personal_bests"`
	LifetimePoints float64           `json:"lifetime_points"`
	Rank           int               `json:"rank,omitempty"`
	RankPoints     float64           `json:"rank_points,omitempty"`
}

// GetStudentSummaryHandler обрабатывает запрос карточки студента.
type GetStudentSummaryHandler struct {
	studentRepo  roster.StudentRepository
	pbRepo       records.PersonalBestRepository
	txRepo       scoring.TransactionRepository
	standingRepo standings.StudentStandingRepository
}

// NewGetStudentSummaryHandler создаёт обработчик запроса.
func NewGetStudentSummaryHandler(
	studentRepo roster.StudentRepository,
	pbRepo records.PersonalBestRepository,
	txRepo scoring.TransactionRepository,
	standingRepo standings.StudentStandingRepository,
) *GetStudentSummaryHandler {
	return &GetStudentSummaryHandler{
		studentRepo:  studentRepo,
		pbRepo:       pbRepo,
		txRepo:       txRepo,
		standingRepo: standingRepo,
	}
}

// Handle выполняет запрос.
func (h *GetStudentSummaryHandler) Handle(ctx context.Context, q GetStudentSummaryQuery) (*StudentSummaryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	student, err := h.studentRepo.GetByID(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_student_summary: %w", err)
	}

	summary := &StudentSummaryDTO{
		StudentID:   student.ID,
		DisplayName: student.DisplayName,
		Grade:       int(student.Grade),
	}
	if student.HasSchool() {
		summary.SchoolID = *student.SchoolID
	}

	pbs, err := h.pbRepo.ListByStudent(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_student_summary: personal bests: %w", err)
	}
	for _, pb := range pbs {
		summary.PersonalBests = append(summary.PersonalBests, PersonalBestDTO{
			EventTypeID: pb.EventTypeID,
			Single:      timeutil.FormatSolveTime(pb.SingleMs.Millis()),
			Average:     timeutil.FormatSolveTime(pb.AverageMs.Millis()),
		})
	}

	txs, err := h.txRepo.ListByStudent(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_student_summary: transactions: %w", err)
	}
	var total float64
	for _, tx := range txs {
		total += tx.FinalPoints
	}
	summary.LifetimePoints = scoring.RoundHalfUp1(total)

	if q.CompetitionID != "" {
		standing, err := h.standingRepo.GetForStudent(ctx, q.CompetitionID, q.StudentID)
		if err != nil && !errors.Is(err, shared.ErrStandingNotFound) && !shared.IsNotFound(err) {
			return nil, fmt.Errorf("get_student_summary: standing: %w", err)
		}
		if standing != nil {
			summary.Rank = int(standing.Rank)
			summary.RankPoints = standing.TotalPoints
		}
	}

	return summary, nil
}
