package scoring

import (
	"strings"
	"time"

	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

// PointTransaction - неизменяемая строка журнала начислений.
// Создаётся один раз на событие подсчёта; никогда не обновляется и не
// удаляется. Журнал - единственный источник истины для агрегации:
// standings и сводки - производные, пересчитываемые представления над ним.
type PointTransaction struct {
	ID            string
	StudentID     string
	SchoolID      *string
	CompetitionID string
	RoundID       string
	PointType     PointType
	FinalPoints   float64
	CreatedAt     time.Time
}

// Validate проверяет транзакцию перед вставкой.
func (t *PointTransaction) Validate() error {
	if strings.TrimSpace(t.StudentID) == "" || strings.TrimSpace(t.CompetitionID) == "" || strings.TrimSpace(t.RoundID) == "" {
		return shared.NewDomainError("scoring", "Validate", shared.ErrInvalidID,
			"student, competition and round ids are required")
	}
	if !t.PointType.IsValid() {
		return shared.NewDomainError("scoring", "Validate", shared.ErrInvalidInput,
			"unknown point type")
	}
	if t.FinalPoints < 0 {
		return shared.NewDomainError("scoring", "Validate", shared.ErrNegativeValue,
			"final points cannot be negative")
	}
	return nil
}

// HasSchool возвращает true, если транзакция привязана к школе.
func (t *PointTransaction) HasSchool() bool {
	return t.SchoolID != nil && *t.SchoolID != ""
}
