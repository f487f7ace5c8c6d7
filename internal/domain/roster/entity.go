// Package roster содержит справочные сущности лиги: студентов и школы.
// Это долгоживущие конфигурационные данные, редактируемые через админку.
// Внешних зависимостей здесь нет - только бизнес-правила.
package roster

import (
	"strings"
	"time"

	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHOOL
// ══════════════════════════════════════════════════════════════════════════════

// Division представляет дивизион школы (разделение по размеру/категории).
type Division string

const (
	DivisionElementary Division = "elementary"
	DivisionMiddle     Division = "middle"
	DivisionHigh       Division = "high"
	DivisionOpen       Division = "open"
)

// IsValid проверяет, что дивизион корректен.
func (d Division) IsValid() bool {
	switch d {
	case DivisionElementary, DivisionMiddle, DivisionHigh, DivisionOpen:
		return true
	default:
		return false
	}
}

// School представляет школу-участника лиги.
// Школа владеет нулём и более студентами (слабая ссылка от студента к школе,
// школа не управляет жизненным циклом студента).
type School struct {
	ID        string
	Name      string
	Division  Division
	CreatedAt time.Time
}

// Validate проверяет корректность школы.
func (s *School) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return shared.NewDomainError("roster", "Validate", shared.ErrInvalidID, "school id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return shared.NewDomainError("roster", "Validate", shared.ErrEmptyValue, "school name is required")
	}
	if !s.Division.IsValid() {
		return shared.NewDomainError("roster", "Validate", shared.ErrInvalidInput, "unknown division")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student представляет участника лиги.
// Идентичность неизменна; класс (grade) может меняться между сезонами.
// Студент принадлежит ровно одной школе или никакой (SchoolID == nil).
type Student struct {
	ID          string
	DisplayName string
	Grade       shared.Grade
	SchoolID    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет корректность студента.
func (s *Student) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return shared.NewDomainError("roster", "Validate", shared.ErrInvalidID, "student id is required")
	}
	if strings.TrimSpace(s.DisplayName) == "" {
		return shared.NewDomainError("roster", "Validate", shared.ErrEmptyValue, "display name is required")
	}
	if !s.Grade.IsValid() {
		return shared.ErrInvalidGrade
	}
	if s.SchoolID != nil && strings.TrimSpace(*s.SchoolID) == "" {
		return shared.NewDomainError("roster", "Validate", shared.ErrInvalidID, "school id cannot be blank")
	}
	return nil
}

// HasSchool возвращает true, если студент привязан к школе.
func (s *Student) HasSchool() bool {
	return s.SchoolID != nil && *s.SchoolID != ""
}

// ChangeGrade обновляет класс студента (между сезонами).
func (s *Student) ChangeGrade(grade shared.Grade) error {
	if !grade.IsValid() {
		return shared.ErrInvalidGrade
	}
	s.Grade = grade
	s.UpdatedAt = time.Now()
	return nil
}
