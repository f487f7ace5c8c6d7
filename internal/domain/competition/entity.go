// Package competition содержит доменную модель соревнования CubeScore:
// статусную машину соревнования, дисциплины (event types), раунды,
// финальные результаты и регистрации.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package competition

import (
	"strings"
	"time"

	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// Status представляет статус соревнования. Переходы строго односторонние:
// upcoming → active → completing → completed. Возврата назад нет.
// Состояние completing - это single-flight guard финализации: только один
// запуск оркестратора может захватить соревнование.
type Status string

const (
	// StatusUpcoming - соревнование создано, но ещё не началось.
	StatusUpcoming Status = "upcoming"
	// StatusActive - соревнование идёт, результаты принимаются.
	StatusActive Status = "active"
	// StatusCompleting - финализация захвачена одним запуском оркестратора.
	StatusCompleting Status = "completing"
	// StatusCompleted - соревнование завершено, standings зафиксированы.
	StatusCompleted Status = "completed"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusUpcoming, StatusActive, StatusCompleting, StatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода статуса.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusUpcoming:
		return next == StatusActive
	case StatusActive:
		return next == StatusCompleting
	case StatusCompleting:
		return next == StatusCompleted
	default:
		return false
	}
}

// IsTerminal возвращает true для завершённого соревнования.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPETITION
// ══════════════════════════════════════════════════════════════════════════════

// Competition представляет одно соревнование лиги.
// Флаг IsBaseline может быть установлен максимум у одного соревнования
// во всей системе: его результаты служат базой для детекции рекордов.
type Competition struct {
	ID          string
	Name        string
	Date        time.Time
	Status      Status
	IsBaseline  bool
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Validate проверяет корректность соревнования.
func (c *Competition) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return shared.NewDomainError("competition", "Validate", shared.ErrInvalidID, "competition id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return shared.NewDomainError("competition", "Validate", shared.ErrEmptyValue, "competition name is required")
	}
	if !c.Status.IsValid() {
		return shared.NewDomainError("competition", "Validate", shared.ErrInvalidState, "unknown status")
	}
	return nil
}

// Transition переводит соревнование в следующий статус с проверкой.
func (c *Competition) Transition(next Status) error {
	if !c.Status.CanTransitionTo(next) {
		return shared.WrapError("competition", "Transition", shared.ErrStateTransition,
			string(c.Status)+" -> "+string(next), nil)
	}
	c.Status = next
	if next == StatusCompleted {
		now := time.Now()
		c.CompletedAt = &now
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT TYPES И РАУНДЫ
// ══════════════════════════════════════════════════════════════════════════════

// EventType представляет дисциплину спидкубинга (3x3, 4x4, ...).
// Владеет набором tier thresholds (в пакете scoring).
type EventType struct {
	ID          string
	Name        string // машинное имя, например "333"
	DisplayName string // отображаемое имя, например "3x3 Cube"
	SortOrder   int
}

// Validate проверяет корректность дисциплины.
func (e *EventType) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return shared.NewDomainError("competition", "Validate", shared.ErrInvalidID, "event type id is required")
	}
	if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.DisplayName) == "" {
		return shared.NewDomainError("competition", "Validate", shared.ErrEmptyValue, "event type name is required")
	}
	return nil
}

// CompetitionEvent связывает соревнование с дисциплиной.
type CompetitionEvent struct {
	ID            string
	CompetitionID string
	EventTypeID   string
}

// Round представляет раунд внутри дисциплины соревнования.
type Round struct {
	ID                 string
	CompetitionEventID string
	Number             int
	Name               string // например "Final", "Round 1"
}

// ══════════════════════════════════════════════════════════════════════════════
// FINAL SCORE
// ══════════════════════════════════════════════════════════════════════════════

// FinalScore - лучший single и лучший average одного студента за раунд.
// Каждое поле либо положительное значение в миллисекундах, либо DNF
// (нулевое значение); отрицательных значений не бывает.
type FinalScore struct {
	ID          string
	RoundID     string
	StudentID   string
	BestSingle  shared.SolveTime
	BestAverage shared.SolveTime
	RecordedAt  time.Time
}

// Validate проверяет корректность результата.
func (f *FinalScore) Validate() error {
	if strings.TrimSpace(f.RoundID) == "" || strings.TrimSpace(f.StudentID) == "" {
		return shared.NewDomainError("competition", "Validate", shared.ErrInvalidID, "round and student ids are required")
	}
	if f.BestSingle < 0 || f.BestAverage < 0 {
		return shared.NewDomainError("competition", "Validate", shared.ErrNegativeValue, "solve times cannot be negative")
	}
	return nil
}

// IsFullDNF возвращает true, если у результата нет ни одного валидного времени.
func (f *FinalScore) IsFullDNF() bool {
	return f.BestSingle.IsDNF() && f.BestAverage.IsDNF()
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Registration фиксирует участие студента в соревновании.
// SchoolID денормализован на момент регистрации: standings считаются
// по школе, за которую студент выступал, даже если он потом перешёл.
type Registration struct {
	ID            string
	CompetitionID string
	StudentID     string
	SchoolID      *string
	RegisteredAt  time.Time
}

// HasSchool возвращает true, если регистрация привязана к школе.
func (r *Registration) HasSchool() bool {
	return r.SchoolID != nil && *r.SchoolID != ""
}
