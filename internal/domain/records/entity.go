// Package records содержит доменную модель рекордов CubeScore: базовые
// рекорды (baseline), личные рекорды (PB), их детекцию и append-only
// журнал достижений.
// Это чистая бизнес-логика без внешних зависимостей.
package records

import (
	"strings"
	"time"

	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPETITION RECORD (BASELINE)
// ══════════════════════════════════════════════════════════════════════════════

// CompetitionRecord - замороженный снимок single/average одного студента
// по одной дисциплине, установленный на базовом соревновании.
// Неизменяем после создания: все будущие рекорды меряются против него.
type CompetitionRecord struct {
	ID            string
	StudentID     string
	EventTypeID   string
	CompetitionID string
	SingleMs      shared.SolveTime
	AverageMs     shared.SolveTime
	IsBaseline    bool
	CreatedAt     time.Time
}

// Validate проверяет запись рекорда.
func (r *CompetitionRecord) Validate() error {
	if strings.TrimSpace(r.StudentID) == "" || strings.TrimSpace(r.EventTypeID) == "" {
		return shared.NewDomainError("records", "Validate", shared.ErrInvalidID,
			"student and event type ids are required")
	}
	if r.SingleMs < 0 || r.AverageMs < 0 {
		return shared.NewDomainError("records", "Validate", shared.ErrNegativeValue,
			"record times cannot be negative")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSONAL BEST
// ══════════════════════════════════════════════════════════════════════════════

// PersonalBest - лучшие времена студента за всё время по одной дисциплине.
// Единственная мутируемая сущность модели: перезаписывается только при
// строго более быстром времени, и только самим scoring pipeline.
// Single и average - независимые поля, каждое обновляется отдельно.
type PersonalBest struct {
	ID          string
	StudentID   string
	EventTypeID string
	SingleMs    shared.SolveTime
	AverageMs   shared.SolveTime
	UpdatedAt   time.Time
}

// ImproveWith обновляет PB новыми временами и возвращает true, если хотя бы
// одно поле стало быстрее. DNF и невалидные значения игнорируются, поэтому
// хранимое значение монотонно: минимум всех строго положительных попыток.
func (pb *PersonalBest) ImproveWith(single, average shared.SolveTime, now time.Time) bool {
	improved := false

	if single.IsValid() && (pb.SingleMs.IsDNF() || single < pb.SingleMs) {
		pb.SingleMs = single
		improved = true
	}
	if average.IsValid() && (pb.AverageMs.IsDNF() || average < pb.AverageMs) {
		pb.AverageMs = average
		improved = true
	}

	if improved {
		pb.UpdatedAt = now
	}
	return improved
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT LOG
// ══════════════════════════════════════════════════════════════════════════════

// AchievementType - тип достижения в журнале.
type AchievementType string

const (
	AchievementRecordSingle  AchievementType = "record_single"
	AchievementRecordAverage AchievementType = "record_average"
	AchievementPBSingle      AchievementType = "pb_single"
	AchievementPBAverage     AchievementType = "pb_average"
	AchievementFirstAttempt  AchievementType = "first_attempt"
)

// IsValid проверяет тип достижения.
func (a AchievementType) IsValid() bool {
	switch a {
	case AchievementRecordSingle, AchievementRecordAverage,
		AchievementPBSingle, AchievementPBAverage, AchievementFirstAttempt:
		return true
	default:
		return false
	}
}

// AchievementEntry - append-only строка журнала достижений.
// Никогда не изменяется и не удаляется.
type AchievementEntry struct {
	ID                 string
	StudentID          string
	CompetitionID      string
	EventTypeID        string
	AchievementType    AchievementType
	AchievedTimeMs     shared.SolveTime
	PreviousBestMs     shared.SolveTime // DNF-сентинел, если предыдущего не было
	ImprovementPercent *float64
	AchievedAt         time.Time
}

// Validate проверяет запись журнала.
func (e *AchievementEntry) Validate() error {
	if strings.TrimSpace(e.StudentID) == "" || strings.TrimSpace(e.EventTypeID) == "" {
		return shared.NewDomainError("records", "Validate", shared.ErrInvalidID,
			"student and event type ids are required")
	}
	if !e.AchievementType.IsValid() {
		return shared.NewDomainError("records", "Validate", shared.ErrInvalidInput,
			"unknown achievement type")
	}
	return nil
}

// ImprovementPercent считает процент улучшения на момент записи:
// (previous - achieved) / previous × 100 при previous > 0, иначе nil.
func ImprovementPercent(previous, achieved shared.SolveTime) *float64 {
	if !previous.IsValid() {
		return nil
	}
	pct := float64(previous.Millis()-achieved.Millis()) / float64(previous.Millis()) * 100
	return &pct
}
