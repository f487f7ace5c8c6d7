package records

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence/postgres.
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository определяет операции над baseline-рекордами.
// Строки write-once: контракт намеренно не содержит Update/Delete.
type RecordRepository interface {
	// Create создаёт рекорд. Дубликат (student, event, baseline) - ошибка.
	Create(ctx context.Context, rec *CompetitionRecord) error

	// GetBaseline возвращает baseline-рекорд пары (student, event).
	// Возвращает shared.ErrNoBaselineRecord, если baseline не установлен.
	GetBaseline(ctx context.Context, studentID, eventTypeID string) (*CompetitionRecord, error)

	// ListBaselinesByStudent возвращает все baseline-рекорды студента.
	ListBaselinesByStudent(ctx context.Context, studentID string) ([]*CompetitionRecord, error)
}

// PersonalBestRepository определяет операции над личными рекордами.
type PersonalBestRepository interface {
	// Get возвращает PB пары (student, event).
	// Возвращает shared.ErrPersonalBestMissing, если PB ещё нет.
	Get(ctx context.Context, studentID, eventTypeID string) (*PersonalBest, error)

	// ListByStudent возвращает все PB студента.
	ListByStudent(ctx context.Context, studentID string) ([]*PersonalBest, error)

	// Upsert атомарно сохраняет PB (insert-or-update по (student, event)).
	Upsert(ctx context.Context, pb *PersonalBest) error
}

// AchievementLogRepository определяет операции над журналом достижений.
// Журнал append-only: только вставка и чтение.
type AchievementLogRepository interface {
	// Append добавляет строки журнала. Никогда не мутирует историю.
	Append(ctx context.Context, entries []AchievementEntry) error

	// ListRecent возвращает последние записи журнала (для ленты достижений).
	ListRecent(ctx context.Context, limit int) ([]AchievementEntry, error)

	// ListByCompetition возвращает записи журнала одного соревнования.
	ListByCompetition(ctx context.Context, competitionID string) ([]AchievementEntry, error)
}
