package scoring

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence/postgres.
// ══════════════════════════════════════════════════════════════════════════════

// ThresholdRepository определяет операции над tier thresholds.
type ThresholdRepository interface {
	// GetTable возвращает таблицу тиров дисциплины.
	// Возвращает shared.ErrThresholdsNotFound, если таблица пуста.
	GetTable(ctx context.Context, eventTypeID string) (*TierTable, error)

	// GetAllTables возвращает таблицы всех дисциплин одним запросом.
	GetAllTables(ctx context.Context) (map[string]*TierTable, error)

	// ReplaceTable атомарно заменяет таблицу дисциплины.
	// Таблица обязана пройти Validate до вызова.
	ReplaceTable(ctx context.Context, table *TierTable) error
}

// MultiplierRepository определяет операции над грейдовыми множителями.
type MultiplierRepository interface {
	// GetAll возвращает множители всех классов.
	GetAll(ctx context.Context) (MultiplierSet, error)

	// Upsert сохраняет множитель класса.
	// Множитель обязан пройти Validate до вызова.
	Upsert(ctx context.Context, m *GradeMultiplier) error
}

// TransactionRepository определяет операции над журналом начислений.
// Журнал append-only: обновления и удаления отсутствуют в контракте намеренно.
type TransactionRepository interface {
	// InsertBatch вставляет все строки одного события подсчёта.
	InsertBatch(ctx context.Context, txs []*PointTransaction) error

	// ListByCompetition возвращает все транзакции соревнования одним запросом.
	ListByCompetition(ctx context.Context, competitionID string) ([]*PointTransaction, error)

	// ListByStudent возвращает все транзакции студента.
	ListByStudent(ctx context.Context, studentID string) ([]*PointTransaction, error)

	// HasForResult проверяет, начислялись ли уже очки за (round, student).
	HasForResult(ctx context.Context, roundID, studentID string) (bool, error)
}
