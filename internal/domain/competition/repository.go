package competition

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence/postgres.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над соревнованиями.
type Repository interface {
	// Create создаёт новое соревнование в статусе upcoming.
	Create(ctx context.Context, comp *Competition) error

	// GetByID возвращает соревнование по ID.
	// Возвращает shared.ErrCompetitionNotFound, если не найдено.
	GetByID(ctx context.Context, id string) (*Competition, error)

	// GetAll возвращает все соревнования, отсортированные по дате.
	GetAll(ctx context.Context) ([]*Competition, error)

	// GetByStatus возвращает соревнования в указанном статусе.
	GetByStatus(ctx context.Context, status Status) ([]*Competition, error)

	// Activate переводит соревнование из upcoming в active.
	Activate(ctx context.Context, id string) error

	// ClaimCompleting атомарно переводит active → completing.
	// Это single-flight guard финализации: при конкурентных вызовах ровно
	// один получает nil, остальные - shared.ErrFinalizeInProgress (если
	// статус completing) или shared.ErrCompetitionNotActive.
	ClaimCompleting(ctx context.Context, id string) error

	// MarkCompleted переводит completing → completed и ставит отметку времени.
	MarkCompleted(ctx context.Context, id string) error

	// ReleaseClaim возвращает completing → active после фатального сбоя
	// финализации, чтобы её можно было повторить.
	ReleaseClaim(ctx context.Context, id string) error

	// SetBaseline назначает соревнование базовым. Внутри одной транзакции
	// снимает флаг со всех остальных и ставит на указанное (unset-then-set),
	// поэтому инвариант "не более одного baseline" не нарушается даже при
	// конкурентных вызовах.
	SetBaseline(ctx context.Context, id string) error

	// GetBaseline возвращает текущее базовое соревнование.
	// Возвращает shared.ErrCompetitionNotFound, если baseline не назначен.
	GetBaseline(ctx context.Context) (*Competition, error)
}

// EventTypeRepository определяет операции над дисциплинами.
type EventTypeRepository interface {
	Create(ctx context.Context, et *EventType) error
	GetByID(ctx context.Context, id string) (*EventType, error)
	GetAll(ctx context.Context) ([]*EventType, error)
}

// ResultRepository определяет операции над раундами и финальными результатами.
type ResultRepository interface {
	// CreateCompetitionEvent добавляет дисциплину в программу соревнования.
	CreateCompetitionEvent(ctx context.Context, ev *CompetitionEvent) error

	// CreateRound создаёт раунд дисциплины соревнования.
	CreateRound(ctx context.Context, round *Round) error

	// GetRound возвращает раунд по ID вместе с его принадлежностью.
	GetRound(ctx context.Context, id string) (*Round, error)

	// SaveFinalScore сохраняет (upsert) финальный результат студента за раунд.
	SaveFinalScore(ctx context.Context, score *FinalScore) error

	// ListFinalScores возвращает все финальные результаты соревнования
	// одним batched-запросом (без N+1 по раундам).
	ListFinalScores(ctx context.Context, competitionID string) ([]*FinalScore, error)

	// ListUnscored возвращает финальные результаты соревнования, по которым
	// ещё нет ни одной point transaction. Используется оркестратором
	// финализации, чтобы прогнать scoring ровно один раз на результат.
	ListUnscored(ctx context.Context, competitionID string) ([]*FinalScore, error)

	// RoundContext возвращает (competitionID, eventTypeID) для раунда.
	RoundContext(ctx context.Context, roundID string) (competitionID, eventTypeID string, err error)
}

// RegistrationRepository определяет операции над регистрациями.
type RegistrationRepository interface {
	Register(ctx context.Context, reg *Registration) error

	// ListByCompetition возвращает все регистрации соревнования.
	ListByCompetition(ctx context.Context, competitionID string) ([]*Registration, error)
}
