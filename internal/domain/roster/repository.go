package roster

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository определяет операции над студентами.
type StudentRepository interface {
	// Create создаёт нового студента.
	Create(ctx context.Context, student *Student) error

	// GetByID возвращает студента по ID.
	// Возвращает shared.ErrStudentNotFound, если студент не найден.
	GetByID(ctx context.Context, id string) (*Student, error)

	// GetByIDs возвращает студентов по списку ID одним запросом.
	// Отсутствующие ID молча пропускаются.
	GetByIDs(ctx context.Context, ids []string) ([]*Student, error)

	// GetBySchool возвращает студентов указанной школы.
	GetBySchool(ctx context.Context, schoolID string) ([]*Student, error)

	// Update обновляет данные студента.
	Update(ctx context.Context, student *Student) error
}

// SchoolRepository определяет операции над школами.
type SchoolRepository interface {
	// Create создаёт новую школу.
	Create(ctx context.Context, school *School) error

	// GetByID возвращает школу по ID.
	// Возвращает shared.ErrSchoolNotFound, если школа не найдена.
	GetByID(ctx context.Context, id string) (*School, error)

	// GetByIDs возвращает школы по списку ID одним запросом.
	GetByIDs(ctx context.Context, ids []string) ([]*School, error)

	// GetAll возвращает все школы лиги.
	GetAll(ctx context.Context) ([]*School, error)
}
