// Package postgres implements the PostgreSQL persistence layer for CubeScore.
package postgres

import (
	"context"
	"fmt"

	"github.com/cubescore/cubescore-backend/internal/domain/roster"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements roster.StudentRepository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// Create creates a new student.
func (r *StudentRepository) Create(ctx context.Context, s *roster.Student) error {
	query := `
		INSERT INTO students (id, display_name, grade, school_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID, s.DisplayName, int(s.Grade), s.SchoolID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

// GetByID returns a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*roster.Student, error) {
	query := `
		SELECT id, display_name, grade, school_id, created_at, updated_at
		FROM students
		WHERE id = $1
	`

	s, err := scanStudent(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

// GetByIDs returns students for the given IDs in one query.
// Missing IDs are silently skipped.
func (r *StudentRepository) GetByIDs(ctx context.Context, ids []string) ([]*roster.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, display_name, grade, school_id, created_at, updated_at
		FROM students
		WHERE id = ANY($1)
	`

	rows, err := r.conn.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// GetBySchool returns all students of a school.
func (r *StudentRepository) GetBySchool(ctx context.Context, schoolID string) ([]*roster.Student, error) {
	query := `
		SELECT id, display_name, grade, school_id, created_at, updated_at
		FROM students
		WHERE school_id = $1
		ORDER BY display_name
	`

	rows, err := r.conn.Query(ctx, query, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// Update updates a student.
func (r *StudentRepository) Update(ctx context.Context, s *roster.Student) error {
	query := `
		UPDATE students
		SET display_name = $2, grade = $3, school_id = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query,
		s.ID, s.DisplayName, int(s.Grade), s.SchoolID, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

func scanStudent(row pgx.Row) (*roster.Student, error) {
	var s roster.Student
	var grade int
	if err := row.Scan(&s.ID, &s.DisplayName, &grade, &s.SchoolID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Grade = shared.Grade(grade)
	return &s, nil
}

func scanStudents(rows pgx.Rows) ([]*roster.Student, error) {
	var out []*roster.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHOOL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SchoolRepository implements roster.SchoolRepository for PostgreSQL.
type SchoolRepository struct {
	conn *Connection
}

// NewSchoolRepository creates a new SchoolRepository.
func NewSchoolRepository(conn *Connection) *SchoolRepository {
	return &SchoolRepository{conn: conn}
}

// Create creates a new school.
func (r *SchoolRepository) Create(ctx context.Context, s *roster.School) error {
	query := `
		INSERT INTO schools (id, name, division, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.conn.Exec(ctx, query, s.ID, s.Name, string(s.Division), s.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create school: %w", err)
	}
	return nil
}

// GetByID returns a school by ID.
func (r *SchoolRepository) GetByID(ctx context.Context, id string) (*roster.School, error) {
	query := `SELECT id, name, division, created_at FROM schools WHERE id = $1`

	s, err := scanSchool(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSchoolNotFound
		}
		return nil, fmt.Errorf("failed to get school: %w", err)
	}
	return s, nil
}

// GetByIDs returns schools for the given IDs in one query.
func (r *SchoolRepository) GetByIDs(ctx context.Context, ids []string) ([]*roster.School, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, name, division, created_at FROM schools WHERE id = ANY($1)`

	rows, err := r.conn.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query schools: %w", err)
	}
	defer rows.Close()

	return scanSchools(rows)
}

// GetAll returns every school in the league.
func (r *SchoolRepository) GetAll(ctx context.Context) ([]*roster.School, error) {
	query := `SELECT id, name, division, created_at FROM schools ORDER BY name`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schools: %w", err)
	}
	defer rows.Close()

	return scanSchools(rows)
}

func scanSchool(row pgx.Row) (*roster.School, error) {
	var s roster.School
	var division string
	if err := row.Scan(&s.ID, &s.Name, &division, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Division = roster.Division(division)
	return &s, nil
}

func scanSchools(rows pgx.Rows) ([]*roster.School, error) {
	var out []*roster.School
	for rows.Next() {
		s, err := scanSchool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan school row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
