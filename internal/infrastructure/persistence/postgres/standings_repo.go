package postgres

import (
	"context"
	"fmt"

	"github.com/cubescore/cubescore-backend/internal/domain/roster"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/internal/domain/standings"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHOOL STANDING REPOSITORY IMPLEMENTATION
// Производные таблицы: единственная запись - полный rewrite соревнования,
// поэтому повторный пересчёт идемпотентен.
// ══════════════════════════════════════════════════════════════════════════════

// SchoolStandingRepository implements standings.SchoolStandingRepository for PostgreSQL.
type SchoolStandingRepository struct {
	conn *Connection
}

// NewSchoolStandingRepository creates a new SchoolStandingRepository.
func NewSchoolStandingRepository(conn *Connection) *SchoolStandingRepository {
	return &SchoolStandingRepository{conn: conn}
}

// Name and division live on schools; standings rows store only the derived
// numbers and join the roster on read.
const schoolStandingSelect = `
	SELECT st.id, st.competition_id, st.school_id, s.name, s.division,
	       st.total_points, st.avg_points_per_student, st.total_students_participated,
	       st.overall_rank, st.division_rank, st.updated_at
	FROM school_standings st
	JOIN schools s ON s.id = st.school_id
`

// ReplaceForCompetition rewrites the competition's school standings atomically.
func (r *SchoolStandingRepository) ReplaceForCompetition(ctx context.Context, competitionID string, rows []*standings.SchoolStanding) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM school_standings WHERE competition_id = $1`, competitionID); err != nil {
			return fmt.Errorf("failed to clear school standings: %w", err)
		}

		for _, st := range rows {
			_, err := tx.Exec(ctx, `
				INSERT INTO school_standings (id, competition_id, school_id, total_points,
					avg_points_per_student, total_students_participated, overall_rank, division_rank, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, st.ID, st.CompetitionID, st.SchoolID, st.TotalPoints, st.AvgPointsPerStudent,
				st.TotalStudentsParticipated, int(st.OverallRank), int(st.DivisionRank), st.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert school standing: %w", err)
			}
		}
		return nil
	})
}

// ListByCompetition returns the competition's school standings in rank order.
func (r *SchoolStandingRepository) ListByCompetition(ctx context.Context, competitionID string) ([]*standings.SchoolStanding, error) {
	query := schoolStandingSelect + ` WHERE st.competition_id = $1 ORDER BY st.overall_rank, s.name`
	return r.queryMany(ctx, query, competitionID)
}

// ListByDivision returns the competition's standings of one division.
func (r *SchoolStandingRepository) ListByDivision(ctx context.Context, competitionID string, division string) ([]*standings.SchoolStanding, error) {
	query := schoolStandingSelect + ` WHERE st.competition_id = $1 AND s.division = $2 ORDER BY st.division_rank, s.name`
	return r.queryMany(ctx, query, competitionID, division)
}

func (r *SchoolStandingRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*standings.SchoolStanding, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query school standings: %w", err)
	}
	defer rows.Close()

	var out []*standings.SchoolStanding
	for rows.Next() {
		var st standings.SchoolStanding
		var division string
		var overallRank, divisionRank int
		if err := rows.Scan(&st.ID, &st.CompetitionID, &st.SchoolID, &st.SchoolName, &division,
			&st.TotalPoints, &st.AvgPointsPerStudent, &st.TotalStudentsParticipated,
			&overallRank, &divisionRank, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan school standing row: %w", err)
		}
		st.Division = roster.Division(division)
		st.OverallRank = shared.Rank(overallRank)
		st.DivisionRank = shared.Rank(divisionRank)
		out = append(out, &st)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT STANDING REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentStandingRepository implements standings.StudentStandingRepository for PostgreSQL.
type StudentStandingRepository struct {
	conn *Connection
}

// NewStudentStandingRepository creates a new StudentStandingRepository.
func NewStudentStandingRepository(conn *Connection) *StudentStandingRepository {
	return &StudentStandingRepository{conn: conn}
}

const studentStandingSelect = `
	SELECT st.id, st.competition_id, st.student_id, s.display_name, s.school_id,
	       st.total_points, st.rank, st.updated_at
	FROM student_standings st
	JOIN students s ON s.id = st.student_id
`

// ReplaceForCompetition rewrites the competition's student standings atomically.
func (r *StudentStandingRepository) ReplaceForCompetition(ctx context.Context, competitionID string, rows []*standings.StudentStanding) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM student_standings WHERE competition_id = $1`, competitionID); err != nil {
			return fmt.Errorf("failed to clear student standings: %w", err)
		}

		for _, st := range rows {
			_, err := tx.Exec(ctx, `
				INSERT INTO student_standings (id, competition_id, student_id, total_points, rank, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, st.ID, st.CompetitionID, st.StudentID, st.TotalPoints, int(st.Rank), st.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert student standing: %w", err)
			}
		}
		return nil
	})
}

// ListByCompetition returns the competition's student standings in rank order.
func (r *StudentStandingRepository) ListByCompetition(ctx context.Context, competitionID string) ([]*standings.StudentStanding, error) {
	query := studentStandingSelect + ` WHERE st.competition_id = $1 ORDER BY st.rank, s.display_name`

	rows, err := r.conn.Query(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query student standings: %w", err)
	}
	defer rows.Close()

	var out []*standings.StudentStanding
	for rows.Next() {
		st, err := r.scanStanding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetForStudent returns a student's row in one competition.
func (r *StudentStandingRepository) GetForStudent(ctx context.Context, competitionID, studentID string) (*standings.StudentStanding, error) {
	query := studentStandingSelect + ` WHERE st.competition_id = $1 AND st.student_id = $2`

	st, err := r.scanStanding(r.conn.QueryRow(ctx, query, competitionID, studentID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStandingNotFound
		}
		return nil, fmt.Errorf("failed to get student standing: %w", err)
	}
	return st, nil
}

func (r *StudentStandingRepository) scanStanding(row pgx.Row) (*standings.StudentStanding, error) {
	var st standings.StudentStanding
	var rank int
	err := row.Scan(&st.ID, &st.CompetitionID, &st.StudentID, &st.DisplayName, &st.SchoolID,
		&st.TotalPoints, &rank, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	st.Rank = shared.Rank(rank)
	return &st, nil
}
