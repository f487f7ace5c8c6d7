package postgres

import (
	"context"
	"fmt"

	"github.com/cubescore/cubescore-backend/internal/domain/records"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements records.RecordRepository for PostgreSQL.
type RecordRepository struct {
	conn *Connection
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(conn *Connection) *RecordRepository {
	return &RecordRepository{conn: conn}
}

const recordColumns = `id, student_id, event_type_id, competition_id, single_ms, average_ms, is_baseline, created_at`

// Create inserts a record row. A duplicate baseline for (student, event)
// hits the partial unique index and maps to shared.ErrAlreadyExists.
func (r *RecordRepository) Create(ctx context.Context, rec *records.CompetitionRecord) error {
	query := `
		INSERT INTO competition_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.conn.Exec(ctx, query, rec.ID, rec.StudentID, rec.EventTypeID, rec.CompetitionID,
		rec.SingleMs.Millis(), rec.AverageMs.Millis(), rec.IsBaseline, rec.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// GetBaseline returns the baseline record of (student, event).
func (r *RecordRepository) GetBaseline(ctx context.Context, studentID, eventTypeID string) (*records.CompetitionRecord, error) {
	query := `
		SELECT ` + recordColumns + ` FROM competition_records
		WHERE student_id = $1 AND event_type_id = $2 AND is_baseline
	`

	rec, err := r.scanRecord(r.conn.QueryRow(ctx, query, studentID, eventTypeID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNoBaselineRecord
		}
		return nil, fmt.Errorf("failed to get baseline record: %w", err)
	}
	return rec, nil
}

// ListBaselinesByStudent returns all baseline records of a student.
func (r *RecordRepository) ListBaselinesByStudent(ctx context.Context, studentID string) ([]*records.CompetitionRecord, error) {
	query := `
		SELECT ` + recordColumns + ` FROM competition_records
		WHERE student_id = $1 AND is_baseline
		ORDER BY event_type_id
	`

	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query baseline records: %w", err)
	}
	defer rows.Close()

	var out []*records.CompetitionRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecordRepository) scanRecord(row pgx.Row) (*records.CompetitionRecord, error) {
	var rec records.CompetitionRecord
	var singleMs, averageMs int64
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.EventTypeID, &rec.CompetitionID,
		&singleMs, &averageMs, &rec.IsBaseline, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.SingleMs = shared.SolveTime(singleMs)
	rec.AverageMs = shared.SolveTime(averageMs)
	return &rec, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSONAL BEST REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PersonalBestRepository implements records.PersonalBestRepository for PostgreSQL.
type PersonalBestRepository struct {
	conn *Connection
}

// NewPersonalBestRepository creates a new PersonalBestRepository.
func NewPersonalBestRepository(conn *Connection) *PersonalBestRepository {
	return &PersonalBestRepository{conn: conn}
}

const personalBestColumns = `id, student_id, event_type_id, single_ms, average_ms, updated_at`

// Get returns the PB of (student, event).
func (r *PersonalBestRepository) Get(ctx context.Context, studentID, eventTypeID string) (*records.PersonalBest, error) {
	query := `SELECT ` + personalBestColumns + ` FROM personal_bests WHERE student_id = $1 AND event_type_id = $2`

	pb, err := r.scanPersonalBest(r.conn.QueryRow(ctx, query, studentID, eventTypeID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPersonalBestMissing
		}
		return nil, fmt.Errorf("failed to get personal best: %w", err)
	}
	return pb, nil
}

// ListByStudent returns all PBs of a student.
func (r *PersonalBestRepository) ListByStudent(ctx context.Context, studentID string) ([]*records.PersonalBest, error) {
	query := `SELECT ` + personalBestColumns + ` FROM personal_bests WHERE student_id = $1 ORDER BY event_type_id`

	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query personal bests: %w", err)
	}
	defer rows.Close()

	var out []*records.PersonalBest
	for rows.Next() {
		pb, err := r.scanPersonalBest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pb)
	}
	return out, rows.Err()
}

// Upsert saves a PB atomically by (student, event).
func (r *PersonalBestRepository) Upsert(ctx context.Context, pb *records.PersonalBest) error {
	query := `
		INSERT INTO personal_bests (` + personalBestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, event_type_id) DO UPDATE SET
			single_ms = EXCLUDED.single_ms,
			average_ms = EXCLUDED.average_ms,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query, pb.ID, pb.StudentID, pb.EventTypeID,
		pb.SingleMs.Millis(), pb.AverageMs.Millis(), pb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert personal best: %w", err)
	}
	return nil
}

func (r *PersonalBestRepository) scanPersonalBest(row pgx.Row) (*records.PersonalBest, error) {
	var pb records.PersonalBest
	var singleMs, averageMs int64
	err := row.Scan(&pb.ID, &pb.StudentID, &pb.EventTypeID, &singleMs, &averageMs, &pb.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pb.SingleMs = shared.SolveTime(singleMs)
	pb.AverageMs = shared.SolveTime(averageMs)
	return &pb, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT LOG REPOSITORY IMPLEMENTATION
// Append-only: журнал никогда не обновляется и не удаляется.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementLogRepository implements records.AchievementLogRepository for PostgreSQL.
type AchievementLogRepository struct {
	conn *Connection
}

// NewAchievementLogRepository creates a new AchievementLogRepository.
func NewAchievementLogRepository(conn *Connection) *AchievementLogRepository {
	return &AchievementLogRepository{conn: conn}
}

const achievementColumns = `id, student_id, competition_id, event_type_id, achievement_type,
	achieved_time_ms, previous_best_ms, improvement_percent, achieved_at`

// Append inserts log entries in one transaction.
func (r *AchievementLogRepository) Append(ctx context.Context, entries []records.AchievementEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, e := range entries {
			_, err := tx.Exec(ctx, `
				INSERT INTO achievement_log (`+achievementColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, e.ID, e.StudentID, e.CompetitionID, e.EventTypeID, string(e.AchievementType),
				e.AchievedTimeMs.Millis(), e.PreviousBestMs.Millis(), e.ImprovementPercent, e.AchievedAt)
			if err != nil {
				return fmt.Errorf("failed to insert achievement entry: %w", err)
			}
		}
		return nil
	})
}

// ListRecent returns the newest log entries for the achievement feed.
func (r *AchievementLogRepository) ListRecent(ctx context.Context, limit int) ([]records.AchievementEntry, error) {
	query := `
		SELECT ` + achievementColumns + ` FROM achievement_log
		ORDER BY achieved_at DESC
		LIMIT $1
	`
	return r.queryEntries(ctx, query, limit)
}

// ListByCompetition returns log entries of one competition.
func (r *AchievementLogRepository) ListByCompetition(ctx context.Context, competitionID string) ([]records.AchievementEntry, error) {
	query := `
		SELECT ` + achievementColumns + ` FROM achievement_log
		WHERE competition_id = $1
		ORDER BY achieved_at DESC
	`
	return r.queryEntries(ctx, query, competitionID)
}

func (r *AchievementLogRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]records.AchievementEntry, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievement log: %w", err)
	}
	defer rows.Close()

	var out []records.AchievementEntry
	for rows.Next() {
		var e records.AchievementEntry
		var achievementType string
		var achievedMs int64
		var previousMs *int64
		if err := rows.Scan(&e.ID, &e.StudentID, &e.CompetitionID, &e.EventTypeID, &achievementType,
			&achievedMs, &previousMs, &e.ImprovementPercent, &e.AchievedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement row: %w", err)
		}
		e.AchievementType = records.AchievementType(achievementType)
		e.AchievedTimeMs = shared.SolveTime(achievedMs)
		if previousMs != nil {
			e.PreviousBestMs = shared.SolveTime(*previousMs)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
