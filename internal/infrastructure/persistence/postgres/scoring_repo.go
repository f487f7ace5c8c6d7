// Package postgres implements the PostgreSQL persistence layer for CubeScore.
package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// THRESHOLD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ThresholdRepository implements scoring.ThresholdRepository for PostgreSQL.
type ThresholdRepository struct {
	conn *Connection
}

// NewThresholdRepository creates a new ThresholdRepository.
func NewThresholdRepository(conn *Connection) *ThresholdRepository {
	return &ThresholdRepository{conn: conn}
}

const thresholdColumns = `id, event_type_id, tier, min_time_ms, max_time_ms, base_points, color`

// GetTable returns the tier table of one event type.
func (r *ThresholdRepository) GetTable(ctx context.Context, eventTypeID string) (*scoring.TierTable, error) {
	query := `SELECT ` + thresholdColumns + ` FROM tier_thresholds WHERE event_type_id = $1 ORDER BY min_time_ms`

	rows, err := r.conn.Query(ctx, query, eventTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()

	thresholds, err := scanThresholds(rows)
	if err != nil {
		return nil, err
	}
	if len(thresholds) == 0 {
		return nil, shared.ErrThresholdsNotFound
	}

	return &scoring.TierTable{EventTypeID: eventTypeID, Thresholds: thresholds}, nil
}

// GetAllTables returns every event's tier table in one query.
func (r *ThresholdRepository) GetAllTables(ctx context.Context) (map[string]*scoring.TierTable, error) {
	query := `SELECT ` + thresholdColumns + ` FROM tier_thresholds ORDER BY event_type_id, min_time_ms`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()

	thresholds, err := scanThresholds(rows)
	if err != nil {
		return nil, err
	}

	tables := make(map[string]*scoring.TierTable)
	for _, th := range thresholds {
		table, ok := tables[th.EventTypeID]
		if !ok {
			table = &scoring.TierTable{EventTypeID: th.EventTypeID}
			tables[th.EventTypeID] = table
		}
		table.Thresholds = append(table.Thresholds, th)
	}
	for _, table := range tables {
		sort.Slice(table.Thresholds, func(i, j int) bool {
			return table.Thresholds[i].MinTimeMs < table.Thresholds[j].MinTimeMs
		})
	}
	return tables, nil
}

// ReplaceTable atomically replaces one event's tier table.
// The table must pass Validate before the call.
func (r *ThresholdRepository) ReplaceTable(ctx context.Context, table *scoring.TierTable) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM tier_thresholds WHERE event_type_id = $1`, table.EventTypeID); err != nil {
			return fmt.Errorf("failed to clear thresholds: %w", err)
		}

		for _, th := range table.Thresholds {
			_, err := tx.Exec(ctx, `
				INSERT INTO tier_thresholds (id, event_type_id, tier, min_time_ms, max_time_ms, base_points, color)
				VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
			`, table.EventTypeID, string(th.Tier), th.MinTimeMs, th.MaxTimeMs, th.BasePoints, th.Color)
			if err != nil {
				return fmt.Errorf("failed to insert threshold: %w", err)
			}
		}
		return nil
	})
}

func scanThresholds(rows pgx.Rows) ([]scoring.TierThreshold, error) {
	var out []scoring.TierThreshold
	for rows.Next() {
		var th scoring.TierThreshold
		var tier string
		if err := rows.Scan(&th.ID, &th.EventTypeID, &tier, &th.MinTimeMs, &th.MaxTimeMs, &th.BasePoints, &th.Color); err != nil {
			return nil, fmt.Errorf("failed to scan threshold row: %w", err)
		}
		th.Tier = scoring.Tier(tier)
		out = append(out, th)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// MULTIPLIER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MultiplierRepository implements scoring.MultiplierRepository for PostgreSQL.
type MultiplierRepository struct {
	conn *Connection
}

// NewMultiplierRepository creates a new MultiplierRepository.
func NewMultiplierRepository(conn *Connection) *MultiplierRepository {
	return &MultiplierRepository{conn: conn}
}

// GetAll returns multipliers for all grades.
func (r *MultiplierRepository) GetAll(ctx context.Context) (scoring.MultiplierSet, error) {
	rows, err := r.conn.Query(ctx, `SELECT grade, multiplier FROM grade_multipliers`)
	if err != nil {
		return nil, fmt.Errorf("failed to query multipliers: %w", err)
	}
	defer rows.Close()

	set := make(scoring.MultiplierSet)
	for rows.Next() {
		var grade int
		var multiplier float64
		if err := rows.Scan(&grade, &multiplier); err != nil {
			return nil, fmt.Errorf("failed to scan multiplier row: %w", err)
		}
		set[shared.Grade(grade)] = multiplier
	}
	return set, rows.Err()
}

// Upsert saves one grade's multiplier.
// The multiplier must pass Validate before the call.
func (r *MultiplierRepository) Upsert(ctx context.Context, m *scoring.GradeMultiplier) error {
	query := `
		INSERT INTO grade_multipliers (grade, multiplier)
		VALUES ($1, $2)
		ON CONFLICT (grade) DO UPDATE SET multiplier = EXCLUDED.multiplier
	`

	_, err := r.conn.Exec(ctx, query, int(m.Grade), m.Multiplier)
	if err != nil {
		return fmt.Errorf("failed to upsert multiplier: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION REPOSITORY IMPLEMENTATION
// Append-only: контракт не содержит обновлений и удалений.
// ══════════════════════════════════════════════════════════════════════════════

// TransactionRepository implements scoring.TransactionRepository for PostgreSQL.
type TransactionRepository struct {
	conn *Connection
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(conn *Connection) *TransactionRepository {
	return &TransactionRepository{conn: conn}
}

const transactionColumns = `id, student_id, school_id, competition_id, round_id, point_type, final_points, created_at`

// InsertBatch inserts all ledger rows of one scoring event in one transaction.
func (r *TransactionRepository) InsertBatch(ctx context.Context, txs []*scoring.PointTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, pt := range txs {
			_, err := tx.Exec(ctx, `
				INSERT INTO point_transactions (`+transactionColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, pt.ID, pt.StudentID, pt.SchoolID, pt.CompetitionID, pt.RoundID,
				string(pt.PointType), pt.FinalPoints, pt.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert point transaction: %w", err)
			}
		}
		return nil
	})
}

// ListByCompetition returns all transactions of a competition in one query.
func (r *TransactionRepository) ListByCompetition(ctx context.Context, competitionID string) ([]*scoring.PointTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM point_transactions WHERE competition_id = $1`
	return r.queryMany(ctx, query, competitionID)
}

// ListByStudent returns all transactions of a student.
func (r *TransactionRepository) ListByStudent(ctx context.Context, studentID string) ([]*scoring.PointTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM point_transactions WHERE student_id = $1 ORDER BY created_at`
	return r.queryMany(ctx, query, studentID)
}

// HasForResult reports whether points were already awarded for (round, student).
func (r *TransactionRepository) HasForResult(ctx context.Context, roundID, studentID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM point_transactions WHERE round_id = $1 AND student_id = $2)`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, roundID, studentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check transactions: %w", err)
	}
	return exists, nil
}

func (r *TransactionRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*scoring.PointTransaction, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query point transactions: %w", err)
	}
	defer rows.Close()

	var out []*scoring.PointTransaction
	for rows.Next() {
		var pt scoring.PointTransaction
		var pointType string
		if err := rows.Scan(&pt.ID, &pt.StudentID, &pt.SchoolID, &pt.CompetitionID,
			&pt.RoundID, &pointType, &pt.FinalPoints, &pt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		pt.PointType = scoring.PointType(pointType)
		out = append(out, &pt)
	}
	return out, rows.Err()
}
