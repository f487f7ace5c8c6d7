// Package postgres implements the PostgreSQL persistence layer for CubeScore.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPETITION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CompetitionRepository implements competition.Repository for PostgreSQL.
type CompetitionRepository struct {
	conn *Connection
}

// NewCompetitionRepository creates a new CompetitionRepository.
func NewCompetitionRepository(conn *Connection) *CompetitionRepository {
	return &CompetitionRepository{conn: conn}
}

const competitionColumns = `id, name, date, status, is_baseline, created_at, completed_at`

// Create creates a new competition in the upcoming status.
func (r *CompetitionRepository) Create(ctx context.Context, c *competition.Competition) error {
	query := `
		INSERT INTO competitions (id, name, date, status, is_baseline, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID, c.Name, c.Date, string(c.Status), c.IsBaseline, c.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create competition: %w", err)
	}
	return nil
}

// GetByID returns a competition by ID.
func (r *CompetitionRepository) GetByID(ctx context.Context, id string) (*competition.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE id = $1`

	c, err := scanCompetition(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	return c, nil
}

// GetAll returns all competitions ordered by date.
func (r *CompetitionRepository) GetAll(ctx context.Context) ([]*competition.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions ORDER BY date DESC`
	return r.queryMany(ctx, query)
}

// GetByStatus returns competitions in the given status.
func (r *CompetitionRepository) GetByStatus(ctx context.Context, status competition.Status) ([]*competition.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE status = $1 ORDER BY date DESC`
	return r.queryMany(ctx, query, string(status))
}

// Activate moves a competition from upcoming to active.
func (r *CompetitionRepository) Activate(ctx context.Context, id string) error {
	return r.transition(ctx, id, competition.StatusUpcoming, competition.StatusActive, nil)
}

// ClaimCompleting atomically moves active → completing. The WHERE clause on
// the current status makes this the single-flight guard for finalization:
// out of any number of concurrent callers exactly one update matches a row.
func (r *CompetitionRepository) ClaimCompleting(ctx context.Context, id string) error {
	return r.transition(ctx, id, competition.StatusActive, competition.StatusCompleting, nil)
}

// MarkCompleted moves completing → completed and stamps the time.
func (r *CompetitionRepository) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.transition(ctx, id, competition.StatusCompleting, competition.StatusCompleted, &now)
}

// ReleaseClaim returns completing → active after a fatal finalization
// failure so the run can be retried.
func (r *CompetitionRepository) ReleaseClaim(ctx context.Context, id string) error {
	return r.transition(ctx, id, competition.StatusCompleting, competition.StatusActive, nil)
}

// transition performs a compare-and-swap status update.
func (r *CompetitionRepository) transition(ctx context.Context, id string, from, to competition.Status, completedAt *time.Time) error {
	query := `
		UPDATE competitions
		SET status = $3, completed_at = COALESCE($4, completed_at)
		WHERE id = $1 AND status = $2
	`

	tag, err := r.conn.Exec(ctx, query, id, string(from), string(to), completedAt)
	if err != nil {
		return fmt.Errorf("failed to transition competition: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Ноль обновлённых строк: либо соревнования нет, либо статус не тот.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if to == competition.StatusCompleting && current.Status == competition.StatusCompleting {
		return shared.ErrFinalizeInProgress
	}
	if from == competition.StatusActive {
		return shared.ErrCompetitionNotActive
	}
	return shared.NewDomainError("competition", "Transition", shared.ErrStateTransition,
		fmt.Sprintf("competition %s is %s, expected %s", id, current.Status, from))
}

// SetBaseline designates a competition as the league baseline. Unset-then-set
// inside one transaction keeps the "at most one baseline" invariant through
// concurrent calls.
func (r *CompetitionRepository) SetBaseline(ctx context.Context, id string) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE competitions SET is_baseline = FALSE WHERE is_baseline`); err != nil {
			return fmt.Errorf("failed to unset baseline: %w", err)
		}

		tag, err := tx.Exec(ctx, `UPDATE competitions SET is_baseline = TRUE WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to set baseline: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrCompetitionNotFound
		}
		return nil
	})
}

// GetBaseline returns the current baseline competition.
func (r *CompetitionRepository) GetBaseline(ctx context.Context) (*competition.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE is_baseline`

	c, err := scanCompetition(r.conn.QueryRow(ctx, query))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}
	return c, nil
}

func (r *CompetitionRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*competition.Competition, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query competitions: %w", err)
	}
	defer rows.Close()

	var out []*competition.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competition row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCompetition(row pgx.Row) (*competition.Competition, error) {
	var c competition.Competition
	var status string
	if err := row.Scan(&c.ID, &c.Name, &c.Date, &status, &c.IsBaseline, &c.CreatedAt, &c.CompletedAt); err != nil {
		return nil, err
	}
	c.Status = competition.Status(status)
	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT TYPE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EventTypeRepository implements competition.EventTypeRepository for PostgreSQL.
type EventTypeRepository struct {
	conn *Connection
}

// NewEventTypeRepository creates a new EventTypeRepository.
func NewEventTypeRepository(conn *Connection) *EventTypeRepository {
	return &EventTypeRepository{conn: conn}
}

// Create creates a new event type.
func (r *EventTypeRepository) Create(ctx context.Context, et *competition.EventType) error {
	query := `
		INSERT INTO event_types (id, name, display_name, sort_order)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.conn.Exec(ctx, query, et.ID, et.Name, et.DisplayName, et.SortOrder)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create event type: %w", err)
	}
	return nil
}

// GetByID returns an event type by ID.
func (r *EventTypeRepository) GetByID(ctx context.Context, id string) (*competition.EventType, error) {
	query := `SELECT id, name, display_name, sort_order FROM event_types WHERE id = $1`

	var et competition.EventType
	err := r.conn.QueryRow(ctx, query, id).Scan(&et.ID, &et.Name, &et.DisplayName, &et.SortOrder)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEventTypeNotFound
		}
		return nil, fmt.Errorf("failed to get event type: %w", err)
	}
	return &et, nil
}

// GetAll returns all event types in display order.
func (r *EventTypeRepository) GetAll(ctx context.Context) ([]*competition.EventType, error) {
	query := `SELECT id, name, display_name, sort_order FROM event_types ORDER BY sort_order`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query event types: %w", err)
	}
	defer rows.Close()

	var out []*competition.EventType
	for rows.Next() {
		var et competition.EventType
		if err := rows.Scan(&et.ID, &et.Name, &et.DisplayName, &et.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan event type row: %w", err)
		}
		out = append(out, &et)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ResultRepository implements competition.ResultRepository for PostgreSQL.
type ResultRepository struct {
	conn *Connection
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(conn *Connection) *ResultRepository {
	return &ResultRepository{conn: conn}
}

// CreateCompetitionEvent adds an event to a competition's programme.
func (r *ResultRepository) CreateCompetitionEvent(ctx context.Context, ev *competition.CompetitionEvent) error {
	query := `
		INSERT INTO competition_events (id, competition_id, event_type_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (competition_id, event_type_id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query, ev.ID, ev.CompetitionID, ev.EventTypeID)
	if err != nil {
		return fmt.Errorf("failed to create competition event: %w", err)
	}
	return nil
}

// CreateRound creates a round of a competition event.
func (r *ResultRepository) CreateRound(ctx context.Context, round *competition.Round) error {
	query := `
		INSERT INTO rounds (id, competition_event_id, number, name)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.conn.Exec(ctx, query,
		round.ID, round.CompetitionEventID, round.Number, round.Name)
	if err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

// GetRound returns a round by ID.
func (r *ResultRepository) GetRound(ctx context.Context, id string) (*competition.Round, error) {
	query := `
		SELECT id, competition_event_id, number, name
		FROM rounds
		WHERE id = $1
	`

	var round competition.Round
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&round.ID, &round.CompetitionEventID, &round.Number, &round.Name)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return &round, nil
}

// SaveFinalScore upserts a student's final result for a round.
func (r *ResultRepository) SaveFinalScore(ctx context.Context, score *competition.FinalScore) error {
	query := `
		INSERT INTO final_scores (id, round_id, student_id, best_single_ms, best_average_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (round_id, student_id) DO UPDATE
		SET best_single_ms = EXCLUDED.best_single_ms,
		    best_average_ms = EXCLUDED.best_average_ms,
		    recorded_at = EXCLUDED.recorded_at
	`

	_, err := r.conn.Exec(ctx, query,
		score.ID, score.RoundID, score.StudentID,
		int64(score.BestSingle), int64(score.BestAverage), score.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to save final score: %w", err)
	}
	return nil
}

const finalScoreSelect = `
	SELECT fs.id, fs.round_id, fs.student_id, fs.best_single_ms, fs.best_average_ms, fs.recorded_at
	FROM final_scores fs
	JOIN rounds r ON r.id = fs.round_id
	JOIN competition_events ce ON ce.id = r.competition_event_id
	WHERE ce.competition_id = $1
`

// ListFinalScores returns all final scores of a competition in one query.
func (r *ResultRepository) ListFinalScores(ctx context.Context, competitionID string) ([]*competition.FinalScore, error) {
	rows, err := r.conn.Query(ctx, finalScoreSelect, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query final scores: %w", err)
	}
	defer rows.Close()

	return scanFinalScores(rows)
}

// ListUnscored returns the competition's final scores that have no point
// transactions yet. The finalization orchestrator uses it to run scoring
// exactly once per result.
func (r *ResultRepository) ListUnscored(ctx context.Context, competitionID string) ([]*competition.FinalScore, error) {
	query := finalScoreSelect + `
		AND NOT EXISTS (
			SELECT 1 FROM point_transactions pt
			WHERE pt.round_id = fs.round_id AND pt.student_id = fs.student_id
		)
	`

	rows, err := r.conn.Query(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unscored results: %w", err)
	}
	defer rows.Close()

	return scanFinalScores(rows)
}

// RoundContext returns the (competitionID, eventTypeID) pair for a round.
func (r *ResultRepository) RoundContext(ctx context.Context, roundID string) (string, string, error) {
	query := `
		SELECT ce.competition_id, ce.event_type_id
		FROM rounds r
		JOIN competition_events ce ON ce.id = r.competition_event_id
		WHERE r.id = $1
	`

	var competitionID, eventTypeID string
	err := r.conn.QueryRow(ctx, query, roundID).Scan(&competitionID, &eventTypeID)
	if err != nil {
		if IsNoRows(err) {
			return "", "", shared.ErrNotFound
		}
		return "", "", fmt.Errorf("failed to get round context: %w", err)
	}
	return competitionID, eventTypeID, nil
}

func scanFinalScores(rows pgx.Rows) ([]*competition.FinalScore, error) {
	var out []*competition.FinalScore
	for rows.Next() {
		var fs competition.FinalScore
		var single, average int64
		if err := rows.Scan(&fs.ID, &fs.RoundID, &fs.StudentID, &single, &average, &fs.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan final score row: %w", err)
		}
		fs.BestSingle = shared.SolveTime(single)
		fs.BestAverage = shared.SolveTime(average)
		out = append(out, &fs)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RegistrationRepository implements competition.RegistrationRepository for PostgreSQL.
type RegistrationRepository struct {
	conn *Connection
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(conn *Connection) *RegistrationRepository {
	return &RegistrationRepository{conn: conn}
}

// Register registers a student for a competition. The school affiliation is
// snapshotted at registration time so transfers mid-season do not rewrite
// past standings.
func (r *RegistrationRepository) Register(ctx context.Context, reg *competition.Registration) error {
	query := `
		INSERT INTO registrations (id, competition_id, student_id, school_id, registered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (competition_id, student_id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query,
		reg.ID, reg.CompetitionID, reg.StudentID, reg.SchoolID, reg.RegisteredAt)
	if err != nil {
		return fmt.Errorf("failed to register student: %w", err)
	}
	return nil
}

// ListByCompetition returns all registrations of a competition.
func (r *RegistrationRepository) ListByCompetition(ctx context.Context, competitionID string) ([]*competition.Registration, error) {
	query := `
		SELECT id, competition_id, student_id, school_id, registered_at
		FROM registrations
		WHERE competition_id = $1
	`

	rows, err := r.conn.Query(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	var out []*competition.Registration
	for rows.Next() {
		var reg competition.Registration
		if err := rows.Scan(&reg.ID, &reg.CompetitionID, &reg.StudentID, &reg.SchoolID, &reg.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		out = append(out, &reg)
	}
	return out, rows.Err()
}
