// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cubescore/cubescore-backend/internal/application/command"
	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/roster"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/internal/domain/standings"
	"github.com/cubescore/cubescore-backend/pkg/logger"
	"github.com/cubescore/cubescore-backend/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION FLOW SAGA
// Finalizes a competition:
// Claim Status → Score Unscored Results → Aggregate Standings →
//
//	Persist Standings → Mark Completed → Publish Events
//
// The completing claim is the single-flight guard: exactly one concurrent
// finalization wins it, so every side effect downstream of the claim runs
// at most once. A failed run releases the claim and can be retried; every
// step before the final flip is idempotent.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteCompetitionInput identifies the competition to finalize.
type CompleteCompetitionInput struct {
	CompetitionID string
}

// Validate checks if the input is valid.
func (i CompleteCompetitionInput) Validate() error {
	if i.CompetitionID == "" {
		return errors.New("completion_flow: competition ID is required")
	}
	return nil
}

// CompletionResult contains the outcome of a finalization run.
type CompletionResult struct {
	// Success indicates the competition reached the completed status.
	Success bool

	// Message is a human-readable summary for API responses.
	Message string

	// ResultsScored, SchoolsRanked, StudentsRanked are run counters.
	ResultsScored  int
	SchoolsRanked  int
	StudentsRanked int

	// SkippedResults counts results that failed scoring and were left
	// unscored. They stay visible to a retry run.
	SkippedResults int

	// TotalPoints is the sum of points awarded by this run.
	TotalPoints float64

	// CompletedAt is when the status flip landed.
	CompletedAt time.Time
}

// CompletionFlow orchestrates competition finalization.
type CompletionFlow struct {
	competitionRepo    competition.Repository
	registrationRepo   competition.RegistrationRepository
	txRepo             scoring.TransactionRepository
	studentRepo        roster.StudentRepository
	schoolRepo         roster.SchoolRepository
	schoolStandingRepo standings.SchoolStandingRepository
	studentStandRepo   standings.StudentStandingRepository
	batchScorer        *command.ScoreBatchHandler
	publisher          shared.EventPublisher
	log                *logger.Logger
	flipRetrier        *retry.Retrier
}

// NewCompletionFlow creates a new CompletionFlow saga.
func NewCompletionFlow(
	competitionRepo competition.Repository,
	registrationRepo competition.RegistrationRepository,
	txRepo scoring.TransactionRepository,
	studentRepo roster.StudentRepository,
	schoolRepo roster.SchoolRepository,
	schoolStandingRepo standings.SchoolStandingRepository,
	studentStandRepo standings.StudentStandingRepository,
	batchScorer *command.ScoreBatchHandler,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *CompletionFlow {
	return &CompletionFlow{
		competitionRepo:    competitionRepo,
		registrationRepo:   registrationRepo,
		txRepo:             txRepo,
		studentRepo:        studentRepo,
		schoolRepo:         schoolRepo,
		schoolStandingRepo: schoolStandingRepo,
		studentStandRepo:   studentStandRepo,
		batchScorer:        batchScorer,
		publisher:          publisher,
		log:                log,
		flipRetrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(200*time.Millisecond),
			retry.WithMaxDelay(2*time.Second),
		),
	}
}

// Execute runs the completion flow for one competition.
func (f *CompletionFlow) Execute(ctx context.Context, input CompleteCompetitionInput) (*CompletionResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	comp, err := f.competitionRepo.GetByID(ctx, input.CompetitionID)
	if err != nil {
		return nil, fmt.Errorf("completion_flow: competition: %w", err)
	}

	// Шаг 1: атомарный захват статуса. Проигравший конкурент получает
	// ошибку здесь и не производит ни одного побочного эффекта.
	if err := f.competitionRepo.ClaimCompleting(ctx, input.CompetitionID); err != nil {
		return nil, fmt.Errorf("completion_flow: claim: %w", err)
	}

	f.log.Info("finalization claimed",
		logger.F("competition_id", input.CompetitionID),
		logger.F("competition_name", comp.Name))

	result, err := f.run(ctx, comp)
	if err != nil {
		// Фатальный сбой: возвращаем статус, чтобы финализацию можно
		// было запустить повторно. Уже начисленные очки идемпотентно
		// переживут второй прогон.
		if relErr := f.competitionRepo.ReleaseClaim(ctx, input.CompetitionID); relErr != nil {
			f.log.Error("claim release failed, competition stuck in completing",
				logger.F("competition_id", input.CompetitionID),
				logger.Err(relErr))
		}
		return nil, err
	}

	return result, nil
}

// run executes every step downstream of the claim.
func (f *CompletionFlow) run(ctx context.Context, comp *competition.Competition) (*CompletionResult, error) {
	// Шаг 2: прогнать scoring pipeline по всем неначисленным результатам.
	batch, err := f.batchScorer.Handle(ctx, command.ScoreBatchCommand{CompetitionID: comp.ID})
	if err != nil {
		return nil, fmt.Errorf("completion_flow: scoring: %w", err)
	}
	if batch.FailedCount > 0 {
		f.log.Warn("some results failed scoring and were skipped",
			logger.F("competition_id", comp.ID),
			logger.F("failed", batch.FailedCount))
	}

	// Шаг 3: пересчитать standings из журнала транзакций.
	schoolRows, studentRows, err := f.aggregate(ctx, comp.ID)
	if err != nil {
		return nil, fmt.Errorf("completion_flow: aggregation: %w", err)
	}

	// Шаг 4: идемпотентная перезапись производных таблиц.
	if err := f.schoolStandingRepo.ReplaceForCompetition(ctx, comp.ID, schoolRows); err != nil {
		return nil, fmt.Errorf("completion_flow: persist school standings: %w", err)
	}
	if err := f.studentStandRepo.ReplaceForCompetition(ctx, comp.ID, studentRows); err != nil {
		return nil, fmt.Errorf("completion_flow: persist student standings: %w", err)
	}

	// Шаг 5: финальный флип статуса. Единственный шаг с retry: всё до него
	// уже зафиксировано, и потерять флип из-за моргнувшего соединения
	// обиднее всего.
	if err := f.flipRetrier.Do(ctx, func(ctx context.Context) error {
		return f.competitionRepo.MarkCompleted(ctx, comp.ID)
	}); err != nil {
		return nil, fmt.Errorf("completion_flow: mark completed: %w", err)
	}

	completedAt := time.Now().UTC()
	if f.publisher != nil {
		_ = f.publisher.Publish(shared.NewStandingsRecomputedEvent(comp.ID, len(schoolRows), len(studentRows)))
		_ = f.publisher.Publish(shared.NewCompetitionCompletedEvent(
			comp.ID, comp.Name, len(schoolRows), batch.ScoredCount, batch.TotalPoints))
	}

	f.log.Info("competition finalized",
		logger.F("competition_id", comp.ID),
		logger.F("results_scored", batch.ScoredCount),
		logger.F("schools_ranked", len(schoolRows)),
		logger.F("students_ranked", len(studentRows)))

	return &CompletionResult{
		Success: true,
		Message: fmt.Sprintf("Competition %q finalized: %d results scored, %d schools ranked",
			comp.Name, batch.ScoredCount, len(schoolRows)),
		ResultsScored:  batch.ScoredCount,
		SchoolsRanked:  len(schoolRows),
		StudentsRanked: len(studentRows),
		SkippedResults: batch.FailedCount,
		TotalPoints:    batch.TotalPoints,
		CompletedAt:    completedAt,
	}, nil
}

// RecomputeStandings пересчитывает standings активного соревнования без
// смены статуса. Каждый шаг идемпотентен, поэтому периодический вызов из
// планировщика безопасен и сходится к тому же состоянию, что и финализация.
func (f *CompletionFlow) RecomputeStandings(ctx context.Context, competitionID string) (*CompletionResult, error) {
	batch, err := f.batchScorer.Handle(ctx, command.ScoreBatchCommand{CompetitionID: competitionID})
	if err != nil {
		return nil, fmt.Errorf("completion_flow: scoring: %w", err)
	}

	schoolRows, studentRows, err := f.aggregate(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("completion_flow: aggregation: %w", err)
	}

	if err := f.schoolStandingRepo.ReplaceForCompetition(ctx, competitionID, schoolRows); err != nil {
		return nil, fmt.Errorf("completion_flow: persist school standings: %w", err)
	}
	if err := f.studentStandRepo.ReplaceForCompetition(ctx, competitionID, studentRows); err != nil {
		return nil, fmt.Errorf("completion_flow: persist student standings: %w", err)
	}

	if f.publisher != nil {
		_ = f.publisher.Publish(shared.NewStandingsRecomputedEvent(competitionID, len(schoolRows), len(studentRows)))
	}

	return &CompletionResult{
		Success:        true,
		Message:        fmt.Sprintf("standings recomputed: %d schools, %d students", len(schoolRows), len(studentRows)),
		ResultsScored:  batch.ScoredCount,
		SchoolsRanked:  len(schoolRows),
		StudentsRanked: len(studentRows),
		SkippedResults: batch.FailedCount,
		TotalPoints:    batch.TotalPoints,
	}, nil
}

// aggregate loads everything the standings builders need in batched reads
// and recomputes both derived tables in memory.
func (f *CompletionFlow) aggregate(
	ctx context.Context,
	competitionID string,
) ([]*standings.SchoolStanding, []*standings.StudentStanding, error) {
	txs, err := f.txRepo.ListByCompetition(ctx, competitionID)
	if err != nil {
		return nil, nil, fmt.Errorf("list transactions: %w", err)
	}
	regs, err := f.registrationRepo.ListByCompetition(ctx, competitionID)
	if err != nil {
		return nil, nil, fmt.Errorf("list registrations: %w", err)
	}

	schoolIDs := make(map[string]bool)
	studentIDs := make(map[string]bool)
	for _, reg := range regs {
		studentIDs[reg.StudentID] = true
		if reg.HasSchool() {
			schoolIDs[*reg.SchoolID] = true
		}
	}
	for _, tx := range txs {
		studentIDs[tx.StudentID] = true
		if tx.HasSchool() {
			schoolIDs[*tx.SchoolID] = true
		}
	}

	schools, err := f.schoolRepo.GetByIDs(ctx, keys(schoolIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("load schools: %w", err)
	}
	students, err := f.studentRepo.GetByIDs(ctx, keys(studentIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("load students: %w", err)
	}

	schoolMap := make(map[string]*roster.School, len(schools))
	for _, s := range schools {
		schoolMap[s.ID] = s
	}
	studentMap := make(map[string]*roster.Student, len(students))
	for _, s := range students {
		studentMap[s.ID] = s
	}

	now := time.Now().UTC()
	schoolRows := standings.BuildSchoolStandings(competitionID, regs, txs, schoolMap, now)
	studentRows := standings.BuildStudentStandings(competitionID, txs, studentMap, now)
	return schoolRows, studentRows, nil
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
