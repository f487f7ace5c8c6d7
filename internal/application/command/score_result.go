// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/records"
	"github.com/cubescore/cubescore-backend/internal/domain/roster"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE RESULT COMMAND
// Runs one final score through the full scoring pipeline:
// classify both times → apply grade multiplier → detect records and PBs →
// write point transactions → update PB → append achievement log → publish.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreResultCommand contains the final score to run through the pipeline.
type ScoreResultCommand struct {
	// Score is the submitted final result (round, student, both times).
	Score *competition.FinalScore

	// Clutch, Streak, SchoolMomentum are externally determined bonus
	// conditions. The PB bonus is derived inside the pipeline.
	Clutch         bool
	Streak         bool
	SchoolMomentum bool
}

// Validate validates the command.
func (c ScoreResultCommand) Validate() error {
	if c.Score == nil {
		return errors.New("score_result: final score is required")
	}
	return c.Score.Validate()
}

// ScoreResultResult contains the outcome of scoring one final score.
type ScoreResultResult struct {
	// Skipped is true when the result already had point transactions
	// and the pipeline did nothing.
	Skipped bool

	// Breakdown is the computed point breakdown.
	Breakdown scoring.ScoreBreakdown

	// Detection is the record/PB detection outcome.
	Detection records.Detection

	// Transactions are the ledger rows that were inserted.
	Transactions []*scoring.PointTransaction

	// Achievements are the log entries that were appended.
	Achievements []records.AchievementEntry
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ScoreResultHandler handles the ScoreResultCommand.
type ScoreResultHandler struct {
	resultRepo      competition.ResultRepository
	studentRepo     roster.StudentRepository
	thresholdRepo   scoring.ThresholdRepository
	multiplierRepo  scoring.MultiplierRepository
	txRepo          scoring.TransactionRepository
	recordRepo      records.RecordRepository
	pbRepo          records.PersonalBestRepository
	achievementRepo records.AchievementLogRepository
	publisher       shared.EventPublisher
	log             *logger.Logger

	bonuses scoring.BonusValues
}

// NewScoreResultHandler creates a new ScoreResultHandler.
func NewScoreResultHandler(
	resultRepo competition.ResultRepository,
	studentRepo roster.StudentRepository,
	thresholdRepo scoring.ThresholdRepository,
	multiplierRepo scoring.MultiplierRepository,
	txRepo scoring.TransactionRepository,
	recordRepo records.RecordRepository,
	pbRepo records.PersonalBestRepository,
	achievementRepo records.AchievementLogRepository,
	publisher shared.EventPublisher,
	log *logger.Logger,
	bonuses scoring.BonusValues,
) *ScoreResultHandler {
	return &ScoreResultHandler{
		resultRepo:      resultRepo,
		studentRepo:     studentRepo,
		thresholdRepo:   thresholdRepo,
		multiplierRepo:  multiplierRepo,
		txRepo:          txRepo,
		recordRepo:      recordRepo,
		pbRepo:          pbRepo,
		achievementRepo: achievementRepo,
		publisher:       publisher,
		log:             log,
		bonuses:         bonuses,
	}
}

// Handle executes the scoring pipeline for one final score.
func (h *ScoreResultHandler) Handle(ctx context.Context, cmd ScoreResultCommand) (*ScoreResultResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("score_result: %w", err)
	}

	competitionID, eventTypeID, err := h.resultRepo.RoundContext(ctx, cmd.Score.RoundID)
	if err != nil {
		return nil, fmt.Errorf("score_result: round context: %w", err)
	}

	table, err := h.thresholdRepo.GetTable(ctx, eventTypeID)
	if err != nil {
		return nil, fmt.Errorf("score_result: tier table: %w", err)
	}

	multipliers, err := h.multiplierRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("score_result: multipliers: %w", err)
	}

	return h.score(ctx, cmd, competitionID, eventTypeID, table, multipliers)
}

// score runs the pipeline with configuration already in hand. The batch
// handler calls it directly so a full competition is scored off two
// configuration reads instead of two per result.
func (h *ScoreResultHandler) score(
	ctx context.Context,
	cmd ScoreResultCommand,
	competitionID, eventTypeID string,
	table *scoring.TierTable,
	multipliers scoring.MultiplierSet,
) (*ScoreResultResult, error) {
	score := cmd.Score

	// Idempotence guard: a result is scored at most once.
	scored, err := h.txRepo.HasForResult(ctx, score.RoundID, score.StudentID)
	if err != nil {
		return nil, fmt.Errorf("score_result: idempotence check: %w", err)
	}
	if scored {
		return &ScoreResultResult{Skipped: true}, nil
	}

	student, err := h.studentRepo.GetByID(ctx, score.StudentID)
	if err != nil {
		return nil, fmt.Errorf("score_result: student %s: %w", score.StudentID, err)
	}

	detection := h.detect(ctx, score, eventTypeID)

	flags := scoring.BonusFlags{
		PB:             detection.IsPB(),
		Clutch:         cmd.Clutch,
		Streak:         cmd.Streak,
		SchoolMomentum: cmd.SchoolMomentum,
	}
	breakdown := scoring.ComputeScore(
		table.Classify(score.BestSingle),
		table.Classify(score.BestAverage),
		multipliers.Lookup(student.Grade),
		flags,
		h.bonuses,
	)

	result := &ScoreResultResult{Breakdown: breakdown, Detection: detection}

	now := time.Now().UTC()
	for _, award := range breakdown.Awards {
		result.Transactions = append(result.Transactions, &scoring.PointTransaction{
			ID:            uuid.NewString(),
			StudentID:     score.StudentID,
			SchoolID:      student.SchoolID,
			CompetitionID: competitionID,
			RoundID:       score.RoundID,
			PointType:     award.Type,
			FinalPoints:   award.Points,
			CreatedAt:     now,
		})
	}
	if len(result.Transactions) > 0 {
		if err := h.txRepo.InsertBatch(ctx, result.Transactions); err != nil {
			return nil, fmt.Errorf("score_result: insert transactions: %w", err)
		}
	}

	if err := h.updatePersonalBest(ctx, score, eventTypeID, now); err != nil {
		// Поток не прерываем: очки уже начислены, PB догонит следующий прогон.
		h.log.Warn("personal best update failed",
			logger.F("student_id", score.StudentID),
			logger.F("event_type_id", eventTypeID),
			logger.Err(err))
	}

	result.Achievements = detection.Achievements(
		score.StudentID, competitionID, eventTypeID, score.BestSingle, score.BestAverage)
	for i := range result.Achievements {
		result.Achievements[i].ID = uuid.NewString()
		result.Achievements[i].AchievedAt = now
	}
	if len(result.Achievements) > 0 {
		if err := h.achievementRepo.Append(ctx, result.Achievements); err != nil {
			return nil, fmt.Errorf("score_result: append achievements: %w", err)
		}
	}

	h.publishEvents(score, student, competitionID, eventTypeID, detection, breakdown)

	return result, nil
}

// detect loads the frozen baseline and the student's PB and runs detection.
// Transient read failures degrade to the conservative "no record, no PB"
// answer so one flaky read does not sink a whole finalization.
func (h *ScoreResultHandler) detect(ctx context.Context, score *competition.FinalScore, eventTypeID string) records.Detection {
	baseline, err := h.recordRepo.GetBaseline(ctx, score.StudentID, eventTypeID)
	if err != nil && !errors.Is(err, shared.ErrNoBaselineRecord) && !shared.IsNotFound(err) {
		h.log.Warn("baseline read failed, treating as no record",
			logger.F("student_id", score.StudentID), logger.Err(err))
		baseline = nil
	}

	pb, err := h.pbRepo.Get(ctx, score.StudentID, eventTypeID)
	if err != nil && !errors.Is(err, shared.ErrPersonalBestMissing) && !shared.IsNotFound(err) {
		h.log.Warn("personal best read failed, treating as no improvement",
			logger.F("student_id", score.StudentID), logger.Err(err))
		// Фиктивный непобиваемый PB: детекция даст false по всем полям.
		pb = &records.PersonalBest{
			StudentID:   score.StudentID,
			EventTypeID: eventTypeID,
			SingleMs:    1,
			AverageMs:   1,
		}
	}

	return records.Detect(baseline, pb, score.BestSingle, score.BestAverage)
}

// updatePersonalBest upserts the student's PB with the new times.
func (h *ScoreResultHandler) updatePersonalBest(ctx context.Context, score *competition.FinalScore, eventTypeID string, now time.Time) error {
	pb, err := h.pbRepo.Get(ctx, score.StudentID, eventTypeID)
	if err != nil {
		if !errors.Is(err, shared.ErrPersonalBestMissing) && !shared.IsNotFound(err) {
			return err
		}
		pb = &records.PersonalBest{
			ID:          uuid.NewString(),
			StudentID:   score.StudentID,
			EventTypeID: eventTypeID,
		}
	}

	if !pb.ImproveWith(score.BestSingle, score.BestAverage, now) {
		// Ничего не стало быстрее; полный DNF сюда же - PB-строка не создаётся.
		return nil
	}
	return h.pbRepo.Upsert(ctx, pb)
}

func (h *ScoreResultHandler) publishEvents(
	score *competition.FinalScore,
	student *roster.Student,
	competitionID, eventTypeID string,
	detection records.Detection,
	breakdown scoring.ScoreBreakdown,
) {
	if h.publisher == nil {
		return
	}

	schoolID := ""
	if student.HasSchool() {
		schoolID = *student.SchoolID
	}
	_ = h.publisher.Publish(shared.NewResultScoredEvent(
		score.StudentID, schoolID, competitionID, score.RoundID, eventTypeID,
		string(breakdown.SingleTier.Tier), breakdown.Total()))

	if detection.IsRecordSingle {
		_ = h.publisher.Publish(shared.NewRecordBrokenEvent(
			score.StudentID, competitionID, eventTypeID, "single",
			score.BestSingle.Millis(), detection.BaselineSingle.Millis()))
	}
	if detection.IsRecordAverage {
		_ = h.publisher.Publish(shared.NewRecordBrokenEvent(
			score.StudentID, competitionID, eventTypeID, "average",
			score.BestAverage.Millis(), detection.BaselineAverage.Millis()))
	}
	if detection.IsPBSingle {
		_ = h.publisher.Publish(shared.NewPBAchievedEvent(
			score.StudentID, competitionID, eventTypeID, "single",
			score.BestSingle.Millis(), detection.PreviousPBSingle.Millis(), detection.FirstAttempt))
	}
	if detection.IsPBAverage {
		_ = h.publisher.Publish(shared.NewPBAchievedEvent(
			score.StudentID, competitionID, eventTypeID, "average",
			score.BestAverage.Millis(), detection.PreviousPBAverage.Millis(), detection.FirstAttempt))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH SCORING
// Scores every unscored result of a competition off a single configuration
// read. Used by the completion flow.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreBatchCommand contains the competition whose results to score.
type ScoreBatchCommand struct {
	CompetitionID string
}

// ScoreBatchResult contains counts for a batch scoring run.
type ScoreBatchResult struct {
	TotalCount   int
	ScoredCount  int
	SkippedCount int
	FailedCount  int
	TotalPoints  float64
	Errors       map[string]error
}

// ScoreBatchHandler scores all unscored results of a competition.
type ScoreBatchHandler struct {
	handler    *ScoreResultHandler
	resultRepo competition.ResultRepository
	log        *logger.Logger
}

// NewScoreBatchHandler creates a new batch handler.
func NewScoreBatchHandler(handler *ScoreResultHandler, resultRepo competition.ResultRepository, log *logger.Logger) *ScoreBatchHandler {
	return &ScoreBatchHandler{handler: handler, resultRepo: resultRepo, log: log}
}

// Handle scores every unscored final score of the competition. One bad
// result is logged and skipped; it never aborts the rest of the batch.
func (h *ScoreBatchHandler) Handle(ctx context.Context, cmd ScoreBatchCommand) (*ScoreBatchResult, error) {
	if cmd.CompetitionID == "" {
		return nil, errors.New("score_batch: competition_id is required")
	}

	scores, err := h.resultRepo.ListUnscored(ctx, cmd.CompetitionID)
	if err != nil {
		return nil, fmt.Errorf("score_batch: list unscored: %w", err)
	}

	tables, err := h.handler.thresholdRepo.GetAllTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("score_batch: tier tables: %w", err)
	}
	multipliers, err := h.handler.multiplierRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("score_batch: multipliers: %w", err)
	}

	result := &ScoreBatchResult{
		TotalCount: len(scores),
		Errors:     make(map[string]error),
	}

	for _, score := range scores {
		_, eventTypeID, err := h.resultRepo.RoundContext(ctx, score.RoundID)
		if err != nil {
			result.FailedCount++
			result.Errors[score.ID] = err
			h.log.Warn("round context lookup failed, skipping result",
				logger.F("final_score_id", score.ID), logger.Err(err))
			continue
		}

		table, ok := tables[eventTypeID]
		if !ok {
			result.FailedCount++
			result.Errors[score.ID] = shared.ErrThresholdsNotFound
			h.log.Warn("no tier table for event type, skipping result",
				logger.F("event_type_id", eventTypeID),
				logger.F("final_score_id", score.ID))
			continue
		}

		one, err := h.handler.score(ctx, ScoreResultCommand{Score: score},
			cmd.CompetitionID, eventTypeID, table, multipliers)
		if err != nil {
			result.FailedCount++
			result.Errors[score.ID] = err
			h.log.Warn("scoring failed, skipping result",
				logger.F("final_score_id", score.ID),
				logger.F("student_id", score.StudentID),
				logger.Err(err))
			continue
		}

		if one.Skipped {
			result.SkippedCount++
			continue
		}
		result.ScoredCount++
		result.TotalPoints += one.Breakdown.Total()
	}

	return result, nil
}
