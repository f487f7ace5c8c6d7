package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/records"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET BASELINE COMMAND
// Designates a completed competition as the league baseline and freezes its
// results as the record wall: one write-once record row per (student, event).
// All later record detection measures against these frozen rows, never
// against the moving best.
// ══════════════════════════════════════════════════════════════════════════════

// SetBaselineCommand designates a competition as the league baseline.
type SetBaselineCommand struct {
	CompetitionID string
}

// SetBaselineResult reports how many record rows were frozen.
type SetBaselineResult struct {
	CompetitionID string
	RecordsFrozen int
}

// SetBaselineHandler handles the SetBaselineCommand.
type SetBaselineHandler struct {
	competitionRepo competition.Repository
	resultRepo      competition.ResultRepository
	recordRepo      records.RecordRepository
	publisher       shared.EventPublisher
	log             *logger.Logger
}

// NewSetBaselineHandler creates a new SetBaselineHandler.
func NewSetBaselineHandler(
	competitionRepo competition.Repository,
	resultRepo competition.ResultRepository,
	recordRepo records.RecordRepository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *SetBaselineHandler {
	return &SetBaselineHandler{
		competitionRepo: competitionRepo,
		resultRepo:      resultRepo,
		recordRepo:      recordRepo,
		publisher:       publisher,
		log:             log,
	}
}

// Handle designates the baseline and freezes its record rows.
func (h *SetBaselineHandler) Handle(ctx context.Context, cmd SetBaselineCommand) (*SetBaselineResult, error) {
	if cmd.CompetitionID == "" {
		return nil, errors.New("set_baseline: competition_id is required")
	}

	comp, err := h.competitionRepo.GetByID(ctx, cmd.CompetitionID)
	if err != nil {
		return nil, fmt.Errorf("set_baseline: competition: %w", err)
	}
	if comp.Status != competition.StatusCompleted {
		return nil, shared.NewDomainError("competition", "SetBaseline", shared.ErrStateTransition,
			fmt.Sprintf("competition %s is %s, only completed competitions can become baseline", comp.ID, comp.Status))
	}

	// Unset-then-set в одной транзакции внутри репозитория.
	if err := h.competitionRepo.SetBaseline(ctx, cmd.CompetitionID); err != nil {
		return nil, fmt.Errorf("set_baseline: %w", err)
	}

	frozen, err := h.freezeRecords(ctx, cmd.CompetitionID)
	if err != nil {
		return nil, err
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewBaselineDesignatedEvent(cmd.CompetitionID, comp.Name, frozen))
	}

	h.log.Info("baseline designated",
		logger.F("competition_id", cmd.CompetitionID),
		logger.F("records_frozen", frozen))

	return &SetBaselineResult{CompetitionID: cmd.CompetitionID, RecordsFrozen: frozen}, nil
}

// freezeRecords creates one baseline record row per (student, event) pair
// with at least one valid time in the competition's results. With several
// rounds per event the fastest single and fastest average are frozen, each
// picked independently.
func (h *SetBaselineHandler) freezeRecords(ctx context.Context, competitionID string) (int, error) {
	scores, err := h.resultRepo.ListFinalScores(ctx, competitionID)
	if err != nil {
		return 0, fmt.Errorf("set_baseline: list results: %w", err)
	}

	// Раунды мапятся на дисциплины один раз на раунд, не на результат.
	eventTypeByRound := make(map[string]string)
	now := time.Now().UTC()

	type pairKey struct {
		studentID   string
		eventTypeID string
	}
	best := make(map[pairKey]*records.CompetitionRecord)
	var order []pairKey

	for _, score := range scores {
		if score.IsFullDNF() {
			continue
		}

		eventTypeID, ok := eventTypeByRound[score.RoundID]
		if !ok {
			_, eventTypeID, err = h.resultRepo.RoundContext(ctx, score.RoundID)
			if err != nil {
				h.log.Warn("round context lookup failed, skipping result",
					logger.F("round_id", score.RoundID), logger.Err(err))
				continue
			}
			eventTypeByRound[score.RoundID] = eventTypeID
		}

		key := pairKey{studentID: score.StudentID, eventTypeID: eventTypeID}
		rec, ok := best[key]
		if !ok {
			rec = &records.CompetitionRecord{
				ID:            uuid.NewString(),
				StudentID:     score.StudentID,
				EventTypeID:   eventTypeID,
				CompetitionID: competitionID,
				IsBaseline:    true,
				CreatedAt:     now,
			}
			best[key] = rec
			order = append(order, key)
		}
		if score.BestSingle.IsValid() && (!rec.SingleMs.IsValid() || score.BestSingle < rec.SingleMs) {
			rec.SingleMs = score.BestSingle
		}
		if score.BestAverage.IsValid() && (!rec.AverageMs.IsValid() || score.BestAverage < rec.AverageMs) {
			rec.AverageMs = score.BestAverage
		}
	}

	frozen := 0
	for _, key := range order {
		if err := h.recordRepo.Create(ctx, best[key]); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				continue
			}
			return frozen, fmt.Errorf("set_baseline: freeze record for %s: %w", key.studentID, err)
		}
		frozen++
	}

	return frozen, nil
}
