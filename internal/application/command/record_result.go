package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD RESULT COMMAND
// Saves a student's final result for a round. Results are accepted only
// while the competition is active; anything after the completing claim is
// rejected so finalization always sees a frozen result set.
// ══════════════════════════════════════════════════════════════════════════════

// RecordResultCommand contains a submitted final result.
type RecordResultCommand struct {
	RoundID   string
	StudentID string

	// SingleMs and AverageMs in milliseconds; zero or negative means DNF.
	SingleMs  int64
	AverageMs int64
}

// Validate validates the command.
func (c RecordResultCommand) Validate() error {
	if c.RoundID == "" {
		return errors.New("record_result: round_id is required")
	}
	if c.StudentID == "" {
		return errors.New("record_result: student_id is required")
	}
	return nil
}

// RecordResultHandler handles the RecordResultCommand.
type RecordResultHandler struct {
	competitionRepo competition.Repository
	resultRepo      competition.ResultRepository
}

// NewRecordResultHandler creates a new RecordResultHandler.
func NewRecordResultHandler(competitionRepo competition.Repository, resultRepo competition.ResultRepository) *RecordResultHandler {
	return &RecordResultHandler{competitionRepo: competitionRepo, resultRepo: resultRepo}
}

// Handle saves the final score after checking the competition is active.
func (h *RecordResultHandler) Handle(ctx context.Context, cmd RecordResultCommand) (*competition.FinalScore, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	competitionID, _, err := h.resultRepo.RoundContext(ctx, cmd.RoundID)
	if err != nil {
		return nil, fmt.Errorf("record_result: round context: %w", err)
	}

	comp, err := h.competitionRepo.GetByID(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("record_result: competition: %w", err)
	}
	if comp.Status != competition.StatusActive {
		return nil, shared.NewDomainError("competition", "RecordResult", shared.ErrCompetitionNotActive,
			fmt.Sprintf("competition %s is %s, results are closed", comp.ID, comp.Status))
	}

	score := &competition.FinalScore{
		ID:          uuid.NewString(),
		RoundID:     cmd.RoundID,
		StudentID:   cmd.StudentID,
		BestSingle:  shared.SolveTime(cmd.SingleMs),
		BestAverage: shared.SolveTime(cmd.AverageMs),
		RecordedAt:  time.Now().UTC(),
	}
	if err := score.Validate(); err != nil {
		return nil, err
	}
	if err := h.resultRepo.SaveFinalScore(ctx, score); err != nil {
		return nil, fmt.Errorf("record_result: save: %w", err)
	}
	return score, nil
}
