package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORING CONFIG COMMANDS
// Admin writes to tier thresholds and grade multipliers. All validation
// happens here, at write time: the scoring pipeline trusts stored config
// and only fail-closes on gaps it cannot see coming.
// ══════════════════════════════════════════════════════════════════════════════

// ReplaceThresholdsCommand atomically replaces one event's tier table.
type ReplaceThresholdsCommand struct {
	EventTypeID string
	Thresholds  []scoring.TierThreshold
}

// ReplaceThresholdsHandler handles the ReplaceThresholdsCommand.
type ReplaceThresholdsHandler struct {
	thresholdRepo scoring.ThresholdRepository
	eventTypeRepo competition.EventTypeRepository
	log           *logger.Logger
}

// NewReplaceThresholdsHandler creates a new ReplaceThresholdsHandler.
func NewReplaceThresholdsHandler(
	thresholdRepo scoring.ThresholdRepository,
	eventTypeRepo competition.EventTypeRepository,
	log *logger.Logger,
) *ReplaceThresholdsHandler {
	return &ReplaceThresholdsHandler{
		thresholdRepo: thresholdRepo,
		eventTypeRepo: eventTypeRepo,
		log:           log,
	}
}

// Handle validates the new table and replaces the stored one.
func (h *ReplaceThresholdsHandler) Handle(ctx context.Context, cmd ReplaceThresholdsCommand) error {
	if cmd.EventTypeID == "" {
		return errors.New("replace_thresholds: event_type_id is required")
	}

	if _, err := h.eventTypeRepo.GetByID(ctx, cmd.EventTypeID); err != nil {
		return fmt.Errorf("replace_thresholds: event type: %w", err)
	}

	table := &scoring.TierTable{
		EventTypeID: cmd.EventTypeID,
		Thresholds:  cmd.Thresholds,
	}
	if err := table.Validate(); err != nil {
		return fmt.Errorf("replace_thresholds: %w", err)
	}

	if err := h.thresholdRepo.ReplaceTable(ctx, table); err != nil {
		return fmt.Errorf("replace_thresholds: %w", err)
	}

	h.log.Info("tier table replaced",
		logger.F("event_type_id", cmd.EventTypeID),
		logger.F("tiers", len(cmd.Thresholds)))
	return nil
}

// UpsertMultiplierCommand saves one grade's multiplier.
type UpsertMultiplierCommand struct {
	Grade      int
	Multiplier float64
}

// UpsertMultiplierHandler handles the UpsertMultiplierCommand.
type UpsertMultiplierHandler struct {
	multiplierRepo scoring.MultiplierRepository
	log            *logger.Logger
}

// NewUpsertMultiplierHandler creates a new UpsertMultiplierHandler.
func NewUpsertMultiplierHandler(multiplierRepo scoring.MultiplierRepository, log *logger.Logger) *UpsertMultiplierHandler {
	return &UpsertMultiplierHandler{multiplierRepo: multiplierRepo, log: log}
}

// Handle validates and upserts the multiplier.
func (h *UpsertMultiplierHandler) Handle(ctx context.Context, cmd UpsertMultiplierCommand) error {
	m := &scoring.GradeMultiplier{
		Grade:      shared.Grade(cmd.Grade),
		Multiplier: cmd.Multiplier,
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("upsert_multiplier: %w", err)
	}
	if err := h.multiplierRepo.Upsert(ctx, m); err != nil {
		return fmt.Errorf("upsert_multiplier: %w", err)
	}

	h.log.Info("grade multiplier saved",
		logger.F("grade", cmd.Grade),
		logger.F("multiplier", cmd.Multiplier))
	return nil
}
