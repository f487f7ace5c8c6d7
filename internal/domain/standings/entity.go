// Package standings contains the derived standings model for CubeScore:
// per-school and per-student aggregates over the point-transaction ledger,
// plus the ranking rules. Standings are materialized views with idempotent
// upsert semantics, never an independent source of truth.
package standings

import (
	"time"

	"github.com/cubescore/cubescore-backend/internal/domain/roster"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

// SchoolStanding is the derived aggregate for one school in one competition.
// Fully recomputable from point transactions and registrations.
type SchoolStanding struct {
	ID                        string
	CompetitionID             string
	SchoolID                  string
	SchoolName                string
	Division                  roster.Division
	TotalPoints               float64
	AvgPointsPerStudent       float64
	TotalStudentsParticipated int
	OverallRank               shared.Rank
	DivisionRank              shared.Rank
	UpdatedAt                 time.Time
}

// StudentStanding is the derived aggregate for one student in one competition.
// It follows the same tie policy as school standings.
type StudentStanding struct {
	ID            string
	CompetitionID string
	StudentID     string
	DisplayName   string
	SchoolID      *string
	TotalPoints   float64
	Rank          shared.Rank
	UpdatedAt     time.Time
}
