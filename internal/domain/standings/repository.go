package standings

import "context"

// SchoolStandingRepository persists derived school standings.
// ReplaceForCompetition is an idempotent full rewrite of the competition's
// rows, so repeated recomputation converges to the same state.
type SchoolStandingRepository interface {
	ReplaceForCompetition(ctx context.Context, competitionID string, standings []*SchoolStanding) error
	ListByCompetition(ctx context.Context, competitionID string) ([]*SchoolStanding, error)
	ListByDivision(ctx context.Context, competitionID string, division string) ([]*SchoolStanding, error)
}

// StudentStandingRepository persists derived student standings.
type StudentStandingRepository interface {
	ReplaceForCompetition(ctx context.Context, competitionID string, standings []*StudentStanding) error
	ListByCompetition(ctx context.Context, competitionID string) ([]*StudentStanding, error)
	GetForStudent(ctx context.Context, competitionID, studentID string) (*StudentStanding, error)
}
