package command

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/records"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Фейки только под назначение baseline.
// ──────────────────────────────────────────────────────────────────────────────

type baselineCompetitionRepo struct {
	comps map[string]*competition.Competition
}

func (r *baselineCompetitionRepo) Create(_ context.Context, c *competition.Competition) error {
	r.comps[c.ID] = c
	return nil
}

func (r *baselineCompetitionRepo) GetByID(_ context.Context, id string) (*competition.Competition, error) {
	c, ok := r.comps[id]
	if !ok {
		return nil, shared.ErrCompetitionNotFound
	}
	return c, nil
}

func (r *baselineCompetitionRepo) GetAll(context.Context) ([]*competition.Competition, error) {
	return nil, nil
}

func (r *baselineCompetitionRepo) GetByStatus(context.Context, competition.Status) ([]*competition.Competition, error) {
	return nil, nil
}

func (r *baselineCompetitionRepo) Activate(context.Context, string) error        { return nil }
func (r *baselineCompetitionRepo) ClaimCompleting(context.Context, string) error { return nil }
func (r *baselineCompetitionRepo) MarkCompleted(context.Context, string) error   { return nil }
func (r *baselineCompetitionRepo) ReleaseClaim(context.Context, string) error    { return nil }

func (r *baselineCompetitionRepo) SetBaseline(_ context.Context, id string) error {
	if _, ok := r.comps[id]; !ok {
		return shared.ErrCompetitionNotFound
	}
	// Unset-then-set: в любой момент baseline не больше одного.
	for _, c := range r.comps {
		c.IsBaseline = c.ID == id
	}
	return nil
}

func (r *baselineCompetitionRepo) GetBaseline(context.Context) (*competition.Competition, error) {
	for _, c := range r.comps {
		if c.IsBaseline {
			return c, nil
		}
	}
	return nil, shared.ErrCompetitionNotFound
}

type baselineResultRepo struct {
	rounds map[string][2]string // roundID -> (competitionID, eventTypeID)
	scores []*competition.FinalScore
}

func (r *baselineResultRepo) CreateCompetitionEvent(context.Context, *competition.CompetitionEvent) error {
	return nil
}

func (r *baselineResultRepo) CreateRound(context.Context, *competition.Round) error { return nil }

func (r *baselineResultRepo) GetRound(context.Context, string) (*competition.Round, error) {
	return nil, shared.ErrNotFound
}

func (r *baselineResultRepo) SaveFinalScore(_ context.Context, s *competition.FinalScore) error {
	r.scores = append(r.scores, s)
	return nil
}

func (r *baselineResultRepo) ListFinalScores(_ context.Context, competitionID string) ([]*competition.FinalScore, error) {
	var out []*competition.FinalScore
	for _, s := range r.scores {
		if ctx, ok := r.rounds[s.RoundID]; ok && ctx[0] == competitionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *baselineResultRepo) ListUnscored(ctx context.Context, competitionID string) ([]*competition.FinalScore, error) {
	return r.ListFinalScores(ctx, competitionID)
}

func (r *baselineResultRepo) RoundContext(_ context.Context, roundID string) (string, string, error) {
	ctx, ok := r.rounds[roundID]
	if !ok {
		return "", "", shared.ErrNotFound
	}
	return ctx[0], ctx[1], nil
}

type baselineRecordRepo struct {
	recs []*records.CompetitionRecord
}

func (r *baselineRecordRepo) Create(_ context.Context, rec *records.CompetitionRecord) error {
	// Та же уникальность, что и частичный индекс в БД:
	// (student, event) WHERE is_baseline.
	for _, existing := range r.recs {
		if existing.StudentID == rec.StudentID && existing.EventTypeID == rec.EventTypeID &&
			existing.IsBaseline && rec.IsBaseline {
			return shared.ErrAlreadyExists
		}
	}
	r.recs = append(r.recs, rec)
	return nil
}

func (r *baselineRecordRepo) GetBaseline(_ context.Context, studentID, eventTypeID string) (*records.CompetitionRecord, error) {
	for _, rec := range r.recs {
		if rec.StudentID == studentID && rec.EventTypeID == eventTypeID && rec.IsBaseline {
			return rec, nil
		}
	}
	return nil, shared.ErrNoBaselineRecord
}

func (r *baselineRecordRepo) ListBaselinesByStudent(_ context.Context, studentID string) ([]*records.CompetitionRecord, error) {
	var out []*records.CompetitionRecord
	for _, rec := range r.recs {
		if rec.StudentID == studentID && rec.IsBaseline {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────

func newBaselineFixture() (*SetBaselineHandler, *baselineCompetitionRepo, *baselineResultRepo, *baselineRecordRepo) {
	compRepo := &baselineCompetitionRepo{comps: map[string]*competition.Competition{
		"comp-1": {ID: "comp-1", Name: "Autumn Cup", Status: competition.StatusCompleted},
		"comp-2": {ID: "comp-2", Name: "Winter Cup", Status: competition.StatusCompleted},
		"comp-3": {ID: "comp-3", Name: "Live Cup", Status: competition.StatusActive},
	}}
	resultRepo := &baselineResultRepo{
		rounds: map[string][2]string{
			"round-1": {"comp-1", "3x3"},
			"round-2": {"comp-2", "3x3"},
		},
		scores: []*competition.FinalScore{
			{ID: "fs-1", RoundID: "round-1", StudentID: "stu-1", BestSingle: 9800, BestAverage: 11200},
			{ID: "fs-2", RoundID: "round-1", StudentID: "stu-2", BestSingle: shared.DNF, BestAverage: shared.DNF},
			{ID: "fs-3", RoundID: "round-2", StudentID: "stu-1", BestSingle: 9100, BestAverage: 10800},
		},
	}
	recordRepo := &baselineRecordRepo{}
	log := logger.New(io.Discard, logger.LevelError)
	handler := NewSetBaselineHandler(compRepo, resultRepo, recordRepo, nil, log)
	return handler, compRepo, resultRepo, recordRepo
}

func TestSetBaselineFreezesValidResults(t *testing.T) {
	handler, compRepo, _, recordRepo := newBaselineFixture()

	result, err := handler.Handle(context.Background(), SetBaselineCommand{CompetitionID: "comp-1"})
	require.NoError(t, err)

	// Полный DNF stu-2 не замораживается.
	assert.Equal(t, 1, result.RecordsFrozen)
	require.Len(t, recordRepo.recs, 1)
	rec := recordRepo.recs[0]
	assert.Equal(t, "stu-1", rec.StudentID)
	assert.Equal(t, "3x3", rec.EventTypeID)
	assert.True(t, rec.IsBaseline)
	assert.Equal(t, int64(9800), rec.SingleMs.Millis())

	assert.True(t, compRepo.comps["comp-1"].IsBaseline)
}

func TestSetBaselineFreezesFastestAcrossRounds(t *testing.T) {
	handler, _, resultRepo, recordRepo := newBaselineFixture()
	resultRepo.rounds["round-1b"] = [2]string{"comp-1", "3x3"}
	resultRepo.scores = append(resultRepo.scores,
		&competition.FinalScore{ID: "fs-1b", RoundID: "round-1b", StudentID: "stu-1", BestSingle: 9000, BestAverage: 12500},
		&competition.FinalScore{ID: "fs-4", RoundID: "round-1b", StudentID: "stu-2", BestSingle: 14000, BestAverage: shared.DNF},
	)

	result, err := handler.Handle(context.Background(), SetBaselineCommand{CompetitionID: "comp-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsFrozen)

	byStudent := make(map[string]*records.CompetitionRecord)
	for _, rec := range recordRepo.recs {
		byStudent[rec.StudentID] = rec
	}

	// stu-1: лучший single из второго раунда, лучший average из первого -
	// поля сводятся независимо.
	require.Contains(t, byStudent, "stu-1")
	assert.Equal(t, int64(9000), byStudent["stu-1"].SingleMs.Millis())
	assert.Equal(t, int64(11200), byStudent["stu-1"].AverageMs.Millis())

	// stu-2: появился валидный single во втором раунде, average так и DNF.
	require.Contains(t, byStudent, "stu-2")
	assert.Equal(t, int64(14000), byStudent["stu-2"].SingleMs.Millis())
	assert.True(t, byStudent["stu-2"].AverageMs.IsDNF())
}

func TestSetBaselineSwitchesCompetition(t *testing.T) {
	handler, compRepo, _, recordRepo := newBaselineFixture()

	_, err := handler.Handle(context.Background(), SetBaselineCommand{CompetitionID: "comp-1"})
	require.NoError(t, err)
	result, err := handler.Handle(context.Background(), SetBaselineCommand{CompetitionID: "comp-2"})
	require.NoError(t, err)

	// Unset-then-set: предыдущий baseline снят, новый установлен.
	assert.False(t, compRepo.comps["comp-1"].IsBaseline)
	assert.True(t, compRepo.comps["comp-2"].IsBaseline)

	baseline, err := compRepo.GetBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "comp-2", baseline.ID)

	// Рекордная стена write-once: замороженная строка пары (student, event)
	// остаётся от первой заморозки, повторная пропускается.
	assert.Equal(t, 0, result.RecordsFrozen)
	require.Len(t, recordRepo.recs, 1)
	assert.Equal(t, "comp-1", recordRepo.recs[0].CompetitionID)
}

func TestSetBaselineRejectsNonCompleted(t *testing.T) {
	handler, compRepo, _, recordRepo := newBaselineFixture()

	_, err := handler.Handle(context.Background(), SetBaselineCommand{CompetitionID: "comp-3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
	assert.False(t, compRepo.comps["comp-3"].IsBaseline)
	assert.Empty(t, recordRepo.recs)
}

func TestSetBaselineUnknownCompetition(t *testing.T) {
	handler, _, _, _ := newBaselineFixture()

	_, err := handler.Handle(context.Background(), SetBaselineCommand{CompetitionID: "missing"})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestSetBaselineIdempotentFreeze(t *testing.T) {
	handler, _, _, recordRepo := newBaselineFixture()

	_, err := handler.Handle(context.Background(), SetBaselineCommand{CompetitionID: "comp-1"})
	require.NoError(t, err)

	// Повторное назначение той же базы не плодит дублей.
	result, err := handler.Handle(context.Background(), SetBaselineCommand{CompetitionID: "comp-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RecordsFrozen)
	assert.Len(t, recordRepo.recs, 1)
}
