package saga

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubescore/cubescore-backend/internal/application/command"
	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/records"
	"github.com/cubescore/cubescore-backend/internal/domain/roster"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/internal/domain/standings"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// In-memory фейки. Ровно столько поведения, сколько нужно флоу.
// ──────────────────────────────────────────────────────────────────────────────

type fakeCompetitionRepo struct {
	comps map[string]*competition.Competition
}

func (r *fakeCompetitionRepo) Create(_ context.Context, c *competition.Competition) error {
	r.comps[c.ID] = c
	return nil
}

func (r *fakeCompetitionRepo) GetByID(_ context.Context, id string) (*competition.Competition, error) {
	c, ok := r.comps[id]
	if !ok {
		return nil, shared.ErrCompetitionNotFound
	}
	return c, nil
}

func (r *fakeCompetitionRepo) GetAll(context.Context) ([]*competition.Competition, error) {
	return nil, nil
}

func (r *fakeCompetitionRepo) GetByStatus(context.Context, competition.Status) ([]*competition.Competition, error) {
	return nil, nil
}

func (r *fakeCompetitionRepo) Activate(_ context.Context, id string) error {
	r.comps[id].Status = competition.StatusActive
	return nil
}

func (r *fakeCompetitionRepo) ClaimCompleting(_ context.Context, id string) error {
	c, ok := r.comps[id]
	if !ok {
		return shared.ErrCompetitionNotFound
	}
	switch c.Status {
	case competition.StatusActive:
		c.Status = competition.StatusCompleting
		return nil
	case competition.StatusCompleting:
		return shared.ErrFinalizeInProgress
	default:
		return shared.ErrCompetitionNotActive
	}
}

func (r *fakeCompetitionRepo) MarkCompleted(_ context.Context, id string) error {
	r.comps[id].Status = competition.StatusCompleted
	return nil
}

func (r *fakeCompetitionRepo) ReleaseClaim(_ context.Context, id string) error {
	r.comps[id].Status = competition.StatusActive
	return nil
}

func (r *fakeCompetitionRepo) SetBaseline(_ context.Context, id string) error {
	for _, c := range r.comps {
		c.IsBaseline = c.ID == id
	}
	return nil
}

func (r *fakeCompetitionRepo) GetBaseline(context.Context) (*competition.Competition, error) {
	for _, c := range r.comps {
		if c.IsBaseline {
			return c, nil
		}
	}
	return nil, shared.ErrCompetitionNotFound
}

type fakeResultRepo struct {
	rounds map[string][2]string // roundID -> (competitionID, eventTypeID)
	scores []*competition.FinalScore
	txs    *fakeTxRepo
}

func (r *fakeResultRepo) CreateCompetitionEvent(context.Context, *competition.CompetitionEvent) error {
	return nil
}

func (r *fakeResultRepo) CreateRound(context.Context, *competition.Round) error { return nil }

func (r *fakeResultRepo) GetRound(context.Context, string) (*competition.Round, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeResultRepo) SaveFinalScore(_ context.Context, s *competition.FinalScore) error {
	r.scores = append(r.scores, s)
	return nil
}

func (r *fakeResultRepo) ListFinalScores(_ context.Context, competitionID string) ([]*competition.FinalScore, error) {
	var out []*competition.FinalScore
	for _, s := range r.scores {
		if ctx, ok := r.rounds[s.RoundID]; ok && ctx[0] == competitionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeResultRepo) ListUnscored(ctx context.Context, competitionID string) ([]*competition.FinalScore, error) {
	all, _ := r.ListFinalScores(ctx, competitionID)
	var out []*competition.FinalScore
	for _, s := range all {
		if !r.txs.has(s.RoundID, s.StudentID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeResultRepo) RoundContext(_ context.Context, roundID string) (string, string, error) {
	ctx, ok := r.rounds[roundID]
	if !ok {
		return "", "", shared.ErrNotFound
	}
	return ctx[0], ctx[1], nil
}

type fakeTxRepo struct {
	txs []*scoring.PointTransaction
}

func (r *fakeTxRepo) has(roundID, studentID string) bool {
	for _, tx := range r.txs {
		if tx.RoundID == roundID && tx.StudentID == studentID {
			return true
		}
	}
	return false
}

func (r *fakeTxRepo) InsertBatch(_ context.Context, txs []*scoring.PointTransaction) error {
	r.txs = append(r.txs, txs...)
	return nil
}

func (r *fakeTxRepo) ListByCompetition(_ context.Context, competitionID string) ([]*scoring.PointTransaction, error) {
	var out []*scoring.PointTransaction
	for _, tx := range r.txs {
		if tx.CompetitionID == competitionID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeTxRepo) ListByStudent(_ context.Context, studentID string) ([]*scoring.PointTransaction, error) {
	var out []*scoring.PointTransaction
	for _, tx := range r.txs {
		if tx.StudentID == studentID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeTxRepo) HasForResult(_ context.Context, roundID, studentID string) (bool, error) {
	return r.has(roundID, studentID), nil
}

type fakeStudentRepo struct {
	students map[string]*roster.Student
}

func (r *fakeStudentRepo) Create(_ context.Context, s *roster.Student) error {
	r.students[s.ID] = s
	return nil
}

func (r *fakeStudentRepo) GetByID(_ context.Context, id string) (*roster.Student, error) {
	s, ok := r.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return s, nil
}

func (r *fakeStudentRepo) GetByIDs(_ context.Context, ids []string) ([]*roster.Student, error) {
	var out []*roster.Student
	for _, id := range ids {
		if s, ok := r.students[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeStudentRepo) GetBySchool(context.Context, string) ([]*roster.Student, error) {
	return nil, nil
}

func (r *fakeStudentRepo) Update(context.Context, *roster.Student) error { return nil }

type fakeSchoolRepo struct {
	schools map[string]*roster.School
}

func (r *fakeSchoolRepo) Create(_ context.Context, s *roster.School) error {
	r.schools[s.ID] = s
	return nil
}

func (r *fakeSchoolRepo) GetByID(_ context.Context, id string) (*roster.School, error) {
	s, ok := r.schools[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

func (r *fakeSchoolRepo) GetByIDs(_ context.Context, ids []string) ([]*roster.School, error) {
	var out []*roster.School
	for _, id := range ids {
		if s, ok := r.schools[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSchoolRepo) GetAll(context.Context) ([]*roster.School, error) { return nil, nil }

type fakeThresholdRepo struct {
	tables map[string]*scoring.TierTable
}

func (r *fakeThresholdRepo) GetTable(_ context.Context, eventTypeID string) (*scoring.TierTable, error) {
	t, ok := r.tables[eventTypeID]
	if !ok {
		return nil, shared.ErrThresholdsNotFound
	}
	return t, nil
}

func (r *fakeThresholdRepo) GetAllTables(context.Context) (map[string]*scoring.TierTable, error) {
	return r.tables, nil
}

func (r *fakeThresholdRepo) ReplaceTable(_ context.Context, t *scoring.TierTable) error {
	r.tables[t.EventTypeID] = t
	return nil
}

type fakeMultiplierRepo struct {
	set scoring.MultiplierSet
}

func (r *fakeMultiplierRepo) GetAll(context.Context) (scoring.MultiplierSet, error) {
	return r.set, nil
}

func (r *fakeMultiplierRepo) Upsert(_ context.Context, m *scoring.GradeMultiplier) error {
	r.set[m.Grade] = m.Multiplier
	return nil
}

type fakeRecordRepo struct {
	recs []*records.CompetitionRecord
}

func (r *fakeRecordRepo) Create(_ context.Context, rec *records.CompetitionRecord) error {
	r.recs = append(r.recs, rec)
	return nil
}

func (r *fakeRecordRepo) GetBaseline(_ context.Context, studentID, eventTypeID string) (*records.CompetitionRecord, error) {
	for _, rec := range r.recs {
		if rec.IsBaseline && rec.StudentID == studentID && rec.EventTypeID == eventTypeID {
			return rec, nil
		}
	}
	return nil, shared.ErrNoBaselineRecord
}

func (r *fakeRecordRepo) ListBaselinesByStudent(context.Context, string) ([]*records.CompetitionRecord, error) {
	return nil, nil
}

type fakePBRepo struct {
	pbs map[string]*records.PersonalBest // studentID|eventTypeID
}

func pbKey(studentID, eventTypeID string) string { return studentID + "|" + eventTypeID }

func (r *fakePBRepo) Get(_ context.Context, studentID, eventTypeID string) (*records.PersonalBest, error) {
	pb, ok := r.pbs[pbKey(studentID, eventTypeID)]
	if !ok {
		return nil, shared.ErrPersonalBestMissing
	}
	return pb, nil
}

func (r *fakePBRepo) ListByStudent(context.Context, string) ([]*records.PersonalBest, error) {
	return nil, nil
}

func (r *fakePBRepo) Upsert(_ context.Context, pb *records.PersonalBest) error {
	r.pbs[pbKey(pb.StudentID, pb.EventTypeID)] = pb
	return nil
}

type fakeAchievementRepo struct {
	entries []records.AchievementEntry
}

func (r *fakeAchievementRepo) Append(_ context.Context, entries []records.AchievementEntry) error {
	for _, e := range entries {
		// Контракт таблицы achievement_log: PK и timestamp выставляет пайплайн.
		if e.ID == "" {
			return errors.New("achievement entry without id")
		}
		if e.AchievedAt.IsZero() {
			return errors.New("achievement entry without achieved_at")
		}
	}
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *fakeAchievementRepo) ListRecent(context.Context, int) ([]records.AchievementEntry, error) {
	return r.entries, nil
}

func (r *fakeAchievementRepo) ListByCompetition(context.Context, string) ([]records.AchievementEntry, error) {
	return r.entries, nil
}

type fakeRegistrationRepo struct {
	regs []*competition.Registration
}

func (r *fakeRegistrationRepo) Register(_ context.Context, reg *competition.Registration) error {
	r.regs = append(r.regs, reg)
	return nil
}

func (r *fakeRegistrationRepo) ListByCompetition(_ context.Context, competitionID string) ([]*competition.Registration, error) {
	var out []*competition.Registration
	for _, reg := range r.regs {
		if reg.CompetitionID == competitionID {
			out = append(out, reg)
		}
	}
	return out, nil
}

type fakeSchoolStandingRepo struct {
	rows    map[string][]*standings.SchoolStanding
	failing bool
}

func (r *fakeSchoolStandingRepo) ReplaceForCompetition(_ context.Context, competitionID string, rows []*standings.SchoolStanding) error {
	if r.failing {
		return shared.ErrStoreUnavailable
	}
	r.rows[competitionID] = rows
	return nil
}

func (r *fakeSchoolStandingRepo) ListByCompetition(_ context.Context, competitionID string) ([]*standings.SchoolStanding, error) {
	return r.rows[competitionID], nil
}

func (r *fakeSchoolStandingRepo) ListByDivision(context.Context, string, string) ([]*standings.SchoolStanding, error) {
	return nil, nil
}

type fakeStudentStandingRepo struct {
	rows map[string][]*standings.StudentStanding
}

func (r *fakeStudentStandingRepo) ReplaceForCompetition(_ context.Context, competitionID string, rows []*standings.StudentStanding) error {
	r.rows[competitionID] = rows
	return nil
}

func (r *fakeStudentStandingRepo) ListByCompetition(_ context.Context, competitionID string) ([]*standings.StudentStanding, error) {
	return r.rows[competitionID], nil
}

func (r *fakeStudentStandingRepo) GetForStudent(context.Context, string, string) (*standings.StudentStanding, error) {
	return nil, shared.ErrStandingNotFound
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixture
// ──────────────────────────────────────────────────────────────────────────────

type fixture struct {
	flow        *CompletionFlow
	comps       *fakeCompetitionRepo
	results     *fakeResultRepo
	txs         *fakeTxRepo
	pbs         *fakePBRepo
	achievs     *fakeAchievementRepo
	schoolRows  *fakeSchoolStandingRepo
	studentRows *fakeStudentStandingRepo
}

func threeByThree() *scoring.TierTable {
	return &scoring.TierTable{
		EventTypeID: "333",
		Thresholds: []scoring.TierThreshold{
			{EventTypeID: "333", Tier: scoring.TierS, MinTimeMs: 0, MaxTimeMs: i64(10000), BasePoints: 10},
			{EventTypeID: "333", Tier: scoring.TierA, MinTimeMs: 10000, MaxTimeMs: i64(15000), BasePoints: 8},
			{EventTypeID: "333", Tier: scoring.TierB, MinTimeMs: 15000, MaxTimeMs: i64(20000), BasePoints: 6},
			{EventTypeID: "333", Tier: scoring.TierC, MinTimeMs: 20000, MaxTimeMs: i64(30000), BasePoints: 4},
			{EventTypeID: "333", Tier: scoring.TierD, MinTimeMs: 30000, BasePoints: 2},
		},
	}
}

func i64(v int64) *int64 { return &v }

func strRef(s string) *string { return &s }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.New(io.Discard, logger.LevelError)

	comps := &fakeCompetitionRepo{comps: map[string]*competition.Competition{
		"comp-1": {ID: "comp-1", Name: "Осенний кубок", Status: competition.StatusActive, Date: time.Now()},
	}}

	txs := &fakeTxRepo{}
	results := &fakeResultRepo{
		rounds: map[string][2]string{"round-1": {"comp-1", "333"}},
		txs:    txs,
	}

	students := &fakeStudentRepo{students: map[string]*roster.Student{
		"st-1": {ID: "st-1", DisplayName: "Айгерим", Grade: 7, SchoolID: strRef("sch-a")},
		"st-2": {ID: "st-2", DisplayName: "Бекзат", Grade: 10, SchoolID: strRef("sch-a")},
		"st-3": {ID: "st-3", DisplayName: "Дана", Grade: 7, SchoolID: strRef("sch-b")},
	}}
	schools := &fakeSchoolRepo{schools: map[string]*roster.School{
		"sch-a": {ID: "sch-a", Name: "Лицей №134", Division: roster.DivisionMiddle},
		"sch-b": {ID: "sch-b", Name: "Гимназия №25", Division: roster.DivisionMiddle},
	}}

	thresholds := &fakeThresholdRepo{tables: map[string]*scoring.TierTable{"333": threeByThree()}}
	multipliers := &fakeMultiplierRepo{set: scoring.MultiplierSet{7: 2.0, 10: 1.0}}

	recs := &fakeRecordRepo{}
	pbs := &fakePBRepo{pbs: map[string]*records.PersonalBest{}}
	achievs := &fakeAchievementRepo{}

	scorer := command.NewScoreResultHandler(
		results, students, thresholds, multipliers, txs,
		recs, pbs, achievs, nil, log, scoring.DefaultBonusValues())
	batch := command.NewScoreBatchHandler(scorer, results, log)

	regs := &fakeRegistrationRepo{regs: []*competition.Registration{
		{ID: "r1", CompetitionID: "comp-1", StudentID: "st-1", SchoolID: strRef("sch-a")},
		{ID: "r2", CompetitionID: "comp-1", StudentID: "st-2", SchoolID: strRef("sch-a")},
		{ID: "r3", CompetitionID: "comp-1", StudentID: "st-3", SchoolID: strRef("sch-b")},
	}}

	schoolRows := &fakeSchoolStandingRepo{rows: map[string][]*standings.SchoolStanding{}}
	studentRows := &fakeStudentStandingRepo{rows: map[string][]*standings.StudentStanding{}}

	flow := NewCompletionFlow(
		comps, regs, txs, students, schools,
		schoolRows, studentRows, batch, nil, log)

	return &fixture{
		flow:        flow,
		comps:       comps,
		results:     results,
		txs:         txs,
		pbs:         pbs,
		achievs:     achievs,
		schoolRows:  schoolRows,
		studentRows: studentRows,
	}
}

func (f *fixture) addScore(studentID string, singleMs, averageMs int64) {
	f.results.scores = append(f.results.scores, &competition.FinalScore{
		ID:          "fs-" + studentID,
		RoundID:     "round-1",
		StudentID:   studentID,
		BestSingle:  shared.SolveTime(singleMs),
		BestAverage: shared.SolveTime(averageMs),
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestCompletionFlow_HappyPath(t *testing.T) {
	f := newFixture(t)
	// st-1: single тир S (2×10=20), average тир A (2×8=16), дебют даёт PB-бонус.
	f.addScore("st-1", 9500, 12000)
	// st-2: оба тира B (1×6=6 каждый), PB-бонус за дебют.
	f.addScore("st-2", 16000, 18000)
	// st-3: полный DNF, ноль очков.
	f.addScore("st-3", 0, -1)

	result, err := f.flow.Execute(context.Background(), CompleteCompetitionInput{CompetitionID: "comp-1"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.ResultsScored)
	assert.Equal(t, 2, result.SchoolsRanked)
	assert.Equal(t, 0, result.SkippedResults)
	assert.Contains(t, result.Message, "Осенний кубок")

	assert.Equal(t, competition.StatusCompleted, f.comps.comps["comp-1"].Status)

	rows := f.schoolRows.rows["comp-1"]
	require.Len(t, rows, 2)
	// sch-a: st-1 20+16+5 = 41, st-2 6+6+5 = 17, итого 58 на двух участников.
	assert.Equal(t, "sch-a", rows[0].SchoolID)
	assert.Equal(t, 58.0, rows[0].TotalPoints)
	assert.Equal(t, 2, rows[0].TotalStudentsParticipated)
	assert.Equal(t, 29.0, rows[0].AvgPointsPerStudent)
	assert.Equal(t, shared.Rank(1), rows[0].OverallRank)
	// sch-b: полный DNF - ноль очков, ноль участников, но строка есть.
	assert.Equal(t, "sch-b", rows[1].SchoolID)
	assert.Equal(t, 0.0, rows[1].TotalPoints)
	assert.Equal(t, 0, rows[1].TotalStudentsParticipated)

	// Дебютные PB сохранены, у DNF-студента PB-строки нет.
	assert.Len(t, f.pbs.pbs, 2)
	_, hasDNFPB := f.pbs.pbs[pbKey("st-3", "333")]
	assert.False(t, hasDNFPB)

	// Журнал достижений: по одному first_attempt на валидный дебют,
	// каждая строка готова к вставке как есть.
	firstAttempts := 0
	for _, e := range f.achievs.entries {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.AchievedAt.IsZero())
		if e.AchievementType == records.AchievementFirstAttempt {
			firstAttempts++
		}
	}
	assert.Equal(t, 2, firstAttempts)
}

func TestCompletionFlow_ConcurrentFinalizeRejected(t *testing.T) {
	f := newFixture(t)
	f.addScore("st-1", 12000, 14000)

	_, err := f.flow.Execute(context.Background(), CompleteCompetitionInput{CompetitionID: "comp-1"})
	require.NoError(t, err)

	// Повторная финализация завершённого соревнования отклоняется без
	// каких-либо побочных эффектов.
	before := len(f.txs.txs)
	_, err = f.flow.Execute(context.Background(), CompleteCompetitionInput{CompetitionID: "comp-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrCompetitionNotActive)
	assert.Len(t, f.txs.txs, before)
}

func TestCompletionFlow_ReleasesClaimOnFatalFailure(t *testing.T) {
	f := newFixture(t)
	f.addScore("st-1", 12000, 14000)
	f.schoolRows.failing = true

	_, err := f.flow.Execute(context.Background(), CompleteCompetitionInput{CompetitionID: "comp-1"})
	require.Error(t, err)

	// Статус возвращён, финализацию можно повторить.
	assert.Equal(t, competition.StatusActive, f.comps.comps["comp-1"].Status)

	f.schoolRows.failing = false
	result, err := f.flow.Execute(context.Background(), CompleteCompetitionInput{CompetitionID: "comp-1"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	// Очки первого прогона не начислены повторно.
	byResult := map[string]int{}
	for _, tx := range f.txs.txs {
		byResult[tx.RoundID+"|"+tx.StudentID]++
	}
	// best_time + average_time + pb_bonus = 3 строки, не 6.
	assert.Equal(t, 3, byResult["round-1|st-1"])
}

func TestCompletionFlow_RecordDetectionAgainstBaseline(t *testing.T) {
	f := newFixture(t)

	// Замороженный baseline: st-1 имел 11.00 / 13.00.
	recs := &fakeRecordRepo{recs: []*records.CompetitionRecord{
		{ID: "rec-1", StudentID: "st-1", EventTypeID: "333", CompetitionID: "comp-0",
			SingleMs: 11000, AverageMs: 13000, IsBaseline: true},
	}}
	// Существующий PB медленнее нового результата.
	f.pbs.pbs[pbKey("st-1", "333")] = &records.PersonalBest{
		ID: "pb-1", StudentID: "st-1", EventTypeID: "333", SingleMs: 11000, AverageMs: 13000,
	}

	log := logger.New(io.Discard, logger.LevelError)
	students := &fakeStudentRepo{students: map[string]*roster.Student{
		"st-1": {ID: "st-1", DisplayName: "Айгерим", Grade: 7, SchoolID: strRef("sch-a")},
	}}
	thresholds := &fakeThresholdRepo{tables: map[string]*scoring.TierTable{"333": threeByThree()}}
	multipliers := &fakeMultiplierRepo{set: scoring.MultiplierSet{7: 1.0}}
	scorer := command.NewScoreResultHandler(
		f.results, students, thresholds, multipliers, f.txs,
		recs, f.pbs, f.achievs, nil, log, scoring.DefaultBonusValues())

	f.addScore("st-1", 10500, 12500)
	res, err := scorer.Handle(context.Background(), command.ScoreResultCommand{Score: f.results.scores[0]})
	require.NoError(t, err)

	assert.True(t, res.Detection.IsRecordSingle)
	assert.True(t, res.Detection.IsRecordAverage)
	assert.True(t, res.Detection.IsPBSingle)
	assert.False(t, res.Detection.FirstAttempt)

	// PB перезаписан строго более быстрым временем.
	pb := f.pbs.pbs[pbKey("st-1", "333")]
	assert.Equal(t, shared.SolveTime(10500), pb.SingleMs)
	assert.Equal(t, shared.SolveTime(12500), pb.AverageMs)

	// record_single + record_average + pb_single + pb_average.
	assert.Len(t, res.Achievements, 4)
}

func TestCompletionFlow_UnknownCompetition(t *testing.T) {
	f := newFixture(t)
	_, err := f.flow.Execute(context.Background(), CompleteCompetitionInput{CompetitionID: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrCompetitionNotFound))
}
