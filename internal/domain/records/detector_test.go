package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

func TestDetectNoBaseline(t *testing.T) {
	// No baseline record for (student, event): nothing to break.
	pb := &PersonalBest{StudentID: "x", EventTypeID: "333", SingleMs: 12000, AverageMs: 14000}

	d := Detect(nil, pb, 8500, 13000)

	assert.False(t, d.IsRecordSingle)
	assert.False(t, d.IsRecordAverage)
	// PB checks still run independently.
	assert.True(t, d.IsPBSingle)
	assert.True(t, d.IsPBAverage)
}

func TestDetectRecordStrictComparison(t *testing.T) {
	baseline := &CompetitionRecord{
		StudentID: "x", EventTypeID: "333",
		SingleMs: 10000, AverageMs: 12000, IsBaseline: true,
	}

	t.Run("faster breaks", func(t *testing.T) {
		d := Detect(baseline, nil, 9999, 11999)
		assert.True(t, d.IsRecordSingle)
		assert.True(t, d.IsRecordAverage)
	})

	t.Run("equal does not break", func(t *testing.T) {
		d := Detect(baseline, nil, 10000, 12000)
		assert.False(t, d.IsRecordSingle)
		assert.False(t, d.IsRecordAverage)
	})

	t.Run("DNF cannot break", func(t *testing.T) {
		d := Detect(baseline, nil, shared.DNF, shared.DNF)
		assert.False(t, d.IsRecordSingle)
		assert.False(t, d.IsRecordAverage)
	})

	t.Run("non-baseline row is ignored", func(t *testing.T) {
		stale := *baseline
		stale.IsBaseline = false
		d := Detect(&stale, nil, 5000, 5000)
		assert.False(t, d.IsRecordSingle)
		assert.False(t, d.IsRecordAverage)
	})
}

func TestDetectPB(t *testing.T) {
	pb := &PersonalBest{StudentID: "y", EventTypeID: "333", SingleMs: 12000, AverageMs: 15000}

	d := Detect(nil, pb, 11500, 16000)

	assert.True(t, d.IsPBSingle)
	assert.False(t, d.IsPBAverage)
	assert.False(t, d.FirstAttempt)
	assert.Equal(t, shared.SolveTime(12000), d.PreviousPBSingle)
}

func TestDetectFirstAttempt(t *testing.T) {
	d := Detect(nil, nil, 8500, shared.DNF)

	assert.True(t, d.FirstAttempt)
	assert.True(t, d.IsPBSingle)
	assert.False(t, d.IsPBAverage)

	entries := d.Achievements("y", "c1", "333", 8500, shared.DNF)
	require.Len(t, entries, 1)
	assert.Equal(t, AchievementFirstAttempt, entries[0].AchievementType)
	assert.Equal(t, shared.SolveTime(8500), entries[0].AchievedTimeMs)
	assert.Nil(t, entries[0].ImprovementPercent)
}

func TestDetectFirstAttemptAllDNF(t *testing.T) {
	// A full-DNF first outing is not an attempt at all.
	d := Detect(nil, nil, shared.DNF, shared.DNF)

	assert.False(t, d.FirstAttempt)
	assert.False(t, d.IsPBSingle)
	assert.False(t, d.IsPBAverage)
	assert.Empty(t, d.Achievements("y", "c1", "333", shared.DNF, shared.DNF))
}

func TestDetectDeterministic(t *testing.T) {
	baseline := &CompetitionRecord{StudentID: "x", EventTypeID: "333", SingleMs: 10000, AverageMs: 12000, IsBaseline: true}
	pb := &PersonalBest{StudentID: "x", EventTypeID: "333", SingleMs: 9000, AverageMs: 11000}

	first := Detect(baseline, pb, 8500, 11500)
	second := Detect(baseline, pb, 8500, 11500)

	assert.Equal(t, first, second)
	// Detection must not mutate its inputs.
	assert.Equal(t, shared.SolveTime(9000), pb.SingleMs)
	assert.Equal(t, shared.SolveTime(10000), baseline.SingleMs)
}

func TestPersonalBestImproveWith(t *testing.T) {
	now := time.Now()
	pb := &PersonalBest{StudentID: "y", EventTypeID: "333", SingleMs: 12000, AverageMs: 15000}

	// Scenario: new single 11500 improves, average 16000 does not.
	improved := pb.ImproveWith(11500, 16000, now)
	require.True(t, improved)
	assert.Equal(t, shared.SolveTime(11500), pb.SingleMs)
	assert.Equal(t, shared.SolveTime(15000), pb.AverageMs)

	// Slower and DNF submissions never move the stored best.
	assert.False(t, pb.ImproveWith(13000, shared.DNF, now))
	assert.Equal(t, shared.SolveTime(11500), pb.SingleMs)
	assert.Equal(t, shared.SolveTime(15000), pb.AverageMs)
}

func TestPersonalBestMonotonic(t *testing.T) {
	now := time.Now()
	pb := &PersonalBest{StudentID: "y", EventTypeID: "333"}

	submissions := []shared.SolveTime{15000, shared.DNF, 12000, 13000, 11000, shared.DNF, 11500}
	for _, s := range submissions {
		pb.ImproveWith(s, shared.DNF, now)
	}

	// Stored best is the minimum strictly-positive value ever submitted.
	assert.Equal(t, shared.SolveTime(11000), pb.SingleMs)
	assert.True(t, pb.AverageMs.IsDNF())
}

func TestImprovementPercent(t *testing.T) {
	pct := ImprovementPercent(12000, 11500)
	require.NotNil(t, pct)
	assert.InDelta(t, 4.1666, *pct, 0.001)

	assert.Nil(t, ImprovementPercent(shared.DNF, 11500))
}

func TestAchievementsExpansion(t *testing.T) {
	baseline := &CompetitionRecord{StudentID: "x", EventTypeID: "333", SingleMs: 10000, AverageMs: 12000, IsBaseline: true}
	pb := &PersonalBest{StudentID: "x", EventTypeID: "333", SingleMs: 9500, AverageMs: 13000}

	d := Detect(baseline, pb, 9000, 11000)
	entries := d.Achievements("x", "c1", "333", 9000, 11000)

	types := make(map[AchievementType]AchievementEntry, len(entries))
	for _, e := range entries {
		types[e.AchievementType] = e
	}

	require.Len(t, entries, 4)
	assert.Contains(t, types, AchievementRecordSingle)
	assert.Contains(t, types, AchievementRecordAverage)
	assert.Contains(t, types, AchievementPBSingle)
	assert.Contains(t, types, AchievementPBAverage)

	rec := types[AchievementRecordSingle]
	assert.Equal(t, shared.SolveTime(10000), rec.PreviousBestMs)
	require.NotNil(t, rec.ImprovementPercent)
	assert.InDelta(t, 10.0, *rec.ImprovementPercent, 1e-9)
}
