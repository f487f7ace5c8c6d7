package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

func TestGradeMultiplierValidate(t *testing.T) {
	valid := &GradeMultiplier{Grade: 5, Multiplier: 2.0}
	require.NoError(t, valid.Validate())

	tooLow := &GradeMultiplier{Grade: 5, Multiplier: 0.4}
	assert.ErrorIs(t, tooLow.Validate(), shared.ErrValueOutOfRange)

	tooHigh := &GradeMultiplier{Grade: 5, Multiplier: 3.5}
	assert.ErrorIs(t, tooHigh.Validate(), shared.ErrValueOutOfRange)

	badGrade := &GradeMultiplier{Grade: 0, Multiplier: 1.0}
	assert.ErrorIs(t, badGrade.Validate(), shared.ErrValueOutOfRange)
}

func TestMultiplierSetLookup(t *testing.T) {
	set := MultiplierSet{5: 2.0, 12: 1.0}

	assert.Equal(t, 2.0, set.Lookup(5))
	assert.Equal(t, 1.0, set.Lookup(12))
	// Unconfigured grade falls back to the neutral multiplier.
	assert.Equal(t, 1.0, set.Lookup(7))
}

func TestRoundHalfUp1(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{10.0, 10.0},
		{10.04, 10.0},
		{10.05, 10.1}, // half rounds up
		{10.15, 10.2},
		{10.24, 10.2},
		{19.99, 20.0},
		{0, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, RoundHalfUp1(tt.in), 1e-9, "RoundHalfUp1(%v)", tt.in)
	}
}

func TestComputeScoreGradeScaling(t *testing.T) {
	tierS := Classification{Tier: TierS, BasePoints: 10}

	// Grade 5 multiplier 2.0: tier S best time -> 20.0 points.
	grade5 := ComputeScore(tierS, Classification{DNF: true, Tier: TierD}, 2.0, BonusFlags{}, DefaultBonusValues())
	require.Len(t, grade5.Awards, 1)
	assert.Equal(t, PointBestTime, grade5.Awards[0].Type)
	assert.InDelta(t, 20.0, grade5.Awards[0].Points, 1e-9)

	// Grade 12 multiplier 1.0: same tier -> 10.0 points.
	grade12 := ComputeScore(tierS, Classification{DNF: true, Tier: TierD}, 1.0, BonusFlags{}, DefaultBonusValues())
	require.Len(t, grade12.Awards, 1)
	assert.InDelta(t, 10.0, grade12.Awards[0].Points, 1e-9)
}

func TestComputeScoreFullDNF(t *testing.T) {
	dnf := Classification{Tier: TierD, DNF: true}

	// Flags do not matter: a full DNF yields exactly zero with no bonuses.
	got := ComputeScore(dnf, dnf, 3.0, BonusFlags{PB: true, Clutch: true, Streak: true, SchoolMomentum: true}, DefaultBonusValues())

	assert.Empty(t, got.Awards)
	assert.Zero(t, got.Total())
}

func TestComputeScoreBonusStacking(t *testing.T) {
	tierA := Classification{Tier: TierA, BasePoints: 8}
	tierB := Classification{Tier: TierB, BasePoints: 6}
	bonuses := DefaultBonusValues()

	got := ComputeScore(tierA, tierB, 1.5, BonusFlags{PB: true, Clutch: true, Streak: true, SchoolMomentum: true}, bonuses)

	// best_time 12.0 + average_time 9.0 + 5 + 3 + 2 + 2
	require.Len(t, got.Awards, 6)
	assert.InDelta(t, 33.0, got.Total(), 1e-9)

	byType := make(map[PointType]float64)
	for _, a := range got.Awards {
		byType[a.Type] = a.Points
	}
	assert.InDelta(t, 12.0, byType[PointBestTime], 1e-9)
	assert.InDelta(t, 9.0, byType[PointAverageTime], 1e-9)
	assert.InDelta(t, 5.0, byType[PointPBBonus], 1e-9)
	assert.InDelta(t, 2.0, byType[PointSchoolMomentum], 1e-9)
}

func TestComputeScorePartialDNF(t *testing.T) {
	tierS := Classification{Tier: TierS, BasePoints: 10}
	dnf := Classification{Tier: TierD, DNF: true}

	// Valid single, DNF average: only the best_time row plus bonuses.
	got := ComputeScore(tierS, dnf, 1.0, BonusFlags{PB: true}, DefaultBonusValues())

	require.Len(t, got.Awards, 2)
	assert.Equal(t, PointBestTime, got.Awards[0].Type)
	assert.Equal(t, PointPBBonus, got.Awards[1].Type)
	assert.InDelta(t, 15.0, got.Total(), 1e-9)
}

func TestComputeScoreNeverNegative(t *testing.T) {
	for _, mult := range []float64{MinMultiplier, 1.0, MaxMultiplier} {
		for _, base := range []float64{0, 2, 10} {
			got := ComputeScore(Classification{Tier: TierC, BasePoints: base}, Classification{Tier: TierD, DNF: true}, mult, BonusFlags{}, BonusValues{})
			assert.GreaterOrEqual(t, got.Total(), 0.0)
		}
	}
}

func TestBonusValuesValidate(t *testing.T) {
	require.NoError(t, DefaultBonusValues().Validate())

	bad := BonusValues{PB: -1}
	assert.ErrorIs(t, bad.Validate(), shared.ErrNegativeValue)
}

func TestPointTransactionValidate(t *testing.T) {
	school := "sch1"
	tx := &PointTransaction{
		ID: "t1", StudentID: "s1", SchoolID: &school,
		CompetitionID: "c1", RoundID: "r1",
		PointType: PointBestTime, FinalPoints: 12.5,
	}
	require.NoError(t, tx.Validate())
	assert.True(t, tx.HasSchool())

	negative := *tx
	negative.FinalPoints = -0.1
	assert.ErrorIs(t, negative.Validate(), shared.ErrNegativeValue)

	badType := *tx
	badType.PointType = "mystery"
	assert.ErrorIs(t, badType.Validate(), shared.ErrInvalidInput)
}
