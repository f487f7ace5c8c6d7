package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

func ptr(v int64) *int64 { return &v }

// threeByThreeTable mirrors the league's default 3x3 configuration:
// S=[0,10s), A=[10s,15s), B=[15s,20s), C=[20s,30s), D=[30s,∞).
func threeByThreeTable() *TierTable {
	return &TierTable{
		EventTypeID: "333",
		Thresholds: []TierThreshold{
			{EventTypeID: "333", Tier: TierS, MinTimeMs: 0, MaxTimeMs: ptr(10000), BasePoints: 10},
			{EventTypeID: "333", Tier: TierA, MinTimeMs: 10000, MaxTimeMs: ptr(15000), BasePoints: 8},
			{EventTypeID: "333", Tier: TierB, MinTimeMs: 15000, MaxTimeMs: ptr(20000), BasePoints: 6},
			{EventTypeID: "333", Tier: TierC, MinTimeMs: 20000, MaxTimeMs: ptr(30000), BasePoints: 4},
			{EventTypeID: "333", Tier: TierD, MinTimeMs: 30000, MaxTimeMs: nil, BasePoints: 2},
		},
	}
}

func TestClassifyBoundaries(t *testing.T) {
	tbl := threeByThreeTable()
	require.NoError(t, tbl.Validate())

	tests := []struct {
		ms   shared.SolveTime
		want Tier
	}{
		{1, TierS},
		{9999, TierS},
		{10000, TierA}, // upper bound is exclusive, lower inclusive
		{14999, TierA},
		{15000, TierB},
		{20000, TierC},
		{29999, TierC},
		{30000, TierD},
		{600000, TierD},
	}

	for _, tt := range tests {
		got := tbl.Classify(tt.ms)
		assert.Equal(t, tt.want, got.Tier, "time %d", tt.ms)
		assert.False(t, got.DNF)
	}
}

func TestClassifyDNF(t *testing.T) {
	tbl := threeByThreeTable()

	got := tbl.Classify(shared.DNF)
	assert.Equal(t, TierD, got.Tier)
	assert.True(t, got.DNF)
	assert.Zero(t, got.BasePoints)
}

func TestClassifyGapFailsClosed(t *testing.T) {
	// Misconfigured table with a hole between 10s and 15s. Classification
	// must not panic or error: uncovered times land in tier D with no points.
	tbl := &TierTable{
		EventTypeID: "333",
		Thresholds: []TierThreshold{
			{Tier: TierS, MinTimeMs: 0, MaxTimeMs: ptr(10000), BasePoints: 10},
			{Tier: TierB, MinTimeMs: 15000, MaxTimeMs: nil, BasePoints: 6},
		},
	}

	got := tbl.Classify(12000)
	assert.Equal(t, TierD, got.Tier)
	assert.Zero(t, got.BasePoints)
	assert.False(t, got.DNF)
}

func TestClassifyTotalAndMonotonic(t *testing.T) {
	tbl := threeByThreeTable()

	// Classification is total and monotonic: faster time, equal-or-better tier.
	prev := tbl.Classify(1)
	for ms := shared.SolveTime(500); ms < 70000; ms += 500 {
		cur := tbl.Classify(ms)
		require.True(t, cur.Tier.IsValid(), "time %d produced no tier", ms)
		assert.True(t, prev.Tier.BetterOrEqual(cur.Tier),
			"tier got better as time grew: %d -> %s after %s", ms, cur.Tier, prev.Tier)
		prev = cur
	}
}

func TestTierTableValidate(t *testing.T) {
	t.Run("overlap rejected", func(t *testing.T) {
		tbl := threeByThreeTable()
		tbl.Thresholds[1].MinTimeMs = 9000
		assert.ErrorIs(t, tbl.Validate(), shared.ErrThresholdOverlap)
	})

	t.Run("gap rejected", func(t *testing.T) {
		tbl := threeByThreeTable()
		tbl.Thresholds[1].MinTimeMs = 11000
		assert.ErrorIs(t, tbl.Validate(), shared.ErrThresholdGap)
	})

	t.Run("fastest tier must start at zero", func(t *testing.T) {
		tbl := threeByThreeTable()
		tbl.Thresholds[0].MinTimeMs = 100
		assert.ErrorIs(t, tbl.Validate(), shared.ErrThresholdGap)
	})

	t.Run("slowest tier must be unbounded", func(t *testing.T) {
		tbl := threeByThreeTable()
		tbl.Thresholds[4].MaxTimeMs = ptr(60000)
		assert.Error(t, tbl.Validate())
	})

	t.Run("negative base points rejected", func(t *testing.T) {
		tbl := threeByThreeTable()
		tbl.Thresholds[2].BasePoints = -1
		assert.ErrorIs(t, tbl.Validate(), shared.ErrNegativeValue)
	})

	t.Run("quality must descend with time", func(t *testing.T) {
		tbl := threeByThreeTable()
		tbl.Thresholds[1].Tier, tbl.Thresholds[2].Tier = TierB, TierA
		assert.Error(t, tbl.Validate())
	})

	t.Run("empty table rejected", func(t *testing.T) {
		tbl := &TierTable{EventTypeID: "333"}
		assert.ErrorIs(t, tbl.Validate(), shared.ErrNotFound)
	})
}
