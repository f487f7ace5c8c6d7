package standings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/roster"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

const compID = "comp-1"

func strPtr(s string) *string { return &s }

func tx(studentID, schoolID string, points float64) *scoring.PointTransaction {
	t := &scoring.PointTransaction{
		ID:            "tx-" + studentID,
		StudentID:     studentID,
		CompetitionID: compID,
		RoundID:       "round-1",
		PointType:     scoring.PointBestTime,
		FinalPoints:   points,
	}
	if schoolID != "" {
		t.SchoolID = strPtr(schoolID)
	}
	return t
}

func reg(studentID, schoolID string) *competition.Registration {
	r := &competition.Registration{
		ID:            "reg-" + studentID,
		CompetitionID: compID,
		StudentID:     studentID,
	}
	if schoolID != "" {
		r.SchoolID = strPtr(schoolID)
	}
	return r
}

func schoolMap() map[string]*roster.School {
	return map[string]*roster.School{
		"sch-a": {ID: "sch-a", Name: "Лицей №134", Division: roster.DivisionMiddle},
		"sch-b": {ID: "sch-b", Name: "Гимназия №25", Division: roster.DivisionMiddle},
		"sch-c": {ID: "sch-c", Name: "НИШ Астана", Division: roster.DivisionHigh},
	}
}

func TestBuildSchoolStandings_TotalsAndAverages(t *testing.T) {
	now := time.Now()
	regs := []*competition.Registration{
		reg("st-1", "sch-a"), reg("st-2", "sch-a"), reg("st-3", "sch-b"),
	}
	txs := []*scoring.PointTransaction{
		tx("st-1", "sch-a", 20.0),
		{ID: "tx-1b", StudentID: "st-1", SchoolID: strPtr("sch-a"), CompetitionID: compID, RoundID: "round-1", PointType: scoring.PointPBBonus, FinalPoints: 2.0},
		tx("st-2", "sch-a", 8.0),
		tx("st-3", "sch-b", 15.0),
	}

	result := BuildSchoolStandings(compID, regs, txs, schoolMap(), now)
	require.Len(t, result, 2)

	first := result[0]
	assert.Equal(t, "sch-a", first.SchoolID)
	assert.Equal(t, 30.0, first.TotalPoints)
	assert.Equal(t, 2, first.TotalStudentsParticipated)
	assert.Equal(t, 15.0, first.AvgPointsPerStudent)
	assert.Equal(t, shared.Rank(1), first.OverallRank)

	second := result[1]
	assert.Equal(t, "sch-b", second.SchoolID)
	assert.Equal(t, 15.0, second.TotalPoints)
	assert.Equal(t, 1, second.TotalStudentsParticipated)
	assert.Equal(t, shared.Rank(2), second.OverallRank)
}

func TestBuildSchoolStandings_SharedPlacement(t *testing.T) {
	// Две школы с одинаковыми итогами делят место, третья получает
	// позиционный ранг с пропуском.
	now := time.Now()
	regs := []*competition.Registration{
		reg("st-1", "sch-a"), reg("st-2", "sch-b"), reg("st-3", "sch-c"),
	}
	txs := []*scoring.PointTransaction{
		tx("st-1", "sch-a", 50.0),
		tx("st-2", "sch-b", 50.0),
		tx("st-3", "sch-c", 41.5),
	}

	result := BuildSchoolStandings(compID, regs, txs, schoolMap(), now)
	require.Len(t, result, 3)

	assert.Equal(t, shared.Rank(1), result[0].OverallRank)
	assert.Equal(t, shared.Rank(1), result[1].OverallRank)
	assert.Equal(t, shared.Rank(3), result[2].OverallRank)

	// При равных очках порядок детерминирован по имени школы.
	assert.Equal(t, "sch-b", result[0].SchoolID) // Гимназия №25
	assert.Equal(t, "sch-a", result[1].SchoolID) // Лицей №134
}

func TestBuildSchoolStandings_DivisionRanks(t *testing.T) {
	now := time.Now()
	regs := []*competition.Registration{
		reg("st-1", "sch-a"), reg("st-2", "sch-b"), reg("st-3", "sch-c"),
	}
	txs := []*scoring.PointTransaction{
		tx("st-1", "sch-a", 30.0),
		tx("st-2", "sch-b", 10.0),
		tx("st-3", "sch-c", 20.0),
	}

	result := BuildSchoolStandings(compID, regs, txs, schoolMap(), now)
	require.Len(t, result, 3)

	byID := make(map[string]*SchoolStanding)
	for _, s := range result {
		byID[s.SchoolID] = s
	}

	assert.Equal(t, shared.Rank(1), byID["sch-a"].OverallRank)
	assert.Equal(t, shared.Rank(2), byID["sch-c"].OverallRank)
	assert.Equal(t, shared.Rank(3), byID["sch-b"].OverallRank)

	// Внутри дивизиона ранги считаются заново.
	assert.Equal(t, shared.Rank(1), byID["sch-a"].DivisionRank)
	assert.Equal(t, shared.Rank(2), byID["sch-b"].DivisionRank)
	assert.Equal(t, shared.Rank(1), byID["sch-c"].DivisionRank)
}

func TestBuildSchoolStandings_RegisteredWithoutPoints(t *testing.T) {
	now := time.Now()
	regs := []*competition.Registration{
		reg("st-1", "sch-a"), reg("st-2", "sch-b"),
	}
	txs := []*scoring.PointTransaction{
		tx("st-1", "sch-a", 12.0),
	}

	result := BuildSchoolStandings(compID, regs, txs, schoolMap(), now)
	require.Len(t, result, 2)

	empty := result[1]
	assert.Equal(t, "sch-b", empty.SchoolID)
	assert.Equal(t, 0.0, empty.TotalPoints)
	assert.Equal(t, 0, empty.TotalStudentsParticipated)
	assert.Equal(t, 0.0, empty.AvgPointsPerStudent, "деление на ноль участников не допускается")
	assert.Equal(t, shared.Rank(2), empty.OverallRank)
}

func TestBuildSchoolStandings_SkipsSchoollessTransactions(t *testing.T) {
	now := time.Now()
	regs := []*competition.Registration{reg("st-1", "sch-a"), reg("st-9", "")}
	txs := []*scoring.PointTransaction{
		tx("st-1", "sch-a", 10.0),
		tx("st-9", "", 99.0),
	}

	result := BuildSchoolStandings(compID, regs, txs, schoolMap(), now)
	require.Len(t, result, 1)
	assert.Equal(t, "sch-a", result[0].SchoolID)
}

func TestBuildSchoolStandings_Idempotent(t *testing.T) {
	now := time.Now()
	regs := []*competition.Registration{
		reg("st-1", "sch-a"), reg("st-2", "sch-b"), reg("st-3", "sch-c"),
	}
	txs := []*scoring.PointTransaction{
		tx("st-1", "sch-a", 17.5),
		tx("st-2", "sch-b", 17.5),
		tx("st-3", "sch-c", 3.0),
	}

	first := BuildSchoolStandings(compID, regs, txs, schoolMap(), now)
	second := BuildSchoolStandings(compID, regs, txs, schoolMap(), now)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].SchoolID, second[i].SchoolID)
		assert.Equal(t, first[i].TotalPoints, second[i].TotalPoints)
		assert.Equal(t, first[i].OverallRank, second[i].OverallRank)
		assert.Equal(t, first[i].DivisionRank, second[i].DivisionRank)
	}
}

func TestBuildStudentStandings(t *testing.T) {
	now := time.Now()
	students := map[string]*roster.Student{
		"st-1": {ID: "st-1", DisplayName: "Айгерим", SchoolID: strPtr("sch-a")},
		"st-2": {ID: "st-2", DisplayName: "Бекзат", SchoolID: strPtr("sch-b")},
		"st-3": {ID: "st-3", DisplayName: "Вадим"},
	}
	txs := []*scoring.PointTransaction{
		tx("st-1", "sch-a", 24.0),
		tx("st-2", "sch-b", 24.0),
		tx("st-3", "", 18.5),
	}

	result := BuildStudentStandings(compID, txs, students, now)
	require.Len(t, result, 3)

	assert.Equal(t, shared.Rank(1), result[0].Rank)
	assert.Equal(t, shared.Rank(1), result[1].Rank)
	assert.Equal(t, shared.Rank(3), result[2].Rank)
	assert.Equal(t, "st-1", result[0].StudentID, "при равенстве очков сортировка по имени")
	assert.Equal(t, "st-3", result[2].StudentID)
	assert.Nil(t, result[2].SchoolID)
}

func TestBuildStudentStandings_FloatAccumulation(t *testing.T) {
	now := time.Now()
	students := map[string]*roster.Student{
		"st-1": {ID: "st-1", DisplayName: "Айгерим"},
		"st-2": {ID: "st-2", DisplayName: "Бекзат"},
	}
	// 0.1*3 и 0.3 должны считаться равными после округления.
	txs := []*scoring.PointTransaction{
		{ID: "a1", StudentID: "st-1", CompetitionID: compID, RoundID: "r", PointType: scoring.PointBestTime, FinalPoints: 0.1},
		{ID: "a2", StudentID: "st-1", CompetitionID: compID, RoundID: "r", PointType: scoring.PointBestTime, FinalPoints: 0.1},
		{ID: "a3", StudentID: "st-1", CompetitionID: compID, RoundID: "r", PointType: scoring.PointBestTime, FinalPoints: 0.1},
		{ID: "b1", StudentID: "st-2", CompetitionID: compID, RoundID: "r", PointType: scoring.PointBestTime, FinalPoints: 0.3},
	}

	result := BuildStudentStandings(compID, txs, students, now)
	require.Len(t, result, 2)
	assert.Equal(t, shared.Rank(1), result[0].Rank)
	assert.Equal(t, shared.Rank(1), result[1].Rank)
}
