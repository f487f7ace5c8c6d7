package standings

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cubescore/cubescore-backend/internal/domain/competition"
	"github.com/cubescore/cubescore-backend/internal/domain/roster"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

// pointsEpsilon absorbs float accumulation noise when comparing totals.
// All totals are rounded to one decimal before comparison, so anything
// below half of the last significant digit is equal.
const pointsEpsilon = 1e-6

// samePoints reports whether two rounded totals are the same ranking value.
func samePoints(a, b float64) bool {
	return math.Abs(a-b) < pointsEpsilon
}

// BuildSchoolStandings recomputes all school standings for one competition
// from scratch. Pure function: same inputs produce the same output in the
// same order.
//
// Every school that has at least one registered participant gets a row,
// even if none of its students earned points. Students without a school
// contribute to student standings only and are skipped here.
func BuildSchoolStandings(
	competitionID string,
	registrations []*competition.Registration,
	transactions []*scoring.PointTransaction,
	schools map[string]*roster.School,
	now time.Time,
) []*SchoolStanding {
	registered := make(map[string]bool)
	for _, reg := range registrations {
		if reg.HasSchool() {
			registered[*reg.SchoolID] = true
		}
	}

	totals := make(map[string]float64)
	participants := make(map[string]map[string]bool)
	for _, tx := range transactions {
		if !tx.HasSchool() {
			continue
		}
		schoolID := *tx.SchoolID
		totals[schoolID] += tx.FinalPoints
		if participants[schoolID] == nil {
			participants[schoolID] = make(map[string]bool)
		}
		participants[schoolID][tx.StudentID] = true
		registered[schoolID] = true
	}

	result := make([]*SchoolStanding, 0, len(registered))
	for schoolID := range registered {
		school, ok := schools[schoolID]
		if !ok {
			continue
		}
		count := len(participants[schoolID])
		total := scoring.RoundHalfUp1(totals[schoolID])
		avg := 0.0
		if count > 0 {
			avg = scoring.RoundHalfUp1(total / float64(count))
		}
		result = append(result, &SchoolStanding{
			ID:                        uuid.NewString(),
			CompetitionID:             competitionID,
			SchoolID:                  schoolID,
			SchoolName:                school.Name,
			Division:                  school.Division,
			TotalPoints:               total,
			AvgPointsPerStudent:       avg,
			TotalStudentsParticipated: count,
			UpdatedAt:                 now,
		})
	}

	sortSchools(result)
	rankSchools(result)
	return result
}

// BuildStudentStandings recomputes per-student standings for one competition.
func BuildStudentStandings(
	competitionID string,
	transactions []*scoring.PointTransaction,
	students map[string]*roster.Student,
	now time.Time,
) []*StudentStanding {
	totals := make(map[string]float64)
	for _, tx := range transactions {
		totals[tx.StudentID] += tx.FinalPoints
	}

	result := make([]*StudentStanding, 0, len(totals))
	for studentID, total := range totals {
		student, ok := students[studentID]
		if !ok {
			continue
		}
		result = append(result, &StudentStanding{
			ID:            uuid.NewString(),
			CompetitionID: competitionID,
			StudentID:     studentID,
			DisplayName:   student.DisplayName,
			SchoolID:      student.SchoolID,
			TotalPoints:   scoring.RoundHalfUp1(total),
			UpdatedAt:     now,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if !samePoints(result[i].TotalPoints, result[j].TotalPoints) {
			return result[i].TotalPoints > result[j].TotalPoints
		}
		if result[i].DisplayName != result[j].DisplayName {
			return result[i].DisplayName < result[j].DisplayName
		}
		return result[i].StudentID < result[j].StudentID
	})

	// Shared placement: equal totals share a rank, the next distinct
	// total takes its positional rank.
	for i := range result {
		if i > 0 && samePoints(result[i].TotalPoints, result[i-1].TotalPoints) {
			result[i].Rank = result[i-1].Rank
			continue
		}
		result[i].Rank = shared.Rank(i + 1)
	}
	return result
}

func sortSchools(standings []*SchoolStanding) {
	sort.Slice(standings, func(i, j int) bool {
		if !samePoints(standings[i].TotalPoints, standings[j].TotalPoints) {
			return standings[i].TotalPoints > standings[j].TotalPoints
		}
		if standings[i].SchoolName != standings[j].SchoolName {
			return standings[i].SchoolName < standings[j].SchoolName
		}
		return standings[i].SchoolID < standings[j].SchoolID
	})
}

// rankSchools assigns overall and per-division ranks over a slice already
// sorted by sortSchools.
func rankSchools(standings []*SchoolStanding) {
	for i := range standings {
		if i > 0 && samePoints(standings[i].TotalPoints, standings[i-1].TotalPoints) {
			standings[i].OverallRank = standings[i-1].OverallRank
		} else {
			standings[i].OverallRank = shared.Rank(i + 1)
		}
	}

	seen := make(map[roster.Division]int)
	last := make(map[roster.Division]*SchoolStanding)
	for _, s := range standings {
		seen[s.Division]++
		if prev, ok := last[s.Division]; ok && samePoints(s.TotalPoints, prev.TotalPoints) {
			s.DivisionRank = prev.DivisionRank
		} else {
			s.DivisionRank = shared.Rank(seen[s.Division])
		}
		last[s.Division] = s
	}
}
