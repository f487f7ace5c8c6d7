// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"

	"github.com/cubescore/cubescore-backend/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// Solve Time
// ═══════════════════════════════════════════════════════════════════════════

// SolveTime represents a solve duration in milliseconds.
// A non-positive value is the DNF sentinel: the attempt produced no valid
// result. Negative values never enter the system through validated paths.
type SolveTime int64

// DNF is the "did not finish" sentinel.
const DNF SolveTime = 0

// IsDNF reports whether the time is the DNF sentinel (or otherwise invalid).
func (t SolveTime) IsDNF() bool {
	return t <= 0
}

// IsValid reports whether the time is a real, positive solve time.
func (t SolveTime) IsValid() bool {
	return t > 0
}

// Millis returns the underlying millisecond value.
func (t SolveTime) Millis() int64 {
	return int64(t)
}

// BeatsStrict reports whether t is strictly faster than other.
// DNF never beats anything and nothing beats a DNF by comparison
// (records and PBs require a valid time on both sides handled by callers).
func (t SolveTime) BeatsStrict(other SolveTime) bool {
	return t.IsValid() && other.IsValid() && t < other
}

// String renders the time in scorecard form ("9.99", "1:02.34", "DNF").
func (t SolveTime) String() string {
	return timeutil.FormatSolveTime(int64(t))
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade
// ═══════════════════════════════════════════════════════════════════════════

// Grade represents a student's school grade (1-12).
type Grade int

// IsValid reports whether the grade is within the school range.
func (g Grade) IsValid() bool {
	return g >= 1 && g <= 12
}

// NewGrade creates a Grade with validation.
func NewGrade(n int) (Grade, error) {
	g := Grade(n)
	if !g.IsValid() {
		return 0, ErrInvalidGrade
	}
	return g, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a position in a standings table, starting at 1.
type Rank int

// IsValid reports whether the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// String returns the "#N" representation.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// ═══════════════════════════════════════════════════════════════════════════
// Points
// ═══════════════════════════════════════════════════════════════════════════

// Points represents awarded competition points. Stored and displayed with one
// decimal place; never negative.
type Points float64

// IsValid reports whether the points value is non-negative.
func (p Points) IsValid() bool {
	return p >= 0
}

// Add sums two point values.
func (p Points) Add(other Points) Points {
	return p + other
}

// String renders points with one decimal place, matching the standings views.
func (p Points) String() string {
	return fmt.Sprintf("%.1f", float64(p))
}
