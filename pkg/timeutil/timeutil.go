// Package timeutil provides time helpers for the CubeScore league backend:
// solve-time formatting (millisecond values, DNF sentinel) and league-timezone
// date operations used by competition scheduling.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// LeagueTZ is the league's operating timezone. All competitions are scheduled
// and finalized in league-local time.
var LeagueTZ = time.FixedZone("Asia/Almaty", 5*60*60)

// Now returns the current time in the league timezone.
func Now() time.Time {
	return time.Now().In(LeagueTZ)
}

// ToLeague converts a time to the league timezone.
func ToLeague(t time.Time) time.Time {
	return t.In(LeagueTZ)
}

// StartOfDay returns the start of the day (00:00:00) in the league timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToLeague(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, LeagueTZ)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in the league timezone.
func EndOfDay(t time.Time) time.Time {
	local := ToLeague(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, LeagueTZ)
}

// ─────────────────────────────────────────────────────────────────────────────
// SOLVE TIME FORMATTING
// ─────────────────────────────────────────────────────────────────────────────

// FormatSolveTime renders a solve time in milliseconds the way scorecards do:
// "9.99" under a minute, "1:02.34" above. Non-positive values render as "DNF".
// Sub-second precision is centiseconds, truncated (WCA convention).
func FormatSolveTime(ms int64) string {
	if ms <= 0 {
		return "DNF"
	}

	centis := ms / 10
	if ms < 60_000 {
		return fmt.Sprintf("%d.%02d", centis/100, centis%100)
	}

	minutes := ms / 60_000
	rem := centis % 6000
	return fmt.Sprintf("%d:%02d.%02d", minutes, rem/100, rem%100)
}

// FormatImprovement renders an improvement percentage with one decimal,
// e.g. "4.2%". A nil value (no previous best to compare) renders as "—".
func FormatImprovement(pct *float64) string {
	if pct == nil {
		return "—"
	}
	return fmt.Sprintf("%.1f%%", *pct)
}

// FormatDate renders a competition date in league-local short form.
func FormatDate(t time.Time) string {
	return ToLeague(t).Format("02 Jan 2006")
}

// DaysBetween returns whole days between two times in league-local terms.
func DaysBetween(from, to time.Time) int {
	fromDay := StartOfDay(from)
	toDay := StartOfDay(to)
	return int(toDay.Sub(fromDay).Hours() / 24)
}
