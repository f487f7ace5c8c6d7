package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	ce, err := ParseCronExpression("*/5 * * * *")
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", ce.String())
	assert.Len(t, ce.minutes, 12)

	ce, err = ParseCronExpression("0 21 * * *")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, ce.minutes)
	assert.Equal(t, []int{21}, ce.hours)

	ce, err = ParseCronExpression("0 9-17 * * 1-5")
	require.NoError(t, err)
	assert.Len(t, ce.hours, 9)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ce.weekdays)

	ce, err = ParseCronExpression("0,30 * * * *")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 30}, ce.minutes)
}

func TestParseCronExpressionRejectsInvalid(t *testing.T) {
	cases := []string{
		"",
		"* * * *",
		"* * * * * *",
		"61 * * * *",
		"* 25 * * *",
		"x * * * *",
		"*/0 * * * *",
	}
	for _, expr := range cases {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, "expression %q should not parse", expr)
	}
}

func TestCronNext(t *testing.T) {
	ce := MustParseCronExpression(Every5Minutes)

	// 10:02 -> 10:05
	after := time.Date(2026, 3, 14, 10, 2, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC), ce.Next(after))

	// Exactly on a match: next fire is the following slot.
	after = time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 10, 0, 0, time.UTC), ce.Next(after))
}

func TestCronNextDaily(t *testing.T) {
	ce := MustParseCronExpression(EveryDay21PM)

	// Before 21:00 fires the same day.
	after := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC), ce.Next(after))

	// After 21:00 rolls over to the next day.
	after = time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 15, 21, 0, 0, 0, time.UTC), ce.Next(after))
}

func TestCronNextWeekday(t *testing.T) {
	// Sundays at midnight. 2026-03-14 is a Saturday.
	ce := MustParseCronExpression(EverySunday)
	after := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	next := ce.Next(after)
	assert.Equal(t, time.Weekday(0), next.Weekday())
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), next)
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)
	after := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, after.Add(10*time.Minute), s.Next(after))
}

func TestIntervalScheduleClampsSubSecond(t *testing.T) {
	s := NewIntervalSchedule(50 * time.Millisecond)
	assert.Equal(t, time.Second, s.Interval)
}
