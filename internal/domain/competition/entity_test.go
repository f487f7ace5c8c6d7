package competition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusUpcoming, StatusActive, true},
		{StatusActive, StatusCompleting, true},
		{StatusCompleting, StatusCompleted, true},

		// One-way: no re-opening, no skipping
		{StatusUpcoming, StatusCompleting, false},
		{StatusUpcoming, StatusCompleted, false},
		{StatusActive, StatusCompleted, false},
		{StatusActive, StatusUpcoming, false},
		{StatusCompleted, StatusActive, false},
		{StatusCompleted, StatusCompleting, false},
		{StatusCompleting, StatusActive, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestCompetitionTransition(t *testing.T) {
	comp := &Competition{ID: "c1", Name: "Winter Open", Status: StatusActive}

	require.NoError(t, comp.Transition(StatusCompleting))
	require.NoError(t, comp.Transition(StatusCompleted))

	assert.Equal(t, StatusCompleted, comp.Status)
	require.NotNil(t, comp.CompletedAt)

	// Terminal: nothing transitions out of completed
	err := comp.Transition(StatusActive)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
}

func TestFinalScoreValidate(t *testing.T) {
	score := &FinalScore{RoundID: "r1", StudentID: "s1", BestSingle: 9999, BestAverage: 11234}
	require.NoError(t, score.Validate())
	assert.False(t, score.IsFullDNF())

	dnf := &FinalScore{RoundID: "r1", StudentID: "s1"}
	require.NoError(t, dnf.Validate())
	assert.True(t, dnf.IsFullDNF())

	negative := &FinalScore{RoundID: "r1", StudentID: "s1", BestSingle: -5}
	assert.ErrorIs(t, negative.Validate(), shared.ErrNegativeValue)
}
