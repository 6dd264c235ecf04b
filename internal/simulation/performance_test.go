package simulation_test

import (
	"github.com/medcircle/medresident/internal/simulation"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestEvaluate(t *testing.T) {
	rubric := simulation.ScoringRubric{Perfect: 100, Good: 75, Passing: 60}
	tests := []struct {
		score int
		want  simulation.PerformanceLevel
		label string
	}{
		{score: 100, want: simulation.Excellent, label: "Mükemmel"},
		{score: 90, want: simulation.Excellent, label: "Mükemmel"},
		{score: 89, want: simulation.Good, label: "İyi"},
		{score: 75, want: simulation.Good, label: "İyi"},
		{score: 74, want: simulation.Passing, label: "Geçer"},
		{score: 60, want: simulation.Passing, label: "Geçer"},
		{score: 59, want: simulation.NeedsImprovement, label: "Geliştirilmeli"},
		{score: 55, want: simulation.NeedsImprovement, label: "Geliştirilmeli"},
		{score: -20, want: simulation.NeedsImprovement, label: "Geliştirilmeli"},
		{score: 130, want: simulation.Excellent, label: "Mükemmel"},
	}
	for _, tt := range tests {
		got := simulation.Evaluate(tt.score, rubric)
		require.Equal(t, tt.want, got, "score %d", tt.score)
		require.Equal(t, tt.label, got.String(), "score %d", tt.score)
	}
}

func TestEvaluate_ThresholdsAreRelativeToPerfect(t *testing.T) {
	rubric := simulation.ScoringRubric{Perfect: 40, Good: 30, Passing: 20}
	require.Equal(t, simulation.Excellent, simulation.Evaluate(36, rubric))
	require.Equal(t, simulation.Good, simulation.Evaluate(30, rubric))
	require.Equal(t, simulation.Passing, simulation.Evaluate(24, rubric))
	require.Equal(t, simulation.NeedsImprovement, simulation.Evaluate(23, rubric))
	require.Equal(t, simulation.NeedsImprovement, simulation.Evaluate(10, simulation.ScoringRubric{}))
}

func TestParsePerformanceLevel(t *testing.T) {
	for _, l := range []simulation.PerformanceLevel{
		simulation.Excellent, simulation.Good, simulation.Passing, simulation.NeedsImprovement,
	} {
		got, err := simulation.ParsePerformanceLevel(l.Slug())
		require.NoError(t, err)
		require.Equal(t, l, got)
	}
	_, err := simulation.ParsePerformanceLevel("legendary")
	require.Error(t, err)
}
