package simulation_test

import (
	"github.com/medcircle/medresident/internal/simulation"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestResolver_Resolve(t *testing.T) {
	trauma, err := simulation.MustLoadCatalog().Get("trauma-polytrauma")
	require.NoError(t, err)
	root := trauma.Root()
	var resolver simulation.Resolver

	abc, _ := root.Option("abc-primary")
	outcome, err := resolver.Resolve(trauma, abc)
	require.NoError(t, err)
	require.Equal(t, "airway-secured", outcome.Branch.ID)
	require.Equal(t, 25, outcome.Points)
	require.NotNil(t, outcome.Next)
	require.Equal(t, "breathing-assessment", outcome.Next.ID)

	imaging, _ := root.Option("direct-imaging")
	outcome, err = resolver.Resolve(trauma, imaging)
	require.NoError(t, err)
	require.Equal(t, "patient-deteriorated", outcome.Branch.ID)
	require.Equal(t, -20, outcome.Points)
	require.Nil(t, outcome.Next)
}

func TestResolver_AlwaysTakesFirstBranch(t *testing.T) {
	scenario := &simulation.Scenario{ //nolint:exhaustruct // only the tree matters
		ID: "branches",
		DecisionPoints: []*simulation.DecisionPoint{
			{ID: "a", Options: []simulation.Option{{
				ID:     "pick",
				Points: 5,
				Branches: []simulation.Branch{
					{ID: "first", Probability: 0.1, Next: []string{"b", "c"}},
					{ID: "second", Probability: 0.9, Next: []string{"c"}},
				},
			}}},
			{ID: "b"},
			{ID: "c"},
		},
	}
	option, _ := scenario.Root().Option("pick")
	for range 20 {
		outcome, err := simulation.Resolver{}.Resolve(scenario, option)
		require.NoError(t, err)
		require.Equal(t, "first", outcome.Branch.ID)
		require.Equal(t, "b", outcome.Next.ID)
	}
}

func TestResolver_RejectsBrokenTrees(t *testing.T) {
	scenario := &simulation.Scenario{ //nolint:exhaustruct // only the tree matters
		ID: "broken",
		DecisionPoints: []*simulation.DecisionPoint{
			{ID: "a", Options: []simulation.Option{
				{ID: "nowhere", Branches: []simulation.Branch{{ID: "dangling", Next: []string{"missing"}}}},
				{ID: "empty"},
			}},
		},
	}
	var resolver simulation.Resolver
	nowhere, _ := scenario.Root().Option("nowhere")
	_, err := resolver.Resolve(scenario, nowhere)
	require.ErrorIs(t, err, simulation.ErrInvalidScenario)

	empty, _ := scenario.Root().Option("empty")
	_, err = resolver.Resolve(scenario, empty)
	require.ErrorIs(t, err, simulation.ErrInvalidScenario)
}

func TestResolver_ResolveTimeout(t *testing.T) {
	outcome := simulation.Resolver{}.ResolveTimeout()
	require.Equal(t, simulation.TimeoutPenalty, outcome.Points)
	require.Equal(t, -10, outcome.Points)
	require.Equal(t, []string{"Kritik zaman aşıldı - hasta durumu kötüleşti"}, outcome.Branch.Consequences)
	require.Nil(t, outcome.Next)
}
