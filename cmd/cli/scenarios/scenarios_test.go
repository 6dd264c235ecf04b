package scenarios_test

import (
	"bytes"
	"github.com/medcircle/medresident/cmd/cli/scenarios"
	"github.com/medcircle/medresident/internal/simulation"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestList(t *testing.T) {
	var out bytes.Buffer
	scenarios.List.SetOut(&out)
	require.NoError(t, scenarios.List.RunE(scenarios.List, nil))
	require.Contains(t, out.String(), "trauma-polytrauma")
	require.Contains(t, out.String(), "pediatric-meningitis")
}

func TestShow(t *testing.T) {
	var out bytes.Buffer
	scenarios.Show.SetOut(&out)
	require.NoError(t, scenarios.Show.RunE(scenarios.Show, []string{"pediatric-meningitis"}))
	require.Contains(t, out.String(), "Puanlama: mükemmel 100, iyi 80, geçer 65")
	require.Contains(t, out.String(), "[initial-pediatric]")
	require.Contains(t, out.String(), "✓ immediate-antibiotics")
	require.Contains(t, out.String(), "✗ lp-first")
	require.Contains(t, out.String(), "→ Septik şok gelişti")

	err := scenarios.Show.RunE(scenarios.Show, []string{"cardiac-arrest"})
	require.ErrorIs(t, err, simulation.ErrScenarioNotFound)
}

func TestPrintTree_FollowsFirstBranch(t *testing.T) {
	trauma, err := simulation.MustLoadCatalog().Get("trauma-polytrauma")
	require.NoError(t, err)
	var out bytes.Buffer
	scenarios.PrintTree(&out, trauma)
	require.Contains(t, out.String(), "[initial-assessment]")
	require.Contains(t, out.String(), "      [breathing-assessment]")
	require.Contains(t, out.String(), "(critical, 120 sn)")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join("..", "..", "..", "internal", "simulation", "scenarios", "01-trauma-polytrauma.yaml")
	invalid := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("id: broken\ndifficulty: resident\n"), 0o600))

	var out, errOut bytes.Buffer
	scenarios.Validate.SetOut(&out)
	scenarios.Validate.SetErr(&errOut)
	require.NoError(t, scenarios.Validate.RunE(scenarios.Validate, []string{valid}))
	require.Contains(t, out.String(), "trauma-polytrauma, 2 decision points")

	err := scenarios.Validate.RunE(scenarios.Validate, []string{valid, invalid, filepath.Join(dir, "missing.yaml")})
	require.ErrorIs(t, err, simulation.ErrInvalidScenario)
	require.Contains(t, errOut.String(), "broken.yaml")
}
