package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScenarioGoldens compiles every checked-in scenario and compares the
// canonical pipeline pair against its golden file.
func TestScenarioGoldens(t *testing.T) {
	scenarios, err := LoadScenarioDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			require.NoError(t, AssertGolden(t, scenario))
		})
	}
}

// TestSnapshotDeterminism compiles each scenario twice and requires
// byte-identical snapshots.
func TestSnapshotDeterminism(t *testing.T) {
	scenarios, err := LoadScenarioDir("testdata/scenarios")
	require.NoError(t, err)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			first, err := Snapshot(scenario)
			require.NoError(t, err)
			second, err := Snapshot(scenario)
			require.NoError(t, err)
			require.Equal(t, string(first), string(second))
		})
	}
}
