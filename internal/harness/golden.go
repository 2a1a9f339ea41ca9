package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/tablekit/datatables"
	"github.com/tablekit/datatables/internal/pipeline"
)

// Snapshot renders a scenario's compiled pipeline pair as canonical JSON.
// The same scenario always yields byte-identical output.
func Snapshot(s *Scenario) ([]byte, error) {
	compiled, err := datatables.Compile(&s.Request, s.Schema)
	if err != nil {
		return nil, err
	}
	return pipeline.MarshalCanonical(map[string]any{
		"count": compiled.Count,
		"data":  compiled.Data,
	})
}

// AssertGolden compiles a scenario and compares the canonical pipeline
// pair against a golden file. The golden file is stored in
// testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for the compiled shape of
// each scenario; a diff means the compiler's output changed.
func AssertGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	snapshot, err := Snapshot(scenario)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)

	return nil
}
