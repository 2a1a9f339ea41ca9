package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateText(t *testing.T) {
	path := writeFile(t, "schema.yaml", `
fields: ["_id", "label"]
`)

	out, err := runCLI(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is valid")
}

func TestValidateJSONReport(t *testing.T) {
	path := writeFile(t, "schema.yaml", `
fields: ["_id", "label", "product", "owner"]
excluded: [owner]
config:
  product:
    reference:
      collection: products
      searchFields: [label]
`)

	out, err := runCLI(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var report ValidationReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.True(t, report.Valid)
	assert.Equal(t, 4, report.Fields)
	assert.Equal(t, 1, report.Excluded)
	assert.Equal(t, []string{"product"}, report.References)
}

func TestValidateMissingFile(t *testing.T) {
	out, err := runCLI(t, "validate", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestValidateInvalidSchemaFailsTheRun(t *testing.T) {
	path := writeFile(t, "schema.cue", `fields: ["label", "label"]`)

	out, err := runCLI(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeInvalidSchema)
}
