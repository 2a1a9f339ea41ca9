package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tablekit/datatables"
	"github.com/tablekit/datatables/internal/pipeline"
)

// ExplainResult is the compiled form of one request.
type ExplainResult struct {
	Fingerprint string          `json:"fingerprint"`
	Count       json.RawMessage `json:"count"`
	Data        json.RawMessage `json:"data"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <schema-file> <request-file>",
		Short: "Compile a request and print its pipelines",
		Long: `Compile a table request against a schema and print the resulting
count and data aggregation pipelines in canonical JSON, together with
their fingerprint.

The request file holds the request's JSON wire form; pass "-" to read
it from stdin.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runExplain(opts *RootOptions, schemaPath, requestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	schema, err := LoadSchemaDefinition(schemaPath)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Message)
		}
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	formatter.VerboseLog("Loaded schema from %s", schemaPath)

	req, err := readRequest(requestPath, cmd.InOrStdin())
	if err != nil {
		formatter.Error(ErrCodeBadRequest, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	result, err := explain(req, schema)
	if err != nil {
		formatter.Error(ErrCodeCompileFailed, err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "fingerprint: %s\n", result.Fingerprint)
	fmt.Fprintf(formatter.Writer, "count: %s\n", result.Count)
	fmt.Fprintf(formatter.Writer, "data: %s\n", result.Data)
	return nil
}

func explain(req *datatables.Request, schema *datatables.Schema) (*ExplainResult, error) {
	compiled, err := datatables.Compile(req, schema)
	if err != nil {
		return nil, err
	}

	countJSON, err := pipeline.MarshalCanonical(compiled.Count)
	if err != nil {
		return nil, err
	}
	dataJSON, err := pipeline.MarshalCanonical(compiled.Data)
	if err != nil {
		return nil, err
	}
	fp, err := pipeline.Fingerprint(compiled.Count, compiled.Data)
	if err != nil {
		return nil, err
	}

	return &ExplainResult{
		Fingerprint: fp,
		Count:       countJSON,
		Data:        dataJSON,
	}, nil
}

// readRequest decodes a request's JSON wire form from a file, or from
// stdin when the path is "-". Unknown fields are rejected.
func readRequest(path string, stdin io.Reader) (*datatables.Request, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading request: %w", err)
	}

	req := datatables.NewRequest()
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	return req, nil
}
