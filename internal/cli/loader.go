package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/tablekit/datatables"
)

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchemaDefinition reads a schema description from disk. The format is
// chosen by extension: .cue files are evaluated as CUE, .yaml/.yml files
// are decoded directly. The returned schema has already passed validation.
func LoadSchemaDefinition(path string) (*datatables.Schema, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema file: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return loadCUESchema(path)
	case ".yaml", ".yml":
		schema, err := datatables.LoadSchemaFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		}
		return schema, nil
	default:
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("unsupported schema format: %s", filepath.Ext(path))}
	}
}

// loadCUESchema evaluates one CUE file into a schema. The file must reduce
// to a single concrete struct matching the schema shape.
func loadCUESchema(path string) (*datatables.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading schema file: %v", err)}
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("schema is not concrete: %v", err)}
	}

	var schema datatables.Schema
	if err := value.Decode(&schema); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("decoding schema: %v", err)}
	}
	if err := schema.Validate(); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidSchema, Message: err.Error()}
	}
	return &schema, nil
}
