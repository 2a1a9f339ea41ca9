// Package harness provides the conformance tooling for the pipeline
// compiler: YAML scenarios pairing a schema with a request, golden-file
// comparison of the compiled pipelines in canonical JSON, and an
// opt-in live round-trip against a real database.
package harness
