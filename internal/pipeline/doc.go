// Package pipeline defines the compiled form of a table query: an ordered
// sequence of aggregation stages drawn from a closed vocabulary.
//
// Stage is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and lets the
// assembler and executor switch exhaustively over stage kinds:
//
//	switch s := stage.(type) {
//	case pipeline.Match:
//	case pipeline.Project:
//	case pipeline.Lookup:
//	case pipeline.Sort:
//	case pipeline.Skip:
//	case pipeline.Limit:
//	case pipeline.Count:
//	}
//
// Render converts a stage sequence into a mongo.Pipeline ready to hand to
// the driver. MarshalCanonical and Fingerprint produce a deterministic
// textual form of rendered pipelines for golden tests, tooling output and
// compile-identity checks; they are never used for execution.
package pipeline
