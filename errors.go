package datatables

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// ReferenceUsageError reports an externally supplied predicate touching a
// reference-configured field. Dereferencing is only available for
// request-declared columns, so such a predicate can never match the joined
// data it implies; the call is rejected before any I/O.
type ReferenceUsageError struct {
	// Field is the reference-configured field the predicate touched.
	Field string
}

// Error implements the error interface.
func (e *ReferenceUsageError) Error() string {
	return fmt.Sprintf("additional and pre-filter criteria cannot use reference column %q", e.Field)
}

// IsReferenceUsage returns true if the error is a reference misuse error.
// Uses errors.As to handle wrapped errors.
func IsReferenceUsage(err error) bool {
	var re *ReferenceUsageError
	return errors.As(err, &re)
}

// checkReferenceUsage rejects a predicate whose top-level keys include a
// reference-configured field. Matching is on top-level keys only, as the
// wire protocol has always done.
func checkReferenceUsage(filter bson.D, schema *Schema) error {
	if len(filter) == 0 {
		return nil
	}
	for _, e := range filter {
		cfg, ok := schema.Config[e.Key]
		if ok && cfg.isReference() {
			return &ReferenceUsageError{Field: e.Key}
		}
	}
	return nil
}
