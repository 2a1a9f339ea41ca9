package datatables

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCheckReferenceUsage(t *testing.T) {
	schema := NewSchema("_id", "label", "product").
		Ref("product", "products", []string{"label"}, "")

	assert.NoError(t, checkReferenceUsage(nil, schema))
	assert.NoError(t, checkReferenceUsage(bson.D{{Key: "label", Value: "x"}}, schema))

	err := checkReferenceUsage(bson.D{{Key: "product", Value: "p1"}}, schema)
	require.Error(t, err)
	assert.True(t, IsReferenceUsage(err))

	// Only top-level keys are inspected.
	assert.NoError(t, checkReferenceUsage(
		bson.D{{Key: "$or", Value: bson.A{bson.D{{Key: "product", Value: "p1"}}}}},
		schema,
	))
}

func TestIsReferenceUsageWrapped(t *testing.T) {
	err := fmt.Errorf("find: %w", &ReferenceUsageError{Field: "product"})
	assert.True(t, IsReferenceUsage(err))
	assert.False(t, IsReferenceUsage(fmt.Errorf("plain failure")))
}
