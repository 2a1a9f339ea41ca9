package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Domain prefix for pipeline fingerprints. Version suffix enables future
// algorithm migration without ambiguity.
const domainPipeline = "datatables/pipeline/v1"

// Fingerprint computes a stable identity for a compiled pipeline pair.
// Two compilations yield the same fingerprint exactly when they rendered
// structurally identical count and data pipelines.
func Fingerprint(count, data mongo.Pipeline) (string, error) {
	payload := map[string]any{
		"count": count,
		"data":  data,
	}

	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(domainPipeline))
	h.Write([]byte{0x00}) // Null separator between domain and payload
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
