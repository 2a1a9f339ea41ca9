package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces a deterministic JSON rendering of a compiled
// pipeline value for fingerprints, goldens and tooling output.
//
// Key differences from standard json.Marshal:
//  1. bson.D documents keep their entry order (order is semantic in an
//     aggregation document, e.g. $sort keys)
//  2. map keys are sorted
//  3. no HTML escaping (< > & are NOT escaped)
//  4. strings are NFC normalized
//  5. regular expressions render as {"$regex": pattern, "$options": opts}
//  6. floats are rejected - no compiled stage ever carries one
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bson.D:
		return marshalDocument(buf, val)
	case mongo.Pipeline:
		return marshalPipeline(buf, val)
	case []bson.D:
		return marshalPipeline(buf, val)
	case bson.A:
		return marshalArray(buf, val)
	case []any:
		return marshalArray(buf, val)
	case []string:
		arr := make(bson.A, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return marshalArray(buf, arr)
	case map[string]any:
		return marshalMap(buf, val)
	case bson.M:
		return marshalMap(buf, val)
	case primitive.Regex:
		return marshalDocument(buf, bson.D{
			{Key: "$regex", Value: val.Pattern},
			{Key: "$options", Value: val.Options},
		})
	case string:
		return marshalString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
		return nil
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
		return nil
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical pipeline JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical pipeline JSON: %T", v)
	}
}

func marshalPipeline(buf *bytes.Buffer, p []bson.D) error {
	buf.WriteByte('[')
	for i, doc := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalDocument(buf, doc); err != nil {
			return fmt.Errorf("stage[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func marshalDocument(buf *bytes.Buffer, doc bson.D) error {
	buf.WriteByte('{')
	for i, e := range doc {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalString(buf, e.Key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, e.Value); err != nil {
			return fmt.Errorf("key %q: %w", e.Key, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func marshalArray(buf *bytes.Buffer, arr bson.A) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonical(buf, elem); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func marshalMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, m[k]); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// marshalString writes a JSON string with NFC normalization and without
// HTML escaping.
func marshalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}

	// json.Encoder adds a trailing newline, remove it.
	out := tmp.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	buf.Write(out)
	return nil
}
