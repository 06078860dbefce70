package sqlite

import (
	"encoding/json"
	"strings"
)

// placeholder returns a placeholder for SQLite (uses ?).
func placeholder(n int) string {
	return "?"
}

// placeholders returns n placeholders for SQLite.
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// marshalStrings encodes a string slice as JSON for storage.
func marshalStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// unmarshalStrings decodes a JSON-encoded string slice.
func unmarshalStrings(raw string) []string {
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return []string{}
	}
	return values
}

// marshalVector encodes an embedding vector as JSON for storage.
func marshalVector(vector []float32) string {
	if vector == nil {
		vector = []float32{}
	}
	b, err := json.Marshal(vector)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// unmarshalVector decodes a JSON-encoded embedding vector.
func unmarshalVector(raw string) []float32 {
	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		return nil
	}
	return vector
}
