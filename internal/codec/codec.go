// Package codec wraps the hashing, structural-copy, and path primitives used
// across the system. Digests are SHA-256 hex; copies round-trip through JSON.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
)

// Hash returns the lowercase hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString hashes the UTF-8 bytes of s.
func HashString(s string) string {
	return Hash([]byte(s))
}

// Validate reports whether input is a usable map. Anything that is not a
// non-nil map is rejected.
func Validate(input any) bool {
	if input == nil {
		return false
	}
	v := reflect.ValueOf(input)
	return v.Kind() == reflect.Map && !v.IsNil()
}

// Transform returns a deep structural copy of data via a JSON round-trip.
// The result is deep-equal to the input but shares no references with it;
// maps come back as map[string]any and numbers as float64, matching JSON
// semantics.
func Transform(data any) (any, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("transform marshal: %w", err)
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("transform unmarshal: %w", err)
	}
	return out, nil
}

// Normalize cleans a path using host platform semantics.
func Normalize(path string) string {
	return filepath.Clean(path)
}

// Join joins path elements using host platform semantics.
func Join(elem ...string) string {
	return filepath.Join(elem...)
}

// Resolve makes a path absolute relative to the working directory.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}
