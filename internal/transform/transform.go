// Package transform implements the pass-through data transforms. Sequences
// are shallow-copied, everything else is returned unchanged, and validation
// only rejects nil.
package transform

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Process returns a new slice holding the same elements when input is a
// sequence, and the input unchanged otherwise. The copy is positional and
// shallow; elements are not cloned.
func Process(input any) any {
	if input == nil {
		return nil
	}
	v := reflect.ValueOf(input)
	if v.Kind() != reflect.Slice {
		return input
	}
	out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	reflect.Copy(out, v)
	return out.Interface()
}

// Validate reports whether data is present. Typed nil pointers, maps, and
// slices count as absent.
func Validate(data any) bool {
	if data == nil {
		return false
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return !v.IsNil()
	}
	return true
}

// Serialize encodes obj as canonical JSON text. encoding/json sorts map keys,
// which gives equal objects equal encodings.
func Serialize(obj any) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}
	return string(data), nil
}
