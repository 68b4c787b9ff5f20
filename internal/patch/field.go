// Package patch holds the tri-state field used by partial update payloads.
package patch

import (
	"bytes"
	"encoding/json"
)

// Field distinguishes a key that was absent from the payload, a key that
// was explicitly null, and a key carrying a value.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Ptr returns nil for an explicit null and a pointer to the value otherwise.
// It must only be called when Set is true.
func (f Field[T]) Ptr() *T {
	if f.Null {
		return nil
	}
	v := f.Value
	return &v
}

// UnmarshalJSON is only invoked by encoding/json when the key is present,
// which is what leaves Set false for absent keys.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}
