// Package patch provides the field type used by partial-update payloads.
//
// A Field records whether its JSON key was present. JSON null counts as
// absent, while falsy values such as "" or 0 count as present.
package patch

import "encoding/json"

// Field is an optional value in a patch.
type Field[T any] struct {
	Value T
	Set   bool
}

// Of returns a Field holding v.
func Of[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Apply writes the value to dst when the field is set.
func (f Field[T]) Apply(dst *T) {
	if f.Set {
		*dst = f.Value
	}
}

// Get returns the value and whether it is set.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Set
}

// IsZero reports an unset field, so `json:",omitzero"` drops it on encode.
func (f Field[T]) IsZero() bool {
	return !f.Set
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Field[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Field[T]{Value: v, Set: true}
	return nil
}
