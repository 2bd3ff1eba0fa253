package api

import (
	"bytes"
	"encoding/json"
)

// Optional is a tri-state request field: unset (key absent), clear (explicit
// null), or set to a value.
type Optional[T any] struct {
	present bool
	null    bool
	value   T
}

// Set returns an Optional holding value.
func Set[T any](value T) Optional[T] {
	return Optional[T]{present: true, value: value}
}

// Clear returns an Optional representing an explicit null.
func Clear[T any]() Optional[T] {
	return Optional[T]{present: true, null: true}
}

// IsUnset reports whether the field was absent from the input.
func (o Optional[T]) IsUnset() bool {
	return !o.present
}

// IsClear reports whether the field was present with an explicit null.
func (o Optional[T]) IsClear() bool {
	return o.present && o.null
}

// Get returns the value and whether one was set.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present && !o.null
}

// IsZero lets `omitzero` drop unset fields when marshaling.
func (o Optional[T]) IsZero() bool {
	return !o.present
}

// UnmarshalJSON records presence; encoding/json only calls it when the key exists.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.null = true
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

// MarshalJSON writes null for unset and cleared fields.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.present || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
