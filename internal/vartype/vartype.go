// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package vartype

import (
	"encoding/json"
	"fmt"
)

// Variable represents a generic type wrapper that holds a value and tracks its initialization state.
// The zero value is unset.
type Variable[T any] struct {
	value T
	isset bool
}

// NewVariable creates and returns a new Variable instance initialized with the provided value.
func NewVariable[T any](value T) Variable[T] {
	return Variable[T]{
		isset: true,
		value: value,
	}
}

// FromPointer returns a set Variable holding *ptr, or an unset Variable for a nil pointer.
func FromPointer[T any](ptr *T) Variable[T] {
	if ptr == nil {
		return Variable[T]{}
	}
	return NewVariable(*ptr)
}

// Reset clears the value of the Variable and marks it as uninitialized.
func (v *Variable[T]) Reset() {
	var newVal T
	v.value = newVal
	v.isset = false
}

// Value retrieves the current value stored in the Variable.
func (v Variable[T]) Value() T {
	return v.value
}

// Get returns the value and whether it is set.
func (v Variable[T]) Get() (T, bool) {
	return v.value, v.isset
}

// Set assigns the provided value to the Variable and marks it as initialized.
func (v *Variable[T]) Set(val T) {
	v.value = val
	v.isset = true
}

// IsSet returns true if the Variable has been initialized with a value, otherwise false.
func (v Variable[T]) IsSet() bool {
	return v.isset
}

// String returns a string representation of the Variable.
func (v Variable[T]) String() string {
	if !v.isset {
		return "<unset>"
	}
	return fmt.Sprint(v.value)
}

// MarshalJSON encodes an unset Variable as null.
func (v Variable[T]) MarshalJSON() ([]byte, error) {
	if !v.isset {
		return []byte("null"), nil
	}
	return json.Marshal(v.value)
}

// UnmarshalJSON decodes null into an unset Variable.
func (v *Variable[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		v.Reset()
		return nil
	}
	var val T
	if err := json.Unmarshal(data, &val); err != nil {
		return err
	}
	v.Set(val)
	return nil
}
