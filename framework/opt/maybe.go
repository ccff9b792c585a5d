// Package opt provides an optional value type used for values that may legitimately be
// absent, such as a cookie that was never set or an element attribute that is missing.
package opt

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Maybe holds either a value or nothing. The zero value holds nothing.
type Maybe[V any] struct {
	defined bool
	value   V
}

func Some[V any](value V) Maybe[V] {
	return Maybe[V]{defined: true, value: value}
}

func None[V any]() Maybe[V] { return Maybe[V]{} }

// FromPtr returns Some(*ptr), or None if ptr is nil.
func FromPtr[V any](ptr *V) Maybe[V] {
	if ptr == nil {
		return None[V]()
	}
	return Some(*ptr)
}

func (m Maybe[V]) IsDefined() bool { return m.defined }

// Value returns the value, or the zero value of V if there is none.
func (m Maybe[V]) Value() V { return m.value }

// Get returns the value and whether there is one, in the style of a map lookup.
func (m Maybe[V]) Get() (V, bool) { return m.value, m.defined }

func (m Maybe[V]) OrElse(fallback V) V {
	if m.defined {
		return m.value
	}
	return fallback
}

// String formats the value with fmt.Sprint, or returns "[none]".
func (m Maybe[V]) String() string {
	if !m.defined {
		return "[none]"
	}
	return fmt.Sprint(m.value)
}

// UnmarshalJSON treats a JSON null as None. A property that is missing from a JSON object
// leaves the Maybe undefined, since this method is never called for it.
func (m *Maybe[V]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = None[V]()
		return nil
	}
	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*m = Some(value)
	return nil
}
