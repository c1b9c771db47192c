// Package bridge converts values between the host JSON value model and the
// script engine's native values.
//
// The host model is the canonical JSON model: nil, bool, float64, string,
// []any and *Object, an insertion-ordered string-keyed map. Numbers are
// doubles on both sides, so integers beyond 2^53 do not round-trip exactly.
package bridge

import (
	"math"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is a host-side JSON value.
type Value = any

const (
	// MaxDepth bounds nesting in every conversion.
	MaxDepth = 256
	// MaxArrayLength bounds the length of a script array converted to the
	// host. Sparse arrays count their full length.
	MaxArrayLength = 1 << 20
)

// Object is a JSON object that remembers key insertion order.
type Object struct {
	m *orderedmap.OrderedMap[string, Value]
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{m: orderedmap.New[string, Value]()}
}

// Set stores v under key. Re-setting an existing key keeps its position.
func (o *Object) Set(key string, v Value) {
	o.m.Set(key, v)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	return o.m.Get(key)
}

// Len returns the number of entries. A nil object is empty.
func (o *Object) Len() int {
	if o == nil || o.m == nil {
		return 0
	}
	return o.m.Len()
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, o.Len())
	o.Range(func(k string, _ Value) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Range calls fn for each entry in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil || o.m == nil {
		return
	}
	for pair := o.m.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// MarshalJSON encodes the object preserving key order.
func (o *Object) MarshalJSON() ([]byte, error) {
	return Encode(o)
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	obj, ok := v.(*Object)
	if !ok {
		return &MarshalError{Path: "$", Reason: "not a JSON object"}
	}
	*o = *obj
	return nil
}

// Equal reports whether a and b are structurally equal JSON values.
// Objects compare entry by entry in order.
func Equal(a, b Value) bool {
	switch x := normalize(a).(type) {
	case nil:
		return normalize(b) == nil
	case bool:
		y, ok := normalize(b).(bool)
		return ok && x == y
	case float64:
		y, ok := normalize(b).(float64)
		return ok && (x == y || (math.IsNaN(x) && math.IsNaN(y)))
	case string:
		y, ok := normalize(b).(string)
		return ok && x == y
	case []any:
		y, ok := normalize(b).([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Object:
		y, ok := normalize(b).(*Object)
		if !ok || x.Len() != y.Len() {
			return false
		}
		xk, yk := x.Keys(), y.Keys()
		for i := range xk {
			if xk[i] != yk[i] {
				return false
			}
			xv, _ := x.Get(xk[i])
			yv, _ := y.Get(yk[i])
			if !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

// normalize folds the numeric types host ops may return into float64.
func normalize(v Value) Value {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}
