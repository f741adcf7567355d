package render

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is a string-keyed mapping that remembers insertion order.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject creates an empty object
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set assigns a key. Existing keys keep their original position.
func (o *Object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order
func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Len returns the number of keys
func (o *Object) Len() int {
	return len(o.keys)
}

// MarshalJSON encodes the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(o.values[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key %q: %w", key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Plain converts content into plain Go values, replacing every *Object with a
// map[string]any. Slices and maps are copied; scalars are returned unchanged.
func Plain(content any) any {
	switch v := content.(type) {
	case *Object:
		out := make(map[string]any, len(v.keys))
		for _, key := range v.keys {
			out[key] = Plain(v.values[key])
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = Plain(item)
		}
		return out
	default:
		return content
	}
}
