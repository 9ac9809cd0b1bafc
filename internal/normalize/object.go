package normalize

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/iancoleman/orderedmap"
)

// Object is a decoded JSON object that remembers the order its keys appeared in.
// Nested objects decode as orderedmap.OrderedMap values; numbers are float64.
type Object = orderedmap.OrderedMap

// NewObject returns an empty object.
func NewObject() *Object {
	return orderedmap.New()
}

// Decode parses a scan service payload. The payload must be a single JSON object.
func Decode(data []byte) (*Object, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("payload is not a JSON object (starts with %q)", trimmed[0])
	}
	obj := orderedmap.New()
	if err := obj.UnmarshalJSON(trimmed); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return obj, nil
}

// asObject accepts both the pointer and value forms the decoder produces.
func asObject(v any) (*Object, bool) {
	switch o := v.(type) {
	case *Object:
		return o, o != nil
	case Object:
		return &o, true
	}
	return nil, false
}

// get is a nil-safe Object lookup.
func get(o *Object, key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	return o.Get(key)
}
