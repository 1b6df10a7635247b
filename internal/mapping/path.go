// Package mapping resolves dotted path expressions against decoded JSON bodies
// and assembles outgoing payloads from field mappings.
package mapping

import (
	"encoding/json"
	"sort"
	"strings"
)

// Separator splits a path expression into segments
const Separator = "."

// Extract resolves pathExpr against body. It reports false when any segment is
// missing or when a traversed value is not an object. An empty pathExpr returns
// body unchanged. Extract never mutates body.
func Extract(body interface{}, pathExpr string) (interface{}, bool) {
	if pathExpr == "" {
		return body, true
	}

	current := body
	for _, segment := range strings.Split(pathExpr, Separator) {
		object, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}

		current, ok = object[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// ValidPath reports whether pathExpr is empty or made of non-empty segments
func ValidPath(pathExpr string) bool {
	if pathExpr == "" {
		return true
	}
	for _, segment := range strings.Split(pathExpr, Separator) {
		if segment == "" {
			return false
		}
	}
	return true
}

// FieldInfo describes one addressable path in a response body
type FieldInfo struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Fields lists every dotted path reachable in an object body, depth first with
// keys sorted. Nested objects are listed before their children.
func Fields(body interface{}) []FieldInfo {
	object, ok := body.(map[string]interface{})
	if !ok {
		return nil
	}

	var fields []FieldInfo
	collectFields(object, "", &fields)
	return fields
}

func collectFields(object map[string]interface{}, prefix string, fields *[]FieldInfo) {
	keys := make([]string, 0, len(object))
	for k := range object {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + Separator + key
		}

		value := object[key]
		*fields = append(*fields, FieldInfo{Path: path, Type: TypeName(value)})

		if nested, ok := value.(map[string]interface{}); ok {
			collectFields(nested, path, fields)
		}
	}
}

// TypeName returns the JSON type name of a decoded value
func TypeName(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64, int32, uint, uint64:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "unknown"
	}
}
