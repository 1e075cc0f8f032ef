package database

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// System field names present on every stored record.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// TimeFormat is the layout used for created_at and updated_at.
// Fixed-width fractional seconds keep lexical and chronological order equal.
const TimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// Record is a single stored entity.
type Record map[string]any

// ID returns the record id, or "" when absent.
func (r Record) ID() string {
	return stringField(r, FieldID)
}

// CreatedAt returns the raw created_at timestamp.
func (r Record) CreatedAt() string {
	return stringField(r, FieldCreatedAt)
}

// UpdatedAt returns the raw updated_at timestamp.
func (r Record) UpdatedAt() string {
	return stringField(r, FieldUpdatedAt)
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(copyMap(r))
}

// FormatTime renders t in the store's timestamp layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a timestamp written by FormatTime or any RFC 3339 value.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func stringField(r Record, key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// copyMap deep-copies a JSON-like map. Nested Records are flattened to
// plain maps so JSONPath evaluation sees uniform types.
func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case Record:
		return copyMap(t)
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyMap(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

// valuesEqual compares two JSON-like values. Numbers compare by value
// regardless of their Go type.
func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(copyValue(a), copyValue(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
