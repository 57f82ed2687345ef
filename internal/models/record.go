package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldID is the record id field every records store row carries
const FieldID = "$id"

// Record is a generic records store row. Values decode from JSON, so numbers
// arrive as float64 and subtables as []any of map[string]any.
type Record map[string]any

// ID returns the record id
func (r Record) ID() string {
	return r.String(FieldID)
}

// String returns the field as a trimmed string, or "" when absent
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Int returns the field as an integer, or 0 when absent or not numeric
func (r Record) Int(field string) int {
	v, ok := r[field]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Table returns a subtable field as rows
func (r Record) Table(field string) []Record {
	v, ok := r[field]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []Record:
		return t
	case []map[string]any:
		rows := make([]Record, 0, len(t))
		for _, row := range t {
			rows = append(rows, Record(row))
		}
		return rows
	case []any:
		rows := make([]Record, 0, len(t))
		for _, item := range t {
			switch row := item.(type) {
			case map[string]any:
				rows = append(rows, Record(row))
			case Record:
				rows = append(rows, row)
			}
		}
		return rows
	default:
		return nil
	}
}

// First returns the first non-empty string among the given fields
func (r Record) First(fields ...string) string {
	for _, f := range fields {
		if v := r.String(f); v != "" {
			return v
		}
	}
	return ""
}
