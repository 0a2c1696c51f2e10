package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/revstore/internal/ir"
)

// marshalIndexed converts indexed data to canonical JSON TEXT for storage.
// querysql addresses the stored text with json_extract, so the bytes must
// stay canonical for equal data to compare equal.
func marshalIndexed(data ir.IRObject) (string, error) {
	if data == nil {
		return "{}", nil
	}
	out, err := ir.MarshalCanonical(data)
	if err != nil {
		return "", fmt.Errorf("marshal indexed data: %w", err)
	}
	return string(out), nil
}

// unmarshalIndexed parses canonical JSON TEXT to IRObject.
// Integral numbers come back as ir.IRInt, so an indexed float 3.0 reads as
// 3; the evaluator compares numbers by value, not by kind.
func unmarshalIndexed(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := obj.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal indexed data: %w", err)
	}
	return obj, nil
}

// formatTime renders t in the fixed-width layout shared with the query
// translator, so TEXT comparison orders chronologically.
func formatTime(t time.Time) string {
	return string(ir.Time(t))
}

func parseTime(column, s string) (time.Time, error) {
	t, err := ir.ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", column, err)
	}
	return t, nil
}

// nullString maps the empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
