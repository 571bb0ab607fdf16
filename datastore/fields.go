// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datastore

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Canonical field types.  Backends map these onto their own column
// types; the aliases in typeAliases are accepted on input.
const (
	TypeInt       = "int"
	TypeNumeric   = "numeric"
	TypeText      = "text"
	TypeBool      = "bool"
	TypeTimestamp = "timestamp"
	TypeJSON      = "json"
)

var typeAliases = map[string]string{
	"int":              TypeInt,
	"int4":             TypeInt,
	"int8":             TypeInt,
	"integer":          TypeInt,
	"bigint":           TypeInt,
	"serial":           TypeInt,
	"numeric":          TypeNumeric,
	"float":            TypeNumeric,
	"float4":           TypeNumeric,
	"float8":           TypeNumeric,
	"double":           TypeNumeric,
	"double precision": TypeNumeric,
	"real":             TypeNumeric,
	"text":             TypeText,
	"string":           TypeText,
	"varchar":          TypeText,
	"bool":             TypeBool,
	"boolean":          TypeBool,
	"timestamp":        TypeTimestamp,
	"date":             TypeTimestamp,
	"json":             TypeJSON,
	"jsonb":            TypeJSON,
}

// CanonicalType maps a field type name to its canonical form.  An
// empty type is text.  Returns false if the type is not known.
func CanonicalType(t string) (string, bool) {
	if t == "" {
		return TypeText, true
	}
	canonical, ok := typeAliases[strings.ToLower(strings.TrimSpace(t))]
	return canonical, ok
}

// Field is a parsed field descriptor.
type Field struct {
	ID   string
	Type string
}

// Dict returns the wire form of a field descriptor.
func (f Field) Dict() Dict {
	return Dict{"id": f.ID, "type": f.Type}
}

// ParseFields converts a list of field descriptor dictionaries into
// Field values, validating every identifier and type.  Identifiers
// must be non-empty, must not begin with an underscore (these are
// reserved for the datastore), must not contain double quotes, and
// must be unique.
func ParseFields(in interface{}) ([]Field, error) {
	list, ok := in.([]interface{})
	if !ok {
		return nil, FieldErrors(Dict{FieldsParam: []interface{}{"fields must be a list of dictionaries"}})
	}
	seen := make(map[string]bool)
	fields := make([]Field, 0, len(list))
	for _, item := range list {
		desc, ok := item.(map[string]interface{})
		if !ok {
			return nil, FieldErrors(Dict{FieldsParam: []interface{}{"fields must be a list of dictionaries"}})
		}
		id, _ := desc["id"].(string)
		if err := checkFieldID(id); err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, FieldErrors(Dict{FieldsParam: []interface{}{fmt.Sprintf("duplicate column: %s", id)}})
		}
		seen[id] = true
		typeName, _ := desc["type"].(string)
		canonical, ok := CanonicalType(typeName)
		if !ok {
			return nil, FieldErrors(Dict{FieldsParam: []interface{}{fmt.Sprintf("invalid type %q for field %q", typeName, id)}})
		}
		fields = append(fields, Field{ID: id, Type: canonical})
	}
	return fields, nil
}

func checkFieldID(id string) error {
	switch {
	case id == "":
		return FieldErrors(Dict{FieldsParam: []interface{}{"field \"id\" is required"}})
	case strings.HasPrefix(id, "_"):
		return FieldErrors(Dict{FieldsParam: []interface{}{fmt.Sprintf("%q is not a valid field name", id)}})
	case strings.ContainsAny(id, "\"\x00") || len(id) > 63:
		return FieldErrors(Dict{FieldsParam: []interface{}{fmt.Sprintf("%q is not a valid field name", id)}})
	}
	return nil
}

// CheckResourceID validates a resource name.  Resource names become
// table names in SQL backends, so they are restricted the same way
// field names are, except that a leading underscore is allowed.
func CheckResourceID(id string) error {
	if id == "" || strings.ContainsAny(id, "\"\x00") || len(id) > 63 {
		return FieldErrors(Dict{ResourceIDParam: []interface{}{fmt.Sprintf("%q is not a valid resource id", id)}})
	}
	return nil
}

// timestampLayouts are accepted on input; TimestampLayout is used on
// output.
var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TimestampLayout is the canonical rendering of timestamp values.
const TimestampLayout = "2006-01-02T15:04:05"

// FormatTimestamp renders a time in TimestampLayout, keeping
// fractional seconds if there are any.
func FormatTimestamp(t time.Time) string {
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02T15:04:05.999999")
	}
	return t.Format(TimestampLayout)
}

// Coerce converts a JSON-like value to the canonical representation
// of a field type.  nil is always accepted.  Strings are parsed for
// numeric, boolean, and timestamp fields, so query-string filters
// compare correctly with stored values.
func Coerce(fieldType string, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch fieldType {
	case TypeInt:
		if n, ok := ToInt64(v); ok {
			return n, nil
		}
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return n, nil
			}
		}
	case TypeNumeric:
		if f, ok := ToFloat64(v); ok {
			return f, nil
		}
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, nil
			}
		}
	case TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				return parsed, nil
			}
		}
	case TypeTimestamp:
		switch t := v.(type) {
		case time.Time:
			return FormatTimestamp(t), nil
		case string:
			if t == "" {
				return nil, nil
			}
			for _, layout := range timestampLayouts {
				if parsed, err := time.Parse(layout, t); err == nil {
					return FormatTimestamp(parsed), nil
				}
			}
		}
	case TypeText:
		switch s := v.(type) {
		case string:
			return s, nil
		case bool, int, int32, int64, uint64, float64:
			return fmt.Sprint(s), nil
		}
	case TypeJSON:
		return v, nil
	default:
		return v, nil
	}
	return nil, fmt.Errorf("invalid input for type %s: %v", fieldType, v)
}

// ToInt64 converts a numeric value with no fractional part to int64.
func ToInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint32:
		return int64(n), true
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	case float32:
		if n >= -(1<<63) && n < 1<<63 && float32(int64(n)) == n {
			return int64(n), true
		}
	case float64:
		if n >= -(1<<63) && n < 1<<63 && float64(int64(n)) == n {
			return int64(n), true
		}
	}
	return 0, false
}

// ToFloat64 converts any numeric value to float64.
func ToFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// CoerceRecord validates a client record against a resource's fields
// and converts its values to canonical form.  The bookkeeping field
// may not be written.  row is the 0-based index used in error
// messages.
func CoerceRecord(fields []Field, row int, in Dict) (Dict, error) {
	types := make(map[string]string, len(fields))
	for _, f := range fields {
		types[f.ID] = f.Type
	}
	out := make(Dict, len(in))
	var extra []string
	for key, value := range in {
		fieldType, ok := types[key]
		if !ok {
			extra = append(extra, key)
			continue
		}
		coerced, err := Coerce(fieldType, value)
		if err != nil {
			return nil, FieldErrors(Dict{
				RecordsParam: []interface{}{fmt.Sprintf("row %d: %v", row+1, err)},
			})
		}
		out[key] = coerced
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, FieldErrors(Dict{
			RecordsParam: []interface{}{
				fmt.Sprintf("row %d has extra keys %q", row+1, strings.Join(extra, ", ")),
			},
		})
	}
	return out, nil
}
