// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datastore

import (
	"fmt"
	"strconv"
	"strings"
)

// This file contains helpers to pull typed values out of parameter
// dictionaries.  Parameters frequently arrive as strings straight
// from a URL query, so all of these accept string forms too.

// StringParam returns a string parameter, or def if it is absent.  A
// list value (a repeated query parameter) yields its first element.
func StringParam(params Dict, name, def string) string {
	v, present := params[name]
	if !present || v == nil {
		return def
	}
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return def
		}
		v = list[0]
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// IntParam returns a non-negative integer parameter, or def if it is
// absent.  Returns a validation error if the value is not an integer.
func IntParam(params Dict, name string, def int) (int, error) {
	v, present := params[name]
	if !present || v == nil {
		return def, nil
	}
	if n, ok := ToInt64(v); ok && n >= 0 {
		return int(n), nil
	}
	s := StringParam(params, name, "")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, FieldErrors(Dict{name: []interface{}{"Invalid integer"}})
	}
	return n, nil
}

// BoolParam returns a boolean parameter, or def if it is absent or
// not recognizably boolean.
func BoolParam(params Dict, name string, def bool) bool {
	v, present := params[name]
	if !present || v == nil {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	switch strings.ToLower(StringParam(params, name, "")) {
	case "0", "f", "n", "false", "off", "no":
		return false
	case "1", "t", "y", "true", "on", "yes":
		return true
	default:
		return def
	}
}

// ListParam returns a list of names.  It accepts either a list of
// strings or a single comma-separated string.
func ListParam(params Dict, name string) []string {
	v, present := params[name]
	if !present || v == nil {
		return nil
	}
	var parts []string
	switch vv := v.(type) {
	case []interface{}:
		for _, item := range vv {
			parts = append(parts, strings.Split(fmt.Sprint(item), ",")...)
		}
	case []string:
		for _, item := range vv {
			parts = append(parts, strings.Split(item, ",")...)
		}
	default:
		parts = strings.Split(fmt.Sprint(vv), ",")
	}
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// SortKey is one column of a sort specification.
type SortKey struct {
	Field      string
	Descending bool
}

// ParseSort parses a sort specification such as "name, age desc".
func ParseSort(params Dict) ([]SortKey, error) {
	var keys []SortKey
	for _, item := range ListParam(params, SortParam) {
		words := strings.Fields(item)
		key := SortKey{Field: strings.Trim(words[0], "\"")}
		switch {
		case len(words) == 1:
		case len(words) == 2 && strings.EqualFold(words[1], "asc"):
		case len(words) == 2 && strings.EqualFold(words[1], "desc"):
			key.Descending = true
		default:
			return nil, FieldErrors(Dict{SortParam: []interface{}{fmt.Sprintf("Invalid sort %q", item)}})
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ParseFilters returns the filters dictionary, or an empty one.
func ParseFilters(params Dict) (Dict, error) {
	v, present := params[FiltersParam]
	if !present || v == nil {
		return Dict{}, nil
	}
	filters, ok := v.(map[string]interface{})
	if !ok {
		return nil, FieldErrors(Dict{FiltersParam: []interface{}{"Not a json object"}})
	}
	return filters, nil
}

// FilterValues returns the accepted values of one filter.  A list
// filter matches any of its elements.
func FilterValues(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}

// ParseRecords returns the records parameter as a list of
// dictionaries.
func ParseRecords(params Dict) ([]Dict, error) {
	v, present := params[RecordsParam]
	if !present || v == nil {
		return nil, nil
	}
	records := AsRecords(v)
	if records == nil {
		return nil, FieldErrors(Dict{RecordsParam: []interface{}{"Records has to be a list of dicts"}})
	}
	return records, nil
}

// AsRecords converts a list of dictionaries into []Dict.  Returns nil
// if v is not a list or any element is not a dictionary.
func AsRecords(v interface{}) []Dict {
	switch list := v.(type) {
	case []Dict:
		return list
	case []interface{}:
		records := make([]Dict, len(list))
		for i, item := range list {
			record, ok := item.(map[string]interface{})
			if !ok {
				return nil
			}
			records[i] = record
		}
		return records
	}
	return nil
}

// StripBookkeeping removes BookkeepingField from every record in a
// result dictionary, in place.
func StripBookkeeping(result Dict) {
	for _, record := range AsRecords(result[RecordsParam]) {
		delete(record, BookkeepingField)
	}
}
