// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"fmt"
	"strings"

	"github.com/diffeo/go-datastore/datastore"
)

// resource is a single in-memory table.
type resource struct {
	id         string
	fields     []datastore.Field
	primaryKey []string
	records    []*record
	nextID     int64
}

// record is one row.  values is keyed by field ID and never contains
// the bookkeeping field.
type record struct {
	id     int64
	values datastore.Dict
}

func newResource(id string) *resource {
	return &resource{id: id, nextID: 1}
}

// field returns the descriptor of a named field, including the
// bookkeeping field.
func (res *resource) field(id string) (datastore.Field, bool) {
	if id == datastore.BookkeepingField {
		return datastore.Field{ID: id, Type: datastore.TypeInt}, true
	}
	for _, f := range res.fields {
		if f.ID == id {
			return f, true
		}
	}
	return datastore.Field{}, false
}

// fieldDicts returns the wire form of the resource's fields, without
// the bookkeeping field.
func (res *resource) fieldDicts() []interface{} {
	result := make([]interface{}, len(res.fields))
	for i, f := range res.fields {
		result[i] = f.Dict()
	}
	return result
}

// value returns one column of a record.
func (rec *record) value(id string) interface{} {
	if id == datastore.BookkeepingField {
		return rec.id
	}
	return rec.values[id]
}

// project copies the named columns of a record into a new result
// dictionary.
func (rec *record) project(fields []datastore.Field) datastore.Dict {
	result := make(datastore.Dict, len(fields))
	for _, f := range fields {
		result[f.ID] = rec.value(f.ID)
	}
	return result
}

// coerceRecord validates a client record against the resource's
// fields.
func (res *resource) coerceRecord(row int, in datastore.Dict) (datastore.Dict, error) {
	return datastore.CoerceRecord(res.fields, row, in)
}

// keyOf returns a string identifying a record's primary key values,
// or false if the resource has no primary key or any key value is
// missing.
func (res *resource) keyOf(values datastore.Dict) (string, bool) {
	if len(res.primaryKey) == 0 {
		return "", false
	}
	parts := make([]string, len(res.primaryKey))
	for i, id := range res.primaryKey {
		v, present := values[id]
		if !present || v == nil {
			return "", false
		}
		parts[i] = fmt.Sprintf("%T:%v", v, v)
	}
	return strings.Join(parts, "\x00"), true
}

// byKey indexes the existing records by primary key.
func (res *resource) byKey() map[string]*record {
	index := make(map[string]*record, len(res.records))
	for _, rec := range res.records {
		if key, ok := res.keyOf(rec.values); ok {
			index[key] = rec
		}
	}
	return index
}

// matcher is a compiled set of equality filters.
type matcher map[string][]interface{}

// compileFilters checks every filter names a field and coerces the
// filter values to that field's type.
func (res *resource) compileFilters(filters datastore.Dict) (matcher, error) {
	m := make(matcher, len(filters))
	for id, raw := range filters {
		f, ok := res.field(id)
		if !ok {
			return nil, datastore.FieldErrors(datastore.Dict{
				datastore.FiltersParam: []interface{}{fmt.Sprintf("field %q not in table", id)},
			})
		}
		for _, v := range datastore.FilterValues(raw) {
			coerced, err := datastore.Coerce(f.Type, v)
			if err != nil {
				return nil, datastore.FieldErrors(datastore.Dict{
					datastore.FiltersParam: []interface{}{err.Error()},
				})
			}
			m[id] = append(m[id], coerced)
		}
	}
	return m, nil
}

// matches returns true if a record satisfies every filter.
func (m matcher) matches(rec *record) bool {
	for id, accepted := range m {
		value := rec.value(id)
		found := false
		for _, want := range accepted {
			if compareValues(value, want) == 0 && (value == nil) == (want == nil) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// compareValues orders two canonical values.  nil sorts first;
// numbers compare numerically; everything else compares by its
// string form.
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := datastore.ToFloat64(a); ok {
		if fb, ok := datastore.ToFloat64(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case bb:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// containsText returns true if any text-like value in the named
// columns contains q, ignoring case.
func (rec *record) containsText(fields []datastore.Field, q string) bool {
	q = strings.ToLower(q)
	for _, f := range fields {
		v := rec.value(f.ID)
		if v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(v)), q) {
			return true
		}
	}
	return false
}
