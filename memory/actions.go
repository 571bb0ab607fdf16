// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/diffeo/go-datastore/datastore"
)

// All of these functions assume the global lock.

func (ds *memDatastore) create(params datastore.Dict) (datastore.Dict, error) {
	id := datastore.StringParam(params, datastore.ResourceIDParam, "")
	if err := datastore.CheckResourceID(id); err != nil {
		return nil, err
	}
	res := ds.resources[id]
	isNew := res == nil
	if isNew {
		res = newResource(id)
	}

	var fields []datastore.Field
	if raw, present := params[datastore.FieldsParam]; present {
		var err error
		fields, err = datastore.ParseFields(raw)
		if err != nil {
			return nil, err
		}
	} else if isNew {
		return nil, datastore.FieldErrors(datastore.Dict{
			datastore.FieldsParam: []interface{}{"fields are required when creating a resource"},
		})
	}

	// Redefining a resource may add fields but not change the
	// type of an existing one.
	merged := append([]datastore.Field(nil), res.fields...)
	for _, f := range fields {
		if old, ok := res.field(f.ID); ok {
			if old.Type != f.Type {
				return nil, datastore.FieldErrors(datastore.Dict{
					datastore.FieldsParam: []interface{}{fmt.Sprintf("cannot change type of field %q", f.ID)},
				})
			}
			continue
		}
		merged = append(merged, f)
	}

	primaryKey := res.primaryKey
	if _, present := params[datastore.PrimaryKeyParam]; present {
		primaryKey = datastore.ListParam(params, datastore.PrimaryKeyParam)
	}
	probe := &resource{id: id, fields: merged}
	for _, key := range primaryKey {
		if _, ok := probe.field(key); !ok || key == datastore.BookkeepingField {
			return nil, datastore.FieldErrors(datastore.Dict{
				datastore.PrimaryKeyParam: []interface{}{fmt.Sprintf("field %q not in table", key)},
			})
		}
	}
	probe.primaryKey = primaryKey
	if len(primaryKey) > 0 {
		seen := make(map[string]bool)
		for _, rec := range res.records {
			if key, ok := probe.keyOf(rec.values); ok {
				if seen[key] {
					return nil, datastore.IntegrityError("could not create unique index", nil)
				}
				seen[key] = true
			}
		}
	}

	oldFields, oldKey := res.fields, res.primaryKey
	res.fields = merged
	res.primaryKey = primaryKey
	if isNew {
		ds.resources[id] = res
	}

	result := datastore.Dict{
		datastore.ResourceIDParam: id,
		datastore.FieldsParam:     res.fieldDicts(),
		datastore.PrimaryKeyParam: stringList(res.primaryKey),
	}
	if _, present := params[datastore.RecordsParam]; present {
		upserted, err := ds.write(res, params, datastore.MethodInsert)
		if err != nil {
			if isNew {
				delete(ds.resources, id)
			}
			res.fields, res.primaryKey = oldFields, oldKey
			return nil, err
		}
		result[datastore.RecordsParam] = upserted
	}
	return result, nil
}

func (ds *memDatastore) search(params datastore.Dict) (datastore.Dict, error) {
	res, err := ds.lookup(params)
	if err != nil {
		return nil, err
	}
	filters, err := datastore.ParseFilters(params)
	if err != nil {
		return nil, err
	}
	m, err := res.compileFilters(filters)
	if err != nil {
		return nil, err
	}
	limit, err := datastore.IntParam(params, datastore.LimitParam, datastore.DefaultLimit)
	if err != nil {
		return nil, err
	}
	offset, err := datastore.IntParam(params, datastore.OffsetParam, 0)
	if err != nil {
		return nil, err
	}

	allFields := append([]datastore.Field{{ID: datastore.BookkeepingField, Type: datastore.TypeInt}}, res.fields...)
	selected := allFields
	if names := datastore.ListParam(params, datastore.FieldsParam); len(names) > 0 {
		selected = nil
		for _, name := range names {
			f, ok := res.field(name)
			if !ok {
				return nil, datastore.FieldErrors(datastore.Dict{
					datastore.FieldsParam: []interface{}{fmt.Sprintf("field %q not in table", name)},
				})
			}
			selected = append(selected, f)
		}
	}
	keys, err := datastore.ParseSort(params)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if _, ok := res.field(key.Field); !ok {
			return nil, datastore.FieldErrors(datastore.Dict{
				datastore.SortParam: []interface{}{fmt.Sprintf("field %q not in table", key.Field)},
			})
		}
	}

	var query map[string]string
	switch q := params[datastore.QueryParam].(type) {
	case nil:
	case string:
		if q != "" {
			query = map[string]string{"": q}
		}
	case map[string]interface{}:
		query = make(map[string]string)
		for id, v := range q {
			if _, ok := res.field(id); !ok {
				return nil, datastore.FieldErrors(datastore.Dict{
					datastore.QueryParam: []interface{}{fmt.Sprintf("field %q not in table", id)},
				})
			}
			query[id] = fmt.Sprint(v)
		}
	default:
		return nil, datastore.FieldErrors(datastore.Dict{
			datastore.QueryParam: []interface{}{"q must be a string or a dictionary"},
		})
	}

	var matched []*record
	for _, rec := range res.records {
		if !m.matches(rec) {
			continue
		}
		if !matchQuery(rec, res.fields, query) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		for _, key := range keys {
			c := compareValues(matched[i].value(key.Field), matched[j].value(key.Field))
			if c == 0 {
				continue
			}
			if key.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	total := len(matched)
	start := offset
	if start > len(matched) {
		start = len(matched)
	}
	matched = matched[start:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	records := make([]interface{}, len(matched))
	for i, rec := range matched {
		records[i] = rec.project(selected)
	}
	fieldDicts := make([]interface{}, len(selected))
	for i, f := range selected {
		fieldDicts[i] = f.Dict()
	}
	return datastore.Dict{
		datastore.ResourceIDParam: res.id,
		datastore.FieldsParam:     fieldDicts,
		datastore.RecordsParam:    records,
		datastore.FiltersParam:    filters,
		datastore.LimitParam:      int64(limit),
		datastore.OffsetParam:     int64(offset),
		datastore.TotalParam:      int64(total),
	}, nil
}

func matchQuery(rec *record, fields []datastore.Field, query map[string]string) bool {
	for id, q := range query {
		columns := fields
		if id != "" {
			columns = []datastore.Field{{ID: id}}
		}
		if !rec.containsText(columns, q) {
			return false
		}
	}
	return true
}

func (ds *memDatastore) upsert(params datastore.Dict) (datastore.Dict, error) {
	res, err := ds.lookup(params)
	if err != nil {
		return nil, err
	}
	method := datastore.StringParam(params, datastore.MethodParam, datastore.MethodUpsert)
	records, err := ds.write(res, params, method)
	if err != nil {
		return nil, err
	}
	return datastore.Dict{
		datastore.ResourceIDParam: res.id,
		datastore.RecordsParam:    records,
		datastore.MethodParam:     method,
	}, nil
}

// write applies the records parameter to a resource.  Every record
// is validated before any is stored, so a failure leaves the resource
// unchanged.
func (ds *memDatastore) write(res *resource, params datastore.Dict, method string) ([]interface{}, error) {
	switch method {
	case datastore.MethodInsert:
	case datastore.MethodUpsert, datastore.MethodUpdate:
		if len(res.primaryKey) == 0 {
			return nil, datastore.FieldErrors(datastore.Dict{
				datastore.MethodParam: []interface{}{fmt.Sprintf("table %q does not have a unique key defined", res.id)},
			})
		}
	default:
		return nil, datastore.FieldErrors(datastore.Dict{
			datastore.MethodParam: []interface{}{fmt.Sprintf("%q is not a valid method", method)},
		})
	}
	records, err := datastore.ParseRecords(params)
	if err != nil {
		return nil, err
	}

	index := res.byKey()
	type change struct {
		existing *record
		values   datastore.Dict
	}
	changes := make([]change, 0, len(records))
	pending := make(map[string]int)
	result := make([]interface{}, len(records))
	for row, in := range records {
		values, err := res.coerceRecord(row, in)
		if err != nil {
			return nil, err
		}
		result[row] = values
		key, hasKey := res.keyOf(values)
		if method != datastore.MethodInsert && !hasKey {
			return nil, datastore.FieldErrors(datastore.Dict{
				datastore.RecordsParam: []interface{}{fmt.Sprintf("row %d: fields %v are missing but needed as key", row+1, res.primaryKey)},
			})
		}
		if hasKey {
			if prior, seen := pending[key]; seen {
				if method == datastore.MethodInsert {
					return nil, datastore.IntegrityError("duplicate key value violates unique constraint", nil)
				}
				for k, v := range values {
					changes[prior].values[k] = v
				}
				continue
			}
		}
		var existing *record
		if hasKey {
			existing = index[key]
		}
		switch {
		case method == datastore.MethodInsert && existing != nil:
			return nil, datastore.IntegrityError("duplicate key value violates unique constraint", nil)
		case method == datastore.MethodUpdate && existing == nil:
			return nil, datastore.FieldErrors(datastore.Dict{
				datastore.RecordsParam: []interface{}{fmt.Sprintf("row %d: key not found", row+1)},
			})
		}
		merged := make(datastore.Dict)
		if existing != nil {
			for k, v := range existing.values {
				merged[k] = v
			}
		}
		for k, v := range values {
			merged[k] = v
		}
		changes = append(changes, change{existing: existing, values: merged})
		if hasKey {
			pending[key] = len(changes) - 1
		}
	}

	for _, c := range changes {
		if c.existing != nil {
			c.existing.values = c.values
			continue
		}
		res.records = append(res.records, &record{id: res.nextID, values: c.values})
		res.nextID++
	}
	return result, nil
}

func (ds *memDatastore) delete(params datastore.Dict) (datastore.Dict, error) {
	res, err := ds.lookup(params)
	if err != nil {
		return nil, err
	}
	filters, err := datastore.ParseFilters(params)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		delete(ds.resources, res.id)
		return datastore.Dict{datastore.ResourceIDParam: res.id}, nil
	}
	m, err := res.compileFilters(filters)
	if err != nil {
		return nil, err
	}
	kept := res.records[:0]
	for _, rec := range res.records {
		if !m.matches(rec) {
			kept = append(kept, rec)
		}
	}
	for i := len(kept); i < len(res.records); i++ {
		res.records[i] = nil
	}
	res.records = kept
	return datastore.Dict{
		datastore.ResourceIDParam: res.id,
		datastore.FiltersParam:    filters,
	}, nil
}

// maxQuery is the one SQL statement this datastore understands.
var maxQuery = regexp.MustCompile(`(?is)^\s*SELECT\s+MAX\s*\(\s*"?(\w+)"?\s*\)\s+AS\s+"?(\w+)"?\s+FROM\s+"([^"]+)"\s*;?\s*$`)

// errUnsupportedSQL is the cause of search query errors for any other
// statement.
var errUnsupportedSQL = errors.New(`only SELECT MAX("column") AS "name" FROM "resource" is supported`)

func (ds *memDatastore) searchSQL(params datastore.Dict) (datastore.Dict, error) {
	sql := datastore.StringParam(params, datastore.SQLParam, "")
	if sql == "" {
		return nil, datastore.FieldErrors(datastore.Dict{
			datastore.SQLParam: []interface{}{"Missing value"},
		})
	}
	match := maxQuery.FindStringSubmatch(sql)
	if match == nil {
		return nil, datastore.SearchQueryError(errUnsupportedSQL)
	}
	column, name, table := match[1], match[2], match[3]
	res := ds.resources[table]
	if res == nil {
		return nil, datastore.SearchQueryError(fmt.Errorf("relation %q does not exist", table))
	}
	f, ok := res.field(column)
	if !ok {
		return nil, datastore.SearchQueryError(fmt.Errorf("column %q does not exist", column))
	}
	var max interface{}
	for _, rec := range res.records {
		if v := rec.value(column); v != nil && compareValues(v, max) > 0 {
			max = v
		}
	}
	return datastore.Dict{
		datastore.SQLParam:     sql,
		datastore.FieldsParam:  []interface{}{datastore.Dict{"id": name, "type": f.Type}},
		datastore.RecordsParam: []interface{}{datastore.Dict{name: max}},
	}, nil
}

func stringList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
