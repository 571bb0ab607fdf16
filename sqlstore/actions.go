// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/diffeo/go-datastore/datastore"
)

func (ds *sqlDatastore) create(ctx context.Context, params datastore.Dict) (result datastore.Dict, err error) {
	id := datastore.StringParam(params, datastore.ResourceIDParam, "")
	if err = datastore.CheckResourceID(id); err != nil {
		return
	}
	var fields []datastore.Field
	raw, haveFields := params[datastore.FieldsParam]
	if haveFields {
		fields, err = datastore.ParseFields(raw)
		if err != nil {
			return
		}
	}
	_, havePrimaryKey := params[datastore.PrimaryKeyParam]
	primaryKey := datastore.ListParam(params, datastore.PrimaryKeyParam)

	err = ds.withTx(ctx, false, func(tx *sql.Tx) error {
		info, err := ds.loadInfo(ctx, tx, id)
		isNew := datastore.KindOf(err) == datastore.KindNotFound
		switch {
		case isNew && !haveFields:
			return datastore.FieldErrors(datastore.Dict{
				datastore.FieldsParam: []interface{}{"fields are required when creating a resource"},
			})
		case isNew:
			info = &tableInfo{id: id}
		case err != nil:
			return err
		}

		// Redefining a resource may add fields but not change
		// the type of an existing one.
		var added []datastore.Field
		for _, f := range fields {
			if old, ok := info.field(f.ID); ok {
				if old.Type != f.Type {
					return datastore.FieldErrors(datastore.Dict{
						datastore.FieldsParam: []interface{}{fmt.Sprintf("cannot change type of field %q", f.ID)},
					})
				}
				continue
			}
			added = append(added, f)
		}
		info.fields = append(info.fields, added...)
		oldKey := info.primaryKey
		if havePrimaryKey {
			info.primaryKey = primaryKey
		}
		for _, key := range info.primaryKey {
			if _, ok := info.field(key); !ok || key == datastore.BookkeepingField {
				return datastore.FieldErrors(datastore.Dict{
					datastore.PrimaryKeyParam: []interface{}{fmt.Sprintf("field %q not in table", key)},
				})
			}
		}

		if isNew {
			columns := []string{ds.dialect.RowID}
			for _, f := range info.fields {
				columns = append(columns, quote(f.ID)+" "+ds.dialect.Types[f.Type])
			}
			stmt := "CREATE TABLE " + quote(id) + " (" + strings.Join(columns, ", ") + ")"
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		} else {
			for _, f := range added {
				stmt := "ALTER TABLE " + quote(id) + " ADD COLUMN " + quote(f.ID) + " " + ds.dialect.Types[f.Type]
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
		}
		if isNew || strings.Join(oldKey, ",") != strings.Join(info.primaryKey, ",") {
			if err := ds.indexPrimaryKey(ctx, tx, info); err != nil {
				return err
			}
		}
		if err := ds.saveInfo(ctx, tx, info); err != nil {
			return err
		}

		fieldDicts := make([]interface{}, len(info.fields))
		for i, f := range info.fields {
			fieldDicts[i] = f.Dict()
		}
		keyList := make([]interface{}, len(info.primaryKey))
		for i, key := range info.primaryKey {
			keyList[i] = key
		}
		result = datastore.Dict{
			datastore.ResourceIDParam: id,
			datastore.FieldsParam:     fieldDicts,
			datastore.PrimaryKeyParam: keyList,
		}
		if _, present := params[datastore.RecordsParam]; present {
			records, err := ds.write(ctx, tx, info, params, datastore.MethodInsert)
			if err != nil {
				return err
			}
			result[datastore.RecordsParam] = records
		}
		return nil
	})
	return
}

// indexName is the name of the unique index backing a resource's
// primary key.
func indexName(id string) string {
	return id + "_pkey_idx"
}

// indexPrimaryKey (re)creates the unique index on a resource's
// primary key.  A key that existing rows violate fails with an
// integrity error.
func (ds *sqlDatastore) indexPrimaryKey(ctx context.Context, tx *sql.Tx, info *tableInfo) error {
	if _, err := tx.ExecContext(ctx, "DROP INDEX IF EXISTS "+quote(indexName(info.id))); err != nil {
		return err
	}
	if len(info.primaryKey) == 0 {
		return nil
	}
	stmt := "CREATE UNIQUE INDEX " + quote(indexName(info.id)) + " ON " + quote(info.id) +
		" (" + strings.Join(quoteAll(info.primaryKey), ", ") + ")"
	_, err := tx.ExecContext(ctx, stmt)
	return err
}

// whereClause builds the conditions for a set of equality filters.
func (ds *sqlDatastore) whereClause(info *tableInfo, filters datastore.Dict, params *queryParams) ([]string, error) {
	var conditions []string
	for id, raw := range filters {
		f, ok := info.field(id)
		if !ok {
			return nil, datastore.FieldErrors(datastore.Dict{
				datastore.FiltersParam: []interface{}{fmt.Sprintf("field %q not in table", id)},
			})
		}
		var alternatives []string
		for _, v := range datastore.FilterValues(raw) {
			coerced, err := datastore.Coerce(f.Type, v)
			if err != nil {
				return nil, datastore.FieldErrors(datastore.Dict{
					datastore.FiltersParam: []interface{}{err.Error()},
				})
			}
			if coerced == nil {
				alternatives = append(alternatives, quote(id)+" IS NULL")
				continue
			}
			value, err := toDB(f.Type, coerced)
			if err != nil {
				return nil, err
			}
			alternatives = append(alternatives, quote(id)+"="+params.Param(value))
		}
		switch len(alternatives) {
		case 0:
			conditions = append(conditions, "1=0")
		case 1:
			conditions = append(conditions, alternatives[0])
		default:
			conditions = append(conditions, "("+strings.Join(alternatives, " OR ")+")")
		}
	}
	return conditions, nil
}

// textConditions builds the conditions for a full-text query.
func (ds *sqlDatastore) textConditions(info *tableInfo, q interface{}, params *queryParams) ([]string, error) {
	match := func(columns []datastore.Field, text string) string {
		var alternatives []string
		for _, f := range columns {
			pattern := params.Param("%" + text + "%")
			alternatives = append(alternatives, "CAST("+quote(f.ID)+" AS TEXT) "+ds.dialect.Like+" "+pattern)
		}
		if len(alternatives) == 0 {
			return "1=0"
		}
		return "(" + strings.Join(alternatives, " OR ") + ")"
	}
	switch qq := q.(type) {
	case nil:
		return nil, nil
	case string:
		if qq == "" {
			return nil, nil
		}
		return []string{match(info.fields, qq)}, nil
	case map[string]interface{}:
		var conditions []string
		for id, v := range qq {
			f, ok := info.field(id)
			if !ok {
				return nil, datastore.FieldErrors(datastore.Dict{
					datastore.QueryParam: []interface{}{fmt.Sprintf("field %q not in table", id)},
				})
			}
			conditions = append(conditions, match([]datastore.Field{f}, fmt.Sprint(v)))
		}
		return conditions, nil
	}
	return nil, datastore.FieldErrors(datastore.Dict{
		datastore.QueryParam: []interface{}{"q must be a string or a dictionary"},
	})
}

func (ds *sqlDatastore) search(ctx context.Context, params datastore.Dict) (result datastore.Dict, err error) {
	id := datastore.StringParam(params, datastore.ResourceIDParam, "")
	if id == "" {
		return nil, datastore.FieldErrors(datastore.Dict{
			datastore.ResourceIDParam: []interface{}{"Missing value"},
		})
	}
	filters, err := datastore.ParseFilters(params)
	if err != nil {
		return
	}
	limit, err := datastore.IntParam(params, datastore.LimitParam, datastore.DefaultLimit)
	if err != nil {
		return
	}
	offset, err := datastore.IntParam(params, datastore.OffsetParam, 0)
	if err != nil {
		return
	}
	keys, err := datastore.ParseSort(params)
	if err != nil {
		return
	}

	err = ds.withTx(ctx, true, func(tx *sql.Tx) error {
		info, err := ds.loadInfo(ctx, tx, id)
		if err != nil {
			return err
		}
		selected := info.allFields()
		if names := datastore.ListParam(params, datastore.FieldsParam); len(names) > 0 {
			selected = nil
			for _, name := range names {
				f, ok := info.field(name)
				if !ok {
					return datastore.FieldErrors(datastore.Dict{
						datastore.FieldsParam: []interface{}{fmt.Sprintf("field %q not in table", name)},
					})
				}
				selected = append(selected, f)
			}
		}
		var order []string
		for _, key := range keys {
			if _, ok := info.field(key.Field); !ok {
				return datastore.FieldErrors(datastore.Dict{
					datastore.SortParam: []interface{}{fmt.Sprintf("field %q not in table", key.Field)},
				})
			}
			term := quote(key.Field)
			if key.Descending {
				term += " DESC"
			}
			order = append(order, term)
		}
		order = append(order, quote(datastore.BookkeepingField))

		qp := queryParams{dialect: ds.dialect}
		conditions, err := ds.whereClause(info, filters, &qp)
		if err != nil {
			return err
		}
		text, err := ds.textConditions(info, params[datastore.QueryParam], &qp)
		if err != nil {
			return err
		}
		conditions = append(conditions, text...)

		var total int64
		count := buildSelect([]string{"COUNT(*)"}, id, conditions)
		if err := tx.QueryRowContext(ctx, count, qp.values...).Scan(&total); err != nil {
			return err
		}

		outputs := make([]string, len(selected))
		for i, f := range selected {
			outputs[i] = quote(f.ID)
		}
		query := buildSelect(outputs, id, conditions) +
			" ORDER BY " + strings.Join(order, ", ") +
			fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
		rows, _, err := queryRows(ctx, tx, query, qp)
		if err != nil {
			return err
		}
		records := make([]interface{}, len(rows))
		for i, row := range rows {
			record := make(datastore.Dict, len(selected))
			for j, f := range selected {
				record[f.ID] = fromDB(f.Type, row[j])
			}
			records[i] = record
		}
		fieldDicts := make([]interface{}, len(selected))
		for i, f := range selected {
			fieldDicts[i] = f.Dict()
		}
		result = datastore.Dict{
			datastore.ResourceIDParam: id,
			datastore.FieldsParam:     fieldDicts,
			datastore.RecordsParam:    records,
			datastore.FiltersParam:    filters,
			datastore.LimitParam:      int64(limit),
			datastore.OffsetParam:     int64(offset),
			datastore.TotalParam:      total,
		}
		return nil
	})
	return
}

func (ds *sqlDatastore) upsert(ctx context.Context, params datastore.Dict) (result datastore.Dict, err error) {
	id := datastore.StringParam(params, datastore.ResourceIDParam, "")
	method := datastore.StringParam(params, datastore.MethodParam, datastore.MethodUpsert)
	err = ds.withTx(ctx, false, func(tx *sql.Tx) error {
		info, err := ds.loadInfo(ctx, tx, id)
		if err != nil {
			return err
		}
		records, err := ds.write(ctx, tx, info, params, method)
		if err != nil {
			return err
		}
		result = datastore.Dict{
			datastore.ResourceIDParam: id,
			datastore.RecordsParam:    records,
			datastore.MethodParam:     method,
		}
		return nil
	})
	return
}

// write applies the records parameter to a resource inside a
// transaction.  Every record is validated before any is written.
func (ds *sqlDatastore) write(ctx context.Context, tx *sql.Tx, info *tableInfo, params datastore.Dict, method string) ([]interface{}, error) {
	switch method {
	case datastore.MethodInsert:
	case datastore.MethodUpsert, datastore.MethodUpdate:
		if len(info.primaryKey) == 0 {
			return nil, datastore.FieldErrors(datastore.Dict{
				datastore.MethodParam: []interface{}{fmt.Sprintf("table %q does not have a unique key defined", info.id)},
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
	coerced := make([]datastore.Dict, len(records))
	for row, in := range records {
		values, err := datastore.CoerceRecord(info.fields, row, in)
		if err != nil {
			return nil, err
		}
		if method != datastore.MethodInsert {
			for _, key := range info.primaryKey {
				if values[key] == nil {
					return nil, datastore.FieldErrors(datastore.Dict{
						datastore.RecordsParam: []interface{}{fmt.Sprintf("row %d: fields %v are missing but needed as key", row+1, info.primaryKey)},
					})
				}
			}
		}
		coerced[row] = values
	}

	result := make([]interface{}, len(coerced))
	for row, values := range coerced {
		var err error
		switch method {
		case datastore.MethodInsert:
			err = ds.insertRecord(ctx, tx, info, values, false)
		case datastore.MethodUpsert:
			err = ds.insertRecord(ctx, tx, info, values, true)
		case datastore.MethodUpdate:
			err = ds.updateRecord(ctx, tx, info, row, values)
		}
		if err != nil {
			return nil, err
		}
		result[row] = values
	}
	return result, nil
}

// recordFields builds the column list for one record, in field
// order.
func (ds *sqlDatastore) recordFields(info *tableInfo, values datastore.Dict, qp *queryParams) (fieldList, error) {
	var fields fieldList
	for _, f := range info.fields {
		v, present := values[f.ID]
		if !present {
			continue
		}
		value, err := toDB(f.Type, v)
		if err != nil {
			return fields, err
		}
		fields.Add(qp, f.ID, value)
	}
	return fields, nil
}

func (ds *sqlDatastore) insertRecord(ctx context.Context, tx *sql.Tx, info *tableInfo, values datastore.Dict, upsert bool) error {
	qp := queryParams{dialect: ds.dialect}
	fields, err := ds.recordFields(info, values, &qp)
	if err != nil {
		return err
	}
	stmt := fields.InsertStatement(info.id)
	if upsert {
		isKey := make(map[string]bool)
		for _, key := range info.primaryKey {
			isKey[quote(key)] = true
		}
		var changes []string
		for _, fp := range fields.Fields {
			if !isKey[fp.Field] {
				changes = append(changes, fp.Field+"=excluded."+fp.Field)
			}
		}
		stmt += " ON CONFLICT (" + strings.Join(quoteAll(info.primaryKey), ", ") + ")"
		if len(changes) == 0 {
			stmt += " DO NOTHING"
		} else {
			stmt += " DO UPDATE SET " + strings.Join(changes, ", ")
		}
	}
	_, err = tx.ExecContext(ctx, stmt, qp.values...)
	return err
}

func (ds *sqlDatastore) updateRecord(ctx context.Context, tx *sql.Tx, info *tableInfo, row int, values datastore.Dict) error {
	qp := queryParams{dialect: ds.dialect}
	isKey := make(map[string]bool)
	for _, key := range info.primaryKey {
		isKey[key] = true
	}
	changes := make(datastore.Dict)
	for k, v := range values {
		if !isKey[k] {
			changes[k] = v
		}
	}
	fields, err := ds.recordFields(info, changes, &qp)
	if err != nil {
		return err
	}
	var conditions []string
	for _, key := range info.primaryKey {
		f, _ := info.field(key)
		value, err := toDB(f.Type, values[key])
		if err != nil {
			return err
		}
		conditions = append(conditions, quote(key)+"="+qp.Param(value))
	}

	var affected int64
	if len(fields.Fields) == 0 {
		query := buildSelect([]string{"COUNT(*)"}, info.id, conditions)
		err = tx.QueryRowContext(ctx, query, qp.values...).Scan(&affected)
	} else {
		var res sql.Result
		res, err = tx.ExecContext(ctx, buildUpdate(info.id, fields.UpdateChanges(), conditions), qp.values...)
		if err == nil {
			affected, err = res.RowsAffected()
		}
	}
	if err != nil {
		return err
	}
	if affected == 0 {
		return datastore.FieldErrors(datastore.Dict{
			datastore.RecordsParam: []interface{}{fmt.Sprintf("row %d: key not found", row+1)},
		})
	}
	return nil
}

func (ds *sqlDatastore) delete(ctx context.Context, params datastore.Dict) (result datastore.Dict, err error) {
	id := datastore.StringParam(params, datastore.ResourceIDParam, "")
	filters, err := datastore.ParseFilters(params)
	if err != nil {
		return
	}
	err = ds.withTx(ctx, false, func(tx *sql.Tx) error {
		info, err := ds.loadInfo(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(filters) == 0 {
			if _, err := tx.ExecContext(ctx, "DROP TABLE "+quote(id)); err != nil {
				return err
			}
			if err := ds.deleteInfo(ctx, tx, id); err != nil {
				return err
			}
			result = datastore.Dict{datastore.ResourceIDParam: id}
			return nil
		}
		qp := queryParams{dialect: ds.dialect}
		conditions, err := ds.whereClause(info, filters, &qp)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+quote(id)+buildWhere(conditions), qp.values...); err != nil {
			return err
		}
		result = datastore.Dict{
			datastore.ResourceIDParam: id,
			datastore.FiltersParam:    filters,
		}
		return nil
	})
	return
}

// errNotSelect is the cause of search query errors for statements
// that could modify data.
var errNotSelect = errors.New("only SELECT statements are allowed")

func (ds *sqlDatastore) searchSQL(ctx context.Context, params datastore.Dict) (result datastore.Dict, err error) {
	statement := strings.TrimSpace(datastore.StringParam(params, datastore.SQLParam, ""))
	if statement == "" {
		return nil, datastore.FieldErrors(datastore.Dict{
			datastore.SQLParam: []interface{}{"Missing value"},
		})
	}
	first := strings.ToUpper(strings.SplitN(strings.Fields(statement)[0], "(", 2)[0])
	if first != "SELECT" && first != "WITH" {
		return nil, datastore.SearchQueryError(errNotSelect)
	}
	if strings.Contains(strings.TrimRight(statement, "; \t\n"), ";") {
		return nil, datastore.SearchQueryError(errNotSelect)
	}

	err = ds.withTx(ctx, true, func(tx *sql.Tx) error {
		rows, columns, err := queryRows(ctx, tx, statement, queryParams{dialect: ds.dialect})
		if err != nil {
			return err
		}
		records := make([]interface{}, len(rows))
		for i, row := range rows {
			record := make(datastore.Dict, len(columns))
			for j, column := range columns {
				record[column.Name()] = fromDB("", row[j])
			}
			records[i] = record
		}
		fields := make([]interface{}, len(columns))
		for j, column := range columns {
			fieldType := guessType(rows, j)
			if column.DatabaseTypeName() != "" {
				fieldType = columnType(column.DatabaseTypeName())
			}
			fields[j] = datastore.Field{ID: column.Name(), Type: fieldType}.Dict()
		}
		result = datastore.Dict{
			datastore.SQLParam:     statement,
			datastore.FieldsParam:  fields,
			datastore.RecordsParam: records,
		}
		return nil
	})
	if err != nil {
		return nil, classifySQL(err)
	}
	return
}

// guessType infers a column type from the first non-null value in a
// result column.
func guessType(rows [][]interface{}, column int) string {
	for _, row := range rows {
		switch v := row[column].(type) {
		case nil:
			continue
		case bool:
			return datastore.TypeBool
		case float32, float64:
			return datastore.TypeNumeric
		default:
			if _, ok := datastore.ToInt64(v); ok {
				return datastore.TypeInt
			}
			return datastore.TypeText
		}
	}
	return datastore.TypeText
}
