// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/diffeo/go-datastore/datastore"
)

// tableInfo is the stored description of one resource.
type tableInfo struct {
	id         string
	fields     []datastore.Field
	primaryKey []string
}

// field returns the descriptor of a named field, including the
// bookkeeping field.
func (info *tableInfo) field(id string) (datastore.Field, bool) {
	if id == datastore.BookkeepingField {
		return datastore.Field{ID: id, Type: datastore.TypeInt}, true
	}
	for _, f := range info.fields {
		if f.ID == id {
			return f, true
		}
	}
	return datastore.Field{}, false
}

// allFields returns the bookkeeping field followed by the resource's
// fields.
func (info *tableInfo) allFields() []datastore.Field {
	return append([]datastore.Field{{ID: datastore.BookkeepingField, Type: datastore.TypeInt}}, info.fields...)
}

// loadInfo reads the metadata of a resource.  Returns a not-found
// error if it does not exist.
func (ds *sqlDatastore) loadInfo(ctx context.Context, tx *sql.Tx, id string) (*tableInfo, error) {
	info := &tableInfo{id: id}
	params := queryParams{dialect: ds.dialect}
	query := buildSelect([]string{"primary_key"}, "datastore_resources",
		[]string{"resource_id=" + params.Param(id)})
	var primaryKey string
	err := tx.QueryRowContext(ctx, query, params.values...).Scan(&primaryKey)
	if err == sql.ErrNoRows {
		return nil, datastore.NotFound("Resource %q was not found.", id)
	}
	if err != nil {
		return nil, err
	}
	if primaryKey != "" {
		info.primaryKey = strings.Split(primaryKey, ",")
	}

	params = queryParams{dialect: ds.dialect}
	query = buildSelect([]string{"field_id", "field_type"}, "datastore_fields",
		[]string{"resource_id=" + params.Param(id)}) + " ORDER BY position"
	rows, err := tx.QueryContext(ctx, query, params.values...)
	if err != nil {
		return nil, err
	}
	err = scanRows(rows, func() error {
		var f datastore.Field
		if err := rows.Scan(&f.ID, &f.Type); err != nil {
			return err
		}
		info.fields = append(info.fields, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// saveInfo writes the metadata of a resource, replacing whatever was
// there.
func (ds *sqlDatastore) saveInfo(ctx context.Context, tx *sql.Tx, info *tableInfo) error {
	if err := ds.deleteInfo(ctx, tx, info.id); err != nil {
		return err
	}
	params := queryParams{dialect: ds.dialect}
	var fields fieldList
	fields.Add(&params, "resource_id", info.id)
	fields.Add(&params, "primary_key", strings.Join(info.primaryKey, ","))
	if _, err := tx.ExecContext(ctx, fields.InsertStatement("datastore_resources"), params.values...); err != nil {
		return err
	}
	for i, f := range info.fields {
		params = queryParams{dialect: ds.dialect}
		fields = fieldList{}
		fields.Add(&params, "resource_id", info.id)
		fields.Add(&params, "position", i)
		fields.Add(&params, "field_id", f.ID)
		fields.Add(&params, "field_type", f.Type)
		if _, err := tx.ExecContext(ctx, fields.InsertStatement("datastore_fields"), params.values...); err != nil {
			return err
		}
	}
	return nil
}

// deleteInfo removes the metadata of a resource.
func (ds *sqlDatastore) deleteInfo(ctx context.Context, tx *sql.Tx, id string) error {
	for _, table := range []string{"datastore_fields", "datastore_resources"} {
		params := queryParams{dialect: ds.dialect}
		query := "DELETE FROM " + table + buildWhere([]string{"resource_id=" + params.Param(id)})
		if _, err := tx.ExecContext(ctx, query, params.values...); err != nil {
			return err
		}
	}
	return nil
}
