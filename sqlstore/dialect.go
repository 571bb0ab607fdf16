// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"fmt"
	"strings"

	"github.com/diffeo/go-datastore/datastore"
)

// Dialect describes the differences between the SQL engines this
// package supports.
type Dialect struct {
	// Driver is the database/sql driver name.
	Driver string

	// Migrate is the sql-migrate dialect name.
	Migrate string

	// RowID is the column definition of the bookkeeping field.
	RowID string

	// Types maps canonical field types to column types.
	Types map[string]string

	// Like is the case-insensitive pattern match operator.
	Like string

	// Numbered is true if placeholders are $1, $2, ... rather
	// than ?.
	Numbered bool

	// Isolation is true if transactions should explicitly set a
	// repeatable-read isolation level.
	Isolation bool
}

// Postgres is the PostgreSQL dialect, using github.com/lib/pq.
var Postgres = &Dialect{
	Driver:  "postgres",
	Migrate: "postgres",
	RowID:   `"_id" BIGSERIAL PRIMARY KEY`,
	Types: map[string]string{
		datastore.TypeInt:       "BIGINT",
		datastore.TypeNumeric:   "NUMERIC",
		datastore.TypeText:      "TEXT",
		datastore.TypeBool:      "BOOLEAN",
		datastore.TypeTimestamp: "TIMESTAMP",
		datastore.TypeJSON:      "TEXT",
	},
	Like:      "ILIKE",
	Numbered:  true,
	Isolation: true,
}

// SQLite is the SQLite dialect, using modernc.org/sqlite.  Timestamps
// are stored as text in datastore.TimestampLayout, which sorts
// correctly.
var SQLite = &Dialect{
	Driver:  "sqlite",
	Migrate: "sqlite3",
	RowID:   `"_id" INTEGER PRIMARY KEY AUTOINCREMENT`,
	Types: map[string]string{
		datastore.TypeInt:       "INTEGER",
		datastore.TypeNumeric:   "REAL",
		datastore.TypeText:      "TEXT",
		datastore.TypeBool:      "BOOLEAN",
		datastore.TypeTimestamp: "TEXT",
		datastore.TypeJSON:      "TEXT",
	},
	Like: "LIKE",
}

// quote quotes an SQL identifier.  Identifiers are checked to not
// contain double quotes before they get here.
func quote(id string) string {
	return `"` + strings.Replace(id, `"`, `""`, -1) + `"`
}

// quoteAll quotes a list of identifiers.
func quoteAll(ids []string) []string {
	result := make([]string, len(ids))
	for i, id := range ids {
		result[i] = quote(id)
	}
	return result
}

// queryParams wraps a list of query parameters.
type queryParams struct {
	dialect *Dialect
	values  []interface{}
}

// Param adds a parameter to the query parameter list, returning its
// placeholder.
func (qp *queryParams) Param(param interface{}) string {
	qp.values = append(qp.values, param)
	if qp.dialect.Numbered {
		return fmt.Sprintf("$%v", len(qp.values))
	}
	return "?"
}

// fieldPair is a pair of values in a fieldList.
type fieldPair struct {
	Field string
	Value string
}

// fieldList is a list of "field=value" pairs as appears in SQL INSERT
// and UPDATE statements.
type fieldList struct {
	Fields []fieldPair
}

// Add adds a quoted name and dynamic value to the field list.
func (f *fieldList) Add(qp *queryParams, field string, value interface{}) {
	f.Fields = append(f.Fields, fieldPair{Field: quote(field), Value: qp.Param(value)})
}

// MapFields converts a field list to a string slice by calling a
// function on every field pair.
func (f fieldList) MapFields(mf func(fp fieldPair) string) []string {
	result := make([]string, len(f.Fields))
	for i, field := range f.Fields {
		result[i] = mf(field)
	}
	return result
}

// InsertStatement produces a syntactically complete SQL INSERT
// statement.
func (f fieldList) InsertStatement(table string) string {
	if len(f.Fields) == 0 {
		return "INSERT INTO " + quote(table) + " DEFAULT VALUES"
	}
	names := f.MapFields(func(fp fieldPair) string { return fp.Field })
	values := f.MapFields(func(fp fieldPair) string { return fp.Value })
	return "INSERT INTO " + quote(table) + " (" + strings.Join(names, ", ") +
		") VALUES (" + strings.Join(values, ", ") + ")"
}

// UpdateChanges converts a field list into a list of "field=value"
// statements, suitable for the "changes" part of an UPDATE statement.
func (f fieldList) UpdateChanges() []string {
	return f.MapFields(func(fp fieldPair) string { return fp.Field + "=" + fp.Value })
}

// buildSelect constructs a simple SQL SELECT statement by string
// concatenation.  All of the conditions are ANDed together.
func buildSelect(outputs []string, table string, conditions []string) string {
	query := "SELECT "
	query += strings.Join(outputs, ", ")
	query += " FROM " + quote(table)
	query += buildWhere(conditions)
	return query
}

// buildUpdate constructs a simple SQL UPDATE statement by string
// concatenation.  All of the conditions are ANDed together.
func buildUpdate(table string, changes, conditions []string) string {
	query := "UPDATE " + quote(table)
	if len(changes) > 0 {
		query += " SET " + strings.Join(changes, ", ")
	}
	query += buildWhere(conditions)
	return query
}

func buildWhere(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}
