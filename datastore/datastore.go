// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package datastore defines an abstract API to a tabular datastore.
//
// A datastore holds resources, each of which is a named table with an
// ordered list of typed fields and a collection of records.  All work
// is done by calling named actions, such as "datastore_search", with
// a parameter dictionary; each action returns a result dictionary.
// This mirrors the "logic function" convention of data catalog
// frameworks, and keeps the REST layer independent of any particular
// storage engine.
//
// Implementations of this API live in the memory and sqlstore
// packages.  Errors returned from actions should be *Error values
// carrying a Kind; anything else is treated as an unexpected failure.
package datastore

import (
	"context"
)

// Names of the actions every Datastore implements.
const (
	// ActionCreate creates (or redefines) a resource.  Parameters
	// are ResourceIDParam, FieldsParam, and optionally
	// PrimaryKeyParam, RecordsParam, and ForceParam.
	ActionCreate = "datastore_create"

	// ActionSearch searches a resource.  Parameters are
	// ResourceIDParam, FiltersParam, and the search options in
	// SearchOptions.
	ActionSearch = "datastore_search"

	// ActionUpsert inserts or updates records.  Parameters are
	// ResourceIDParam, RecordsParam, MethodParam, and ForceParam.
	ActionUpsert = "datastore_upsert"

	// ActionDelete deletes records matching FiltersParam, or the
	// entire resource if there are no filters.
	ActionDelete = "datastore_delete"

	// ActionSearchSQL runs a raw, read-only SQL statement given in
	// SQLParam.
	ActionSearchSQL = "datastore_search_sql"
)

// Well-known parameter and result keys.
const (
	ResourceIDParam = "resource_id"
	FieldsParam     = "fields"
	RecordsParam    = "records"
	FiltersParam    = "filters"
	PrimaryKeyParam = "primary_key"
	ForceParam      = "force"
	MethodParam     = "method"
	SQLParam        = "sql"
	QueryParam      = "q"
	PlainParam      = "plain"
	LanguageParam   = "language"
	LimitParam      = "limit"
	OffsetParam     = "offset"
	SortParam       = "sort"
	TotalParam      = "total"
)

// SearchOptions lists the search parameters, other than filters, that
// ActionSearch understands.
var SearchOptions = []string{
	QueryParam, PlainParam, LanguageParam, LimitParam, OffsetParam,
	FieldsParam, SortParam,
}

// Upsert methods accepted in MethodParam.
const (
	MethodUpsert = "upsert"
	MethodInsert = "insert"
	MethodUpdate = "update"
)

// BookkeepingField is the name of the row identifier every datastore
// maintains on its own.  It appears as the first field of every
// resource and in every record a search returns.
const BookkeepingField = "_id"

// DefaultLimit is the number of records a search returns if no limit
// is given.
const DefaultLimit = 100

// Dict is a JSON-like dictionary.  Values are nil, bool, int64,
// float64, string, []interface{}, or nested Dict (or
// map[string]interface{}) values.
type Dict = map[string]interface{}

// Action is a single named datastore operation.  params is owned by
// the action for the duration of the call.
type Action func(ctx context.Context, params Dict) (Dict, error)

// Datastore is the principal interface to a datastore.  Implementations
// provide a specific storage engine.
type Datastore interface {
	// Action retrieves an action by name.  If the name is not one
	// the datastore understands, returns an error of kind
	// KindUnexpected.
	Action(name string) (Action, error)
}

// Call is a convenience wrapper that looks up an action and calls it.
func Call(ctx context.Context, ds Datastore, name string, params Dict) (Dict, error) {
	action, err := ds.Action(name)
	if err != nil {
		return nil, err
	}
	return action(ctx, params)
}

// Actions is a simple Datastore built from a map of action names to
// functions.
type Actions map[string]Action

// Action implements Datastore.
func (a Actions) Action(name string) (Action, error) {
	if action, ok := a[name]; ok && action != nil {
		return action, nil
	}
	return nil, ErrNoSuchAction{Name: name}
}

type userKey struct{}

// WithUser returns a copy of ctx carrying the name of the user on whose
// behalf actions run.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// User returns the user name stored in ctx by WithUser, or an empty
// string for anonymous requests.
func User(ctx context.Context) string {
	if user, ok := ctx.Value(userKey{}).(string); ok {
		return user
	}
	return ""
}
