// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/diffeo/go-datastore/datastore"
)

// optionPrefix marks the query parameters of an entry search that are
// search options rather than filters.
const optionPrefix = "$"

// maxColumn names the result column of the identifier query.
const maxColumn = "max"

// reservedParams stay top-level in an entry search even without
// optionPrefix.
var reservedParams = map[string]bool{
	datastore.ResourceIDParam: true,
	datastore.FiltersParam:    true,
}

func init() {
	for _, option := range datastore.SearchOptions {
		reservedParams[option] = true
	}
}

// entryNotFound is the error for a missing entry.
func entryNotFound(ctx *context) error {
	return datastore.NotFound("The element %s does not exist in the resource %s", ctx.EntryID, ctx.ResourceID)
}

// entryFilter builds search parameters matching only the URL's entry.
func entryFilter(ctx *context) datastore.Dict {
	return datastore.Dict{
		datastore.ResourceIDParam: ctx.ResourceID,
		datastore.FiltersParam:    datastore.Dict{identifierField: ctx.EntryID},
	}
}

// SearchEntriesParams builds search parameters from the query.
// Search options are given as "$limit", "$sort", and so on; every
// other parameter filters on the field it names.
func (api *restAPI) SearchEntriesParams(ctx *context) (datastore.Dict, error) {
	params := ctx.Params()
	for _, option := range datastore.SearchOptions {
		if value, present := params[optionPrefix+option]; present {
			params[option] = value
			delete(params, optionPrefix+option)
		}
	}
	params[datastore.ResourceIDParam] = ctx.ResourceID
	filters := datastore.Dict{}
	for name, value := range params {
		if !reservedParams[name] {
			filters[name] = value
			delete(params, name)
		}
	}
	params[datastore.FiltersParam] = filters
	return params, nil
}

// RecordsShape renders the records of a result.
func (api *restAPI) RecordsShape(ctx *context, result datastore.Dict) (string, error) {
	return ctx.Render(result, datastore.RecordsParam, -1)
}

// EntryShape renders the first record of a result.
func (api *restAPI) EntryShape(ctx *context, result datastore.Dict) (string, error) {
	return ctx.Render(result, datastore.RecordsParam, 0)
}

// CreateEntriesParams builds the parameters to add new entries.  The
// body must be a list of objects, none of which has an identifier.
// Identifiers are assigned in order, starting after the largest one
// already in the resource.
func (api *restAPI) CreateEntriesParams(ctx *context) (datastore.Dict, error) {
	body, err := ctx.Body()
	if err != nil {
		return nil, err
	}
	notValid := datastore.ValidationError("Only lists of dicts can be placed to create entries", body)
	list, ok := body.([]interface{})
	if !ok {
		return nil, notValid
	}
	records := make([]datastore.Dict, len(list))
	for i, item := range list {
		record, ok := item.(map[string]interface{})
		if !ok {
			return nil, notValid
		}
		if _, present := record[identifierField]; present {
			return nil, datastore.ValidationError(
				fmt.Sprintf("The field '%s' is assigned automatically", identifierField), nil)
		}
		records[i] = record
	}

	maxID, err := api.maxIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		maxID++
		record[identifierField] = maxID
	}
	return datastore.Dict{
		datastore.ResourceIDParam: ctx.ResourceID,
		datastore.RecordsParam:    list,
		datastore.MethodParam:     datastore.MethodUpsert,
		datastore.ForceParam:      true,
	}, nil
}

// maxIdentifier finds the largest identifier in the URL's resource,
// or 0 if it is empty.
func (api *restAPI) maxIdentifier(ctx *context) (int64, error) {
	sql := fmt.Sprintf(`SELECT MAX(%s) AS %s FROM %s`,
		quoteIdentifier(identifierField), quoteIdentifier(maxColumn), quoteIdentifier(ctx.ResourceID))
	result, err := ctx.Call(datastore.ActionSearchSQL, datastore.Dict{datastore.SQLParam: sql})
	if err != nil {
		return 0, err
	}
	records := datastore.AsRecords(result[datastore.RecordsParam])
	if len(records) == 0 || records[0][maxColumn] == nil {
		return 0, nil
	}
	max, ok := datastore.ToInt64(records[0][maxColumn])
	if !ok {
		return 0, fmt.Errorf("unexpected maximum identifier %v", records[0][maxColumn])
	}
	return max, nil
}

// EntriesLocation returns the URL of the URL's resource's entries.
// Bulk creation answers 201 Created with this as its Location, where
// older servers answered 200 with no header.
func (api *restAPI) EntriesLocation(ctx *context) (string, error) {
	return ctx.URL("entries", "resource_id", ctx.ResourceID)
}

// UpsertEntryParams builds the parameters to create or replace a
// single entry.  The body must be a non-empty object; if it has an
// identifier, it must be the URL's.
func (api *restAPI) UpsertEntryParams(ctx *context) (datastore.Dict, error) {
	body, err := ctx.Body()
	if err != nil {
		return nil, err
	}
	record, ok := body.(map[string]interface{})
	if !ok {
		return nil, datastore.ValidationError("Only dicts can be placed to create/modify an entry", body)
	}
	if len(record) == 0 {
		return nil, datastore.ValidationError("Empty object received", nil)
	}
	entryID, err := strconv.ParseInt(strings.TrimSpace(ctx.EntryID), 10, 64)
	if err != nil {
		return nil, datastore.BadRequest(errors.New("invalid entry identifier " + strconv.Quote(ctx.EntryID)))
	}
	if pk, present := record[identifierField]; present {
		if id, ok := datastore.ToInt64(pk); !ok || id != entryID {
			return nil, datastore.ValidationError("The entry identifier cannot be changed", nil)
		}
	}
	record[identifierField] = entryID
	return datastore.Dict{
		datastore.ResourceIDParam: ctx.ResourceID,
		datastore.RecordsParam:    []interface{}{record},
		datastore.MethodParam:     datastore.MethodUpsert,
		datastore.ForceParam:      true,
	}, nil
}

// GetEntryParams builds search parameters for the URL's entry.
func (api *restAPI) GetEntryParams(ctx *context) (datastore.Dict, error) {
	return entryFilter(ctx), nil
}

// GetEntryShape renders the single record of a result, which must
// have exactly one.
func (api *restAPI) GetEntryShape(ctx *context, result datastore.Dict) (string, error) {
	if len(datastore.AsRecords(result[datastore.RecordsParam])) != 1 {
		return "", entryNotFound(ctx)
	}
	return ctx.Render(result, datastore.RecordsParam, 0)
}

// DeleteEntryParams builds the parameters to delete the URL's entry,
// after checking that it exists.  The entry could still be deleted by
// someone else between the check and the delete.
func (api *restAPI) DeleteEntryParams(ctx *context) (datastore.Dict, error) {
	found, err := ctx.Call(datastore.ActionSearch, entryFilter(ctx))
	if err != nil {
		return nil, err
	}
	if len(datastore.AsRecords(found[datastore.RecordsParam])) != 1 {
		return nil, entryNotFound(ctx)
	}
	params := entryFilter(ctx)
	params[datastore.ForceParam] = true
	return params, nil
}
