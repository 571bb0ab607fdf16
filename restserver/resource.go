// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"fmt"

	"github.com/diffeo/go-datastore/datastore"
)

// identifierField is the integer primary key added to every resource.
const identifierField = "pk"

// identifierDescriptor is the field descriptor of identifierField.
func identifierDescriptor() datastore.Dict {
	return datastore.Dict{"id": identifierField, "type": datastore.TypeInt}
}

// UpsertResourceParams builds the parameters to create or extend a
// resource.  The body must be a list of field descriptors, none of
// which may be the identifier field.  The descriptors are checked,
// and then the identifier field is added in front of them as the
// resource's only primary key.
func (api *restAPI) UpsertResourceParams(ctx *context) (datastore.Dict, error) {
	body, err := ctx.Body()
	if err != nil {
		return nil, err
	}
	notValid := datastore.ValidationError("Only lists of dicts can be placed to create resources", body)
	list, ok := body.([]interface{})
	if !ok {
		return nil, notValid
	}
	for _, item := range list {
		field, ok := item.(map[string]interface{})
		if !ok {
			return nil, notValid
		}
		if id, _ := field["id"].(string); id == identifierField {
			return nil, datastore.ValidationError(
				fmt.Sprintf("The field '%s' cannot be used since it's used internally", identifierField), nil)
		}
	}
	if _, err = datastore.ParseFields(list); err != nil {
		return nil, err
	}

	fields := make([]interface{}, 0, len(list)+1)
	fields = append(fields, identifierDescriptor())
	fields = append(fields, list...)
	return datastore.Dict{
		datastore.ResourceIDParam: ctx.ResourceID,
		datastore.FieldsParam:     fields,
		datastore.PrimaryKeyParam: []interface{}{identifierField},
		datastore.ForceParam:      true,
	}, nil
}

// FieldsShape renders the fields of a result.
func (api *restAPI) FieldsShape(ctx *context, result datastore.Dict) (string, error) {
	return ctx.Render(result, datastore.FieldsParam, -1)
}

// StructureParams builds the parameters to search a resource, for its
// fields.
func (api *restAPI) StructureParams(ctx *context) (datastore.Dict, error) {
	return datastore.Dict{datastore.ResourceIDParam: ctx.ResourceID}, nil
}

// StructureShape renders the fields of a search result, less the
// datastore's own row id.
func (api *restAPI) StructureShape(ctx *context, result datastore.Dict) (string, error) {
	if fields, ok := result[datastore.FieldsParam].([]interface{}); ok {
		for i, item := range fields {
			field, _ := item.(map[string]interface{})
			if field["id"] == datastore.BookkeepingField {
				result[datastore.FieldsParam] = append(fields[:i:i], fields[i+1:]...)
				break
			}
		}
	}
	return ctx.Render(result, datastore.FieldsParam, -1)
}

// DeleteResourceParams builds the parameters to delete a whole
// resource.  Query parameters are passed along, except filters, which
// would turn this into a partial delete.
func (api *restAPI) DeleteResourceParams(ctx *context) (datastore.Dict, error) {
	params := ctx.Params()
	delete(params, datastore.FiltersParam)
	params[datastore.ResourceIDParam] = ctx.ResourceID
	params[datastore.ForceParam] = true
	return params, nil
}

// emptyShape renders nothing at all.
func emptyShape(ctx *context, result datastore.Dict) (string, error) {
	return "", nil
}
