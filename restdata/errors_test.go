// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/stretchr/testify/assert"
)

type teapot struct{}

func (teapot) Error() string   { return "short and stout" }
func (teapot) HTTPStatus() int { return http.StatusTeapot }

type statusError struct {
	status  int
	message string
}

func (e statusError) Error() string   { return e.message }
func (e statusError) HTTPStatus() int { return e.status }

func TestFromError(t *testing.T) {
	params := datastore.Dict{"resource_id": "r", "force": true}
	for _, c := range []struct {
		Name   string
		Err    error
		Status int
		Body   datastore.Dict
	}{
		{
			Name:   "bad request",
			Err:    datastore.BadRequest(errors.New("JSON Error: nope")),
			Status: 400,
			Body:   datastore.Dict{"__type": "Bad request", "message": "JSON Error: nope"},
		},
		{
			Name:   "integrity",
			Err:    datastore.IntegrityError("duplicate key value", nil),
			Status: 400,
			Body: datastore.Dict{
				"__type":  "Integrity Error",
				"message": "duplicate key value",
				"data":    params,
			},
		},
		{
			Name:   "access denied",
			Err:    datastore.NotAuthorized(""),
			Status: 403,
			Body:   datastore.Dict{"__type": "Access denied"},
		},
		{
			Name:   "not found",
			Err:    datastore.NotFound("The element 3 does not exist in the resource r"),
			Status: 404,
			Body: datastore.Dict{
				"__type":  "Not found",
				"message": "The element 3 does not exist in the resource r",
			},
		},
		{
			Name:   "validation message",
			Err:    datastore.ValidationError("Only lists of dicts can be placed to create entries", "x"),
			Status: 409,
			Body: datastore.Dict{
				"__type":  "Validation Error",
				"message": "Only lists of dicts can be placed to create entries",
				"data":    "x",
			},
		},
		{
			Name:   "validation fields",
			Err:    datastore.FieldErrors(datastore.Dict{"fields": []interface{}{"bad"}}),
			Status: 409,
			Body: datastore.Dict{
				"__type": "Validation Error",
				"fields": []interface{}{"bad"},
			},
		},
		{
			Name:   "search query",
			Err:    datastore.SearchQueryError(errors.New("syntax error at or near \"SELEC\"")),
			Status: 400,
			Body: datastore.Dict{
				"__type":  "Search Query Error",
				"message": "Search Query is invalid: syntax error at or near \"SELEC\"",
			},
		},
		{
			Name:   "search",
			Err:    datastore.SearchError(errors.New("canceling statement")),
			Status: 409,
			Body:   datastore.Dict{"__type": "Search Error", "message": "Search error: canceling statement"},
		},
		{
			Name:   "search index",
			Err:    datastore.SearchIndexError(errors.New("solr is down")),
			Status: 500,
			Body: datastore.Dict{
				"__type":  "Search Index Error",
				"message": "Unable to add package to search index: solr is down",
			},
		},
		{
			Name:   "wrapped",
			Err:    fmt.Errorf("while searching: %w", datastore.NotFound("gone")),
			Status: 404,
			Body:   datastore.Dict{"__type": "Not found", "message": "gone"},
		},
		{
			Name:   "unexpected",
			Err:    errors.New("secret internal detail"),
			Status: 500,
			Body:   datastore.Dict{"__type": "Unexpected Error", "message": "An unexpected error occurred"},
		},
		{
			Name:   "no such action",
			Err:    datastore.ErrNoSuchAction{Name: "datastore_frobnicate"},
			Status: 500,
			Body:   datastore.Dict{"__type": "Unexpected Error", "message": "An unexpected error occurred"},
		},
		{
			Name:   "unknown status error",
			Err:    teapot{},
			Status: 500,
			Body:   datastore.Dict{"__type": "Unexpected Error", "message": "An unexpected error occurred"},
		},
		{
			Name:   "not found status error",
			Err:    statusError{http.StatusNotFound, "gone fishing"},
			Status: 404,
			Body:   datastore.Dict{"__type": "Not found", "message": "gone fishing"},
		},
		{
			Name:   "bad request status error",
			Err:    statusError{http.StatusBadRequest, "malformed"},
			Status: 400,
			Body:   datastore.Dict{"__type": "Bad request", "message": "malformed"},
		},
		{
			Name:   "conflict status error",
			Err:    statusError{http.StatusConflict, "clash"},
			Status: 409,
			Body:   datastore.Dict{"__type": "Validation Error", "message": "clash"},
		},
	} {
		httpErr := FromError(c.Err, params)
		assert.Equal(t, c.Status, httpErr.HTTPStatus(), c.Name)
		assert.Equal(t, c.Body, httpErr.Response.Error, c.Name)
	}
}

func TestFromPanic(t *testing.T) {
	httpErr, stack := FromPanic("boom")
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Equal(t, "Unexpected Error", httpErr.Response.Type())
	assert.Equal(t, UnexpectedMessage, httpErr.Response.Message())
	assert.Contains(t, stack, "TestFromPanic")
}

func TestToError(t *testing.T) {
	for _, c := range []struct {
		Response ErrorResponse
		Kind     datastore.Kind
		Message  string
	}{
		{NewErrorResponse("Not found", "nope"), datastore.KindNotFound, "nope"},
		{NewErrorResponse("Access denied", ""), datastore.KindNotAuthorized, "Access denied"},
		{NewErrorResponse("Search Error", "Search error: x"), datastore.KindSearch, "Search error: x"},
		{NewErrorResponse("Something Else", "?"), datastore.KindUnexpected, "?"},
	} {
		err := c.Response.ToError()
		assert.Equal(t, c.Kind, datastore.KindOf(err), c.Response.Type())
		assert.Equal(t, c.Message, err.Error(), c.Response.Type())
	}

	resp := ErrorResponse{Error: datastore.Dict{
		"__type": "Validation Error",
		"fields": []interface{}{"bad"},
	}}
	err := resp.ToError()
	var dsErr *datastore.Error
	if assert.True(t, errors.As(err, &dsErr)) {
		assert.Equal(t, datastore.KindValidation, dsErr.Kind)
		assert.Equal(t, datastore.Dict{"fields": []interface{}{"bad"}}, dsErr.Fields)
	}
}

func TestTaxonomyIsComplete(t *testing.T) {
	labels := make(map[string]bool)
	for kind := datastore.KindUnexpected; kind <= datastore.KindSearchIndex; kind++ {
		class, ok := Taxonomy[kind]
		if assert.True(t, ok, kind.String()) {
			assert.False(t, labels[class.Label], class.Label)
			labels[class.Label] = true
		}
	}
}
