// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/diffeo/go-datastore/datastore"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// Class is one row of the error taxonomy: the HTTP status and the
// "__type" label reported for a kind of failure.
type Class struct {
	Status int
	Label  string
}

// Taxonomy maps every datastore error kind to its HTTP status and
// label.
var Taxonomy = map[datastore.Kind]Class{
	datastore.KindBadRequest:    {http.StatusBadRequest, "Bad request"},
	datastore.KindIntegrity:     {http.StatusBadRequest, "Integrity Error"},
	datastore.KindNotAuthorized: {http.StatusForbidden, "Access denied"},
	datastore.KindNotFound:      {http.StatusNotFound, "Not found"},
	datastore.KindValidation:    {http.StatusConflict, "Validation Error"},
	datastore.KindSearchQuery:   {http.StatusBadRequest, "Search Query Error"},
	datastore.KindSearch:        {http.StatusConflict, "Search Error"},
	datastore.KindSearchIndex:   {http.StatusInternalServerError, "Search Index Error"},
	datastore.KindUnexpected:    {http.StatusInternalServerError, "Unexpected Error"},
}

// statusKinds are the kinds an ErrorStatus may be reported as, in
// order of preference when several share a status.  Other statuses
// are reported as unexpected errors.
var statusKinds = []datastore.Kind{
	datastore.KindBadRequest,
	datastore.KindNotAuthorized,
	datastore.KindNotFound,
	datastore.KindValidation,
}

// UnexpectedMessage is the only detail clients see of an unexpected
// error.
const UnexpectedMessage = "An unexpected error occurred"

// Keys of the error envelope.
const (
	TypeKey    = "__type"
	MessageKey = "message"
	DataKey    = "data"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error datastore.Dict `json:"error"`
}

// HTTPError pairs an error envelope with its HTTP status.
type HTTPError struct {
	Status   int
	Response ErrorResponse
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Response.Type(), e.Response.Message())
}

// HTTPStatus returns the status the error is reported with.
func (e HTTPError) HTTPStatus() int {
	return e.Status
}

// NewErrorResponse builds an envelope with a label and an optional
// message.
func NewErrorResponse(label, message string) ErrorResponse {
	detail := datastore.Dict{TypeKey: label}
	if message != "" {
		detail[MessageKey] = message
	}
	return ErrorResponse{Error: detail}
}

// Type returns the "__type" label of the envelope.
func (e ErrorResponse) Type() string {
	label, _ := e.Error[TypeKey].(string)
	return label
}

// Message returns the message of the envelope, if any.
func (e ErrorResponse) Message() string {
	message, _ := e.Error[MessageKey].(string)
	return message
}

// FromError classifies an error and builds the envelope reporting
// it.  params are the request parameters built for the backend, and
// are echoed back for integrity errors.  Unexpected errors get a
// generic message; callers should log their detail.
func FromError(err error, params datastore.Dict) HTTPError {
	var dsErr *datastore.Error
	if !errors.As(err, &dsErr) {
		if status, ok := err.(ErrorStatus); ok {
			for _, kind := range statusKinds {
				if class := Taxonomy[kind]; class.Status == status.HTTPStatus() {
					return HTTPError{class.Status, NewErrorResponse(class.Label, err.Error())}
				}
			}
		}
		class := Taxonomy[datastore.KindUnexpected]
		return HTTPError{class.Status, NewErrorResponse(class.Label, UnexpectedMessage)}
	}

	class, ok := Taxonomy[dsErr.Kind]
	if !ok {
		class = Taxonomy[datastore.KindUnexpected]
	}
	var resp ErrorResponse
	switch dsErr.Kind {
	case datastore.KindBadRequest:
		resp = NewErrorResponse(class.Label, dsErr.Error())
	case datastore.KindIntegrity:
		resp = NewErrorResponse(class.Label, dsErr.Error())
		resp.Error[DataKey] = params
	case datastore.KindNotAuthorized, datastore.KindNotFound:
		resp = NewErrorResponse(class.Label, dsErr.Message)
	case datastore.KindValidation:
		detail := datastore.Dict{}
		for k, v := range dsErr.Fields {
			detail[k] = v
		}
		if dsErr.Message != "" {
			detail[MessageKey] = dsErr.Message
		}
		if dsErr.Data != nil {
			detail[DataKey] = dsErr.Data
		}
		detail[TypeKey] = class.Label
		resp = ErrorResponse{Error: detail}
	case datastore.KindSearchQuery:
		resp = NewErrorResponse(class.Label, "Search Query is invalid: "+dsErr.Error())
	case datastore.KindSearch:
		resp = NewErrorResponse(class.Label, "Search error: "+dsErr.Error())
	case datastore.KindSearchIndex:
		resp = NewErrorResponse(class.Label, "Unable to add package to search index: "+dsErr.Error())
	default:
		resp = NewErrorResponse(class.Label, UnexpectedMessage)
	}
	return HTTPError{class.Status, resp}
}

// FromPanic builds the envelope for a recovered panic.  It is
// reported as an unexpected error; the returned stack is for logging
// only.  Typical use is:
//
//     defer func() {
//         if obj := recover(); obj != nil {
//             httpErr, stack := restdata.FromPanic(obj)
//             // log stack, write httpErr out as makes sense
//         }
//     }()
func FromPanic(obj interface{}) (HTTPError, string) {
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	class := Taxonomy[datastore.KindUnexpected]
	return HTTPError{class.Status, NewErrorResponse(class.Label, UnexpectedMessage)}, string(stack[:len])
}

// labelKinds inverts Taxonomy for ToError.
var labelKinds = map[string]datastore.Kind{}

func init() {
	for kind, class := range Taxonomy {
		labelKinds[class.Label] = kind
	}
}

// ToError converts an envelope received by a client back into a
// *datastore.Error of the matching kind.  Field detail of validation
// errors is preserved.
func (e ErrorResponse) ToError() error {
	kind, ok := labelKinds[e.Type()]
	if !ok {
		kind = datastore.KindUnexpected
	}
	dsErr := &datastore.Error{Kind: kind, Message: e.Message(), Data: e.Error[DataKey]}
	if kind == datastore.KindValidation {
		for k, v := range e.Error {
			switch k {
			case TypeKey, MessageKey, DataKey:
				continue
			}
			if dsErr.Fields == nil {
				dsErr.Fields = datastore.Dict{}
			}
			dsErr.Fields[k] = v
		}
	}
	if dsErr.Message == "" && dsErr.Fields == nil {
		dsErr.Message = e.Type()
	}
	return dsErr
}
