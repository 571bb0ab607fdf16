// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datastore

import (
	"errors"
	"fmt"
)

// Kind classifies a datastore failure.  The REST layer maps each kind
// to a fixed HTTP status and error label.
type Kind int

const (
	// KindUnexpected is any failure that is not otherwise classified.
	KindUnexpected Kind = iota

	// KindBadRequest is malformed client input, such as a body
	// that is not valid JSON.
	KindBadRequest

	// KindIntegrity is an integrity or constraint violation in
	// the stored data.
	KindIntegrity

	// KindNotAuthorized means the user may not run the action.
	KindNotAuthorized

	// KindNotFound means the named resource or entry is absent.
	KindNotFound

	// KindValidation is a failure validating the parameters.
	KindValidation

	// KindSearchQuery is a syntax error in a search query.
	KindSearchQuery

	// KindSearch is a failure executing a search query.
	KindSearch

	// KindSearchIndex is a failure updating a search index.
	KindSearchIndex
)

var kindNames = map[Kind]string{
	KindUnexpected:    "unexpected",
	KindBadRequest:    "bad request",
	KindIntegrity:     "integrity",
	KindNotAuthorized: "not authorized",
	KindNotFound:      "not found",
	KindValidation:    "validation",
	KindSearchQuery:   "search query",
	KindSearch:        "search",
	KindSearchIndex:   "search index",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the error type returned by datastore actions and by the
// parameter checks in front of them.
type Error struct {
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Data is optional context, such as the rejected input.
	Data interface{}

	// Fields holds per-field validation detail, keyed by field or
	// parameter name.  Only meaningful for KindValidation.
	Fields Dict

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	case len(e.Fields) > 0:
		return fmt.Sprintf("%v", e.Fields)
	default:
		return e.Kind.String() + " error"
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnexpected if err is not (and
// does not wrap) an *Error.
func KindOf(err error) Kind {
	var dsErr *Error
	if errors.As(err, &dsErr) {
		return dsErr.Kind
	}
	return KindUnexpected
}

// ValidationError creates a KindValidation error with a message and
// optional data.
func ValidationError(message string, data interface{}) *Error {
	return &Error{Kind: KindValidation, Message: message, Data: data}
}

// FieldErrors creates a KindValidation error carrying per-field
// detail.  Each value is conventionally a list of messages.
func FieldErrors(fields Dict) *Error {
	return &Error{Kind: KindValidation, Fields: fields}
}

// NotFound creates a KindNotFound error with a formatted message.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NotAuthorized creates a KindNotAuthorized error.
func NotAuthorized(message string) *Error {
	return &Error{Kind: KindNotAuthorized, Message: message}
}

// BadRequest wraps err as a KindBadRequest error.
func BadRequest(err error) *Error {
	return &Error{Kind: KindBadRequest, Err: err}
}

// IntegrityError creates a KindIntegrity error with a description of
// the violated constraint.
func IntegrityError(message string, cause error) *Error {
	return &Error{Kind: KindIntegrity, Message: message, Err: cause}
}

// SearchQueryError wraps a query syntax failure.
func SearchQueryError(cause error) *Error {
	return &Error{Kind: KindSearchQuery, Err: cause}
}

// SearchError wraps a query execution failure.
func SearchError(cause error) *Error {
	return &Error{Kind: KindSearch, Err: cause}
}

// SearchIndexError wraps an indexing failure.
func SearchIndexError(cause error) *Error {
	return &Error{Kind: KindSearchIndex, Err: cause}
}

// ErrNoSuchAction is returned by Datastore.Action when the action name
// is not known.
type ErrNoSuchAction struct {
	Name string
}

func (e ErrNoSuchAction) Error() string {
	return fmt.Sprintf("No such action %q", e.Name)
}
