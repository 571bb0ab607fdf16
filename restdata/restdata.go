// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines the wire formats shared between the
// restserver and restclient packages: the output formats and their
// media types, Accept header negotiation, rendering of result trees
// as JSON, XML, or CSV, and the error envelope.
//
// Request bodies are always JSON.  Responses are rendered in whichever
// of an endpoint's formats the client's Accept header prefers.  Error
// responses are always JSON, regardless of the Accept header, with a
// body of the form
//
//     {
//         "error": {
//             "__type": "Validation Error",
//             "message": "The entry identifier cannot be changed"
//         }
//     }
//
// The "__type" label identifies the class of failure; see Taxonomy.
// Validation errors may carry per-field detail in place of a message,
// and integrity errors echo the rejected request parameters under
// "data".
//
// XML Rendering
//
// A mapping becomes an element with one child element per key, in
// sorted key order; keys beginning with "__" become attributes
// instead.  A list becomes a sequence of elements named with the
// singular of the enclosing name, so a "records" list holds "record"
// elements.  Names that are not legal XML element names are replaced
// with "rows" (or "row").  The document is reduced to ASCII after
// Unicode compatibility decomposition, so accented letters lose their
// accents.
//
// CSV Rendering
//
// CSV output always describes a whole result: a header row of the
// result's field ids (except the datastore's "_id"), then one row per
// record.
package restdata

import (
	"fmt"
)

// Format is one of the output formats a response can be rendered in.
type Format int

const (
	// JSON is application/json.
	JSON Format = iota

	// XML is application/xml.
	XML

	// CSV is text/csv.
	CSV

	// Text is text/plain.
	Text

	// HTML is text/html.
	HTML
)

var mediaTypes = map[Format]string{
	JSON: "application/json",
	XML:  "application/xml",
	CSV:  "text/csv",
	Text: "text/plain",
	HTML: "text/html",
}

var formatNames = map[Format]string{
	JSON: "json",
	XML:  "xml",
	CSV:  "csv",
	Text: "text",
	HTML: "html",
}

// MediaType returns the registered type/subtype of a format, without
// parameters.
func (f Format) MediaType() string {
	return mediaTypes[f]
}

// ContentType returns the Content-Type header value for a format.
func (f Format) ContentType() string {
	return mediaTypes[f] + ";charset=utf-8"
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// DefaultFormats are the formats an endpoint accepts unless it says
// otherwise.
var DefaultFormats = []Format{JSON, XML}

// TabularFormats are the formats of endpoints that return records.
var TabularFormats = []Format{JSON, XML, CSV}
