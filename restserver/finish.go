// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"io"
	"net/http"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/diffeo/go-datastore/restdata"
)

// finisher writes the response to one request.
type finisher struct {
	Response http.ResponseWriter
	Request  *http.Request
}

// Finish writes a status, a Content-Type: header for format, and a
// body.  A 200 JSON response to a GET request with a "callback" query
// parameter is wrapped as a JSONP call.  Returns status.
func (f *finisher) Finish(status int, body string, format restdata.Format) int {
	f.Response.Header().Set("Content-Type", format.ContentType())
	if format == restdata.JSON && status == http.StatusOK && f.Request.Method == http.MethodGet {
		query := f.Request.URL.Query()
		if _, present := query[callbackParam]; present {
			body = htmlEscaper.Replace(query.Get(callbackParam)) + "(" + body + ");"
		}
	}
	f.Response.WriteHeader(status)
	// By this point we've already written an HTTP status line, so
	// a write failure can't be reported to the client.
	_, _ = io.WriteString(f.Response, body)
	return status
}

// FinishOK writes a successful response.  If location is non-empty,
// the status is 201 Created and it is sent as the Location: header.
func (f *finisher) FinishOK(body string, format restdata.Format, location string) int {
	status := http.StatusOK
	if location != "" {
		status = http.StatusCreated
		f.Response.Header().Set("Location", location)
	}
	return f.Finish(status, body, format)
}

// FinishError writes an error envelope as JSON.
func (f *finisher) FinishError(httpErr restdata.HTTPError) int {
	body, err := restdata.EncodeJSON(httpErr.Response)
	if err != nil {
		fallback := restdata.NewErrorResponse(
			restdata.Taxonomy[datastore.KindUnexpected].Label, restdata.UnexpectedMessage)
		body, _ = restdata.EncodeJSON(fallback)
		httpErr.Status = http.StatusInternalServerError
	}
	return f.Finish(httpErr.Status, body, restdata.JSON)
}
