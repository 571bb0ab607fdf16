// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// This file provides generic REST client code.

import (
	"bytes"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/diffeo/go-datastore/restdata"
	"github.com/jtacoma/uritemplates"
)

// resource is any object that has a URL and can be reached over HTTP.
type resource struct {
	URL *url.URL

	// HTTPClient sends every request.  If nil, uses
	// http.DefaultClient.
	HTTPClient *http.Client

	// User, if non-empty, is sent with every request as the
	// HTTP basic authentication username.
	User     string
	Password string
}

// Template expands a URI template with vars, and returns the result
// relative to the resource's URL.
func (r *resource) Template(template string, vars map[string]interface{}) (*url.URL, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}
	return r.URL.Parse(expanded)
}

// Do performs some HTTP action.  If in is non-nil, it is serialized
// as JSON and sent as the request body.  Returns the decoded JSON
// response body, or nil if there was none.
func (r *resource) Do(method string, url *url.URL, in interface{}) (out interface{}, err error) {
	// Set up the body as serialized JSON, if there is one
	var body io.Reader
	if in != nil {
		encoded, err := restdata.EncodeJSON(in)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(encoded)
	}

	// Create the request and set headers
	req, err := http.NewRequest(method, url.String(), body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", restdata.JSON.ContentType())
	}
	req.Header.Set("Accept", restdata.JSON.MediaType())
	if r.User != "" {
		req.SetBasicAuth(r.User, r.Password)
	}

	// Actually do the request
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = firstError(err, resp.Body.Close())
	}()

	// Check the response code
	if err = checkHTTPStatus(resp); err != nil {
		return nil, err
	}

	content, err := ioutil.ReadAll(resp.Body)
	if err != nil || len(bytes.TrimSpace(content)) == 0 {
		return nil, err
	}
	return restdata.Decode(bytes.NewReader(content))
}

// ErrorHTTP is a catch-all error for non-successes returned from the
// REST endpoint.
type ErrorHTTP struct {
	// Response holds a pointer to the failing HTTP response.
	Response *http.Response

	// Body holds the contents of the message body, presumed to
	// be text.
	Body string
}

func (e ErrorHTTP) Error() string {
	return e.Response.Status
}

// checkHTTPStatus examines an HTTP response and returns an error if
// it is not successful.
func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Always collect the entire body; we will need it as a fallback
	// and can only parse it once.
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Take a shot at decoding it as a better error
	decoded, err := restdata.Decode(bytes.NewReader(body))
	if err == nil {
		if envelope, ok := decoded.(map[string]interface{}); ok {
			if detail, ok := envelope["error"].(map[string]interface{}); ok {
				return restdata.ErrorResponse{Error: datastore.Dict(detail)}.ToError()
			}
		}
	}

	return ErrorHTTP{Response: resp, Body: string(body)}
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}
