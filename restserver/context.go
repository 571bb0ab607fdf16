// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"
	"net/url"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/diffeo/go-datastore/restdata"
	"github.com/gorilla/mux"
)

// callbackParam names the JSONP callback query parameter.
const callbackParam = "callback"

// context holds all of the information and objects that can be
// extracted from a request.
type context struct {
	API         *restAPI
	Request     *http.Request
	ResourceID  string
	EntryID     string
	QueryParams url.Values
	User        string

	// Format is the negotiated response format.
	Format restdata.Format
}

func (api *restAPI) Context(req *http.Request) (ctx *context, err error) {
	ctx = &context{
		API:         api,
		Request:     req,
		QueryParams: req.URL.Query(),
	}
	vars := mux.Vars(req)
	ctx.ResourceID = vars["resource_id"]
	ctx.EntryID = vars["entry_id"]
	if user, _, ok := req.BasicAuth(); ok {
		ctx.User = user
	}
	return
}

// Params returns the query parameters as a parameter dictionary,
// without the JSONP callback.  A parameter given once is a string; a
// repeated parameter is a list of strings.
func (ctx *context) Params() datastore.Dict {
	params := make(datastore.Dict, len(ctx.QueryParams))
	for name, values := range ctx.QueryParams {
		if name == callbackParam || len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			params[name] = values[0]
			continue
		}
		list := make([]interface{}, len(values))
		for i, value := range values {
			list[i] = value
		}
		params[name] = list
	}
	return params
}

// Body decodes the JSON request body.
func (ctx *context) Body() (interface{}, error) {
	return restdata.Decode(ctx.Request.Body)
}

// Call runs a datastore action on behalf of the request's user.
func (ctx *context) Call(action string, params datastore.Dict) (datastore.Dict, error) {
	return datastore.Call(datastore.WithUser(ctx.Request.Context(), ctx.User),
		ctx.API.Datastore, action, params)
}

// URL builds the absolute URL of a named route on the request's host.
func (ctx *context) URL(route string, params ...string) (string, error) {
	var out string
	err := buildURLs(ctx.API.Router, ctx.Request.Host, params...).
		URL(&out, route).
		Error
	return out, err
}

// Render serializes part of a result in the negotiated format.  XML
// renderings of a resource's records link each record to its entry
// URL.
func (ctx *context) Render(result datastore.Dict, field string, index int) (string, error) {
	if ctx.Format == restdata.XML && field == datastore.RecordsParam {
		if err := ctx.linkRecords(result); err != nil {
			return "", err
		}
	}
	return restdata.Serialize(result, ctx.Format, field, index)
}

// linkRecords adds a "__url" key to every record of result that has
// an identifier.
func (ctx *context) linkRecords(result datastore.Dict) error {
	resourceID, present := result[datastore.ResourceIDParam]
	if !present {
		return nil
	}
	rid, _ := restdata.ScalarText(resourceID)
	for _, record := range datastore.AsRecords(result[datastore.RecordsParam]) {
		pk, present := record[identifierField]
		if !present {
			continue
		}
		entryID, ok := restdata.ScalarText(pk)
		if !ok {
			continue
		}
		url, err := ctx.URL("entry", "resource_id", rid, "entry_id", entryID)
		if err != nil {
			return err
		}
		record[restdata.AttributePrefix+"url"] = url
	}
	return nil
}
