// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-datastore/datastore"
	"github.com/diffeo/go-datastore/restdata"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Options customizes the REST API.  The zero value is usable.
type Options struct {
	// Logger receives reports of unexpected errors.  Defaults to
	// the logrus standard logger.
	Logger logrus.FieldLogger

	// Clock times requests for Metrics.  Defaults to the real
	// clock.
	Clock clock.Clock

	// Metrics, if non-nil, counts and times every request.
	Metrics *Metrics
}

// NewRouter creates a new HTTP handler that processes all datastore
// requests.  All resources are under the URL path root,
// e.g. /resource/foo.  For more control over this setup, create a
// mux.Router and call PopulateRouter instead.
func NewRouter(ds datastore.Datastore) http.Handler {
	r := mux.NewRouter()
	PopulateRouter(r, ds, Options{})
	return r
}

// PopulateRouter adds datastore routes to an existing
// github.com/gorilla/mux router object.  This can be used, for
// instance, to place the datastore interface under a subpath:
//
//     import "github.com/diffeo/go-datastore/memory"
//     import "github.com/gorilla/mux"
//     r := mux.NewRouter()
//     s := r.PathPrefix("/datastore").Subrouter()
//     ds := memory.New()
//     PopulateRouter(s, ds, Options{})
func PopulateRouter(r *mux.Router, ds datastore.Datastore, opts Options) {
	api := &restAPI{
		Datastore: ds,
		Router:    r,
		Logger:    opts.Logger,
		Clock:     opts.Clock,
		Metrics:   opts.Metrics,
	}
	if api.Logger == nil {
		api.Logger = logrus.StandardLogger()
	}
	if api.Clock == nil {
		api.Clock = clock.New()
	}
	api.PopulateRouter(r)
}

// restAPI holds the persistent state for the datastore REST API.
type restAPI struct {
	Datastore datastore.Datastore
	Router    *mux.Router
	Logger    logrus.FieldLogger
	Clock     clock.Clock
	Metrics   *Metrics
}

// handler builds an actionHandler for one endpoint.
func (api *restAPI) handler(name, action string, params paramBuilder, shape shaper) *actionHandler {
	return &actionHandler{
		API:     api,
		Name:    name,
		Action:  action,
		Formats: restdata.DefaultFormats,
		Params:  params,
		Shape:   shape,
	}
}

// PopulateRouter adds all datastore URL paths to a router.
func (api *restAPI) PopulateRouter(r *mux.Router) {
	resource := "/resource/{resource_id}"
	r.Path(resource).Methods("GET").Name("resource").
		Handler(api.handler("structure", datastore.ActionSearch, api.StructureParams, api.StructureShape))
	r.Path(resource).Methods("PUT").
		Handler(api.handler("upsert_resource", datastore.ActionCreate, api.UpsertResourceParams, api.FieldsShape))
	r.Path(resource).Methods("DELETE").
		Handler(api.handler("delete_resource", datastore.ActionDelete, api.DeleteResourceParams, emptyShape))

	entries := resource + "/entry"
	search := api.handler("search_entries", datastore.ActionSearch, api.SearchEntriesParams, api.RecordsShape)
	search.Formats = restdata.TabularFormats
	r.Path(entries).Methods("GET").Name("entries").Handler(search)
	create := api.handler("create_entries", datastore.ActionUpsert, api.CreateEntriesParams, api.RecordsShape)
	create.Location = api.EntriesLocation
	r.Path(entries).Methods("POST").Handler(create)

	entry := entries + "/{entry_id}"
	r.Path(entry).Methods("GET").Name("entry").
		Handler(api.handler("get_entry", datastore.ActionSearch, api.GetEntryParams, api.GetEntryShape))
	r.Path(entry).Methods("PUT").
		Handler(api.handler("upsert_entry", datastore.ActionUpsert, api.UpsertEntryParams, api.EntryShape))
	r.Path(entry).Methods("DELETE").
		Handler(api.handler("delete_entry", datastore.ActionDelete, api.DeleteEntryParams, emptyShape))

	sql := api.handler("sql", datastore.ActionSearchSQL, api.SQLParams, api.RecordsShape)
	sql.Formats = restdata.TabularFormats
	r.Path("/search_sql").Methods("GET").Name("sql").Handler(sql)
}
