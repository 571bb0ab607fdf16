// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes a datastore as a REST service.  The
// restclient package is a matching client.
//
// Every resource the service creates gets an extra integer field
// "pk", placed first, which is the resource's only primary key.  The
// service assigns pk values itself; clients address entries by them
// and may never choose one.  The datastore's own row id "_id" is
// never returned.
//
// HTTP Considerations
//
// Request bodies are always JSON.  Responses are JSON or XML, and
// entry searches and SQL searches can also produce CSV; clients pick
// one with the standard HTTP Accept: header.  The first format listed
// for an endpoint is the default, so Accept: */* gets JSON.  An
// unsatisfiable Accept: header is a 409 validation error.
//
// A GET request with a "callback" query parameter that returns JSON
// with status 200 is wrapped as a JSONP call, callback(body);.
//
// Errors are always reported as JSON, whatever the Accept: header
// said; the restdata package describes the error body.
//
// This interface does not (currently) support HTTP caching.  The
// user name from HTTP basic authentication, if any, is passed on to
// the datastore, but no password is checked.
//
// URL Scheme
//
// The following URLs are defined:
//
//     PUT    /resource/{resource_id}
//         Create or extend a resource.  The body is a list of
//         field descriptors, {"id": "name", "type": "text"}.
//         Returns the resource's fields.
//     GET    /resource/{resource_id}
//         Returns the resource's fields.
//     DELETE /resource/{resource_id}
//         Delete the whole resource.  Returns an empty body.
//     GET    /resource/{resource_id}/entry
//         Search entries.  Query parameters $q, $plain, $language,
//         $limit, $offset, $fields, and $sort are search options;
//         any other parameter filters on the field it names.
//         Returns a list of entries.
//     POST   /resource/{resource_id}/entry
//         Add entries.  The body is a list of objects, none of which
//         may have a "pk".  Returns the new entries with their "pk"
//         values, with status 201.
//     PUT    /resource/{resource_id}/entry/{entry_id}
//         Create or replace one entry.  The body is a single
//         object; if it has a "pk" it must match entry_id.
//     GET    /resource/{resource_id}/entry/{entry_id}
//         Returns one entry.
//     DELETE /resource/{resource_id}/entry/{entry_id}
//         Delete one entry.  Returns an empty body.
//     GET    /search_sql?sql=...
//         Run a read-only SQL statement.  Returns a list of rows.
//
// In XML responses, every entry of a resource carries a url attribute
// with its own absolute URL.
package restserver
