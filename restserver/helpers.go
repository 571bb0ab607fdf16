// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains various HTTP-related helpers.

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
)

// urlBuilder builds absolute URLs from named routes.  The first error
// sticks, so several URLs can be built in a chain and checked once.
type urlBuilder struct {
	Router *mux.Router
	Host   string
	Params []string
	Error  error
}

func buildURLs(router *mux.Router, host string, params ...string) *urlBuilder {
	return &urlBuilder{Router: router, Host: host, Params: params}
}

func (u *urlBuilder) Route(route string) *mux.Route {
	if u.Error != nil {
		return nil
	}
	r := u.Router.Get(route)
	if r == nil {
		u.Error = fmt.Errorf("No such route %q", route)
	}
	return r
}

func (u *urlBuilder) URL(out *string, route string) *urlBuilder {
	var r *mux.Route
	var path *url.URL
	if u.Error == nil {
		r = u.Route(route)
	}
	if u.Error == nil {
		path, u.Error = r.URLPath(u.Params...)
	}
	if u.Error == nil {
		abs := url.URL{Scheme: "http", Host: u.Host, Path: path.Path}
		*out = abs.String()
	}
	return u
}

// quoteIdentifier quotes a resource name for use as an SQL table
// name.
func quoteIdentifier(name string) string {
	return `"` + strings.Replace(name, `"`, `""`, -1) + `"`
}

// htmlEscaper escapes a JSONP callback name.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
