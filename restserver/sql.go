// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/diffeo/go-datastore/datastore"
)

// SQLParams passes the query parameters, including "sql", straight
// through to the datastore.
func (api *restAPI) SQLParams(ctx *context) (datastore.Dict, error) {
	return ctx.Params(), nil
}
