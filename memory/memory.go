// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory implementation of
// the datastore actions.  There is no persistence on this datastore,
// nor is there any automatic sharing.  The entire system is behind a
// single global semaphore to protect against concurrent updates; in
// some cases this can limit performance in the name of correctness.
//
// This is mostly intended as a simple reference implementation that
// can be used for testing, including in-process testing of the REST
// gateway.  It is generally tuned for correctness, not performance or
// scalability.  Raw SQL support is limited to the single aggregate
// query the REST gateway issues itself.
package memory

import (
	"context"
	"sync"

	"github.com/diffeo/go-datastore/datastore"
)

// This is the only external entry point to this package:

// New creates a new Datastore interface that operates purely in
// memory.
func New() datastore.Datastore {
	ds := new(memDatastore)
	ds.resources = make(map[string]*resource)
	return ds
}

// memDatastore is the root of the in-memory object tree.
type memDatastore struct {
	resources map[string]*resource
	sem       sync.Mutex
}

// globalLock locks the datastore object at the root of the object
// tree.  Pair this with globalUnlock, as
//
//     globalLock(ds)
//     defer globalUnlock(ds)
func globalLock(ds *memDatastore) {
	ds.sem.Lock()
}

// globalUnlock unlocks the datastore object at the root of the
// object tree.
func globalUnlock(ds *memDatastore) {
	ds.sem.Unlock()
}

// Action returns one of the datastore actions.  Each action takes
// the global lock for its entire duration.
func (ds *memDatastore) Action(name string) (datastore.Action, error) {
	var f func(datastore.Dict) (datastore.Dict, error)
	switch name {
	case datastore.ActionCreate:
		f = ds.create
	case datastore.ActionSearch:
		f = ds.search
	case datastore.ActionUpsert:
		f = ds.upsert
	case datastore.ActionDelete:
		f = ds.delete
	case datastore.ActionSearchSQL:
		f = ds.searchSQL
	default:
		return nil, datastore.ErrNoSuchAction{Name: name}
	}
	return func(ctx context.Context, params datastore.Dict) (datastore.Dict, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		globalLock(ds)
		defer globalUnlock(ds)
		return f(params)
	}, nil
}

// lookup finds a resource by the resource ID parameter.  It assumes
// the global lock.
func (ds *memDatastore) lookup(params datastore.Dict) (*resource, error) {
	id := datastore.StringParam(params, datastore.ResourceIDParam, "")
	if id == "" {
		return nil, datastore.FieldErrors(datastore.Dict{
			datastore.ResourceIDParam: []interface{}{"Missing value"},
		})
	}
	res := ds.resources[id]
	if res == nil {
		return nil, datastore.NotFound("Resource %q was not found.", id)
	}
	return res, nil
}
