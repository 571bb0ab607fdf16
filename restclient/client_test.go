// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/diffeo/go-datastore/datastore/datastoretest"
	"github.com/diffeo/go-datastore/memory"
	"github.com/diffeo/go-datastore/restclient"
	"github.com/diffeo/go-datastore/restserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newClient sets up an object stack where the REST client code talks
// to the REST server code, which points at ds.
func newClient(t *testing.T, ds datastore.Datastore) *restclient.Client {
	server := httptest.NewServer(restserver.NewRouter(ds))
	t.Cleanup(server.Close)
	client, err := restclient.New(server.URL)
	require.NoError(t, err)
	return client
}

func TestEmptyURL(t *testing.T) {
	_, err := restclient.New("")
	assert.Error(t, err)
}

func TestLifecycle(t *testing.T) {
	c := newClient(t, memory.New())

	_, err := c.Structure("people")
	assert.Equal(t, datastore.KindNotFound, datastore.KindOf(err))

	fields, err := c.UpsertResource("people", []datastore.Field{
		{ID: "name", Type: datastore.TypeText},
		{ID: "age", Type: datastore.TypeInt},
	})
	require.NoError(t, err)
	assert.Equal(t, []datastore.Dict{
		{"id": "pk", "type": "int"},
		{"id": "name", "type": "text"},
		{"id": "age", "type": "int"},
	}, fields)

	created, err := c.CreateEntries("people", []datastore.Dict{
		{"name": "Alice", "age": 30},
		{"name": "Bob", "age": 25},
	})
	require.NoError(t, err)
	assert.Equal(t, []datastore.Dict{
		{"name": "Alice", "age": int64(30), "pk": int64(1)},
		{"name": "Bob", "age": int64(25), "pk": int64(2)},
	}, created)

	entry, err := c.GetEntry("people", 2)
	require.NoError(t, err)
	assert.Equal(t, datastore.Dict{"name": "Bob", "age": int64(25), "pk": int64(2)}, entry)

	_, err = c.UpsertEntry("people", 2, datastore.Dict{"age": 26})
	require.NoError(t, err)

	found, err := c.Search("people", map[string][]string{"name": {"Bob", "Carol"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []datastore.Dict{{"name": "Bob", "age": int64(26), "pk": int64(2)}}, found)

	found, err = c.Search("people", nil, map[string]string{"sort": "age", "limit": "1"})
	require.NoError(t, err)
	if assert.Len(t, found, 1) {
		assert.Equal(t, "Bob", found[0]["name"])
	}

	max, err := c.SearchSQL(`SELECT MAX("pk") AS "max" FROM "people"`)
	require.NoError(t, err)
	assert.Equal(t, []datastore.Dict{{"max": int64(2)}}, max)

	require.NoError(t, c.DeleteEntry("people", 1))
	_, err = c.GetEntry("people", 1)
	assert.Equal(t, datastore.KindNotFound, datastore.KindOf(err))
	assert.EqualError(t, err, "The element 1 does not exist in the resource people")

	require.NoError(t, c.DeleteResource("people"))
	_, err = c.Structure("people")
	assert.Equal(t, datastore.KindNotFound, datastore.KindOf(err))
}

func TestValidationError(t *testing.T) {
	c := newClient(t, memory.New())
	_, err := c.UpsertResource("people", []datastore.Field{{ID: "pk", Type: datastore.TypeInt}})
	assert.Equal(t, datastore.KindValidation, datastore.KindOf(err))
	assert.EqualError(t, err, "The field 'pk' cannot be used since it's used internally")

	_, err = c.CreateEntries("people", []datastore.Dict{{"pk": 1}})
	assert.Equal(t, datastore.KindValidation, datastore.KindOf(err))
}

func TestUser(t *testing.T) {
	fake := datastoretest.NewFake()
	c := newClient(t, fake).WithUser("alice", "secret")
	_, err := c.Structure("people")
	require.NoError(t, err)
	if calls := fake.Calls(); assert.Len(t, calls, 1) {
		assert.Equal(t, "alice", calls[0].User)
	}
}

func TestNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	c, err := restclient.New(server.URL)
	require.NoError(t, err)

	_, err = c.GetEntry("people", 1)
	if assert.IsType(t, restclient.ErrorHTTP{}, err) {
		assert.Equal(t, http.StatusNotFound, err.(restclient.ErrorHTTP).Response.StatusCode)
	}
}
