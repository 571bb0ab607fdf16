// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package backend

import (
	"context"
	"flag"
	"testing"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestSet(t *testing.T) {
	for _, c := range []struct {
		Param   string
		Impl    string
		Address string
		String  string
	}{
		{"memory", "memory", "", "memory"},
		{"sqlite:/tmp/x.db", "sqlite", "/tmp/x.db", "sqlite:/tmp/x.db"},
		{"postgres://user@host/db?sslmode=disable", "postgres", "//user@host/db?sslmode=disable", "postgres://user@host/db?sslmode=disable"},
		{"postgres:", "postgres", "", "postgres"},
	} {
		b := Backend{Implementation: "memory", Address: "left over"}
		if assert.NoError(t, b.Set(c.Param), c.Param) {
			assert.Equal(t, c.Impl, b.Implementation, c.Param)
			assert.Equal(t, c.Address, b.Address, c.Param)
			assert.Equal(t, c.String, b.String(), c.Param)
		}
	}
}

func TestSetUnknown(t *testing.T) {
	b := Backend{Implementation: "memory"}
	assert.Error(t, b.Set(""))
	assert.Error(t, b.Set("cassandra:localhost"))
	assert.Equal(t, "memory", b.Implementation)
}

func TestFlagValue(t *testing.T) {
	var _ flag.Value = &Backend{}
	var _ cli.Generic = &Backend{}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	b := Backend{Implementation: "memory"}
	fs.Var(&b, "backend", "impl[:address]")
	require.NoError(t, fs.Parse([]string{"-backend", "sqlite::memory:"}))
	assert.Equal(t, "sqlite", b.Implementation)
	assert.Equal(t, ":memory:", b.Address)
}

func TestDatastore(t *testing.T) {
	for _, param := range []string{"memory", "sqlite", "sqlite::memory:"} {
		var b Backend
		require.NoError(t, b.Set(param))
		ds, err := b.Datastore()
		require.NoError(t, err, param)

		_, err = datastore.Call(context.Background(), ds, datastore.ActionCreate, datastore.Dict{
			"resource_id": "things",
			"fields":      []interface{}{datastore.Dict{"id": "name", "type": "text"}},
		})
		assert.NoError(t, err, param)
	}
}

func TestDatastoreUnknown(t *testing.T) {
	b := Backend{Implementation: "cassandra"}
	_, err := b.Datastore()
	assert.Error(t, err)
}
