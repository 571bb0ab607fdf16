// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct a datastore
// based on command-line flags.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/diffeo/go-datastore/memory"
	"github.com/diffeo/go-datastore/sqlstore"
)

// Backend describes user-visible parameters to store datastore data.
// This implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         backend := backend.Backend{"memory", ""}
//         flag.Var(&backend, "backend", "impl:address of datastore storage")
//         flag.Parse()
//         ds, err := backend.Datastore()
//     }
//
// It is also a github.com/urfave/cli Generic flag value.
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string.
	Address string
}

// Implementations lists the known backend implementations.
var Implementations = []string{"memory", "postgres", "sqlite"}

// Datastore creates a new datastore.  This generally should be only
// called once.  If the backend has in-process state, such as a
// database connection pool or an in-memory store, calling this
// multiple times will create multiple copies of that state.  In
// particular, if b.Implementation is "memory", multiple calls to this
// will create multiple independent datastores.
func (b *Backend) Datastore() (datastore.Datastore, error) {
	switch b.Implementation {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return sqlstore.NewPostgres(b.Address)
	case "sqlite":
		path := b.Address
		if path == "" {
			path = ":memory:"
		}
		return sqlstore.NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown datastore backend %q", b.Implementation)
	}
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Note that neither this
// nor Datastore() attempts to validate the b.Address part of the
// string; Datastore() may still fail to connect.
func (b *Backend) Set(param string) error {
	if param == "" {
		return errors.New("must specify a backend type")
	}
	parts := strings.SplitN(param, ":", 2)
	known := false
	for _, impl := range Implementations {
		if parts[0] == impl {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown backend %q (known: %s)",
			parts[0], strings.Join(Implementations, ", "))
	}
	b.Implementation = parts[0]
	b.Address = ""
	if len(parts) == 2 {
		b.Address = parts[1]
	}
	return nil
}
