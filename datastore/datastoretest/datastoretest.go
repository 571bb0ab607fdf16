// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package datastoretest provides generic functional tests for the
// Datastore interface, and a scripted fake Datastore for testing
// code that calls one.  A typical backend test module needs to wrap
// Suite to create its backend:
//
//     package mybackend
//
//     import (
//             "testing"
//             "github.com/diffeo/go-datastore/datastore/datastoretest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-backend generic test suite.
//     type Suite struct{
//             datastoretest.Suite
//     }
//
//     // SetupSuite does global setup for the test suite.
//     func (s *Suite) SetupSuite() {
//             s.Suite.SetupSuite()
//             s.Datastore = New()
//     }
//
//     // TestDatastore runs the Datastore generic tests.
//     func TestDatastore(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
package datastoretest

import (
	"context"
	"fmt"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/stretchr/testify/suite"
)

// Suite is the generic Datastore backend test suite.
type Suite struct {
	suite.Suite

	// Datastore contains the top-level interface to the backend
	// under test.  It is set by importing packages.
	Datastore datastore.Datastore

	// Resource is a resource ID unique to the current test.
	Resource string

	counter int
}

// SetupSuite does one-time initialization for the test suite.
func (s *Suite) SetupSuite() {
	s.counter = 0
}

// SetupTest picks a fresh resource ID for each test.
func (s *Suite) SetupTest() {
	s.counter++
	s.Resource = fmt.Sprintf("resource_%d", s.counter)
}

// Call runs a datastore action with a background context.
func (s *Suite) Call(action string, params datastore.Dict) (datastore.Dict, error) {
	return datastore.Call(context.Background(), s.Datastore, action, params)
}

// MustCall runs a datastore action and fails the test immediately
// if it returns an error.
func (s *Suite) MustCall(action string, params datastore.Dict) datastore.Dict {
	result, err := s.Call(action, params)
	s.Require().NoError(err, "%s(%v)", action, params)
	return result
}

// CallKind runs a datastore action and checks that it fails with an
// error of the expected kind.
func (s *Suite) CallKind(kind datastore.Kind, action string, params datastore.Dict) bool {
	_, err := s.Call(action, params)
	if !s.Error(err, "%s(%v)", action, params) {
		return false
	}
	return s.Equal(kind, datastore.KindOf(err), "%s(%v): %v", action, params, err)
}

// CreatePeople creates the current test's resource with an integer
// primary key "pk", a text "name", and a numeric "score".
func (s *Suite) CreatePeople(records ...datastore.Dict) {
	params := datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.FieldsParam: []interface{}{
			map[string]interface{}{"id": "pk", "type": "int"},
			map[string]interface{}{"id": "name", "type": "text"},
			map[string]interface{}{"id": "score", "type": "numeric"},
		},
		datastore.PrimaryKeyParam: []interface{}{"pk"},
		datastore.ForceParam:      true,
	}
	if len(records) > 0 {
		list := make([]interface{}, len(records))
		for i, r := range records {
			list[i] = r
		}
		params[datastore.RecordsParam] = list
	}
	s.MustCall(datastore.ActionCreate, params)
}

// Search runs a search on the current test's resource with extra
// parameters.
func (s *Suite) Search(params datastore.Dict) datastore.Dict {
	if params == nil {
		params = datastore.Dict{}
	}
	params[datastore.ResourceIDParam] = s.Resource
	return s.MustCall(datastore.ActionSearch, params)
}

// Records extracts the records list from a result.
func (s *Suite) Records(result datastore.Dict) []datastore.Dict {
	records := datastore.AsRecords(result[datastore.RecordsParam])
	s.Require().NotNil(records, "records in %v", result)
	return records
}

// Column extracts one column from every record in a result.
func (s *Suite) Column(result datastore.Dict, id string) []interface{} {
	var column []interface{}
	for _, record := range s.Records(result) {
		column = append(column, record[id])
	}
	return column
}

// FieldIDs extracts the field IDs from a result.
func (s *Suite) FieldIDs(result datastore.Dict) []string {
	var ids []string
	fields, _ := result[datastore.FieldsParam].([]interface{})
	for _, f := range fields {
		desc, _ := f.(map[string]interface{})
		id, _ := desc["id"].(string)
		ids = append(ids, id)
	}
	return ids
}

// Person builds a record for CreatePeople.
func Person(pk int64, name string, score float64) datastore.Dict {
	return datastore.Dict{"pk": pk, "name": name, "score": score}
}
