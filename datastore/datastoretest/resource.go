// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datastoretest

import (
	"github.com/diffeo/go-datastore/datastore"
)

// TestNoSuchAction checks that unknown action names are rejected.
func (s *Suite) TestNoSuchAction() {
	_, err := s.Datastore.Action("datastore_explode")
	s.Equal(datastore.ErrNoSuchAction{Name: "datastore_explode"}, err)
}

// TestCreateSearch creates a resource with records and reads them
// back.
func (s *Suite) TestCreateSearch() {
	s.CreatePeople(Person(1, "alice", 1.5), Person(2, "bob", 2))

	result := s.Search(nil)
	s.Equal(s.Resource, result[datastore.ResourceIDParam])
	s.Equal([]string{"_id", "pk", "name", "score"}, s.FieldIDs(result))
	s.EqualValues(2, result[datastore.TotalParam])
	s.EqualValues(datastore.DefaultLimit, result[datastore.LimitParam])
	s.EqualValues(0, result[datastore.OffsetParam])

	records := s.Records(result)
	if s.Len(records, 2) {
		s.Equal(datastore.Dict{"_id": int64(1), "pk": int64(1), "name": "alice", "score": 1.5}, records[0])
		s.Equal(datastore.Dict{"_id": int64(2), "pk": int64(2), "name": "bob", "score": 2.0}, records[1])
	}
}

// TestCreateResult checks the shape of the create result.
func (s *Suite) TestCreateResult() {
	result := s.MustCall(datastore.ActionCreate, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.FieldsParam: []interface{}{
			map[string]interface{}{"id": "pk", "type": "int"},
			map[string]interface{}{"id": "when", "type": "timestamp"},
		},
		datastore.PrimaryKeyParam: []interface{}{"pk"},
	})
	s.Equal(s.Resource, result[datastore.ResourceIDParam])
	s.Equal([]string{"pk", "when"}, s.FieldIDs(result))
	s.Equal([]interface{}{"pk"}, result[datastore.PrimaryKeyParam])
}

// TestCreateBadFields checks field validation on create.
func (s *Suite) TestCreateBadFields() {
	for _, fields := range []interface{}{
		"pk",
		[]interface{}{"pk"},
		[]interface{}{map[string]interface{}{"id": "_hidden"}},
		[]interface{}{map[string]interface{}{"id": ""}},
		[]interface{}{map[string]interface{}{"id": "x", "type": "blob"}},
		[]interface{}{
			map[string]interface{}{"id": "x"},
			map[string]interface{}{"id": "x"},
		},
	} {
		s.CallKind(datastore.KindValidation, datastore.ActionCreate, datastore.Dict{
			datastore.ResourceIDParam: s.Resource,
			datastore.FieldsParam:     fields,
		})
	}
	s.CallKind(datastore.KindNotFound, datastore.ActionSearch, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
	})
}

// TestCreateBadPrimaryKey checks that the primary key must name a
// field.
func (s *Suite) TestCreateBadPrimaryKey() {
	s.CallKind(datastore.KindValidation, datastore.ActionCreate, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.FieldsParam: []interface{}{
			map[string]interface{}{"id": "name"},
		},
		datastore.PrimaryKeyParam: []interface{}{"pk"},
	})
}

// TestRedefine checks that creating an existing resource keeps its
// records and adds new fields.
func (s *Suite) TestRedefine() {
	s.CreatePeople(Person(1, "alice", 1))
	s.MustCall(datastore.ActionCreate, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.FieldsParam: []interface{}{
			map[string]interface{}{"id": "pk", "type": "int"},
			map[string]interface{}{"id": "city", "type": "text"},
		},
		datastore.PrimaryKeyParam: []interface{}{"pk"},
	})
	result := s.Search(nil)
	s.Equal([]string{"_id", "pk", "name", "score", "city"}, s.FieldIDs(result))
	s.Equal([]interface{}{"alice"}, s.Column(result, "name"))
	s.Equal([]interface{}{nil}, s.Column(result, "city"))
}

// TestSearchMissing checks that searching an absent resource fails.
func (s *Suite) TestSearchMissing() {
	s.CallKind(datastore.KindNotFound, datastore.ActionSearch, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
	})
}

// TestSearchFilters checks equality filters, including list filters
// and string-valued filters from a query string.
func (s *Suite) TestSearchFilters() {
	s.CreatePeople(Person(1, "alice", 1), Person(2, "bob", 2), Person(3, "carol", 3))

	result := s.Search(datastore.Dict{
		datastore.FiltersParam: map[string]interface{}{"name": "bob"},
	})
	s.Equal([]interface{}{int64(2)}, s.Column(result, "pk"))
	s.EqualValues(1, result[datastore.TotalParam])

	result = s.Search(datastore.Dict{
		datastore.FiltersParam: map[string]interface{}{"pk": "3"},
	})
	s.Equal([]interface{}{"carol"}, s.Column(result, "name"))

	result = s.Search(datastore.Dict{
		datastore.FiltersParam: map[string]interface{}{"pk": []interface{}{int64(1), int64(3)}},
		datastore.SortParam:    "pk",
	})
	s.Equal([]interface{}{"alice", "carol"}, s.Column(result, "name"))

	result = s.Search(datastore.Dict{
		datastore.FiltersParam: map[string]interface{}{},
	})
	s.EqualValues(3, result[datastore.TotalParam])
}

// TestSearchBadFilter checks filters on fields that do not exist.
func (s *Suite) TestSearchBadFilter() {
	s.CreatePeople()
	s.CallKind(datastore.KindValidation, datastore.ActionSearch, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.FiltersParam:    map[string]interface{}{"age": 3},
	})
	s.CallKind(datastore.KindValidation, datastore.ActionSearch, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.FiltersParam:    "age=3",
	})
}

// TestSearchOptions checks sort, limit, offset, and fields.
func (s *Suite) TestSearchOptions() {
	s.CreatePeople(Person(1, "carol", 1), Person(2, "alice", 3), Person(3, "bob", 2))

	result := s.Search(datastore.Dict{datastore.SortParam: "name"})
	s.Equal([]interface{}{"alice", "bob", "carol"}, s.Column(result, "name"))

	result = s.Search(datastore.Dict{datastore.SortParam: "score desc"})
	s.Equal([]interface{}{"alice", "bob", "carol"}, s.Column(result, "name"))

	result = s.Search(datastore.Dict{
		datastore.SortParam:   "pk",
		datastore.LimitParam:  "1",
		datastore.OffsetParam: "1",
	})
	s.Equal([]interface{}{"alice"}, s.Column(result, "name"))
	s.EqualValues(3, result[datastore.TotalParam])
	s.EqualValues(1, result[datastore.LimitParam])
	s.EqualValues(1, result[datastore.OffsetParam])

	result = s.Search(datastore.Dict{
		datastore.FieldsParam: "name,pk",
		datastore.SortParam:   "pk",
	})
	s.Equal([]string{"name", "pk"}, s.FieldIDs(result))
	records := s.Records(result)
	if s.Len(records, 3) {
		s.Equal(datastore.Dict{"name": "carol", "pk": int64(1)}, records[0])
	}

	s.CallKind(datastore.KindValidation, datastore.ActionSearch, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.LimitParam:      "many",
	})
	s.CallKind(datastore.KindValidation, datastore.ActionSearch, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.SortParam:       "age",
	})
	s.CallKind(datastore.KindValidation, datastore.ActionSearch, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.FieldsParam:     "age",
	})
}

// TestSearchText checks full-text search.
func (s *Suite) TestSearchText() {
	s.CreatePeople(Person(1, "Alice Smith", 1), Person(2, "Bob Jones", 2))
	result := s.Search(datastore.Dict{datastore.QueryParam: "smith"})
	s.Equal([]interface{}{int64(1)}, s.Column(result, "pk"))
}

// TestTypes checks that each canonical type round-trips.
func (s *Suite) TestTypes() {
	s.MustCall(datastore.ActionCreate, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.FieldsParam: []interface{}{
			map[string]interface{}{"id": "i", "type": "int4"},
			map[string]interface{}{"id": "n", "type": "float8"},
			map[string]interface{}{"id": "t"},
			map[string]interface{}{"id": "b", "type": "bool"},
			map[string]interface{}{"id": "ts", "type": "timestamp"},
		},
		datastore.RecordsParam: []interface{}{
			map[string]interface{}{"i": int64(7), "n": 0.25, "t": "text", "b": true, "ts": "2017-03-04T05:06:07"},
			map[string]interface{}{"i": nil, "n": nil, "t": nil, "b": false, "ts": nil},
		},
	})
	records := s.Records(s.Search(datastore.Dict{datastore.SortParam: "_id"}))
	if s.Len(records, 2) {
		s.Equal(datastore.Dict{
			"_id": int64(1), "i": int64(7), "n": 0.25, "t": "text", "b": true, "ts": "2017-03-04T05:06:07",
		}, records[0])
		s.Equal(datastore.Dict{
			"_id": int64(2), "i": nil, "n": nil, "t": nil, "b": false, "ts": nil,
		}, records[1])
	}
}
