// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datastoretest

import (
	"github.com/diffeo/go-datastore/datastore"
)

// TestUpsert checks the upsert method inserts new records and merges
// into existing ones.
func (s *Suite) TestUpsert() {
	s.CreatePeople(Person(1, "alice", 1))

	result := s.MustCall(datastore.ActionUpsert, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.RecordsParam: []interface{}{
			map[string]interface{}{"pk": int64(1), "score": 10.0},
			map[string]interface{}{"pk": int64(2), "name": "bob"},
		},
		datastore.ForceParam: true,
	})
	s.Equal(s.Resource, result[datastore.ResourceIDParam])
	s.Equal(datastore.MethodUpsert, result[datastore.MethodParam])
	s.Len(s.Records(result), 2)

	search := s.Search(datastore.Dict{datastore.SortParam: "pk"})
	records := s.Records(search)
	if s.Len(records, 2) {
		s.Equal(datastore.Dict{"_id": int64(1), "pk": int64(1), "name": "alice", "score": 10.0}, records[0])
		s.Equal(int64(2), records[1]["pk"])
		s.Equal("bob", records[1]["name"])
		s.Nil(records[1]["score"])
	}
}

// TestInsertDuplicate checks that inserting an existing key is an
// integrity error.
func (s *Suite) TestInsertDuplicate() {
	s.CreatePeople(Person(1, "alice", 1))
	s.CallKind(datastore.KindIntegrity, datastore.ActionUpsert, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.RecordsParam: []interface{}{
			map[string]interface{}{"pk": int64(1), "name": "again"},
		},
		datastore.MethodParam: datastore.MethodInsert,
	})
	s.Equal([]interface{}{"alice"}, s.Column(s.Search(nil), "name"))
}

// TestUpdateMissing checks that the update method requires the key
// to exist.
func (s *Suite) TestUpdateMissing() {
	s.CreatePeople(Person(1, "alice", 1))
	s.CallKind(datastore.KindValidation, datastore.ActionUpsert, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.RecordsParam: []interface{}{
			map[string]interface{}{"pk": int64(5), "name": "nobody"},
		},
		datastore.MethodParam: datastore.MethodUpdate,
	})
	s.EqualValues(1, s.Search(nil)[datastore.TotalParam])
}

// TestUpsertBadRecords checks record validation, and that a failing
// batch stores nothing.
func (s *Suite) TestUpsertBadRecords() {
	s.CreatePeople()
	for _, records := range []interface{}{
		"pk=1",
		[]interface{}{"pk"},
		[]interface{}{map[string]interface{}{"pk": int64(1), "age": int64(3)}},
		[]interface{}{map[string]interface{}{"name": "no key"}},
		[]interface{}{
			map[string]interface{}{"pk": int64(1), "name": "fine"},
			map[string]interface{}{"pk": "one", "name": "not an int"},
		},
	} {
		s.CallKind(datastore.KindValidation, datastore.ActionUpsert, datastore.Dict{
			datastore.ResourceIDParam: s.Resource,
			datastore.RecordsParam:    records,
		})
	}
	s.EqualValues(0, s.Search(nil)[datastore.TotalParam])
	s.CallKind(datastore.KindValidation, datastore.ActionUpsert, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.RecordsParam:    []interface{}{},
		datastore.MethodParam:     "replace",
	})
}

// TestUpsertMissing checks upserting into an absent resource.
func (s *Suite) TestUpsertMissing() {
	s.CallKind(datastore.KindNotFound, datastore.ActionUpsert, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.RecordsParam:    []interface{}{},
	})
}

// TestDeleteFiltered checks deleting matching records.
func (s *Suite) TestDeleteFiltered() {
	s.CreatePeople(Person(1, "alice", 1), Person(2, "bob", 2))
	filters := map[string]interface{}{"pk": int64(1)}
	result := s.MustCall(datastore.ActionDelete, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.FiltersParam:    filters,
		datastore.ForceParam:      true,
	})
	s.Equal(s.Resource, result[datastore.ResourceIDParam])
	s.Equal(datastore.Dict(filters), result[datastore.FiltersParam])
	s.Equal([]interface{}{"bob"}, s.Column(s.Search(nil), "name"))
}

// TestDeleteResource checks that deleting with no filters drops the
// resource.
func (s *Suite) TestDeleteResource() {
	s.CreatePeople(Person(1, "alice", 1))
	result := s.MustCall(datastore.ActionDelete, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.ForceParam:      true,
	})
	s.Equal(s.Resource, result[datastore.ResourceIDParam])
	s.CallKind(datastore.KindNotFound, datastore.ActionSearch, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
	})
	s.CallKind(datastore.KindNotFound, datastore.ActionDelete, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
	})
}

// TestSearchSQLMax checks the aggregate query used to allocate entry
// identifiers.
func (s *Suite) TestSearchSQLMax() {
	s.CreatePeople()
	sql := `SELECT MAX("pk") AS "max" FROM "` + s.Resource + `"`

	result := s.MustCall(datastore.ActionSearchSQL, datastore.Dict{datastore.SQLParam: sql})
	s.Equal([]interface{}{nil}, s.Column(result, "max"))

	s.MustCall(datastore.ActionUpsert, datastore.Dict{
		datastore.ResourceIDParam: s.Resource,
		datastore.RecordsParam: []interface{}{
			map[string]interface{}{"pk": int64(4)},
			map[string]interface{}{"pk": int64(9)},
		},
	})
	result = s.MustCall(datastore.ActionSearchSQL, datastore.Dict{datastore.SQLParam: sql})
	records := s.Records(result)
	if s.Len(records, 1) {
		max, ok := datastore.ToInt64(records[0]["max"])
		s.True(ok, "max is %#v", records[0]["max"])
		s.Equal(int64(9), max)
	}
}

// TestSearchSQLInvalid checks that malformed SQL is a search query
// error.
func (s *Suite) TestSearchSQLInvalid() {
	s.CallKind(datastore.KindSearchQuery, datastore.ActionSearchSQL, datastore.Dict{
		datastore.SQLParam: "SELEC garbage FROM",
	})
	s.CallKind(datastore.KindValidation, datastore.ActionSearchSQL, datastore.Dict{})
}
