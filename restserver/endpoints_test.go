// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/diffeo/go-datastore/datastore/datastoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructure(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, people(), nil)
	rec := do(NewRouter(fake), "GET", "/resource/people", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"id": "pk", "type": "int"},
		map[string]interface{}{"id": "name", "type": "text"},
	}, decodeBody(t, rec))
	if calls := fake.Calls(); assert.Len(t, calls, 1) {
		assert.Equal(t, datastore.ActionSearch, calls[0].Action)
		assert.Equal(t, datastore.Dict{"resource_id": "people"}, calls[0].Params)
	}
}

func TestStructureXML(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, people(), nil)
	rec := do(NewRouter(fake), "GET", "/resource/people", "", "Accept", "application/xml")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml;charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `<?xml version="1.0" ?>
<fields>
	<field>
		<id>pk</id>
		<type>int</type>
	</field>
	<field>
		<id>name</id>
		<type>text</type>
	</field>
</fields>
`, rec.Body.String())
}

func TestUpsertResource(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionCreate, datastore.Dict{
			"resource_id": "people",
			"fields": []interface{}{
				datastore.Dict{"id": "pk", "type": "int"},
				datastore.Dict{"id": "name", "type": "text"},
			},
		}, nil)
	rec := do(NewRouter(fake), "PUT", "/resource/people", `[{"id": "name", "type": "text"}]`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[{"id":"pk","type":"int"},{"id":"name","type":"text"}]`, rec.Body.String())

	calls := fake.CallsTo(datastore.ActionCreate)
	require.Len(t, calls, 1)
	assert.Equal(t, datastore.Dict{
		"resource_id": "people",
		"fields": []interface{}{
			datastore.Dict{"id": "pk", "type": "int"},
			map[string]interface{}{"id": "name", "type": "text"},
		},
		"primary_key": []interface{}{"pk"},
		"force":       true,
	}, calls[0].Params)
}

func TestUpsertResourceRejected(t *testing.T) {
	for _, c := range []struct {
		Name    string
		Body    string
		Status  int
		Type    string
		Message string
	}{
		{"object", `{"id": "name"}`, 409, "Validation Error", "Only lists of dicts can be placed to create resources"},
		{"list of strings", `["name"]`, 409, "Validation Error", "Only lists of dicts can be placed to create resources"},
		{"identifier", `[{"id": "a"}, {"id": "pk", "type": "int"}]`, 409, "Validation Error", "The field 'pk' cannot be used since it's used internally"},
		{"bad json", `[{"id": `, 400, "Bad request", ""},
	} {
		fake := datastoretest.NewFake()
		rec := do(NewRouter(fake), "PUT", "/resource/people", c.Body)
		assert.Equal(t, c.Status, rec.Code, c.Name)
		detail := errorBody(t, rec)
		assert.Equal(t, c.Type, detail["__type"], c.Name)
		if c.Message != "" {
			assert.Equal(t, c.Message, detail["message"], c.Name)
		}
		assert.Empty(t, fake.Calls(), c.Name)
	}
}

func TestDeleteResource(t *testing.T) {
	fake := datastoretest.NewFake()
	rec := do(NewRouter(fake), "DELETE", "/resource/people?filters=name&cascade=yes", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", rec.Body.String())
	assert.Equal(t, "application/json;charset=utf-8", rec.Header().Get("Content-Type"))

	calls := fake.CallsTo(datastore.ActionDelete)
	require.Len(t, calls, 1)
	assert.Equal(t, datastore.Dict{
		"resource_id": "people",
		"cascade":     "yes",
		"force":       true,
	}, calls[0].Params)
}

func TestSearchEntries(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, people(), nil)
	rec := do(NewRouter(fake), "GET", "/resource/people/entry?$limit=5&$sort=name%20desc&name=Alice&name=Bob&city=Madrid", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[{"name":"Alice","pk":1},{"name":"Bob","pk":2}]`, rec.Body.String())

	calls := fake.CallsTo(datastore.ActionSearch)
	require.Len(t, calls, 1)
	assert.Equal(t, datastore.Dict{
		"resource_id": "people",
		"limit":       "5",
		"sort":        "name desc",
		"filters": datastore.Dict{
			"name": []interface{}{"Alice", "Bob"},
			"city": "Madrid",
		},
	}, calls[0].Params)
}

func TestSearchEntriesOptionsWithoutPrefix(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, people(), nil)
	do(NewRouter(fake), "GET", "/resource/people/entry?offset=10&q=text", "")
	calls := fake.CallsTo(datastore.ActionSearch)
	require.Len(t, calls, 1)
	assert.Equal(t, datastore.Dict{
		"resource_id": "people",
		"offset":      "10",
		"q":           "text",
		"filters":     datastore.Dict{},
	}, calls[0].Params)
}

func TestSearchEntriesCSV(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, people(), nil)
	rec := do(NewRouter(fake), "GET", "/resource/people/entry", "", "Accept", "text/csv")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv;charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "pk,name\r\n1,Alice\r\n2,Bob\r\n", rec.Body.String())
}

func TestSearchEntriesXMLLinks(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, people(), nil)
	rec := do(NewRouter(fake), "GET", "/resource/people/entry", "", "Accept", "application/xml")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `<?xml version="1.0" ?>
<records>
	<record url="http://example.com/resource/people/entry/1">
		<name>Alice</name>
		<pk>1</pk>
	</record>
	<record url="http://example.com/resource/people/entry/2">
		<name>Bob</name>
		<pk>2</pk>
	</record>
</records>
`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "_id")
}

// scriptMax makes the identifier query report max.
func scriptMax(fake *datastoretest.Fake, max interface{}) *datastoretest.Fake {
	return fake.On(datastore.ActionSearchSQL, datastore.Dict{
		"records": []interface{}{datastore.Dict{"max": max}},
		"fields":  []interface{}{datastore.Dict{"id": "max", "type": "int4"}},
	}, nil)
}

func TestCreateEntries(t *testing.T) {
	for _, c := range []struct {
		Name  string
		Max   interface{}
		First int64
	}{
		{"empty", nil, 1},
		{"existing", int64(7), 8},
		{"float", 41.0, 42},
	} {
		fake := scriptMax(datastoretest.NewFake(), c.Max).
			On(datastore.ActionUpsert, datastore.Dict{
				"resource_id": "people",
				"records": []interface{}{
					datastore.Dict{"name": "Alice", "pk": c.First},
					datastore.Dict{"name": "Bob", "pk": c.First + 1},
				},
			}, nil)
		rec := do(NewRouter(fake), "POST", "/resource/people/entry", `[{"name": "Alice"}, {"name": "Bob"}]`)
		assert.Equal(t, http.StatusCreated, rec.Code, c.Name)
		assert.Equal(t, "http://example.com/resource/people/entry", rec.Header().Get("Location"), c.Name)

		sqlCalls := fake.CallsTo(datastore.ActionSearchSQL)
		if assert.Len(t, sqlCalls, 1, c.Name) {
			assert.Equal(t, datastore.Dict{
				"sql": `SELECT MAX("pk") AS "max" FROM "people"`,
			}, sqlCalls[0].Params, c.Name)
		}
		upsertCalls := fake.CallsTo(datastore.ActionUpsert)
		if assert.Len(t, upsertCalls, 1, c.Name) {
			assert.Equal(t, datastore.Dict{
				"resource_id": "people",
				"records": []interface{}{
					map[string]interface{}{"name": "Alice", "pk": c.First},
					map[string]interface{}{"name": "Bob", "pk": c.First + 1},
				},
				"method": "upsert",
				"force":  true,
			}, upsertCalls[0].Params, c.Name)
		}
	}
}

func TestCreateEntriesRejected(t *testing.T) {
	for _, c := range []struct {
		Name    string
		Body    string
		Message string
	}{
		{"object", `{"name": "Alice"}`, "Only lists of dicts can be placed to create entries"},
		{"scalar in list", `[{"name": "Alice"}, 3]`, "Only lists of dicts can be placed to create entries"},
		{"identifier", `[{"name": "Alice"}, {"name": "Bob", "pk": 5}, {"name": "Carol"}]`, "The field 'pk' is assigned automatically"},
	} {
		fake := scriptMax(datastoretest.NewFake(), int64(3))
		rec := do(NewRouter(fake), "POST", "/resource/people/entry", c.Body)
		assert.Equal(t, http.StatusConflict, rec.Code, c.Name)
		detail := errorBody(t, rec)
		assert.Equal(t, "Validation Error", detail["__type"], c.Name)
		assert.Equal(t, c.Message, detail["message"], c.Name)
		assert.Empty(t, fake.Calls(), c.Name)
	}
}

func TestUpsertEntry(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionUpsert, datastore.Dict{
			"resource_id": "people",
			"records":     []interface{}{datastore.Dict{"_id": int64(9), "name": "Carol", "pk": int64(3)}},
		}, nil)
	rec := do(NewRouter(fake), "PUT", "/resource/people/entry/3", `{"name": "Carol", "pk": 3}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"name":"Carol","pk":3}`, rec.Body.String())

	calls := fake.CallsTo(datastore.ActionUpsert)
	require.Len(t, calls, 1)
	assert.Equal(t, datastore.Dict{
		"resource_id": "people",
		"records":     []interface{}{map[string]interface{}{"name": "Carol", "pk": int64(3)}},
		"method":      "upsert",
		"force":       true,
	}, calls[0].Params)
}

func TestUpsertEntryRejected(t *testing.T) {
	for _, c := range []struct {
		Name    string
		Entry   string
		Body    string
		Status  int
		Message string
	}{
		{"list", "3", `[{"name": "Carol"}]`, 409, "Only dicts can be placed to create/modify an entry"},
		{"empty", "3", `{}`, 409, "Empty object received"},
		{"changed identifier", "3", `{"pk": 4}`, 409, "The entry identifier cannot be changed"},
		{"string identifier", "3", `{"pk": "3"}`, 409, "The entry identifier cannot be changed"},
		{"bad entry", "three", `{"name": "Carol"}`, 400, ""},
	} {
		fake := datastoretest.NewFake()
		rec := do(NewRouter(fake), "PUT", "/resource/people/entry/"+c.Entry, c.Body)
		assert.Equal(t, c.Status, rec.Code, c.Name)
		detail := errorBody(t, rec)
		if c.Message != "" {
			assert.Equal(t, c.Message, detail["message"], c.Name)
		}
		assert.Empty(t, fake.Calls(), c.Name)
	}
}

func TestMalformedBodies(t *testing.T) {
	for _, path := range []string{"/resource/people", "/resource/people/entry/1", "/resource/people/entry"} {
		for _, body := range []string{"EXAMPLE CONTENT", `{"name": "Carol"} trailing`, `[{"id": "name"}] [1]`} {
			method := "PUT"
			if path == "/resource/people/entry" {
				method = "POST"
			}
			fake := datastoretest.NewFake()
			rec := do(NewRouter(fake), method, path, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %s", path, body)
			detail := errorBody(t, rec)
			assert.Equal(t, "Bad request", detail["__type"], "%s %s", path, body)
			assert.Empty(t, fake.Calls(), "%s %s", path, body)
		}
	}
}

func TestGetEntry(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, datastore.Dict{
			"resource_id": "people",
			"records":     []interface{}{datastore.Dict{"_id": int64(1), "name": "Alice", "pk": int64(1)}},
		}, nil)
	rec := do(NewRouter(fake), "GET", "/resource/people/entry/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"name":"Alice","pk":1}`, rec.Body.String())

	calls := fake.CallsTo(datastore.ActionSearch)
	require.Len(t, calls, 1)
	assert.Equal(t, datastore.Dict{
		"resource_id": "people",
		"filters":     datastore.Dict{"pk": "1"},
	}, calls[0].Params)
}

func TestGetEntryXML(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, datastore.Dict{
			"resource_id": "people",
			"records":     []interface{}{datastore.Dict{"name": "Alice", "pk": int64(1)}},
		}, nil)
	rec := do(NewRouter(fake), "GET", "/resource/people/entry/1", "", "Accept", "application/xml")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `<?xml version="1.0" ?>
<record url="http://example.com/resource/people/entry/1">
	<name>Alice</name>
	<pk>1</pk>
</record>
`, rec.Body.String())
}

func TestGetEntryNotFound(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, datastore.Dict{"records": []interface{}{}}, nil)
	rec := do(NewRouter(fake), "GET", "/resource/people/entry/12", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]interface{}{
		"__type":  "Not found",
		"message": "The element 12 does not exist in the resource people",
	}, errorBody(t, rec))
}

func TestDeleteEntry(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, datastore.Dict{
			"records": []interface{}{datastore.Dict{"name": "Alice", "pk": int64(1)}},
		}, nil)
	rec := do(NewRouter(fake), "DELETE", "/resource/people/entry/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", rec.Body.String())

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, datastore.ActionSearch, calls[0].Action)
	assert.Equal(t, datastore.ActionDelete, calls[1].Action)
	assert.Equal(t, datastore.Dict{
		"resource_id": "people",
		"filters":     datastore.Dict{"pk": "1"},
		"force":       true,
	}, calls[1].Params)
}

func TestDeleteEntryNotFound(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearch, datastore.Dict{"records": []interface{}{}}, nil)
	rec := do(NewRouter(fake), "DELETE", "/resource/people/entry/5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "The element 5 does not exist in the resource people", errorBody(t, rec)["message"])
	assert.Empty(t, fake.CallsTo(datastore.ActionDelete))
}

func TestSearchSQL(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearchSQL, datastore.Dict{
			"records": []interface{}{
				datastore.Dict{"name": "Alice", "n": int64(2)},
			},
			"fields": []interface{}{
				datastore.Dict{"id": "name", "type": "text"},
				datastore.Dict{"id": "n", "type": "int8"},
			},
		}, nil)
	query := `SELECT name, COUNT(*) AS n FROM "people" GROUP BY name`
	rec := do(NewRouter(fake), "GET", "/search_sql?sql="+url.QueryEscape(query), "", "Accept", "text/csv")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "name,n\r\nAlice,2\r\n", rec.Body.String())

	calls := fake.CallsTo(datastore.ActionSearchSQL)
	require.Len(t, calls, 1)
	assert.Equal(t, datastore.Dict{"sql": query}, calls[0].Params)
}

func TestSearchSQLError(t *testing.T) {
	fake := datastoretest.NewFake().
		On(datastore.ActionSearchSQL, nil, datastore.SearchQueryError(errors.New(`syntax error at or near "FORM"`)))
	rec := do(NewRouter(fake), "GET", "/search_sql?sql=SELECT", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := errorBody(t, rec)
	assert.Equal(t, "Search Query Error", detail["__type"])
	assert.True(t, strings.HasSuffix(detail["message"].(string), `syntax error at or near "FORM"`), detail["message"])
}
