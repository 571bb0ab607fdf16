// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"strings"
	"testing"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appointments is a search result over a table of appointments.
func appointments() map[string]interface{} {
	return map[string]interface{}{
		"fields": []interface{}{
			map[string]interface{}{"type": "int4", "id": "_id"},
			map[string]interface{}{"type": "text", "id": "nombre"},
			map[string]interface{}{"type": "text", "id": "apellido1"},
			map[string]interface{}{"type": "timestamp", "id": "fecha_nombramiento"},
			map[string]interface{}{"type": "timestamp", "id": "fecha_cese"},
		},
		"records": []interface{}{
			map[string]interface{}{
				"apellido1":          "ABC",
				"nombre":             "DEF",
				"fecha_cese":         "1991-07-13T00:00:00",
				"_id":                int64(1),
				"fecha_nombramiento": "1987-07-22T00:00:00",
			},
			map[string]interface{}{
				"apellido1":          "GHI",
				"nombre":             "JKL",
				"fecha_cese":         "1991-07-13T00:00:00",
				"_id":                int64(2),
				"fecha_nombramiento": "1987-07-22T00:00:00",
			},
			map[string]interface{}{
				"apellido1":          "MNO",
				"nombre":             "PQR",
				"_id":                int64(3),
				"fecha_nombramiento": "1991-07-13T00:00:00",
				"fecha_cese":         "",
			},
		},
	}
}

const appointmentsCSV = "nombre,apellido1,fecha_nombramiento,fecha_cese\r\n" +
	"DEF,ABC,1987-07-22T00:00:00,1991-07-13T00:00:00\r\n" +
	"JKL,GHI,1987-07-22T00:00:00,1991-07-13T00:00:00\r\n" +
	"PQR,MNO,1991-07-13T00:00:00,\r\n"

func TestRenderCSV(t *testing.T) {
	out, err := RenderCSV(appointments())
	if assert.NoError(t, err) {
		assert.Equal(t, appointmentsCSV, out)
	}
}

func TestRenderCSVMissingValue(t *testing.T) {
	result := appointments()
	records := result["records"].([]interface{})
	delete(records[2].(map[string]interface{}), "fecha_cese")

	_, err := RenderCSV(result)
	assert.Equal(t, ErrMissingValue{Row: 2, Field: "fecha_cese"}, err)
}

func TestRenderCSVValues(t *testing.T) {
	result := map[string]interface{}{
		"fields": []interface{}{
			map[string]interface{}{"id": "a"},
			map[string]interface{}{"id": "b"},
			map[string]interface{}{"id": "c"},
		},
		"records": []interface{}{
			map[string]interface{}{"a": nil, "b": true, "c": "x,y"},
			map[string]interface{}{"a": 1.5, "b": int64(7), "c": []interface{}{int64(1)}},
		},
	}
	out, err := RenderCSV(result)
	if assert.NoError(t, err) {
		assert.Equal(t, "a,b,c\r\n,True,\"x,y\"\r\n1.5,7,[1]\r\n", out)
	}
}

func TestRenderCSVNotTabular(t *testing.T) {
	_, err := RenderCSV([]interface{}{})
	assert.IsType(t, ErrNotTabular{}, err)

	_, err = RenderCSV(map[string]interface{}{"fields": []interface{}{}})
	assert.Equal(t, ErrNotTabular{Missing: "records"}, err)
}

// example is a small search result.
func example() map[string]interface{} {
	return map[string]interface{}{
		"fields": []interface{}{
			map[string]interface{}{"id": "test", "type": "int"},
			map[string]interface{}{"id": "test1", "type": "text"},
		},
		"records": []interface{}{
			map[string]interface{}{"test": "test", "test1": "test1"},
			map[string]interface{}{"test": "_test", "test1": "_test1"},
		},
		"resource_id": "test",
	}
}

func TestSerializeJSON(t *testing.T) {
	out, err := Serialize(example(), JSON, "records", -1)
	if assert.NoError(t, err) {
		assert.Equal(t, `[{"test":"test","test1":"test1"},{"test":"_test","test1":"_test1"}]`, out)
	}

	out, err = Serialize(example(), JSON, "records", 1)
	if assert.NoError(t, err) {
		assert.Equal(t, `{"test":"_test","test1":"_test1"}`, out)
	}

	out, err = Serialize(example(), JSON, "", -1)
	if assert.NoError(t, err) {
		assert.True(t, strings.HasPrefix(out, `{"fields":[`), out)
		assert.True(t, strings.HasSuffix(out, `"resource_id":"test"}`), out)
	}

	out, err = Serialize(example(), JSON, "missing", -1)
	if assert.NoError(t, err) {
		assert.Equal(t, "[]", out)
	}

	out, err = Serialize("", JSON, "", -1)
	if assert.NoError(t, err) {
		assert.Equal(t, "", out)
	}

	_, err = Serialize(example(), JSON, "records", 2)
	assert.Error(t, err)
}

func TestSerializeXML(t *testing.T) {
	out, err := Serialize(example(), XML, "records", 1)
	if assert.NoError(t, err) {
		assert.Equal(t, "<?xml version=\"1.0\" ?>\n<record>\n\t<test>_test</test>\n\t<test1>_test1</test1>\n</record>\n", out)
	}

	out, err = Serialize(example(), XML, "records", -1)
	if assert.NoError(t, err) {
		assert.True(t, strings.HasPrefix(out, "<?xml version=\"1.0\" ?>\n<records>\n\t<record>\n"), out)
	}
}

func TestSerializeCSVIgnoresProjection(t *testing.T) {
	whole, err := Serialize(example(), CSV, "", -1)
	require.NoError(t, err)
	assert.Equal(t, "test,test1\r\ntest,test1\r\n_test,_test1\r\n", whole)

	for _, index := range []int{-1, 1} {
		out, err := Serialize(example(), CSV, "records", index)
		if assert.NoError(t, err) {
			assert.Equal(t, whole, out)
		}
	}
}

func TestSerializeUnsupported(t *testing.T) {
	_, err := Serialize(example(), Text, "", -1)
	assert.Equal(t, ErrUnsupportedFormat{Format: Text}, err)
}

func TestDecode(t *testing.T) {
	v, err := Decode(strings.NewReader(`{"example": 1, "example3": "test example", "list": [1.5, null, true]}`))
	if assert.NoError(t, err) {
		assert.Equal(t, map[string]interface{}{
			"example":  int64(1),
			"example3": "test example",
			"list":     []interface{}{1.5, nil, true},
		}, v)
	}

	v, err = Decode(strings.NewReader(`[{"id": "a"}]`))
	if assert.NoError(t, err) {
		assert.Equal(t, []interface{}{map[string]interface{}{"id": "a"}}, v)
	}

	for _, body := range []string{"EXAMPLE CONTENT", "", `{"a":`, "[1] trailing", `{"a": 1} {"b": 2}`, "0 1"} {
		_, err = Decode(strings.NewReader(body))
		if assert.Error(t, err, body) {
			assert.Equal(t, datastore.KindBadRequest, datastore.KindOf(err), body)
			assert.True(t, strings.HasPrefix(err.Error(), "JSON Error: Error decoding JSON data. Error:"), err.Error())
		}
	}
}

func TestRoundTripStripsBookkeeping(t *testing.T) {
	result := appointments()
	datastore.StripBookkeeping(result)
	out, err := Serialize(result, JSON, "records", -1)
	require.NoError(t, err)

	back, err := Decode(strings.NewReader(out))
	require.NoError(t, err)
	records := back.([]interface{})
	require.Len(t, records, 3)
	for _, record := range records {
		assert.NotContains(t, record, datastore.BookkeepingField)
	}
	assert.Equal(t, "PQR", records[2].(map[string]interface{})["nombre"])
}
