// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"reflect"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/ugorji/go/codec"
)

// JSONHandle is the codec handle for every JSON document this system
// reads or writes.  Objects decode as map[string]interface{}, integers
// as int64, and objects encode with sorted keys.
var JSONHandle = &codec.JsonHandle{}

func init() {
	JSONHandle.MapType = reflect.TypeOf(map[string]interface{}(nil))
	JSONHandle.SignedInteger = true
	JSONHandle.Canonical = true
	JSONHandle.HTMLCharsAsIs = true
}

// errInvalidJSON reports a body that is not exactly one JSON value.
var errInvalidJSON = errors.New("body is not a single well-formed JSON document")

// ErrUnsupportedFormat is returned by Serialize for formats that
// results cannot be rendered in.
type ErrUnsupportedFormat struct {
	Format Format
}

func (e ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("cannot render results as %v", e.Format)
}

// Decode reads a JSON request body.  Any failure, including an empty
// body, is a bad-request error.
func Decode(r io.Reader) (interface{}, error) {
	body, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, datastore.BadRequest(fmt.Errorf("JSON Error: Error decoding JSON data. Error: %v", errInvalidJSON))
	}
	var out interface{}
	err = codec.NewDecoderBytes(body, JSONHandle).Decode(&out)
	if err != nil {
		return nil, datastore.BadRequest(fmt.Errorf("JSON Error: Error decoding JSON data. Error: %v", err))
	}
	return out, nil
}

// EncodeJSON renders a value as a JSON document.
func EncodeJSON(value interface{}) (string, error) {
	var out []byte
	err := codec.NewEncoderBytes(&out, JSONHandle).Encode(value)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Serialize renders value in a format.  If root is non-empty, only
// value[root] is rendered (an empty list if value has no such key),
// and root names the top-level XML element.  If index is
// non-negative, only that element of the projected list is rendered,
// and the XML element name is made singular.  CSV output ignores root
// and index and always describes the whole of value.
//
// An empty string renders as an empty body in JSON.
func Serialize(value interface{}, format Format, root string, index int) (string, error) {
	element := value
	name := root
	if root != "" {
		element = []interface{}{}
		if m, ok := value.(map[string]interface{}); ok {
			if v, present := m[root]; present {
				element = v
			}
		}
	}
	if index >= 0 {
		list := asList(element)
		if index >= len(list) {
			return "", fmt.Errorf("no element %d in %q", index, root)
		}
		element = list[index]
		name = singular(name)
	}

	switch format {
	case JSON:
		if s, ok := element.(string); ok && s == "" {
			return "", nil
		}
		return EncodeJSON(element)
	case XML:
		return RenderXML(element, name)
	case CSV:
		return RenderCSV(value)
	default:
		return "", ErrUnsupportedFormat{Format: format}
	}
}

// asList returns v as a list, or nil if it is not one.
func asList(v interface{}) []interface{} {
	switch list := v.(type) {
	case []interface{}:
		return list
	case []map[string]interface{}:
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = item
		}
		return out
	}
	return nil
}
