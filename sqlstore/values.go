// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/ugorji/go/codec"
)

// jsonHandle encodes json fields, which are stored as text.
var jsonHandle = &codec.JsonHandle{}

func init() {
	jsonHandle.MapType = reflect.TypeOf(map[string]interface{}(nil))
	jsonHandle.SignedInteger = true
	jsonHandle.Canonical = true
}

// toDB converts a canonical value to a database parameter.
func toDB(fieldType string, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if fieldType == datastore.TypeJSON {
		var out []byte
		if err := codec.NewEncoderBytes(&out, jsonHandle).Encode(v); err != nil {
			return nil, err
		}
		return string(out), nil
	}
	return v, nil
}

// fromDB converts a scanned database value to the canonical
// representation of a field type.  Drivers disagree on how they
// return numeric, boolean, and timestamp columns, so this accepts
// every form they produce.
func fromDB(fieldType string, v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}
	switch fieldType {
	case datastore.TypeInt:
		if n, ok := datastore.ToInt64(v); ok {
			return n
		}
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
	case datastore.TypeNumeric:
		if f, ok := datastore.ToFloat64(v); ok {
			return f
		}
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	case datastore.TypeBool:
		if n, ok := datastore.ToInt64(v); ok {
			return n != 0
		}
		if s, ok := v.(string); ok {
			switch strings.ToLower(s) {
			case "t", "true", "1":
				return true
			case "f", "false", "0":
				return false
			}
		}
	case datastore.TypeJSON:
		if s, ok := v.(string); ok {
			var decoded interface{}
			if err := codec.NewDecoderBytes([]byte(s), jsonHandle).Decode(&decoded); err == nil {
				return decoded
			}
		}
	}
	if t, ok := v.(time.Time); ok {
		return datastore.FormatTimestamp(t)
	}
	return v
}

// columnType guesses the canonical type of a raw query result column
// from its database type name.
func columnType(databaseType string) string {
	if t, ok := datastore.CanonicalType(databaseType); ok {
		return t
	}
	switch strings.ToUpper(databaseType) {
	case "INT2", "SMALLINT", "BIGSERIAL":
		return datastore.TypeInt
	case "DECIMAL", "NUMBER":
		return datastore.TypeNumeric
	case "TIMESTAMPTZ", "DATETIME":
		return datastore.TypeTimestamp
	}
	return datastore.TypeText
}
