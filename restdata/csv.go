// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/diffeo/go-datastore/datastore"
)

// ErrMissingValue is returned when a record has no value at all for
// one of the result's fields.  An empty string is a value.
type ErrMissingValue struct {
	Row   int
	Field string
}

func (e ErrMissingValue) Error() string {
	return fmt.Sprintf("record %d has no value for %q", e.Row, e.Field)
}

// ErrNotTabular is returned when CSV output is requested for a value
// without "fields" and "records" lists.
type ErrNotTabular struct {
	Missing string
}

func (e ErrNotTabular) Error() string {
	return fmt.Sprintf("cannot render CSV without %q", e.Missing)
}

// csvHeader returns the field ids of a result, in order, skipping the
// datastore's own row id.
func csvHeader(result map[string]interface{}) ([]string, error) {
	fields := asList(result[datastore.FieldsParam])
	if fields == nil {
		return nil, ErrNotTabular{Missing: datastore.FieldsParam}
	}
	header := make([]string, 0, len(fields))
	for _, item := range fields {
		field, ok := item.(map[string]interface{})
		if !ok {
			return nil, ErrNotTabular{Missing: datastore.FieldsParam}
		}
		id, _ := field["id"].(string)
		if id == datastore.BookkeepingField {
			continue
		}
		header = append(header, id)
	}
	return header, nil
}

// RenderCSV renders a result's records as CSV with CRLF line endings.
// The first row holds the field ids.
func RenderCSV(value interface{}) (string, error) {
	result, ok := value.(map[string]interface{})
	if !ok {
		return "", ErrNotTabular{Missing: datastore.FieldsParam}
	}
	header, err := csvHeader(result)
	if err != nil {
		return "", err
	}
	records := asList(result[datastore.RecordsParam])
	if records == nil {
		return "", ErrNotTabular{Missing: datastore.RecordsParam}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if err = w.Write(header); err != nil {
		return "", err
	}
	row := make([]string, len(header))
	for i, item := range records {
		record, _ := item.(map[string]interface{})
		for j, id := range header {
			v, present := record[id]
			if !present {
				return "", ErrMissingValue{Row: i, Field: id}
			}
			text, ok := ScalarText(v)
			if !ok {
				if text, err = EncodeJSON(v); err != nil {
					return "", err
				}
			}
			row[j] = text
		}
		if err = w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
