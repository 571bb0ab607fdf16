// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient provides an HTTP client for the datastore REST
// API served by the "restserver" package.
//
// The server in github.com/diffeo/go-datastore/cmd/datastored runs a
// compatible REST server.  Call New() with the base URL of that
// service; for instance,
//
//     c, err := restclient.New("http://localhost:5990/")
//
// Failures reported by the server come back as *datastore.Error, so
// datastore.KindOf tells a missing entry from a validation failure.
package restclient

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/diffeo/go-datastore/datastore"
)

const (
	resourceTemplate = "resource/{resource_id}"
	entriesTemplate  = "resource/{resource_id}/entry"
	entryTemplate    = "resource/{resource_id}/entry/{entry_id}"
	sqlTemplate      = "search_sql{?sql}"
)

// optionPrefix marks search options in an entry search query.
const optionPrefix = "$"

// Client talks to a datastore REST server.
type Client struct {
	resource
}

// New creates a client for the REST server at baseURL.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("restclient: base URL must be absolute")
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{resource{URL: u}}, nil
}

// WithUser returns a copy of the client that identifies itself as
// user.
func (c *Client) WithUser(user, password string) *Client {
	copied := *c
	copied.User = user
	copied.Password = password
	return &copied
}

func (c *Client) do(method, template string, vars map[string]interface{}, query url.Values, in interface{}) (interface{}, error) {
	u, err := c.Template(template, vars)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return c.Do(method, u, in)
}

func resourceVars(resourceID string) map[string]interface{} {
	return map[string]interface{}{"resource_id": resourceID}
}

func entryVars(resourceID string, entryID int64) map[string]interface{} {
	return map[string]interface{}{
		"resource_id": resourceID,
		"entry_id":    strconv.FormatInt(entryID, 10),
	}
}

// asRecords converts a decoded list of objects.
func asRecords(v interface{}) ([]datastore.Dict, error) {
	if v == nil {
		return nil, nil
	}
	records := datastore.AsRecords(v)
	if records == nil {
		if list, ok := v.([]interface{}); !ok || len(list) > 0 {
			return nil, errors.New("restclient: expected a list of objects in the response")
		}
	}
	return records, nil
}

// Structure returns the field descriptors of a resource, starting
// with its "pk" identifier.
func (c *Client) Structure(resourceID string) ([]datastore.Dict, error) {
	out, err := c.do("GET", resourceTemplate, resourceVars(resourceID), nil, nil)
	if err != nil {
		return nil, err
	}
	return asRecords(out)
}

// UpsertResource creates a resource with the given fields, or adds
// them to an existing resource.  The fields may not include "pk".
// Returns the resulting field descriptors.
func (c *Client) UpsertResource(resourceID string, fields []datastore.Field) ([]datastore.Dict, error) {
	in := make([]interface{}, len(fields))
	for i, f := range fields {
		in[i] = f.Dict()
	}
	out, err := c.do("PUT", resourceTemplate, resourceVars(resourceID), nil, in)
	if err != nil {
		return nil, err
	}
	return asRecords(out)
}

// DeleteResource deletes a resource and all of its entries.
func (c *Client) DeleteResource(resourceID string) error {
	_, err := c.do("DELETE", resourceTemplate, resourceVars(resourceID), nil, nil)
	return err
}

// Search returns the entries of a resource that match every filter.
// Each filter names a field and lists its acceptable values.
// options holds search options such as "limit", "offset", "sort",
// or "q".
func (c *Client) Search(resourceID string, filters map[string][]string, options map[string]string) ([]datastore.Dict, error) {
	query := url.Values{}
	for field, values := range filters {
		query[field] = values
	}
	for option, value := range options {
		query.Set(optionPrefix+option, value)
	}
	out, err := c.do("GET", entriesTemplate, resourceVars(resourceID), query, nil)
	if err != nil {
		return nil, err
	}
	return asRecords(out)
}

// CreateEntries adds new entries to a resource.  The server assigns
// each a new "pk" identifier.  Returns the stored entries.
func (c *Client) CreateEntries(resourceID string, records []datastore.Dict) ([]datastore.Dict, error) {
	in := make([]interface{}, len(records))
	for i, record := range records {
		in[i] = map[string]interface{}(record)
	}
	out, err := c.do("POST", entriesTemplate, resourceVars(resourceID), nil, in)
	if err != nil {
		return nil, err
	}
	return asRecords(out)
}

// GetEntry returns a single entry.
func (c *Client) GetEntry(resourceID string, entryID int64) (datastore.Dict, error) {
	out, err := c.do("GET", entryTemplate, entryVars(resourceID, entryID), nil, nil)
	if err != nil {
		return nil, err
	}
	record, ok := out.(map[string]interface{})
	if !ok {
		return nil, errors.New("restclient: expected an object in the response")
	}
	return record, nil
}

// UpsertEntry creates or updates a single entry.  Fields not in
// record keep their existing values.
func (c *Client) UpsertEntry(resourceID string, entryID int64, record datastore.Dict) (datastore.Dict, error) {
	out, err := c.do("PUT", entryTemplate, entryVars(resourceID, entryID), nil, map[string]interface{}(record))
	if err != nil {
		return nil, err
	}
	result, _ := out.(map[string]interface{})
	return result, nil
}

// DeleteEntry deletes a single entry.
func (c *Client) DeleteEntry(resourceID string, entryID int64) error {
	_, err := c.do("DELETE", entryTemplate, entryVars(resourceID, entryID), nil, nil)
	return err
}

// SearchSQL runs a read-only SQL query.
func (c *Client) SearchSQL(sql string) ([]datastore.Dict, error) {
	out, err := c.do("GET", sqlTemplate, map[string]interface{}{"sql": sql}, nil, nil)
	if err != nil {
		return nil, err
	}
	return asRecords(out)
}
