// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"errors"
	"strings"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// classify converts a database error into a datastore error of the
// appropriate kind.  Errors that already carry a kind, and nil, pass
// through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var dsErr *datastore.Error
	if errors.As(err, &dsErr) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "42601", pqErr.Code == "42703", pqErr.Code == "42883":
			return datastore.SearchQueryError(err)
		case pqErr.Code == "42P01":
			return datastore.NotFound("%s", pqErr.Message)
		case pqErr.Code == "42501":
			return datastore.NotAuthorized(pqErr.Message)
		case pqErr.Code == "57014":
			return datastore.SearchError(err)
		case pqErr.Code.Class() == "23":
			return datastore.IntegrityError(pqErr.Message, err)
		case pqErr.Code.Class() == "22":
			return datastore.ValidationError(pqErr.Message, nil)
		}
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return datastore.IntegrityError(liteErr.Error(), err)
		}
		if liteErr.Code()&0xff == sqlite3.SQLITE_AUTH || liteErr.Code()&0xff == sqlite3.SQLITE_PERM {
			return datastore.NotAuthorized(liteErr.Error())
		}
		msg := liteErr.Error()
		switch {
		case strings.Contains(msg, "no such table"):
			return datastore.NotFound("%s", msg)
		case strings.Contains(msg, "syntax error"),
			strings.Contains(msg, "no such column"),
			strings.Contains(msg, "no such function"),
			strings.Contains(msg, "incomplete input"):
			return datastore.SearchQueryError(err)
		}
	}
	return err
}

// classifySQL is classify for raw SQL statements, where a missing
// table is a problem with the query rather than the resource, and any
// other database failure is a search error.
func classifySQL(err error) error {
	classified := classify(err)
	switch datastore.KindOf(classified) {
	case datastore.KindNotFound:
		var dsErr *datastore.Error
		errors.As(classified, &dsErr)
		return datastore.SearchQueryError(errors.New(dsErr.Message))
	case datastore.KindUnexpected:
		var pqErr *pq.Error
		var liteErr *sqlite.Error
		if errors.As(err, &pqErr) || errors.As(err, &liteErr) {
			return datastore.SearchError(err)
		}
	}
	return classified
}
