// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

// This file contains generic support code for database/sql: withTx()
// to do work in a transaction that can be retried, and scanRows() to
// loop over the results of a multi-row SELECT.

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// withTx calls some function with a database/sql transaction object.
// If f panics or returns a non-nil error, rolls the transaction back;
// otherwise commits it before returning.  Returns the error value from
// f, or some other error related to transaction management.
func (ds *sqlDatastore) withTx(ctx context.Context, readOnly bool, f func(*sql.Tx) error) (err error) {
	var (
		tx   *sql.Tx
		done bool
	)

	// If we have a failure, roll back; and if that rollback fails
	// and we don't yet have an error, set the error
	defer func() {
		if tx != nil && !done {
			err2 := tx.Rollback()
			if err == nil {
				err = err2
			}
		}
	}()

	// Run in a loop, repeating the work on serialization errors
	for {
		tx, err = ds.db.BeginTx(ctx, nil)
		if err != nil {
			return
		}

		if ds.dialect.Isolation {
			level := "REPEATABLE READ"
			if readOnly {
				level += " READ ONLY"
			}
			_, err = tx.ExecContext(ctx, "SET TRANSACTION ISOLATION LEVEL "+level)
			if err != nil {
				return
			}
		}

		// Call the callback function
		err = f(tx)

		// If that succeeded, commit
		if err == nil {
			err = tx.Commit()
			done = true
		}

		// If we specifically got a serialization error,
		// retry
		if pqerr, ok := err.(*pq.Error); ok {
			if pqerr.Code == "40001" {
				err = tx.Rollback()
				if err == sql.ErrTxDone {
					// We want to roll back, but we
					// can't, because we've already
					// rolled back; not an error
					err = nil
				} else if err != nil {
					return
				}
				tx = nil
				done = false
				continue
			}
		}

		break
	}

	return
}

// scanRows runs an SQL query and calls a function for each row in the
// result.  The callback function should only call the Scan() method on
// the provided Rows object; this function will take care of advancing
// through the list of rows and closing the iterator as required.
func scanRows(rows *sql.Rows, f func() error) (err error) {
	var done bool
	defer func() {
		if !done {
			err2 := rows.Close()
			if err == nil {
				err = err2
			}
		}
	}()

	for rows.Next() {
		err = f()
		if err != nil {
			return
		}
	}
	done = true
	err = rows.Err()
	return
}

// queryRows runs a query inside a transaction and scans every row
// into a slice of untyped values.
func queryRows(ctx context.Context, tx *sql.Tx, query string, params queryParams) ([][]interface{}, []*sql.ColumnType, error) {
	rows, err := tx.QueryContext(ctx, query, params.values...)
	if err != nil {
		return nil, nil, err
	}
	columns, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, nil, err
	}
	var result [][]interface{}
	err = scanRows(rows, func() error {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		result = append(result, values)
		return nil
	})
	return result, columns, err
}
