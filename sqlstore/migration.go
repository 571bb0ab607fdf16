// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package sqlstore

import (
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  The migrations only cover the metadata tables; each resource
// gets its own table, created on demand.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_metadata",
			Up: []string{
				`CREATE TABLE datastore_resources (
					resource_id TEXT PRIMARY KEY,
					primary_key TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE TABLE datastore_fields (
					resource_id TEXT NOT NULL
						REFERENCES datastore_resources(resource_id)
						ON DELETE CASCADE,
					position INTEGER NOT NULL,
					field_id TEXT NOT NULL,
					field_type TEXT NOT NULL,
					PRIMARY KEY (resource_id, field_id)
				)`,
			},
			Down: []string{
				`DROP TABLE datastore_fields`,
				`DROP TABLE datastore_resources`,
			},
		},
	},
}

// Upgrade upgrades a database to the latest metadata schema version.
func Upgrade(db *sql.DB, dialect *Dialect) error {
	_, err := migrate.Exec(db, dialect.Migrate, migrationSource, migrate.Up)
	return err
}

// Drop clears the metadata tables by running all of the migrations
// in reverse.  Resource tables are not dropped.
func Drop(db *sql.DB, dialect *Dialect) error {
	_, err := migrate.Exec(db, dialect.Migrate, migrationSource, migrate.Down)
	return err
}
