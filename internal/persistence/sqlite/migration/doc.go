// Package migration applies numbered SQL files to a SQLite database and records each
// applied version in a schema_migrations table.
//
// Migration files are named {version}_{description}.sql and are read from an fs.FS,
// normally the embed.FS compiled into the sqlite package. Files are applied in
// ascending numeric version order, each inside its own transaction.
package migration
