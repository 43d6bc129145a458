//go:build sqlite_cgo

package store

import (
	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver
)

// sqlDriverName selects the registered database/sql driver for builds with
// the sqlite_cgo tag.
const sqlDriverName = "sqlite3"
