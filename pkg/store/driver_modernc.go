//go:build !sqlite_cgo

package store

import (
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// sqlDriverName selects the registered database/sql driver. The default
// build uses the cgo-free modernc driver; build with -tags sqlite_cgo to use
// mattn/go-sqlite3 instead.
const sqlDriverName = "sqlite"
