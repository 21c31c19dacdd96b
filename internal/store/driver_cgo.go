//go:build storage_cgo

package store

import (
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver registered for this build.
const DriverName = "sqlite3"

// BuildMode identifies which SQLite driver this binary was built with.
const BuildMode = "cgo"
