//go:build !storage_cgo

package store

import (
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered for this build.
const DriverName = "sqlite"

// BuildMode identifies which SQLite driver this binary was built with.
const BuildMode = "purego"
