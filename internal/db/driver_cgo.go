//go:build cgo_sqlite

// CGO SQLite driver, selected with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package db

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverName    = "sqlite3"
	driverPackage = "github.com/mattn/go-sqlite3"
)
