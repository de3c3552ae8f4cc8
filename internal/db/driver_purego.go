//go:build !cgo_sqlite

package db

import (
	_ "modernc.org/sqlite"
)

const (
	driverName    = "sqlite"
	driverPackage = "modernc.org/sqlite"
)
