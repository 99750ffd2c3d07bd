// Package sqlite implements catalog.Catalog on a SQLite database using
// the pure-Go modernc.org/sqlite driver.
package sqlite
