// Package database provides SQLite-based scan history for policyscan.
//
// Every completed or failed scan can be stored as a row in the runs table,
// together with its full JSON report. The history is used to list past
// runs and to compare two runs of the same site: added and removed
// external links, homepage and policy page changes (by content hash),
// and per-word count deltas.
//
// The database is a single file opened through modernc.org/sqlite, which
// needs no cgo.
package database
