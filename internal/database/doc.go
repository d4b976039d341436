// Package database provides SQLite-based run history for webswarm.
//
// The HistoryDB stores:
//   - One row per load-test run, including the full JSON report
//   - Per-label request statistics for comparing runs
//   - Every path discovered on a target across crawls
//
// The database is a single file (webswarm.db) in the XDG data directory and
// uses the CGO-free modernc.org/sqlite driver.
package database
