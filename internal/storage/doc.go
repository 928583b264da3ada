// Package storage persists reminder tasks.
//
// Drivers:
//   - "sqlite": SQLite database file (default, pure Go via modernc.org/sqlite)
//   - "file": JSON snapshot + append-only journal
//   - "memory": process-local map, for tests and dry runs
//
// Guard wraps any Store and serializes writes per task id.
package storage
