// Package wal implements the newline-delimited write-ahead log.
//
// Every mutation is appended as one encoded line before it is applied in
// memory. A batch is encoded into a single buffer and written with one call,
// so a batch is either fully present in the log or (after a failed write)
// the log is marked broken and refuses further appends.
//
// After the engine has captured the log's effects in a segment it calls
// [WAL.Checkpoint], which atomically replaces the log with a shorter one.
package wal
