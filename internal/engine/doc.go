// Package engine implements the LSM storage engine behind the store.
//
// Writes are appended to the write-ahead log before they touch the MemTable.
// When the MemTable reaches its flush threshold it is written out as an
// immutable, id-sorted segment and the log is checkpointed. When enough
// segments accumulate they are merged into one by compaction.
//
// # Visibility
//
// A lookup consults, in order: the tombstone set, the MemTable, and the
// segments from newest to oldest. The first hit wins, so newer data shadows
// older data and a tombstone shadows everything.
//
// # Directory Layout
//
//	LOCK                          advisory exclusive lock
//	wal.log                       newline-delimited mutation log
//	segment-000001.sst            flushed segment
//	segment-000004.compacted.sst  compaction output
//
// The Engine guards its state with a mutex and is safe for concurrent use.
package engine
