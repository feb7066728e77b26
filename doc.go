// Package lsmvec provides an embedded, persistent vector store for Go.
//
// Vectors are stored durably in a log-structured merge layout (a write-ahead
// log, an in-memory MemTable and immutable segment files merged by
// compaction) and indexed in memory by a KD-tree. Queries rank records by
// cosine similarity or euclidean distance.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, _ := lsmvec.Open(ctx, "./data")
//	defer store.Close(ctx)
//
//	id, _ := store.Add(ctx, []float64{0.1, 0.9}, lsmvec.WithMetadata(model.Metadata{"title": "a"}))
//	hits, _ := store.SearchSimilar(ctx, []float64{0.2, 0.8}, 10)
//	near, _ := store.SearchNearby(ctx, []float64{0.2, 0.8}, 10)
//
// # Dimensionality
//
// The first record stored fixes the dimension. Adding or searching with a
// vector of any other length fails with *ErrDimensionMismatch and leaves the
// store unchanged. Open derives the dimension from the live records, so a
// directory whose records were all deleted accepts a new one after reopening.
//
// # Durability
//
// Every mutation is appended to the write-ahead log before it becomes
// visible. With the default DurabilitySync the log is fsynced on every
// append, so a completed Add, AddBatch, Delete or DeleteBatch survives a
// crash without calling Save. Save forces the MemTable into a segment.
//
// # Concurrency
//
// A Store is safe for concurrent use. Reads (searches, Count, Get) share a
// permit; mutations take an exclusive one. Writers are preferred: once a
// writer is waiting, new readers queue behind it. WithLockTimeout bounds how
// long an operation waits for its permit.
//
// Only one Store may open a directory at a time; a second Open fails with
// ErrLocked.
package lsmvec
