// Package model defines the core types shared by the lsmvec packages.
//
// # Data Types
//
//   - Record: a vector with a string ID and optional metadata
//   - Metadata: opaque key/value attributes attached to a record
//   - Op: the kind of mutation recorded in the write-ahead log
//
// Records are treated as values. A record is superseded by writing a new record
// with the same ID, never mutated in place.
package model
